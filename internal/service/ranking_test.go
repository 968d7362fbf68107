package service

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/dealfinder/internal/models"
)

func rec(id string, price string, rating float64, sales, reviews int64) models.ProductRecord {
	r := models.ProductRecord{ProductID: id, Price: ParsePrice(price)}
	if rating > 0 {
		r.Rating = models.Float(rating)
	}
	if sales > 0 {
		r.SalesCount = models.Int(sales)
	}
	if reviews > 0 {
		r.ReviewCount = models.Int(reviews)
	}
	return r
}

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestMultiplicativePolicy(t *testing.T) {
	records := []models.ProductRecord{
		rec("a", "10", 4.5, 100, 20),
		rec("b", "10", 0, 0, 0),
		rec("c", "", 5, 100, 100),
		rec("d", "0", 5, 100, 100),
		rec("e", "3", 4, 1, 1),
	}
	grades := MultiplicativePolicy{}.Score(records)
	require.Len(t, grades, len(records))

	assert.Equal(t, models.Float(900), grades[0])
	assert.Equal(t, models.Float(0.1), grades[1])
	assert.False(t, grades[2].Valid)
	assert.False(t, grades[3].Valid)
	assert.Equal(t, models.Float(1.33), grades[4])
}

func TestNormalizedPolicy(t *testing.T) {
	records := []models.ProductRecord{
		rec("cheap-popular", "10", 5, 1000, 500),
		rec("pricey-unpopular", "30", 3, 10, 5),
		rec("no-price", "", 5, 1000, 500),
	}
	grades := NormalizedPolicy{}.Score(records)
	require.Len(t, grades, 3)

	assert.Equal(t, models.Float(1), grades[0])
	assert.Equal(t, models.Float(0), grades[1])
	assert.False(t, grades[2].Valid)
}

func TestNormalizedPolicy_ConstantSet(t *testing.T) {
	records := []models.ProductRecord{
		rec("a", "10", 4, 50, 5),
		rec("b", "10", 4, 50, 5),
	}
	grades := NormalizedPolicy{}.Score(records)
	// every signal is constant: quality 1, inverted price 0
	assert.Equal(t, models.Float(0.5), grades[0])
	assert.Equal(t, grades[0], grades[1])
}

func TestRanker_OrdersAndAssignsRanks(t *testing.T) {
	records := []models.ProductRecord{
		rec("low", "10", 1, 1, 1),
		rec("ungraded", "", 5, 5, 5),
		rec("high", "10", 5, 100, 100),
		rec("mid", "10", 3, 10, 10),
	}
	ranker := NewRanker(MultiplicativePolicy{}, seeded())
	out := ranker.Rank(records)
	require.Len(t, out, 4)

	assert.Equal(t, []string{"high", "mid", "low", "ungraded"}, []string{out[0].ProductID, out[1].ProductID, out[2].ProductID, out[3].ProductID})
	assert.Equal(t, models.Int(1), out[0].Rank)
	assert.Equal(t, models.Int(3), out[2].Rank)
	assert.False(t, out[3].Rank.Valid)
	assert.False(t, out[3].Grade.Valid)

	// input untouched
	assert.False(t, records[0].Rank.Valid)
}

func TestRanker_MissingPriceUngradedUnderBothPolicies(t *testing.T) {
	records := []models.ProductRecord{
		rec("no-price", "", 5, 1000, 500),
		rec("a", "10", 4, 50, 5),
		rec("b", "20", 3, 10, 2),
	}
	for _, policy := range []ScoringPolicy{MultiplicativePolicy{}, NormalizedPolicy{}} {
		out := NewRanker(policy, seeded()).Rank(records)
		require.Len(t, out, 3)
		last := out[2]
		assert.Equal(t, "no-price", last.ProductID, "%T", policy)
		assert.False(t, last.Grade.Valid, "%T", policy)
		assert.False(t, last.Rank.Valid, "%T", policy)
	}
}

func TestRanker_NeverPanicsOnMissingFields(t *testing.T) {
	inputs := [][]models.ProductRecord{
		nil,
		{},
		{{}},
		{{ProductID: "x"}, {ProductID: "y", Price: ParsePrice("0")}},
	}
	for _, policy := range []ScoringPolicy{MultiplicativePolicy{}, NormalizedPolicy{}} {
		ranker := NewRanker(policy, seeded())
		for _, in := range inputs {
			var out []models.ProductRecord
			assert.NotPanics(t, func() { out = ranker.Rank(in) })
			assert.Len(t, out, len(in))
		}
	}
}

func TestRanker_TiesAreShuffled(t *testing.T) {
	records := []models.ProductRecord{
		rec("a", "10", 4, 10, 10),
		rec("b", "10", 4, 10, 10),
		rec("c", "10", 4, 10, 10),
	}
	ranker := NewRanker(MultiplicativePolicy{}, seeded())

	firsts := make(map[string]bool)
	for i := 0; i < 200; i++ {
		out := ranker.Rank(records)
		firsts[out[0].ProductID] = true
		assert.Equal(t, models.Int(1), out[0].Rank)
	}
	assert.Len(t, firsts, 3)
}

func TestSortByVolume(t *testing.T) {
	records := []models.ProductRecord{
		{ProductID: "none"},
		{ProductID: "low", LatestVolume: models.Int(5)},
		{ProductID: "high", LatestVolume: models.Int(500)},
	}
	out := SortByVolume(records)
	assert.Equal(t, "high", out[0].ProductID)
	assert.Equal(t, "low", out[1].ProductID)
	assert.Equal(t, "none", out[2].ProductID)
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	assert.Equal(t, PolicyNormalized, p.Name())

	p, err = PolicyByName("multiplicative")
	require.NoError(t, err)
	assert.Equal(t, PolicyMultiplicative, p.Name())

	_, err = PolicyByName("magic")
	assert.Error(t, err)
}
