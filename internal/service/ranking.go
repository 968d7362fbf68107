package service

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/GTDGit/dealfinder/internal/models"
)

const (
	PolicyNormalized     = "normalized"
	PolicyMultiplicative = "multiplicative"
)

// ScoringPolicy computes one grade per record. The returned slice has the
// same length as the input; absent entries mean "no grade".
type ScoringPolicy interface {
	Name() string
	Score(records []models.ProductRecord) []models.OptFloat
}

// PolicyByName resolves a ranking policy from configuration.
func PolicyByName(name string) (ScoringPolicy, error) {
	switch name {
	case "", PolicyNormalized:
		return NormalizedPolicy{}, nil
	case PolicyMultiplicative:
		return MultiplicativePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown ranking policy %q", name)
	}
}

// salesOf prefers the detail sales count and falls back to the search volume.
func salesOf(r models.ProductRecord) models.OptInt {
	if r.SalesCount.Valid {
		return r.SalesCount
	}
	return r.LatestVolume
}

// MultiplicativePolicy grades rating * sales * reviews / price.
// Zero or absent factors count as 1; a missing or zero price yields no grade.
type MultiplicativePolicy struct{}

func (MultiplicativePolicy) Name() string { return PolicyMultiplicative }

func (MultiplicativePolicy) Score(records []models.ProductRecord) []models.OptFloat {
	grades := make([]models.OptFloat, len(records))
	for i, r := range records {
		price, ok := r.PriceFloat()
		if !ok || price == 0 {
			continue
		}
		rating := orOne(r.Rating.Value, r.Rating.Valid)
		sales := orOne(float64(salesOf(r).Value), salesOf(r).Valid)
		reviews := orOne(float64(r.ReviewCount.Value), r.ReviewCount.Valid)

		g := models.Float(rating * sales * reviews / price)
		if g.Valid {
			g.Value = round(g.Value, 2)
		}
		grades[i] = g
	}
	return grades
}

func orOne(v float64, valid bool) float64 {
	if !valid || v == 0 {
		return 1
	}
	return v
}

// Weights of the normalized policy.
const (
	weightRating  = 0.33
	weightReviews = 0.33
	weightSales   = 0.34
	weightQuality = 0.5
	weightPrice   = 0.5
)

// NormalizedPolicy min-max normalises rating, reviews and sales over the
// candidate set and blends their weighted quality with the inverted
// normalised price. Records without a price get no grade.
type NormalizedPolicy struct{}

func (NormalizedPolicy) Name() string { return PolicyNormalized }

func (NormalizedPolicy) Score(records []models.ProductRecord) []models.OptFloat {
	n := len(records)
	ratings := make([]models.OptFloat, n)
	reviews := make([]models.OptFloat, n)
	sales := make([]models.OptFloat, n)
	prices := make([]models.OptFloat, n)
	for i, r := range records {
		ratings[i] = r.Rating
		if r.ReviewCount.Valid {
			reviews[i] = models.Float(float64(r.ReviewCount.Value))
		}
		if s := salesOf(r); s.Valid {
			sales[i] = models.Float(float64(s.Value))
		}
		if p, ok := r.PriceFloat(); ok {
			prices[i] = models.Float(p)
		}
	}

	nRating := minMax(ratings)
	nReviews := minMax(reviews)
	nSales := minMax(sales)
	nPrice := minMax(prices)

	grades := make([]models.OptFloat, n)
	for i := range records {
		if !prices[i].Valid {
			continue
		}
		quality := weightRating*nRating[i] + weightReviews*nReviews[i] + weightSales*nSales[i]
		priceScore := 1 - nPrice[i]
		g := models.Float(weightQuality*quality + weightPrice*priceScore)
		if g.Valid {
			g.Value = round(g.Value, 4)
		}
		grades[i] = g
	}
	return grades
}

// minMax scales present values into [0,1]. A constant set maps to 1 and
// absent values map to 0.
func minMax(values []models.OptFloat) []float64 {
	out := make([]float64, len(values))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !v.Valid {
			continue
		}
		lo = math.Min(lo, v.Value)
		hi = math.Max(hi, v.Value)
	}
	for i, v := range values {
		switch {
		case !v.Valid:
			out[i] = 0
		case hi == lo:
			out[i] = 1
		default:
			out[i] = (v.Value - lo) / (hi - lo)
		}
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Ranker orders records by a scoring policy. Ties are broken uniformly at
// random: records are shuffled before a stable sort, so identical grades do
// not always favour the same product.
type Ranker struct {
	policy ScoringPolicy

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRanker creates a ranker. A nil rng seeds one from the clock.
func NewRanker(policy ScoringPolicy, rng *rand.Rand) *Ranker {
	if policy == nil {
		policy = NormalizedPolicy{}
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Ranker{policy: policy, rng: rng}
}

func (r *Ranker) Policy() string {
	return r.policy.Name()
}

// Rank returns a copy of records annotated with grade and rank, best first.
// Ungraded records sort last with no rank.
func (r *Ranker) Rank(records []models.ProductRecord) []models.ProductRecord {
	out := make([]models.ProductRecord, len(records))
	copy(out, records)

	grades := r.policy.Score(out)
	for i := range out {
		out[i].Grade = models.OptFloat{}
		if i < len(grades) {
			out[i].Grade = grades[i]
		}
		out[i].Rank = models.OptInt{}
	}

	r.mu.Lock()
	r.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		gi, gj := out[i].Grade, out[j].Grade
		if gi.Valid != gj.Valid {
			return gi.Valid
		}
		return gi.Valid && gi.Value > gj.Value
	})

	for i := range out {
		if !out[i].Grade.Valid {
			break
		}
		out[i].Rank = models.Int(int64(i + 1))
	}
	return out
}

// SortByVolume returns a copy ordered by recent sales volume, highest first.
// Records without volume keep their relative order at the end.
func SortByVolume(records []models.ProductRecord) []models.ProductRecord {
	out := make([]models.ProductRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := out[i].LatestVolume, out[j].LatestVolume
		if vi.Valid != vj.Valid {
			return vi.Valid
		}
		return vi.Valid && vi.Value > vj.Value
	})
	return out
}
