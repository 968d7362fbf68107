package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/pkg/aliexpress"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ToRecords maps a search payload into product records in upstream order.
// Missing structure yields an empty slice; missing fields stay absent.
// Duplicate product ids keep their first occurrence.
func ToRecords(p *aliexpress.Payload) []models.ProductRecord {
	if p == nil {
		return []models.ProductRecord{}
	}
	products := p.Products()
	if len(products) == 0 {
		log.Warn().Str("method", p.Method).Msg("Search response contains no products")
		return []models.ProductRecord{}
	}

	records := make([]models.ProductRecord, 0, len(products))
	seen := make(map[string]bool, len(products))
	for _, raw := range products {
		rec := toRecord(raw)
		if rec.ProductID == "" || seen[rec.ProductID] {
			continue
		}
		seen[rec.ProductID] = true
		records = append(records, rec)
	}
	return records
}

// ToRecordsFromJSON is ToRecords over a raw search response body.
func ToRecordsFromJSON(method string, raw []byte) []models.ProductRecord {
	return ToRecords(&aliexpress.Payload{Method: method, Body: raw})
}

func toRecord(raw aliexpress.RawProduct) models.ProductRecord {
	str := func(key string) string {
		s, _ := raw.String(key)
		return strings.TrimSpace(s)
	}

	rec := models.ProductRecord{
		ProductID:      str("product_id"),
		Title:          str("product_title"),
		Price:          ParsePrice(str("target_sale_price")),
		Currency:       str("target_sale_price_currency"),
		CommissionRate: ParseFloat(str("commission_rate")),
		MainImageURL:   str("product_main_image_url"),
		DetailURL:      str("product_detail_url"),
		AffiliateLink:  str("promotion_link"),
		LatestVolume:   ParseCount(str("lastest_volume")),
		FirstCategory:  str("first_level_category_name"),
		SecondCategory: str("second_level_category_name"),
	}
	if !rec.Price.Valid {
		rec.Price = ParsePrice(str("app_sale_price"))
	}
	return rec
}

// ParseCount normalises free-form counts such as "10,000+", "1.2k" or " 350 ".
// Separators, plus signs and whitespace are dropped; a trailing k or m scales
// the value. Negative, unparseable or out-of-range input is absent.
func ParseCount(s string) models.OptInt {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '+', ' ', '\t', '\n', '\u00a0':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return models.OptInt{}
	}

	mult := 1.0
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = 1e3
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1e6
		s = s[:len(s)-1]
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 && mult == 1 {
		return models.Int(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return models.OptInt{}
	}
	v := math.Round(f * mult)
	if v >= math.MaxInt64 {
		return models.OptInt{}
	}
	return models.Int(int64(v))
}

// ParseFloat parses ratings and rates such as "4.8" or "7.0%". Unparseable input is absent.
func ParseFloat(s string) models.OptFloat {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return models.OptFloat{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.OptFloat{}
	}
	return models.Float(f)
}

// ParsePrice parses a currency amount, ignoring thousands separators.
func ParsePrice(s string) decimal.NullDecimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
