package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// ProductRecord is one product candidate flowing through the search pipeline.
// Numeric fields that may be missing upstream use Opt* / NullDecimal so that
// absence survives every stage.
type ProductRecord struct {
	ProductID      string              `json:"product_id"`
	Title          string              `json:"product_title"`
	Subject        string              `json:"subject,omitempty"`
	Price          decimal.NullDecimal `json:"target_sale_price"`
	Currency       string              `json:"target_sale_price_currency,omitempty"`
	CommissionRate OptFloat            `json:"commission_rate"`
	MainImageURL   string              `json:"product_main_image_url,omitempty"`
	DetailURL      string              `json:"product_detail_url,omitempty"`
	AffiliateLink  string              `json:"promotion_link"`
	LatestVolume   OptInt              `json:"lastest_volume"`
	SalesCount     OptInt              `json:"sales_count"`
	Rating         OptFloat            `json:"avg_evaluation_rating"`
	ReviewCount    OptInt              `json:"evaluation_count"`
	FirstCategory  string              `json:"first_level_category_name,omitempty"`
	SecondCategory string              `json:"second_level_category_name,omitempty"`

	Rank  OptInt   `json:"rank"`
	Grade OptFloat `json:"grade"`
}

// DisplayTitle prefers the localised subject from the detail API.
func (r ProductRecord) DisplayTitle() string {
	if r.Subject != "" {
		return r.Subject
	}
	return r.Title
}

// PriceFloat returns the price as float64, or false when absent.
func (r ProductRecord) PriceFloat() (float64, bool) {
	if !r.Price.Valid {
		return 0, false
	}
	f, _ := r.Price.Decimal.Float64()
	return f, true
}

var jsonNull = []byte("null")

// OptFloat is a float64 that may be absent.
type OptFloat struct {
	Value float64
	Valid bool
}

// Float returns a present OptFloat. NaN and infinities are treated as absent.
func Float(v float64) OptFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return OptFloat{}
	}
	return OptFloat{Value: v, Valid: true}
}

func (o OptFloat) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return jsonNull, nil
	}
	return []byte(strconv.FormatFloat(o.Value, 'f', -1, 64)), nil
}

func (o *OptFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*o = OptFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Float(v)
	return nil
}

// OptInt is an int64 that may be absent.
type OptInt struct {
	Value int64
	Valid bool
}

// Int returns a present OptInt.
func Int(v int64) OptInt {
	return OptInt{Value: v, Valid: true}
}

func (o OptInt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return jsonNull, nil
	}
	return []byte(strconv.FormatInt(o.Value, 10)), nil
}

func (o *OptInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*o = OptInt{}
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Int(v)
	return nil
}
