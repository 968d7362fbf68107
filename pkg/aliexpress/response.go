package aliexpress

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Payload is a raw upstream response body tagged with the method that produced it.
type Payload struct {
	Method string
	Body   []byte
}

// ResponseKey returns the envelope key for a method, e.g.
// aliexpress.affiliate.product.query -> aliexpress_affiliate_product_query_response.
func ResponseKey(method string) string {
	return strings.ReplaceAll(method, ".", "_") + "_response"
}

// Dig walks nested objects below the method envelope. It returns nil when
// any segment is missing or not an object.
func (p *Payload) Dig(path ...string) any {
	if p == nil || len(p.Body) == 0 {
		return nil
	}
	var root map[string]any
	dec := json.NewDecoder(bytes.NewReader(p.Body))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil
	}
	var cur any = root[ResponseKey(p.Method)]
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

// Object returns the object at path, or nil.
func (p *Payload) Object(path ...string) RawProduct {
	obj, _ := p.Dig(path...).(map[string]any)
	return obj
}

// List returns the objects in the array at path. Non-object items are skipped.
func (p *Payload) List(path ...string) []RawProduct {
	arr, ok := p.Dig(path...).([]any)
	if !ok {
		return nil
	}
	out := make([]RawProduct, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// Products returns resp_result.result.products.product[] for search methods.
func (p *Payload) Products() []RawProduct {
	return p.List("resp_result", "result", "products", "product")
}

// RawProduct is one upstream product object with loosely typed fields.
type RawProduct map[string]any

// String returns the field as text. Numbers are formatted without exponent.
func (r RawProduct) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// Has reports whether key is present with a non-empty value.
func (r RawProduct) Has(key string) bool {
	s, ok := r.String(key)
	return ok && s != ""
}

// hasEmptyPromotionLinks reports a search response where at least one product
// came back without a promotion_link. Responses without products are not degenerate.
func hasEmptyPromotionLinks(body []byte) bool {
	for _, method := range []string{MethodProductQuery, MethodHotProductQuery} {
		p := &Payload{Method: method, Body: body}
		products := p.Products()
		if len(products) == 0 {
			continue
		}
		for _, product := range products {
			if !product.Has("promotion_link") {
				return true
			}
		}
	}
	return false
}
