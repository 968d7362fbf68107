package aliexpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// BaseURL is the AliExpress open platform sync gateway.
	BaseURL = "https://api-sg.aliexpress.com/sync"

	MethodProductQuery    = "aliexpress.affiliate.product.query"
	MethodHotProductQuery = "aliexpress.affiliate.hotproduct.query"
	MethodProductGet      = "aliexpress.ds.product.get"
	MethodLinkGenerate    = "aliexpress.affiliate.link.generate"
	MethodCategoryGet     = "aliexpress.affiliate.category.get"
)

// maxResponseSize is the maximum allowed response body size (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Credential is one app key / secret pair issued by the open platform.
type Credential struct {
	AppKey    string
	AppSecret string
}

// Observer receives one call per upstream attempt. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveAttempt(method, result string, elapsed time.Duration)
}

// Config holds AliExpress API configuration
type Config struct {
	BaseURL string

	// Credentials are the affiliate app keys. When more than one is configured
	// the client alternates between them on rate-limit errors.
	Credentials []Credential

	// DSCredential and DSAccessToken authorise the dropshipping detail API.
	DSCredential  Credential
	DSAccessToken string

	TrackingID     string
	Currency       string
	Language       string
	DetailLanguage string
	ShipToCountry  string
	Sort           string

	MaxAttempts        int
	MaxRateLimitRounds int
	RetryDelay         time.Duration
	RateLimitDelay     time.Duration
	Timeout            time.Duration

	Observer Observer
}

// Client is the AliExpress affiliate API client.
type Client struct {
	httpClient *http.Client
	config     Config
	debug      bool
}

// NewClient creates a new AliExpress client, filling zero config values with defaults.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 4
	}
	if config.MaxRateLimitRounds <= 0 {
		config.MaxRateLimitRounds = 2
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.RateLimitDelay <= 0 {
		config.RateLimitDelay = 3 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.TrackingID == "" {
		config.TrackingID = "default"
	}
	if config.Sort == "" {
		config.Sort = "LAST_VOLUME_DESC"
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		debug:      os.Getenv("ENV") == "development",
	}
}

// Search queries affiliate products by keywords. The returned payload may be
// degenerate (products without promotion links) when retries ran out.
func (c *Client) Search(ctx context.Context, keywords string, count int) (*Payload, error) {
	return c.search(ctx, MethodProductQuery, keywords, count)
}

// HotProducts queries the hot-product listing, which carries commission and
// category fields the plain product query omits.
func (c *Client) HotProducts(ctx context.Context, keywords string, count int) (*Payload, error) {
	return c.search(ctx, MethodHotProductQuery, keywords, count)
}

func (c *Client) search(ctx context.Context, method, keywords string, count int) (*Payload, error) {
	if len(c.config.Credentials) == 0 {
		return nil, ErrNoCredentials
	}
	// one extra row, the upstream tends to return page_size-1 items
	params := map[string]string{
		"keywords":              keywords,
		"page_no":               "1",
		"page_size":             strconv.Itoa(count + 1),
		"target_currency":       c.config.Currency,
		"target_language":       c.config.Language,
		"platform_product_type": "ALL",
		"ship_to_country":       c.config.ShipToCountry,
		"sort":                  c.config.Sort,
	}
	req := request{
		method:      method,
		httpMethod:  http.MethodGet,
		params:      params,
		credentials: c.config.Credentials,
		degenerate:  hasEmptyPromotionLinks,
	}
	body, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Payload{Method: method, Body: body}, nil
}

// ProductDetail fetches the dropshipping detail record for one product.
func (c *Client) ProductDetail(ctx context.Context, productID string) (*Payload, error) {
	if c.config.DSCredential.AppKey == "" {
		return nil, ErrNoCredentials
	}
	params := map[string]string{
		"product_id":      productID,
		"access_token":    c.config.DSAccessToken,
		"v":               "2.0",
		"target_currency": c.config.Currency,
		"target_language": c.config.DetailLanguage,
		"ship_to_country": c.config.ShipToCountry,
	}
	req := request{
		method:      MethodProductGet,
		httpMethod:  http.MethodGet,
		params:      params,
		credentials: []Credential{c.config.DSCredential},
	}
	body, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Payload{Method: MethodProductGet, Body: body}, nil
}

// GenerateLinks converts source links into tracked short links in one call.
// Source links missing from the response are absent from the returned map.
func (c *Client) GenerateLinks(ctx context.Context, sourceLinks []string) (map[string]string, error) {
	if len(sourceLinks) == 0 {
		return map[string]string{}, nil
	}
	if len(c.config.Credentials) == 0 {
		return nil, ErrNoCredentials
	}
	params := map[string]string{
		"promotion_link_type": "2",
		"source_values":       strings.Join(sourceLinks, ","),
		"tracking_id":         c.config.TrackingID,
	}
	req := request{
		method:      MethodLinkGenerate,
		httpMethod:  http.MethodPost,
		params:      params,
		credentials: c.config.Credentials,
	}
	body, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	payload := &Payload{Method: MethodLinkGenerate, Body: body}
	links := make(map[string]string)
	for _, item := range payload.List("resp_result", "result", "promotion_links", "promotion_link") {
		source, _ := item.String("source_value")
		short, _ := item.String("promotion_link")
		if source != "" && short != "" {
			links[source] = short
		}
	}
	return links, nil
}

// Categories fetches the full affiliate category taxonomy.
func (c *Client) Categories(ctx context.Context) (*Payload, error) {
	if len(c.config.Credentials) == 0 {
		return nil, ErrNoCredentials
	}
	req := request{
		method:      MethodCategoryGet,
		httpMethod:  http.MethodGet,
		params:      map[string]string{"v": "2.0"},
		credentials: c.config.Credentials,
	}
	body, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Payload{Method: MethodCategoryGet, Body: body}, nil
}

// request describes one logical upstream call; execute may issue it several times.
type request struct {
	method      string
	httpMethod  string
	params      map[string]string
	credentials []Credential
	// degenerate reports a successful but unusable response worth retrying.
	degenerate func(body []byte) bool
}

// execute drives the retry policy until the call succeeds or a terminal state is reached.
func (c *Client) execute(ctx context.Context, req request) ([]byte, error) {
	policy := newRetryPolicy(len(req.credentials), rand.IntN(len(req.credentials)), c.config.MaxAttempts, c.config.MaxRateLimitRounds)

	// last empty-links body, returned if the call runs out of attempts
	var degenerate []byte
	for {
		cred := req.credentials[policy.cred]
		body, kind, err := c.attempt(ctx, req, cred)
		if kind == kindEmptyLinks {
			degenerate = body
		}

		switch policy.next(kind) {
		case stepDone:
			return body, nil
		case stepRotate:
			log.Warn().
				Str("method", req.method).
				Int("credential", policy.cred).
				Msg("[ALIEXPRESS] API call limit, rotating credentials")
			continue
		case stepRetry:
			log.Warn().
				Err(err).
				Str("method", req.method).
				Str("reason", kind.String()).
				Int("attempt", policy.attempt+1).
				Int("max_attempts", c.config.MaxAttempts).
				Msg("[ALIEXPRESS] Retrying call")
			if err := sleep(ctx, c.config.RetryDelay); err != nil {
				return nil, err
			}
		case stepCoolDown:
			log.Warn().
				Str("method", req.method).
				Dur("delay", c.config.RateLimitDelay).
				Msg("[ALIEXPRESS] API call limit on every credential, waiting")
			if err := sleep(ctx, c.config.RateLimitDelay); err != nil {
				return nil, err
			}
		case stepExhausted:
			switch {
			case kind == kindRateLimit:
				return nil, ErrNoCredentials
			case kind == kindAuth:
				log.Error().Err(err).Str("method", req.method).Int("credential", policy.cred).Msg("[ALIEXPRESS] Credential rejected")
				return nil, fmt.Errorf("%s: %w", req.method, err)
			case degenerate != nil:
				log.Warn().Str("method", req.method).Str("reason", kind.String()).Msg("[ALIEXPRESS] Max retries reached for promotion links, returning result anyway")
				return degenerate, nil
			default:
				return nil, fmt.Errorf("%w: %s: %v", ErrTransport, req.method, err)
			}
		}
	}
}

// attempt performs one signed HTTP round trip and classifies its outcome.
func (c *Client) attempt(ctx context.Context, req request, cred Credential) ([]byte, errKind, error) {
	start := time.Now()
	body, err := c.doRequest(ctx, req, cred)
	kind := kindNone
	switch {
	case err != nil:
		kind = kindTransport
	default:
		if apiErr := parseError(body); apiErr != nil {
			if IsRateLimit(apiErr.Code) {
				kind = kindRateLimit
				err = ErrRateLimited
			} else if IsAuthError(apiErr.Code) {
				kind = kindAuth
				err = apiErr
			} else {
				kind = kindTransport
				err = apiErr
			}
		} else if req.degenerate != nil && req.degenerate(body) {
			kind = kindEmptyLinks
		}
	}
	if c.config.Observer != nil {
		c.config.Observer.ObserveAttempt(req.method, kind.String(), time.Since(start))
	}
	return body, kind, err
}

// doRequest signs the parameters with a fresh timestamp and performs the HTTP call.
func (c *Client) doRequest(ctx context.Context, req request, cred Credential) ([]byte, error) {
	values := url.Values{}
	for k, v := range req.params {
		values.Set(k, v)
	}
	values.Set("app_key", cred.AppKey)
	values.Set("method", req.method)
	values.Set("sign_method", "md5")
	values.Set("format", "json")
	values.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	values.Set("sign", Sign(values, cred.AppSecret))

	if c.debug {
		log.Debug().
			Str("endpoint", c.config.BaseURL).
			Str("method", req.method).
			Interface("request", sanitizeForLog(values)).
			Msg("[ALIEXPRESS] Outgoing request")
	}

	var (
		httpReq *http.Request
		err     error
	)
	if req.httpMethod == http.MethodPost {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, strings.NewReader(values.Encode()))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
		}
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+values.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
	if !json.Valid(respBody) {
		return nil, errors.New("failed to decode response: invalid JSON")
	}

	if c.debug {
		log.Debug().
			Str("method", req.method).
			Int("status_code", resp.StatusCode).
			Int("bytes", len(respBody)).
			Msg("[ALIEXPRESS] Incoming response")
	}
	return respBody, nil
}

// sanitizeForLog masks credentials before request parameters are logged.
func sanitizeForLog(values url.Values) map[string]string {
	sensitive := []string{"access_token", "sign", "app_key"}
	out := make(map[string]string, len(values))
	for k := range values {
		out[k] = values.Get(k)
		for _, s := range sensitive {
			if k == s {
				out[k] = "***MASKED***"
				break
			}
		}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
