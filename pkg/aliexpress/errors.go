package aliexpress

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned for a single attempt rejected with ApiCallLimit.
	ErrRateLimited = errors.New("aliexpress: api call limit")
	// ErrNoCredentials means no credential was configured, or every credential
	// kept hitting the call limit after all cool-down rounds.
	ErrNoCredentials = errors.New("aliexpress: no usable credentials")
	// ErrTransport wraps the last error after all attempts failed.
	ErrTransport = errors.New("aliexpress: transport failure")
)

// Error codes returned in error_response.code
const (
	CodeAPICallLimit     = "ApiCallLimit"
	CodeIsvCallLimit     = "isv.appkey-call-limited"
	CodeInvalidSignature = "IncompleteSignature"
	CodeInvalidAppKey    = "isv.appkey-not-exists"
	CodeMissingParameter = "MissingParameter"
	CodeInvalidParameter = "isv.invalid-parameter"
	CodeInvalidSession   = "IllegalAccessToken"
)

// RateLimitCodes trigger credential rotation.
var RateLimitCodes = map[string]bool{
	CodeAPICallLimit: true,
	CodeIsvCallLimit: true,
}

// AuthCodes indicate misconfigured credentials. They end a call without retrying.
var AuthCodes = map[string]bool{
	CodeInvalidSignature: true,
	CodeInvalidAppKey:    true,
	CodeInvalidSession:   true,
}

// IsRateLimit checks if the error code is a call-limit rejection
func IsRateLimit(code string) bool {
	return RateLimitCodes[code]
}

// IsAuthError checks if the error code indicates bad credentials
func IsAuthError(code string) bool {
	return AuthCodes[code]
}

// APIError is the decoded error_response envelope.
type APIError struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Msg       string `json:"msg"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aliexpress: %s: %s (request_id=%s)", e.Code, e.Msg, e.RequestID)
}

// parseError returns the error_response envelope if the body carries one.
func parseError(body []byte) *APIError {
	var envelope struct {
		ErrorResponse *APIError `json:"error_response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	if envelope.ErrorResponse == nil || envelope.ErrorResponse.Code == "" {
		return nil
	}
	return envelope.ErrorResponse
}
