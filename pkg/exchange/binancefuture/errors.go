package binancefuture

import "fmt"

// APIError represents a Binance API error response. HTTPStatus carries the
// HTTP status code of the response so callers can classify rate limiting
// (429) and IP bans (418) without string matching.
type APIError struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("Binance API error (HTTP %d) %d: %s", e.HTTPStatus, e.Code, e.Msg)
}

// IsRateLimit reports whether the upstream asked us to back off. Binance
// answers 429 when the request weight is exhausted and 418 when the IP has
// been auto-banned for ignoring 429s.
func (e *APIError) IsRateLimit() bool {
	return e.HTTPStatus == 429 || e.HTTPStatus == 418
}

// Common Binance API error codes
const (
	ErrCodeUnknown         = -1000
	ErrCodeDisconnected    = -1001
	ErrCodeTooManyRequests = -1003
	ErrCodeTimeout         = -1007
	ErrCodeNoDepth         = -1112
	ErrCodeBadSymbol       = -1121
)

// IsRetryableError checks if the error is retryable
func IsRetryableError(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		if apiErr.IsRateLimit() || apiErr.HTTPStatus >= 500 {
			return true
		}
		switch apiErr.Code {
		case ErrCodeTooManyRequests, ErrCodeTimeout, ErrCodeDisconnected:
			return true
		}
	}
	return false
}
