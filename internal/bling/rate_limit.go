package bling

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitError signals an HTTP 429 from the Bling API. Callers may back off
// for RetryAfter before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e == nil {
		return "rate limit"
	}
	if e.Message != "" {
		return e.Message
	}
	return "rate limit exceeded"
}

func rateLimitErrorFromHeaders(headers http.Header, msg string) *RateLimitError {
	retryAfter := 1 * time.Second
	if v := headers.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			retryAfter = time.Duration(secs) * time.Second
		} else if parsed, err := http.ParseTime(v); err == nil {
			if d := time.Until(parsed); d > 0 {
				retryAfter = d
			}
		}
	}
	return &RateLimitError{RetryAfter: retryAfter, Message: msg}
}
