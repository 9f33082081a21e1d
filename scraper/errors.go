package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind labels a failed request for metrics and the run summary.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindForbidden   ErrorKind = "forbidden"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindOther       ErrorKind = "other"
	KindUnknown     ErrorKind = "unknown"
)

// RequestError is a classified marketplace request failure.
type RequestError struct {
	Kind ErrorKind
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// classifyError maps a transport error or HTTP status onto a RequestError.
// It returns nil when there is nothing to classify.
func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RequestError{Kind: KindTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &RequestError{Kind: KindConnection, Err: err}
	}

	wrapped := err
	if wrapped == nil {
		wrapped = fmt.Errorf("http status %d", statusCode)
	}
	switch statusCode {
	case http.StatusForbidden:
		return &RequestError{Kind: KindForbidden, Err: wrapped}
	case http.StatusNotFound:
		return &RequestError{Kind: KindNotFound, Err: wrapped}
	case http.StatusTooManyRequests:
		return &RequestError{Kind: KindRateLimited, Err: wrapped}
	}
	return &RequestError{Kind: KindOther, Err: wrapped}
}

func errorTypeLabel(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return string(reqErr.Kind)
	}
	if err == nil {
		return string(KindUnknown)
	}
	return string(KindOther)
}
