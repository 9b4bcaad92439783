// Package llm is the completion collaborator of the lifecycle engine: an
// OpenAI-compatible chat client with a rotated credential pool.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Completer turns one prompt into raw model text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

type CompletionRequest struct {
	System      string
	User        string
	Model       string
	Temperature *float64
	MaxTokens   int
	// JSONMode asks the provider for a JSON object response when it supports one.
	JSONMode bool
}

type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

type TransportKind string

const (
	TransportTimeout     TransportKind = "timeout"
	TransportRateLimited TransportKind = "rate_limited"
	TransportOther       TransportKind = "other"
)

// TransportError is every failure of the call itself, as opposed to a bad response body.
type TransportError struct {
	Kind       TransportKind
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "llm transport error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm %s (status=%d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "upstream http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("upstream http error: status=%d body=%s", e.StatusCode, e.Body)
}

// AsTransportError classifies err into a *TransportError; it returns nil for nil.
func AsTransportError(err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	out := &TransportError{Kind: TransportOther, Err: err}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		out.StatusCode = httpErr.StatusCode
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests:
			out.Kind = TransportRateLimited
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			out.Kind = TransportTimeout
		}
		return out
	}
	if errors.Is(err, context.DeadlineExceeded) {
		out.Kind = TransportTimeout
		return out
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		out.Kind = TransportTimeout
	}
	return out
}
