package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, v any) *http.Response {
	b, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
	}
}

func TestCompleteRotatesKeysAndReadsUsage(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	hc := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var in chatCompletionRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		if in.ResponseFormat["type"] != "json_object" {
			t.Fatalf("json mode not forwarded: %+v", in.ResponseFormat)
		}
		mu.Lock()
		seen = append(seen, req.Header.Get("Authorization"))
		mu.Unlock()
		return jsonResponse(http.StatusOK, map[string]any{
			"model":   "gpt-4o-mini-2024",
			"choices": []map[string]any{{"message": map[string]any{"content": `{"score":80,"feedback":"good"}`}}},
			"usage":   map[string]any{"prompt_tokens": 120, "completion_tokens": 30},
		}), nil
	})}

	c, err := New(Config{BaseURL: "http://upstream", APIKeys: []string{"k1", "k2", "k3"}}, logger.Nop(), WithHTTPClient(hc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 4; i++ {
		out, err := c.Complete(context.Background(), CompletionRequest{System: "grade", User: "answer", JSONMode: true})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if out.InputTokens != 120 || out.OutputTokens != 30 || out.Model != "gpt-4o-mini-2024" {
			t.Fatalf("completion: %+v", out)
		}
	}
	want := []string{"Bearer k1", "Bearer k2", "Bearer k3", "Bearer k1"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("key order: want=%v got=%v", want, seen)
		}
	}
}

func TestCompleteClassifiesTransportFailures(t *testing.T) {
	cases := []struct {
		status int
		want   TransportKind
	}{
		{http.StatusTooManyRequests, TransportRateLimited},
		{http.StatusGatewayTimeout, TransportTimeout},
		{http.StatusInternalServerError, TransportOther},
	}
	for _, tc := range cases {
		hc := &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(tc.status, map[string]any{"error": "nope"}), nil
		})}
		c, err := New(Config{APIKeys: []string{"k"}}, logger.Nop(), WithHTTPClient(hc))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		_, err = c.Complete(context.Background(), CompletionRequest{User: "x"})
		te := AsTransportError(err)
		if te == nil || te.Kind != tc.want || te.StatusCode != tc.status {
			t.Fatalf("status %d: want kind=%s got=%+v", tc.status, tc.want, te)
		}
	}
}

func TestCompleteTimeoutIsTransportTimeout(t *testing.T) {
	hc := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})}
	c, err := New(Config{APIKeys: []string{"k"}, Timeout: 20 * time.Millisecond}, logger.Nop(), WithHTTPClient(hc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Complete(context.Background(), CompletionRequest{User: "x"})
	if te := AsTransportError(err); te == nil || te.Kind != TransportTimeout {
		t.Fatalf("want timeout got=%v", err)
	}
}

func TestNewRequiresKeys(t *testing.T) {
	if _, err := New(Config{APIKeys: []string{" "}}, logger.Nop()); err == nil {
		t.Fatalf("expected error for empty key pool")
	}
}
