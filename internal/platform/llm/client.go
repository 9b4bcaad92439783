package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type Config struct {
	BaseURL             string
	ChatCompletionsPath string
	Model               string
	APIKeys             []string
	Timeout             time.Duration
	Temperature         *float64
	// RateLimitRPS paces outbound calls process-wide; zero disables pacing.
	RateLimitRPS float64
	RateBurst    int
}

type Option func(*Client)

// WithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRotation replaces the process-local rotation counter. Failures of r fall back to it.
func WithRotation(r Rotation) Option {
	return func(c *Client) {
		if r != nil {
			c.rotation = fallbackRotation{primary: r, local: NewAtomicRotation()}
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

type Client struct {
	log *logger.Logger

	baseURL  string
	chatPath string
	model    string
	keys     []string
	timeout  time.Duration
	temp     *float64

	rotation   Rotation
	limiter    *rate.Limiter
	httpClient *http.Client
	metrics    *observability.Metrics
}

var _ Completer = (*Client)(nil)

func New(cfg Config, log *logger.Logger, opts ...Option) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	chatPath := strings.TrimSpace(cfg.ChatCompletionsPath)
	if chatPath == "" {
		chatPath = "/v1/chat/completions"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	keys := make([]string, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("llm: at least one api key required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &Client{
		log:        log.With("service", "LLMClient"),
		baseURL:    baseURL,
		chatPath:   chatPath,
		model:      model,
		keys:       keys,
		timeout:    timeout,
		temp:       cfg.Temperature,
		rotation:   NewAtomicRotation(),
		httpClient: &http.Client{Transport: tr},
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
}

// Complete performs exactly one upstream call. Every failure comes back as *TransportError;
// retry accounting belongs to the caller.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	start := time.Now()
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	msgs := make([]chatMessage, 0, 2)
	if s := strings.TrimSpace(req.System); s != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: s})
	}
	if u := strings.TrimSpace(req.User); u != "" {
		msgs = append(msgs, chatMessage{Role: "user", Content: u})
	}
	if len(msgs) == 0 {
		return Completion{}, &TransportError{Kind: TransportOther, Err: errors.New("no messages")}
	}

	body := chatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if body.Temperature == nil {
		body.Temperature = c.temp
	}
	if req.JSONMode {
		body.ResponseFormat = map[string]any{"type": "json_object"}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Completion{}, AsTransportError(err)
		}
	}

	idx, err := c.rotation.Next(ctx, len(c.keys))
	if err != nil {
		return Completion{}, AsTransportError(err)
	}

	raw, err := c.doJSON(ctx, c.keys[idx], body)
	latency := time.Since(start)
	if err != nil {
		te := AsTransportError(err)
		c.metrics.ObserveLLMRequest(model, statusOf(te), latency, 0, 0)
		c.log.Warn("llm completion failed", "model", model, "kind", te.Kind, "status", te.StatusCode, "key_index", idx, "error", err)
		return Completion{}, te
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.metrics.ObserveLLMRequest(model, "decode_error", latency, 0, 0)
		return Completion{}, &TransportError{Kind: TransportOther, Err: fmt.Errorf("decode completion: %w", err)}
	}
	inTok, outTok := extractUsageFromRaw(raw)
	if strings.TrimSpace(resp.Model) != "" {
		model = resp.Model
	}
	c.metrics.ObserveLLMRequest(model, "200", latency, inTok, outTok)

	return Completion{
		Text:         extractChatText(resp),
		Model:        model,
		InputTokens:  inTok,
		OutputTokens: outTok,
		Latency:      latency,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, apiKey string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.baseURL+c.chatPath, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 2048)}
	}
	return raw, nil
}

func extractChatText(resp chatCompletionResponse) string {
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			return c.Message.Content
		}
		if strings.TrimSpace(c.Text) != "" {
			return c.Text
		}
	}
	return ""
}

func extractUsageFromRaw(raw []byte) (int, int) {
	if len(raw) == 0 {
		return 0, 0
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, 0
	}
	usage, ok := payload["usage"].(map[string]any)
	if !ok {
		return 0, 0
	}
	inTokens := intFromAny(usage["prompt_tokens"])
	outTokens := intFromAny(usage["completion_tokens"])
	if inTokens == 0 && outTokens == 0 {
		inTokens = intFromAny(usage["input_tokens"])
		outTokens = intFromAny(usage["output_tokens"])
	}
	if inTokens == 0 && outTokens == 0 {
		if total := intFromAny(usage["total_tokens"]); total > 0 {
			inTokens = total
		}
	}
	return inTokens, outTokens
}

func intFromAny(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return 0
}

func statusOf(te *TransportError) string {
	if te == nil {
		return "200"
	}
	if te.StatusCode > 0 {
		return strconv.Itoa(te.StatusCode)
	}
	return string(te.Kind)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
