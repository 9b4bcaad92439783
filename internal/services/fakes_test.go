package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/proofstake-backend/internal/platform/llm"
)

// scriptedCompleter replays responses in order and repeats the last one when exhausted.
type scriptedCompleter struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     []llm.CompletionRequest
}

type scriptedResponse struct {
	text string
	err  error
}

func reply(text string) scriptedResponse { return scriptedResponse{text: text} }

func fail(err error) scriptedResponse { return scriptedResponse{err: err} }

func (f *scriptedCompleter) Complete(_ context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.responses) == 0 {
		return llm.Completion{}, &llm.TransportError{Kind: llm.TransportOther, Err: fmt.Errorf("no scripted response")}
	}
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	if r.err != nil {
		return llm.Completion{}, r.err
	}
	return llm.Completion{
		Text:         r.text,
		Model:        "test-model",
		InputTokens:  10,
		OutputTokens: 5,
		Latency:      3 * time.Millisecond,
	}, nil
}

func (f *scriptedCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// gradeByAnswer answers every grading prompt with the score mapped to the submitted answer text.
type gradeByAnswer struct {
	mu     sync.Mutex
	scores map[string]int
	calls  int
	err    error
	onCall func()
}

func (g *gradeByAnswer) Complete(_ context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.onCall != nil {
		g.onCall()
	}
	if g.err != nil {
		return llm.Completion{}, g.err
	}
	score := 0
	for answer, s := range g.scores {
		if strings.Contains(req.User, "Submitted answer:\n"+answer) {
			score = s
			break
		}
	}
	return llm.Completion{
		Text:  fmt.Sprintf(`{"score": %d, "feedback": "graded %d"}`, score, score),
		Model: "test-model",
	}, nil
}

func (g *gradeByAnswer) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func instantPolicy(s *sleepRecorder) RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: s.Sleep}
}

// questionSetJSON renders n questions cycling through all three types.
func questionSetJSON(n int) string {
	types := []string{"multiple_choice", "short_answer", "application"}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		t := types[i%len(types)]
		if t == "multiple_choice" {
			parts = append(parts, fmt.Sprintf(`{"id":"%s","type":"multiple_choice","prompt":"Question %d","options":["A","B","C","D"],"correct_answer":"B","difficulty":"advanced"}`, uuid.NewString(), i+1))
			continue
		}
		parts = append(parts, fmt.Sprintf(`{"id":"%s","type":"%s","prompt":"Question %d","correct_answer":null,"difficulty":"intermediate"}`, uuid.NewString(), t, i+1))
	}
	return `{"questions":[` + strings.Join(parts, ",") + `]}`
}
