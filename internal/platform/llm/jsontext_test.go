package llm

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	cases := map[string]string{
		"bare":               `{"score": 80, "feedback": "ok"}`,
		"fenced":             "```json\n{\"score\": 80, \"feedback\": \"ok\"}\n```",
		"fence no tag":       "```\n{\"score\": 80, \"feedback\": \"ok\"}\n```",
		"prose":              "Here is the grade:\n{\"score\": 80, \"feedback\": \"ok\"}\nThanks!",
		"prose fenced":       "Here is the grade:\n```json\n{\"score\": 80, \"feedback\": \"ok\"}\n```\nThanks!",
		"brace in str":       `{"score": 80, "feedback": "use {braces} wisely"}`,
		"code in str":        "{\"score\": 80, \"feedback\": \"Good; consider ```go\\nfmt.Println()\\n``` style.\"}",
		"fenced code in str": "```json\n{\"score\": 80, \"feedback\": \"see ```go\\nx := 1\\n``` above\"}\n```",
	}
	for name, in := range cases {
		raw, err := ExtractJSONObject(in)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		var out struct {
			Score int `json:"score"`
		}
		if err := json.Unmarshal(raw, &out); err != nil || out.Score != 80 {
			t.Fatalf("%s: decode=%v score=%d", name, err, out.Score)
		}
	}
}

func TestExtractJSONObjectKeepsCodeSamplesInStrings(t *testing.T) {
	in := `{
  "questions": [
    {
      "id": "q1",
      "type": "short_answer",
      "prompt": "What does this print?\n` + "```go" + `\nfmt.Println(len(\"héllo\"))\n` + "```" + `",
      "difficulty": "intermediate"
    }
  ]
}`
	raw, err := ExtractJSONObject(in)
	if err != nil {
		t.Fatalf("ExtractJSONObject: %v", err)
	}
	var out struct {
		Questions []struct {
			Prompt string `json:"prompt"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Questions) != 1 || !strings.Contains(out.Questions[0].Prompt, "```go\nfmt.Println") {
		t.Fatalf("prompt lost its code sample: %+v", out.Questions)
	}
}

func TestExtractJSONObjectRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "no json here", "{\"score\": 80", "[1,2,3]", "```\nnot json\n```"} {
		if _, err := ExtractJSONObject(in); !errors.Is(err, ErrNoJSONObject) {
			t.Fatalf("%q: want ErrNoJSONObject got=%v", in, err)
		}
	}
}
