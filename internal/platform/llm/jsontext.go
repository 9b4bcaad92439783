package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSONObject = errors.New("no json object in completion")

const fence = "```"

// ExtractJSONObject pulls the first complete JSON object out of model text,
// tolerating a surrounding markdown fence and prose before or after it.
// Backticks inside JSON string values are left alone.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return json.RawMessage(s), nil
	}
	if raw, ok := firstObject(s); ok {
		return raw, nil
	}
	if body, ok := fencedBody(s); ok {
		if raw, ok := firstObject(body); ok {
			return raw, nil
		}
	}
	return nil, ErrNoJSONObject
}

func firstObject(s string) (json.RawMessage, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > start {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate), true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// fencedBody returns the content of a markdown fence whose opening marker starts a line.
// A raw newline cannot occur inside a JSON string, so a closing marker at line start is
// always outside the object.
func fencedBody(s string) (string, bool) {
	open := -1
	switch {
	case strings.HasPrefix(s, fence):
		open = 0
	default:
		if i := strings.Index(s, "\n"+fence); i >= 0 {
			open = i + 1
		}
	}
	if open < 0 {
		return "", false
	}
	body := s[open+len(fence):]
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return "", false
	}
	body = body[nl+1:]
	if end := strings.Index(body, "\n"+fence); end >= 0 {
		body = body[:end]
	} else if strings.HasPrefix(body, fence) {
		body = ""
	}
	return strings.TrimSpace(body), true
}

// matchBrace returns the index of the brace closing s[start], honoring JSON strings.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
