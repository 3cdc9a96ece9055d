package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned by SafeJSONParse when no balanced JSON object could
// be recovered from the input.
var ErrNoJSON = errors.New("llm: no balanced JSON object found")

// SafeJSONParse implements the resilience helper nodes use to decode
// provider output in JSON mode:
//
//  1. Attempt a strict parse; on success return.
//  2. Strip a leading ```json / ``` fence and trailing ``` and retry.
//  3. Extract the first balanced {…} substring, respecting string/escape
//     state, and retry.
//  4. Return ErrNoJSON.
func SafeJSONParse(raw string, out any) error {
	if err := json.Unmarshal([]byte(raw), out); err == nil {
		return nil
	}

	stripped := stripCodeFence(raw)
	if stripped != raw {
		if err := json.Unmarshal([]byte(stripped), out); err == nil {
			return nil
		}
	}

	if obj, ok := extractBalancedObject(stripped); ok {
		if err := json.Unmarshal([]byte(obj), out); err == nil {
			return nil
		}
	}
	if obj, ok := extractBalancedObject(raw); ok {
		if err := json.Unmarshal([]byte(obj), out); err == nil {
			return nil
		}
	}
	return ErrNoJSON
}

func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if idx := strings.IndexByte(t, '\n'); idx >= 0 {
		first := strings.TrimSpace(t[:idx])
		if first == "json" || first == "" {
			t = t[idx+1:]
		}
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// extractBalancedObject returns the first top-level {...} substring of s,
// tracking string/escape state so braces inside string literals don't
// prematurely close the object.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
