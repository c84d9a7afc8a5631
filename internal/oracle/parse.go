package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripFences removes a ```json ... ``` wrapper if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		return text
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

// jsonSpan returns the outermost object or array in text, whichever opens
// first.
func jsonSpan(text string) (string, error) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON content found")
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return "", fmt.Errorf("no closing %s found", closer)
	}
	return text[start : end+1], nil
}

// decodeFirst parses a model answer into T. Answers may be a bare object,
// a one-element array of objects, fenced, or surrounded by prose.
func decodeFirst[T any](raw string) (T, error) {
	var zero T
	span, err := jsonSpan(stripFences(raw))
	if err != nil {
		return zero, err
	}

	if span[0] == '[' {
		var items []T
		if err := json.Unmarshal([]byte(span), &items); err != nil {
			return zero, fmt.Errorf("invalid JSON array: %w (text: %s)", err, preview(span))
		}
		if len(items) == 0 {
			return zero, fmt.Errorf("empty JSON array")
		}
		return items[0], nil
	}

	var v T
	if err := json.Unmarshal([]byte(span), &v); err != nil {
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview(span))
	}
	return v, nil
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
