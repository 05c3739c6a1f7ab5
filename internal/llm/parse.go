package llm

import (
	"encoding/json"
	"strings"

	"github.com/imkarma/crew/internal/errors"
)

// ExtractJSON pulls the first JSON object out of model output.
// Models often wrap the object in prose or a fenced block:
//
//	Here is the plan:
//	```json
//	{"task_areas": ["Planning"]}
//	```
//
// The fence is stripped when present; otherwise the first balanced {...}
// is returned. String literals are respected when balancing braces.
func ExtractJSON(output string) (string, error) {
	text := strings.TrimSpace(output)

	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return "", errors.Wrap(errors.ErrParse, "no JSON object in output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", errors.Wrap(errors.ErrParse, "unterminated JSON object in output")
}

// DecodeJSON extracts the JSON object from output and unmarshals it into v.
func DecodeJSON(output string, v any) error {
	raw, err := ExtractJSON(output)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errors.Wrap(errors.ErrParse, err.Error())
	}
	return nil
}
