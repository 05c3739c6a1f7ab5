package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Render executes a prompt template with data and returns the trimmed text.
func Render(id PromptID, data any) (string, error) {
	tmpl, err := globalRegistry.get(id)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Join(ErrTemplateExecution, fmt.Errorf("prompt %s: %w", id, err))
	}
	return strings.TrimSpace(buf.String()), nil
}

// MustRender is Render for templates that take no data or known-good data.
func MustRender(id PromptID, data any) string {
	out, err := Render(id, data)
	if err != nil {
		panic(fmt.Sprintf("prompts.MustRender(%s): %v", id, err))
	}
	return out
}

// Pair renders a system and a user template in one call.
func Pair(system, user PromptID, data any) (string, string, error) {
	sys, err := Render(system, data)
	if err != nil {
		return "", "", err
	}
	usr, err := Render(user, data)
	if err != nil {
		return "", "", err
	}
	return sys, usr, nil
}

// List returns all registered prompt IDs.
func List() []PromptID {
	return globalRegistry.list()
}

// Source returns the raw template text for id.
func Source(id PromptID) (string, error) {
	return globalRegistry.source(id)
}
