// Package prompts holds every system and user prompt crew sends to the
// completion service. Prompts are text/template files embedded at compile
// time and rendered by ID.
package prompts

import "errors"

var (
	// ErrTemplateNotFound indicates the requested template doesn't exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateExecution indicates a failure during template execution.
	ErrTemplateExecution = errors.New("template execution failed")
)
