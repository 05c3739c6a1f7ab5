package relay

import (
	"encoding/json"
	"fmt"

	"github.com/imkarma/crew/internal/agent"
	"github.com/imkarma/crew/internal/errors"
)

// Message types.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
)

// CollectHandler receives step results addressed to a ReplyTo agent.
const CollectHandler = "collect_result"

// Message is the JSON document carried on the bus.
type Message struct {
	Handler     string            `json:"handler"`
	Sender      string            `json:"sender,omitempty"`
	MessageID   string            `json:"message_id,omitempty"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	AutoForward bool              `json:"auto_forward"`
	Type        string            `json:"type,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
	Payload     map[string]string `json:"payload,omitempty"`

	// Set on responses.
	OriginalID string            `json:"original_message_id,omitempty"`
	Result     *agent.StepResult `json:"result,omitempty"`
}

// ProcessHandler is the handler name an agent registers for its work.
func ProcessHandler(agentName string) string {
	return agentName + "_process"
}

func encodeMessage(m Message) ([]byte, error) {
	if m.Handler == "" {
		return nil, fmt.Errorf("message handler: %w", errors.ErrEmptyValue)
	}
	return json.Marshal(m)
}

func decodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: decode message: %v", errors.ErrParse, err)
	}
	if m.Handler == "" {
		m.Handler = "default"
	}
	return m, nil
}
