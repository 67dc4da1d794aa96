package ai

import (
	"encoding/json"
	"strings"

	qerrors "github.com/qpg-app/qpg/internal/errors"
)

// ErrMalformedReply matches every reply that is not a {message, command}
// object.
var ErrMalformedReply = qerrors.New(qerrors.CodeMalformedModelReply, "malformed model reply")

// Reply is the structured answer the assistant is asked to give.
type Reply struct {
	Message string `json:"message"`
	Command string `json:"command"`
}

// ParseReply decodes a model reply. Markdown code fences around the JSON
// object are tolerated; anything else is ErrMalformedReply.
func ParseReply(response string) (*Reply, error) {
	cleaned := cleanJSONResponse(response)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, qerrors.Wrap(qerrors.CodeMalformedModelReply, "reply is not a JSON object", err)
	}
	if _, ok := fields["message"]; !ok {
		return nil, qerrors.Wrap(qerrors.CodeMalformedModelReply, `reply has no "message" field`, nil)
	}

	var reply Reply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, qerrors.Wrap(qerrors.CodeMalformedModelReply, "reply fields must be strings", err)
	}
	reply.Command = strings.TrimSpace(reply.Command)
	return &reply, nil
}

// cleanJSONResponse removes markdown code blocks from AI responses
func cleanJSONResponse(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = trimmed[len("```json"):]
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = trimmed[len("```"):]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}
