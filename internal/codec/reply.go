package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// #region reply
// Reply is the decoded text of a successful response.
type Reply struct {
	Text         string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// DecodeReply extracts text blocks from a Messages API response body.
// Thinking and other block types are dropped.
func DecodeReply(body []byte) (Reply, error) {
	if !json.Valid(body) {
		return Reply{}, errors.New("decode reply: invalid json")
	}
	var msg anthropic.Message
	if err := msg.UnmarshalJSON(body); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	if !msg.JSON.Content.Valid() {
		return Reply{}, errors.New("decode reply: missing content")
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return Reply{
		Text:         strings.Join(parts, "\n"),
		StopReason:   string(msg.StopReason),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

// #endregion reply

// #region api-error
// APIError is the structured error object the service returns.
type APIError struct {
	Type    string
	Message string
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// DecodeError reads an {"error":{"type","message"}} body. ok is false when
// the body is absent or not in that shape.
func DecodeError(body []byte) (APIError, bool) {
	if len(body) == 0 || !json.Valid(body) {
		return APIError{}, false
	}
	var resp anthropic.ErrorResponse
	if err := resp.UnmarshalJSON(body); err != nil {
		return APIError{}, false
	}
	if resp.Error.Type == "" {
		return APIError{}, false
	}
	return APIError{Type: resp.Error.Type, Message: resp.Error.Message}, true
}

// #endregion api-error
