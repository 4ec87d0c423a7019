package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/gabriel-vasile/mimetype"
)

// #region types
// Role is who said a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one text-only conversation turn kept in history. Images are
// never replayed.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Image is evidence attached to the current turn.
type Image struct {
	MediaType string
	Data      []byte
}

// Request is everything one turn sends to the reasoning service.
type Request struct {
	Model          string
	MaxTokens      int
	Temperature    float64
	ThinkingBudget int // 0 disables extended thinking
	System         string
	History        []Message
	Text           string
	Image          *Image
}

// #endregion types

// #region image
// NewImage sniffs data and rejects anything that is not an image format the
// service accepts.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image: empty")
	}
	mt := mimetype.Detect(data)
	for _, allowed := range []string{"image/png", "image/jpeg", "image/gif", "image/webp"} {
		if mt.Is(allowed) {
			return &Image{MediaType: allowed, Data: data}, nil
		}
	}
	return nil, fmt.Errorf("image: unsupported type %s", mt.String())
}

// #endregion image

// #region build
// BuildPayload encodes req as a Messages API body.
func BuildPayload(req Request) ([]byte, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.Text == "" {
			continue
		}
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		}
	}

	var blocks []anthropic.ContentBlockParamUnion
	if req.Image != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.Image.MediaType, base64.StdEncoding.EncodeToString(req.Image.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Text))
	messages = append(messages, anthropic.NewUserMessage(blocks...))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.ThinkingBudget > 0 {
		// extended thinking only accepts temperature 1
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(req.ThinkingBudget))
		params.Temperature = anthropic.Float(1)
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return body, nil
}

// #endregion build
