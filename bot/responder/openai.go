package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/m3rciful/petbot/bot/session"
)

// OpenAITransport answers in-process through an OpenAI-compatible chat completions API.
type OpenAITransport struct {
	client *openai.Client
	model  string
}

// NewOpenAITransport builds a transport for apiKey and model. baseURL may point at any
// OpenAI-compatible endpoint; empty keeps the default.
func NewOpenAITransport(apiKey, model, baseURL string) *OpenAITransport {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAITransport{client: openai.NewClientWithConfig(cfg), model: model}
}

// Name implements Transport.
func (t *OpenAITransport) Name() string { return "openai" }

// Call implements Transport.
func (t *OpenAITransport) Call(ctx context.Context, req Request) (Response, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    t.model,
		Messages: chatMessages(req),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return Response{}, &Error{Kind: KindRemote, ExitCode: apiErr.HTTPStatusCode, Diagnostic: clip(apiErr.Message)}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return Response{}, &Error{Kind: KindNonZeroExit, ExitCode: reqErr.HTTPStatusCode, Err: reqErr.Err}
		}
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, &Error{Kind: KindEmptyOutput}
	}
	return Response{Text: resp.Choices[0].Message.Content}, nil
}

// chatMessages converts the history into chat messages. The current message is already
// the last user turn of the history.
func chatMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.ChatHistory)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt(req),
	})
	for _, turn := range req.ChatHistory {
		msgs = append(msgs, chatMessage(turn))
	}
	return msgs
}

func chatMessage(turn session.Turn) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	if turn.Role == session.RoleAssistant {
		role = openai.ChatMessageRoleAssistant
		return openai.ChatCompletionMessage{Role: role, Content: turn.Text()}
	}

	var text []string
	var images []openai.ChatMessagePart
	for _, item := range turn.Content {
		switch item.Type {
		case session.ContentText:
			text = append(text, item.Text)
		case session.ContentMedia:
			if item.Media == nil {
				continue
			}
			if isImage(*item.Media) {
				images = append(images, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    item.Media.Link,
						Detail: openai.ImageURLDetailAuto,
					},
				})
				continue
			}
			text = append(text, attachmentNote(*item.Media))
		}
	}

	joined := strings.Join(text, "\n")
	if len(images) == 0 {
		return openai.ChatCompletionMessage{Role: role, Content: joined}
	}
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	if joined != "" {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: joined})
	}
	parts = append(parts, images...)
	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}
}

// attachmentNote describes a non-image attachment without its link, which the
// model cannot fetch anyway and which carries the bot token.
func attachmentNote(m session.Media) string {
	parts := []string{m.Type}
	if m.Name != "" {
		parts = append(parts, m.Name)
	}
	if m.MimeType != "" {
		parts = append(parts, m.MimeType)
	}
	if m.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%ds", m.Duration))
	}
	return "[attached " + strings.Join(parts, ", ") + "]"
}

func isImage(m session.Media) bool {
	return m.Type == "photo" || strings.HasPrefix(m.MimeType, "image/")
}
