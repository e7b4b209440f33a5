// Package responder bridges the conversation to the external natural-language responder.
package responder

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m3rciful/petbot/bot/session"
)

// Request is the structured object handed to the responder. Field names are part of
// the wire contract with external responder programs.
type Request struct {
	Message        string            `json:"message"`
	PetDetails     map[string]string `json:"pet_details"`
	ChatHistory    []session.Turn    `json:"chat_history"`
	Files          []session.Media   `json:"files"`
	QuestionsAsked int               `json:"questions_asked"`
	MaxQuestions   int               `json:"max_questions"`
}

// Response is what a responder returns: either a reply or an error text.
type Response struct {
	Text  string
	Error string
}

// Reply is a successful exchange result.
type Reply struct {
	Text       string
	ExchangeID string
}

// Transport performs one request/response exchange. Implementations must honour ctx
// and release every resource they started before returning.
type Transport interface {
	Name() string
	Call(ctx context.Context, req Request) (Response, error)
}

type wireResponse struct {
	Response *string `json:"response"`
	Error    *string `json:"error"`
}

// DecodeResponse parses raw responder output. Leading log noise before the final JSON
// object is tolerated.
func DecodeResponse(raw []byte) (Response, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return Response{}, &Error{Kind: KindEmptyOutput}
	}

	var w wireResponse
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		start := strings.LastIndex(text, "\n{")
		if start < 0 {
			return Response{}, &Error{Kind: KindMalformedOutput, Diagnostic: clip(text), Err: err}
		}
		if err2 := json.Unmarshal([]byte(text[start+1:]), &w); err2 != nil {
			return Response{}, &Error{Kind: KindMalformedOutput, Diagnostic: clip(text), Err: err2}
		}
	}

	if w.Error != nil && strings.TrimSpace(*w.Error) != "" {
		return Response{Error: strings.TrimSpace(*w.Error)}, nil
	}
	if w.Response == nil {
		return Response{}, &Error{Kind: KindMalformedOutput, Diagnostic: "missing response field: " + clip(text)}
	}
	return Response{Text: *w.Response}, nil
}

// CountQuestion returns the updated questions-asked counter for an assistant reply.
// The cap only stops the counter; nothing else depends on reaching it.
func CountQuestion(asked, max int, reply string) int {
	if strings.Contains(reply, "?") && asked < max {
		return asked + 1
	}
	return asked
}

const diagnosticLimit = 512

func clip(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= diagnosticLimit {
		return s
	}
	return string(r[:diagnosticLimit]) + "…"
}
