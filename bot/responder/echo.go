package responder

import (
	"context"
	"fmt"
	"strings"
)

// EchoTransport replies locally without any external responder. Useful for wiring checks.
type EchoTransport struct{}

// Name implements Transport.
func (EchoTransport) Name() string { return "echo" }

// Call implements Transport.
func (EchoTransport) Call(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	var b strings.Builder
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		msg = "(no text)"
	}
	fmt.Fprintf(&b, "I heard you: %s", msg)
	if n := len(req.Files); n > 0 {
		fmt.Fprintf(&b, " (+%d attachment", n)
		if n > 1 {
			b.WriteString("s")
		}
		b.WriteString(")")
	}
	if name := strings.TrimSpace(req.PetDetails["pet_name"]); name != "" {
		fmt.Fprintf(&b, "\nHow is %s doing?", name)
	}
	return Response{Text: b.String()}, nil
}
