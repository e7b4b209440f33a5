package intake

import (
	"context"
	"time"

	"github.com/m3rciful/petbot/bot/session"
	"github.com/m3rciful/petbot/core/config"
)

// EventKind is the shape of an inbound event.
type EventKind int

const (
	EventText EventKind = iota
	EventMedia
	EventChoice
	EventConsent
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventMedia:
		return "media"
	case EventChoice:
		return "choice"
	case EventConsent:
		return "consent"
	}
	return "unknown"
}

// updateKind maps the event onto the update kinds used by rate-limit exclusions.
func (k EventKind) updateKind() string {
	if k == EventChoice || k == EventConsent {
		return config.UpdateCallback
	}
	return config.UpdateMessage
}

// Event is one inbound user action, already decoded from the transport.
type Event struct {
	Kind   EventKind
	UserID int64
	ChatID int64
	At     time.Time

	// Text is the message text or media caption.
	Text    string
	Media   []session.Media
	Choice  Choice
	Consent ConsentDecision

	// Resolve, when set, returns Media with download links filled in. It runs
	// only once the media is going to the responder.
	Resolve func(ctx context.Context) ([]session.Media, error)
	// Typing, when set, is called right before a responder exchange starts.
	Typing func()
}

// IsCallback reports whether the event came from a button press.
func (e Event) IsCallback() bool {
	return e.Kind == EventChoice || e.Kind == EventConsent
}
