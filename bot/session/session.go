// Package session models the per-user conversation state and its in-memory store.
package session

import (
	"strings"
	"time"
)

// Stage is the coarse conversation phase.
type Stage string

const (
	// StageAwaitingConsent waits for a greeting and both consent documents.
	StageAwaitingConsent Stage = "awaiting_consent"
	// StageCollectingProfile walks the user through the intake fields.
	StageCollectingProfile Stage = "collecting_profile"
	// StageActiveConversation forwards free-form input to the responder.
	StageActiveConversation Stage = "active_conversation"
)

// Document names a consent document that can await a decision.
type Document string

const (
	// DocumentNone means no consent decision is pending.
	DocumentNone Document = ""
	// DocumentTerms is the terms of service.
	DocumentTerms Document = "terms"
	// DocumentDisclaimer is the medical disclaimer.
	DocumentDisclaimer Document = "disclaimer"
)

// Consent records accepted documents.
type Consent struct {
	TermsAccepted      bool `json:"terms_accepted"`
	DisclaimerAccepted bool `json:"disclaimer_accepted"`
}

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content item types.
const (
	ContentText  = "text"
	ContentMedia = "media"
)

// Media describes an attachment the responder can fetch.
type Media struct {
	Type     string `json:"type"`
	Link     string `json:"link"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// ContentItem is one part of a turn: text or a media reference.
type ContentItem struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Media *Media `json:"media,omitempty"`
}

// Turn is one message in the conversation history.
type Turn struct {
	Role    Role          `json:"role"`
	Content []ContentItem `json:"content"`
}

// UserTurn builds a user turn from optional text and attachments.
func UserTurn(text string, media []Media) Turn {
	t := Turn{Role: RoleUser}
	if text = strings.TrimSpace(text); text != "" {
		t.Content = append(t.Content, ContentItem{Type: ContentText, Text: text})
	}
	for i := range media {
		m := media[i]
		t.Content = append(t.Content, ContentItem{Type: ContentMedia, Media: &m})
	}
	return t
}

// AssistantTurn builds an assistant turn holding text.
func AssistantTurn(text string) Turn {
	return Turn{
		Role:    RoleAssistant,
		Content: []ContentItem{{Type: ContentText, Text: text}},
	}
}

// Text joins the text items of the turn.
func (t Turn) Text() string {
	var parts []string
	for _, c := range t.Content {
		if c.Type == ContentText && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// WithoutLinks returns a copy of t whose media carry no download link. Links
// embed the bot token and must not leave the process except to the responder.
func (t Turn) WithoutLinks() Turn {
	out := t.clone()
	for _, c := range out.Content {
		if c.Media != nil {
			c.Media.Link = ""
		}
	}
	return out
}

func (t Turn) clone() Turn {
	out := Turn{Role: t.Role, Content: make([]ContentItem, len(t.Content))}
	for i, c := range t.Content {
		if c.Media != nil {
			m := *c.Media
			c.Media = &m
		}
		out.Content[i] = c
	}
	return out
}

// Session is the full state of one user's conversation.
type Session struct {
	UserID                int64             `json:"user_id"`
	Stage                 Stage             `json:"stage"`
	Consent               Consent           `json:"consent"`
	PendingDocument       Document          `json:"pending_document,omitempty"`
	ProfileStep           int               `json:"profile_step"`
	Profile               map[string]string `json:"profile"`
	History               []Turn            `json:"history"`
	QuestionsAsked        int               `json:"questions_asked"`
	AwaitingFreeformField string            `json:"awaiting_freeform_field,omitempty"`
	LastInteractionAt     time.Time         `json:"last_interaction_at"`
	CreatedAt             time.Time         `json:"created_at"`
}

// New returns a fresh session awaiting consent.
func New(userID int64, now time.Time) *Session {
	return &Session{
		UserID:    userID,
		Stage:     StageAwaitingConsent,
		Profile:   make(map[string]string),
		CreatedAt: now,
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Profile = make(map[string]string, len(s.Profile))
	for k, v := range s.Profile {
		out.Profile[k] = v
	}
	if s.History != nil {
		out.History = make([]Turn, len(s.History))
		for i, t := range s.History {
			out.History[i] = t.clone()
		}
	}
	return &out
}

// WithoutLinks returns a deep copy with every media link in the history removed.
func (s *Session) WithoutLinks() *Session {
	out := s.Clone()
	if out == nil {
		return nil
	}
	for i, t := range out.History {
		out.History[i] = t.WithoutLinks()
	}
	return out
}

// Reset clears everything except the identity and returns to StageAwaitingConsent.
func (s *Session) Reset() {
	*s = Session{
		UserID:            s.UserID,
		Stage:             StageAwaitingConsent,
		Profile:           make(map[string]string),
		CreatedAt:         s.CreatedAt,
		LastInteractionAt: s.LastInteractionAt,
	}
}

// BeginIntake moves a consenting user into profile collection from the first field.
func (s *Session) BeginIntake() {
	s.Stage = StageCollectingProfile
	s.PendingDocument = DocumentNone
	s.ProfileStep = 0
	s.Profile = make(map[string]string)
	s.History = nil
	s.QuestionsAsked = 0
	s.AwaitingFreeformField = ""
}

// AppendTurn adds a turn to the history.
func (s *Session) AppendTurn(t Turn) {
	s.History = append(s.History, t)
}

// TruncateHistory drops turns beyond n.
func (s *Session) TruncateHistory(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(s.History) {
		s.History = s.History[:n]
	}
}
