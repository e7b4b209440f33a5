package intake

import (
	"strings"

	"github.com/m3rciful/petbot/bot/session"
)

// Callback uniques carried in inline button data.
const (
	ChoiceUnique  = "intake"
	ConsentUnique = "consent"
)

const (
	choiceSep     = "|"
	legacySep     = "_"
	acceptAction  = "accept"
	declineAction = "decline"
)

// Choice is a field selection made with a button.
type Choice struct {
	Field string
	Value string
}

// Data encodes the choice as callback payload.
func (c Choice) Data() string {
	return c.Field + choiceSep + c.Value
}

// DecodeChoice parses a callback payload. Payloads without the separator are
// treated as legacy "<field>_<value>" tokens.
func DecodeChoice(payload string) (Choice, bool) {
	if field, value, ok := strings.Cut(payload, choiceSep); ok {
		if field == "" || value == "" {
			return Choice{}, false
		}
		return Choice{Field: field, Value: value}, true
	}
	return DecodeToken(payload, fieldKeys)
}

// DecodeToken splits a "<field>_<value>" token against known keys. Keys may contain
// the separator themselves, so the longest key that prefixes the token wins.
func DecodeToken(token string, keys []string) (Choice, bool) {
	best := ""
	for _, k := range keys {
		if k == "" || !strings.HasPrefix(token, k+legacySep) {
			continue
		}
		if len(k) > len(best) {
			best = k
		}
	}
	if best == "" {
		return Choice{}, false
	}
	value := token[len(best)+len(legacySep):]
	if value == "" {
		return Choice{}, false
	}
	return Choice{Field: best, Value: value}, true
}

// ConsentDecision is an accept or decline press on a consent document.
type ConsentDecision struct {
	Document session.Document
	Accept   bool
}

// Data encodes the decision as callback payload.
func (d ConsentDecision) Data() string {
	action := declineAction
	if d.Accept {
		action = acceptAction
	}
	return string(d.Document) + choiceSep + action
}

// DecodeConsent parses a consent callback payload.
func DecodeConsent(payload string) (ConsentDecision, bool) {
	doc, action, ok := strings.Cut(payload, choiceSep)
	if !ok {
		return ConsentDecision{}, false
	}
	d := ConsentDecision{Document: session.Document(doc)}
	switch d.Document {
	case session.DocumentTerms, session.DocumentDisclaimer:
	default:
		return ConsentDecision{}, false
	}
	switch action {
	case acceptAction:
		d.Accept = true
	case declineAction:
	default:
		return ConsentDecision{}, false
	}
	return d, true
}
