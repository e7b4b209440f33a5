// Package callbacks reads and sizes the callback data of inline buttons.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// MaxDataLen is the Bot API limit on callback_data, in bytes.
const MaxDataLen = 64

// Encode renders unique and payload the way telebot does for Data buttons.
func Encode(unique, payload string) string {
	if payload == "" {
		return "\f" + unique
	}
	return "\f" + unique + "|" + payload
}

// Fits reports whether the encoded button data stays within MaxDataLen.
func Fits(unique, payload string) bool {
	return len(Encode(unique, payload)) <= MaxDataLen
}

// ParseCallbackData splits a callback into its unique key and payload. Telebot
// fills Unique for endpoint-bound buttons; a generic OnCallback handler sees the
// encoded form instead.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	unique, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}
