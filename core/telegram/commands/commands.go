// Package commands describes slash commands exposed in the bot menu.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is one slash command. Hidden and admin-only commands stay out of
// the menu shown by Telegram.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Normalize returns name lowercased with a leading slash, or "" when nothing
// is left after trimming.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return ""
	}
	return "/" + name
}
