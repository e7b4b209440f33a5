// Package keyboard builds inline keyboards.
package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/petbot/core/telegram/callbacks"
)

// InlineBtn is one callback button: Unique routes the press, Data carries the
// payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// InlineButtonsRows lays out rows as an inline keyboard. Buttons whose callback
// data would exceed the Bot API limit are dropped, since one oversized button
// makes Telegram refuse the whole message. Empty rows are skipped and nothing
// left yields nil.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var inline [][]tele.InlineButton
	for _, row := range rows {
		var r []tele.InlineButton
		for _, btn := range row {
			if !callbacks.Fits(btn.Unique, btn.Data) {
				continue
			}
			r = append(r, *markup.Data(btn.Text, btn.Unique, btn.Data).Inline())
		}
		if len(r) > 0 {
			inline = append(inline, r)
		}
	}
	if len(inline) == 0 {
		return nil
	}
	markup.InlineKeyboard = inline
	return markup
}
