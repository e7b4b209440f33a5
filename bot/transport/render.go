package transport

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/petbot/bot/intake"
	"github.com/m3rciful/petbot/core/telegram/format"
	tghelpers "github.com/m3rciful/petbot/core/telegram/helpers"
	"github.com/m3rciful/petbot/core/telegram/keyboard"
)

// Outbox is the set of outbound primitives an outcome is rendered onto.
type Outbox interface {
	Send(text string, markdown bool, markup *tele.ReplyMarkup) error
	Edit(text string, markup *tele.ReplyMarkup) error
	Respond(notice string) error
}

// render delivers an outcome: the callback answer first, then the edit of the
// pressed message, then the replies split into pages of at most pageSize runes.
func render(out intake.Outcome, box Outbox, pageSize int, callback bool) error {
	if callback {
		if err := box.Respond(out.Notice); err != nil {
			return err
		}
	}
	if out.Edit != nil && callback {
		if err := box.Edit(out.Edit.Text, markup(out.Edit.Buttons)); err != nil {
			return err
		}
	}
	for _, r := range out.Replies {
		pages := format.Paginate(r.Text, pageSize)
		for i, page := range pages {
			var rm *tele.ReplyMarkup
			if i == len(pages)-1 {
				rm = markup(r.Buttons)
			}
			if err := box.Send(page, r.Markdown, rm); err != nil {
				return err
			}
		}
	}
	return nil
}

func markup(rows [][]intake.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	kb := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Label, Unique: b.Unique, Data: b.Data})
		}
		kb = append(kb, r)
	}
	return keyboard.InlineButtonsRows(kb...)
}

// contextOutbox renders through the shared send helpers, which queue on the
// per-chat dispatcher shard.
type contextOutbox struct{ c tele.Context }

func (o contextOutbox) Send(text string, markdown bool, rm *tele.ReplyMarkup) error {
	if markdown {
		return tghelpers.SendMD(o.c, text, rm)
	}
	if rm != nil {
		return tghelpers.SendText(o.c, text, &tele.SendOptions{ReplyMarkup: rm})
	}
	return tghelpers.SendText(o.c, text)
}

func (o contextOutbox) Edit(text string, rm *tele.ReplyMarkup) error {
	return tghelpers.EditText(o.c, text, rm)
}

func (o contextOutbox) Respond(notice string) error {
	if notice == "" {
		return o.c.Respond()
	}
	return o.c.Respond(&tele.CallbackResponse{Text: notice})
}
