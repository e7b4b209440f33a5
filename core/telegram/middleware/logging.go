package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/petbot/core/logger"
	"github.com/m3rciful/petbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/petbot/core/telegram/helpers"
)

// LoggerMiddleware creates the per-update context and logs a sampled
// update.received line describing what arrived.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, logger.ComponentTG, "update.received", updateAttrs(c)...)
		}
		return next(c)
	}
}

func updateAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("kind", updateKind(c.Update()))}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if u := c.Sender(); u != nil && u.LanguageCode != "" {
		attrs = append(attrs, slog.String("lang", u.LanguageCode))
	}
	if cb := c.Callback(); cb != nil {
		key, payload := callbacks.ParseCallbackData(cb)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 128)),
		)
	} else if t := c.Text(); t != "" {
		attrs = append(attrs, slog.Int("text_len", len([]rune(t))))
	}
	return attrs
}

// updateKind names the part of the update the bot reacts to.
func updateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message == nil:
		return "other"
	case u.Message.Text != "" && u.Message.Text[0] == '/':
		return "command"
	case u.Message.Text != "":
		return "text"
	case u.Message.Photo != nil, u.Message.Document != nil, u.Message.Video != nil,
		u.Message.Animation != nil, u.Message.Audio != nil, u.Message.Voice != nil,
		u.Message.VideoNote != nil, u.Message.Sticker != nil:
		return "media"
	}
	return "other"
}
