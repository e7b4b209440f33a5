package helpers

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/m3rciful/petbot/core/logger"
	"github.com/m3rciful/petbot/core/telegram/format"
	"github.com/m3rciful/petbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func chatKey(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if user := c.Sender(); user != nil {
		return user.ID
	}
	return 0
}

// sendAsync queues run on the shard of the current chat so replies to one chat
// leave in the order they were produced.
func sendAsync(c tele.Context, action, endpoint string, keyboard bool, run func() error) error {
	countReply(c, keyboard)
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, chatKey(c), action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, logger.ComponentTG, "send.queue_fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", sendOpts != nil && sendOpts.ReplyMarkup != nil, func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMD sends a message with Markdown parse mode and optional reply markup.
// When Telegram rejects the entities the text is resent plain with the markup
// characters stripped.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return sendAsync(c, "send.markdown", "sendMessage", rm != nil, func() error {
		err := c.Send(text, &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: rm})
		if !IsParseError(err) {
			return err
		}
		logger.Debug(BuildContext(c), logger.ComponentTG, "send.markdown_fallback",
			slog.String("err", logger.SanitizeLimit(err.Error(), 128)),
		)
		return c.Send(format.StripMarkdown(text), &tele.SendOptions{ReplyMarkup: rm})
	})
}

// EditText replaces the text and keyboard of the message a callback came from.
// An unchanged message is not an error.
func EditText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{}
	if len(markup) > 0 && markup[0] != nil {
		opts.ReplyMarkup = markup[0]
	} else {
		opts.ReplyMarkup = &tele.ReplyMarkup{}
	}
	return sendAsync(c, "edit.text", "editMessageText", len(opts.ReplyMarkup.InlineKeyboard) > 0, func() error {
		err := c.Edit(text, opts)
		if err != nil && IsNotModified(err) {
			return nil
		}
		return err
	})
}

// IsParseError reports whether Telegram refused a message because of its
// Markdown entities.
func IsParseError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}

// IsNotModified reports whether an edit was rejected because nothing changed.
func IsNotModified(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}
