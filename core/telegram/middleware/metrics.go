package middleware

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/petbot/core/telegram/helpers"
)

// Observer receives the handling time of one update by kind
// (text, command, media, callback, other).
type Observer func(kind string, took time.Duration)

// Metrics starts the per-update reply tally read by the router summaries and
// reports the handling time to observe, which may be nil.
func Metrics(observe Observer) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			tghelpers.ResetReplies(c)
			start := time.Now()
			err := next(c)
			if observe != nil {
				observe(updateKind(c.Update()), time.Since(start))
			}
			return err
		}
	}
}
