package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/petbot/core/logger"
	tghelpers "github.com/m3rciful/petbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Recover catches handler panics, logs them with the stack and hands the value
// to onPanic. The bot treats a panic as fatal, so onPanic normally stops it.
func Recover(onPanic func(any)) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				logger.Error(tghelpers.BuildContext(c), logger.ComponentTG, "tg.panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("handler panic: %v", r)
				if onPanic != nil {
					onPanic(r)
				}
			}()
			return next(c)
		}
	}
}
