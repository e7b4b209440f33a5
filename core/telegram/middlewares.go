package telegram

import (
	"github.com/m3rciful/petbot/core/telegram/middleware"
)

// DefaultMiddlewares builds the global chain: panic recovery, update context
// and logging, then reply tallies and timing. observe may be nil. Rate
// limiting lives in the conversation engine so a limited event never touches
// the session.
func DefaultMiddlewares(onPanic func(any), observe middleware.Observer) []Middleware {
	return []Middleware{
		{Name: "recover", Use: middleware.Recover(onPanic)},
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "metrics", Use: middleware.Metrics(observe)},
	}
}
