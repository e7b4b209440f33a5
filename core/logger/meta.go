package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	metaKey ctxKey = iota
	loggerKey
)

// Meta is the correlation data every record of one update carries.
type Meta struct {
	RID      string
	UpdateID int
	UserID   int64
	ChatID   int64
	Handler  string
	// Exchange is the responder exchange in flight, if any.
	Exchange string
}

// WithMeta replaces the correlation data in ctx.
func WithMeta(ctx context.Context, m Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metaKey, m)
}

// MetaFrom returns the correlation data in ctx, zero when absent.
func MetaFrom(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	m, _ := ctx.Value(metaKey).(Meta)
	return m
}

// WithUpdate records the update identifiers and derives the rid from them.
func WithUpdate(ctx context.Context, updateID int, chatID, userID int64) context.Context {
	m := MetaFrom(ctx)
	m.UpdateID, m.ChatID, m.UserID = updateID, chatID, userID
	m.RID = BuildRID(updateID, chatID, userID)
	return WithMeta(ctx, m)
}

// WithRID overrides the correlation id, e.g. with one carried by the update.
func WithRID(ctx context.Context, rid string) context.Context {
	if rid == "" {
		return ctx
	}
	m := MetaFrom(ctx)
	m.RID = rid
	return WithMeta(ctx, m)
}

// WithHandler names the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	m := MetaFrom(ctx)
	m.Handler = handler
	return WithMeta(ctx, m)
}

// WithExchange tags records with the responder exchange id.
func WithExchange(ctx context.Context, id string) context.Context {
	m := MetaFrom(ctx)
	m.Exchange = id
	return WithMeta(ctx, m)
}

// WithLogger stores log in ctx for handlers further down the chain.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stored in ctx or the base logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// fields lists the non-zero meta values keyed by log field name.
func (m Meta) fields() map[string]any {
	out := make(map[string]any, 6)
	if m.RID != "" {
		out["rid"] = m.RID
	}
	if m.UpdateID != 0 {
		out["update_id"] = m.UpdateID
	}
	if m.UserID != 0 {
		out["user_id"] = m.UserID
	}
	if m.ChatID != 0 {
		out["chat_id"] = m.ChatID
	}
	if m.Handler != "" {
		out["handler"] = m.Handler
	}
	if m.Exchange != "" {
		out["exchange_id"] = m.Exchange
	}
	return out
}
