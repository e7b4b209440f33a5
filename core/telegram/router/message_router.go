package router

import (
	tg "github.com/m3rciful/petbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// contentEndpoints lists the message kinds a conversation accepts, keyed by the
// handler name used in summaries.
var contentEndpoints = []struct {
	endpoint string
	name     string
}{
	{tele.OnText, "message.text"},
	{tele.OnPhoto, "message.photo"},
	{tele.OnDocument, "message.document"},
	{tele.OnVideo, "message.video"},
	{tele.OnAnimation, "message.animation"},
	{tele.OnAudio, "message.audio"},
	{tele.OnVoice, "message.voice"},
	{tele.OnVideoNote, "message.video_note"},
	{tele.OnSticker, "message.sticker"},
}

// MessageRoutes binds text and media messages to one handler. Without a handler
// the registry text fallback is used; with neither the update is logged and skipped.
func MessageRoutes(reg *tg.Registry, handler tele.HandlerFunc) []tg.Route {
	if handler == nil && reg != nil {
		handler = reg.TextFallback()
	}

	routes := make([]tg.Route, 0, len(contentEndpoints))
	for _, ep := range contentEndpoints {
		name := ep.name
		routes = append(routes, tg.Route{
			Endpoint: ep.endpoint,
			Handler: func(c tele.Context) error {
				if handler == nil {
					skipped(c, name)
					return nil
				}
				return summarize(c, name, handler)
			},
		})
	}
	return routes
}
