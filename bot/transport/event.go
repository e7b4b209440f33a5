package transport

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/petbot/bot/intake"
	"github.com/m3rciful/petbot/bot/session"
	"github.com/m3rciful/petbot/core/telegram/callbacks"
)

// attachment is a media descriptor whose link still has to be resolved from a file ID.
type attachment struct {
	media  session.Media
	fileID string
}

// messageEvent turns a text or media message into an intake event. The media link
// is filled in later by resolveMedia.
func messageEvent(msg *tele.Message) (intake.Event, *attachment, bool) {
	if msg == nil || msg.Sender == nil {
		return intake.Event{}, nil, false
	}
	ev := intake.Event{
		Kind:   intake.EventText,
		UserID: msg.Sender.ID,
		ChatID: chatID(msg),
	}
	att, hasMedia := mediaOf(msg)
	if hasMedia {
		ev.Kind = intake.EventMedia
		ev.Text = strings.TrimSpace(msg.Caption)
		return ev, &att, true
	}
	ev.Text = msg.Text
	return ev, nil, true
}

func chatID(msg *tele.Message) int64 {
	if msg.Chat != nil {
		return msg.Chat.ID
	}
	return msg.Sender.ID
}

// mediaOf describes the single attachment a message can carry. Photos use the
// largest size Telegram offers. GIFs arrive with both animation and document
// set, so animation is checked first.
func mediaOf(msg *tele.Message) (attachment, bool) {
	switch {
	case msg.Photo != nil:
		return attachment{
			media: session.Media{
				Type:     "photo",
				MimeType: "image/jpeg",
				Width:    msg.Photo.Width,
				Height:   msg.Photo.Height,
			},
			fileID: msg.Photo.FileID,
		}, true
	case msg.Animation != nil:
		a := msg.Animation
		return attachment{
			media: session.Media{
				Type:     "animation",
				MimeType: orDefault(a.MIME, "video/mp4"),
				Name:     a.FileName,
				Duration: a.Duration,
				Width:    a.Width,
				Height:   a.Height,
			},
			fileID: a.FileID,
		}, true
	case msg.Document != nil:
		d := msg.Document
		return attachment{
			media:  session.Media{Type: "document", MimeType: orDefault(d.MIME, "application/octet-stream"), Name: d.FileName},
			fileID: d.FileID,
		}, true
	case msg.Video != nil:
		v := msg.Video
		return attachment{
			media: session.Media{
				Type:     "video",
				MimeType: orDefault(v.MIME, "video/mp4"),
				Name:     v.FileName,
				Duration: v.Duration,
				Width:    v.Width,
				Height:   v.Height,
			},
			fileID: v.FileID,
		}, true
	case msg.Audio != nil:
		a := msg.Audio
		return attachment{
			media:  session.Media{Type: "audio", MimeType: orDefault(a.MIME, "audio/mpeg"), Name: a.FileName, Duration: a.Duration},
			fileID: a.FileID,
		}, true
	case msg.Voice != nil:
		v := msg.Voice
		return attachment{
			media:  session.Media{Type: "voice", MimeType: orDefault(v.MIME, "audio/ogg"), Duration: v.Duration},
			fileID: v.FileID,
		}, true
	case msg.VideoNote != nil:
		v := msg.VideoNote
		return attachment{
			media:  session.Media{Type: "video_note", MimeType: "video/mp4", Duration: v.Duration, Width: v.Length, Height: v.Length},
			fileID: v.FileID,
		}, true
	case msg.Sticker != nil:
		s := msg.Sticker
		return attachment{
			media:  session.Media{Type: "sticker", MimeType: stickerMime(s), Width: s.Width, Height: s.Height},
			fileID: s.FileID,
		}, true
	}
	return attachment{}, false
}

func stickerMime(s *tele.Sticker) string {
	switch {
	case s.Video:
		return "video/webm"
	case s.Animated:
		return "application/x-tgsticker"
	}
	return "image/webp"
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// callbackEvent decodes a button press. Unknown uniques and malformed payloads
// are reported as not ok.
func callbackEvent(cb *tele.Callback) (intake.Event, bool) {
	if cb == nil || cb.Sender == nil {
		return intake.Event{}, false
	}
	ev := intake.Event{UserID: cb.Sender.ID, ChatID: cb.Sender.ID}
	if cb.Message != nil && cb.Message.Chat != nil {
		ev.ChatID = cb.Message.Chat.ID
	}

	unique, payload := callbacks.ParseCallbackData(cb)
	switch unique {
	case intake.ChoiceUnique:
		choice, ok := intake.DecodeChoice(payload)
		if !ok {
			return intake.Event{}, false
		}
		ev.Kind, ev.Choice = intake.EventChoice, choice
	case intake.ConsentUnique:
		decision, ok := intake.DecodeConsent(payload)
		if !ok {
			return intake.Event{}, false
		}
		ev.Kind, ev.Consent = intake.EventConsent, decision
	default:
		// Buttons from before callback uniques were introduced carried a bare token.
		choice, ok := intake.DecodeChoice(unique)
		if !ok || payload != "" {
			return intake.Event{}, false
		}
		ev.Kind, ev.Choice = intake.EventChoice, choice
	}
	return ev, true
}
