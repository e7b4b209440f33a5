package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/petbot/bot/session"
	"github.com/m3rciful/petbot/core/logger"
)

// FileResolver looks up the download path of a Telegram file.
type FileResolver interface {
	FileByID(fileID string) (tele.File, error)
}

// fileURL builds the Bot API download link for a resolved file path.
func fileURL(apiURL, token, filePath string) string {
	if apiURL == "" {
		apiURL = tele.DefaultApiURL
	}
	return fmt.Sprintf("%s/file/bot%s/%s", strings.TrimRight(apiURL, "/"), token, strings.TrimLeft(filePath, "/"))
}

// resolveMedia fills the link of att so the responder can fetch it.
func (a *Adapter) resolveMedia(ctx context.Context, att *attachment) (session.Media, error) {
	if a.files == nil {
		return session.Media{}, fmt.Errorf("transport: no file resolver")
	}
	f, err := a.files.FileByID(att.fileID)
	if err != nil {
		return session.Media{}, fmt.Errorf("resolve %s: %w", att.media.Type, err)
	}
	if f.FilePath == "" {
		return session.Media{}, fmt.Errorf("resolve %s: empty file path", att.media.Type)
	}
	m := att.media
	m.Link = fileURL(a.apiURL, a.token, f.FilePath)
	logger.Debug(ctx, logger.ComponentTG, "media.resolved",
		slog.String("type", m.Type),
		slog.String("mime_type", m.MimeType),
	)
	return m, nil
}
