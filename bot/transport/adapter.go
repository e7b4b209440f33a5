// Package transport connects the Telegram bot to the intake engine: updates become
// intake events and outcomes become messages, edits and callback answers.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/petbot/bot/intake"
	"github.com/m3rciful/petbot/bot/session"
	"github.com/m3rciful/petbot/core/logger"
	tg "github.com/m3rciful/petbot/core/telegram"
	"github.com/m3rciful/petbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/petbot/core/telegram/helpers"
	"github.com/m3rciful/petbot/core/telegram/netutil"
)

// ErrNoEngine is returned by New without an engine.
var ErrNoEngine = errors.New("transport: engine is required")

// Handler is the conversation engine seen from the transport.
type Handler interface {
	Handle(ctx context.Context, ev intake.Event) intake.Outcome
	Store() session.Store
}

// Options configure an Adapter.
type Options struct {
	Engine   Handler
	APIURL   string
	Token    string
	PageSize int
}

// Adapter routes Telegram updates through the engine.
type Adapter struct {
	engine   Handler
	files    FileResolver
	apiURL   string
	token    string
	pageSize int
}

// New builds an Adapter. Attach must be called with the running bot before media
// can be resolved.
func New(opts Options) (*Adapter, error) {
	if opts.Engine == nil {
		return nil, ErrNoEngine
	}
	return &Adapter{
		engine:   opts.Engine,
		apiURL:   opts.APIURL,
		token:    opts.Token,
		pageSize: opts.PageSize,
	}, nil
}

// Attach sets the file resolver, normally the bot itself.
func (a *Adapter) Attach(files FileResolver) {
	a.files = files
}

// Register adds the conversation commands, the admin stats command and the
// button callbacks to reg.
func (a *Adapter) Register(reg *tg.Registry) error {
	for _, cmd := range []struct {
		name, desc string
		aliases    []string
	}{
		{"/start", "Start or resume the conversation", nil},
		{"/reset", "Forget everything and start over", []string{"/restart"}},
		{"/exit", "End the session", []string{"/stop", "/quit"}},
		{"/status", "Show what I know so far", []string{"/debug"}},
		{"/setpet", "Set the whole profile in one line", nil},
	} {
		err := reg.RegisterCommand(cmd.name, commands.Command{
			Handler:     a.OnMessage,
			Description: cmd.desc,
			Aliases:     cmd.aliases,
		})
		if err != nil {
			return err
		}
	}
	err := reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.OnStats,
		Description: "Session counts per stage",
		AdminOnly:   true,
	})
	if err != nil {
		return err
	}
	reg.SetTextFallback(a.OnMessage)
	for _, key := range []string{intake.ChoiceUnique, intake.ConsentUnique} {
		if err := reg.RegisterCallback(key, a.OnCallback); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(a.OnCallback)
	return nil
}

// OnMessage handles text, commands and media messages.
func (a *Adapter) OnMessage(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	ev, att, ok := messageEvent(c.Message())
	if !ok {
		return nil
	}
	box := contextOutbox{c: c}

	if att != nil {
		ev.Media = []session.Media{att.media}
		ev.Resolve = func(ctx context.Context) ([]session.Media, error) {
			m, err := a.resolveMedia(ctx, att)
			if err != nil {
				logger.Warn(ctx, logger.ComponentTG, "media.resolve_failed",
					slog.String("type", att.media.Type),
					slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
				)
				return nil, err
			}
			return []session.Media{m}, nil
		}
	}
	ev.Typing = func() { _ = c.Notify(tele.Typing) }

	out := a.engine.Handle(ctx, ev)
	tghelpers.SetOutcome(c, out.Status)
	return a.deliver(ctx, out, box, false)
}

// OnCallback handles inline button presses.
func (a *Adapter) OnCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	box := contextOutbox{c: c}
	ev, ok := callbackEvent(c.Callback())
	if !ok {
		tghelpers.SetOutcome(c, intake.StatusRejected)
		return box.Respond(intake.MsgOptionUnknown)
	}
	out := a.engine.Handle(ctx, ev)
	tghelpers.SetOutcome(c, out.Status)
	return a.deliver(ctx, out, box, true)
}

// OnStats reports session counts per stage to the admin.
func (a *Adapter) OnStats(c tele.Context) error {
	return tghelpers.SendText(c, statsText(a.engine.Store().Stats()))
}

func (a *Adapter) deliver(ctx context.Context, out intake.Outcome, box Outbox, callback bool) error {
	err := render(out, box, a.pageSize, callback)
	if err != nil {
		logger.Warn(ctx, logger.ComponentTG, "render.failed",
			slog.String("status", out.Status),
			slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
		)
	}
	return err
}

var statsStages = []session.Stage{
	session.StageAwaitingConsent,
	session.StageCollectingProfile,
	session.StageActiveConversation,
}

func statsText(st session.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sessions: %d", st.Total)
	for _, stage := range statsStages {
		fmt.Fprintf(&b, "\n%s: %d", stage, st.ByStage[stage])
	}
	return b.String()
}
