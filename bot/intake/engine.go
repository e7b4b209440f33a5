// Package intake drives a user from consent through the pet profile form into the
// free-form conversation with the responder.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/petbot/bot/documents"
	"github.com/m3rciful/petbot/bot/responder"
	"github.com/m3rciful/petbot/bot/session"
	"github.com/m3rciful/petbot/core/logger"
	"github.com/m3rciful/petbot/core/metrics"
	"github.com/m3rciful/petbot/core/ratelimit"
)

// DefaultMaxQuestions is the clarifying-question budget forwarded to the responder.
const DefaultMaxQuestions = 4

var (
	// ErrNoStore is returned by NewEngine without a session store.
	ErrNoStore = errors.New("intake: session store is required")
	// ErrNoResponder is returned by NewEngine without a responder.
	ErrNoResponder = errors.New("intake: responder is required")
)

// Exchanger is the responder side of the conversation.
type Exchanger interface {
	Exchange(ctx context.Context, req responder.Request) (responder.Reply, error)
}

// Recorder receives completed profiles and exchanged turns. Failures never reach the user.
type Recorder interface {
	RecordProfile(ctx context.Context, userID int64, profile map[string]string, at time.Time) error
	RecordTurns(ctx context.Context, userID int64, exchangeID string, turns []session.Turn, at time.Time) error
}

// Options configure an Engine.
type Options struct {
	Store        session.Store
	Limiter      *ratelimit.Limiter
	Responder    Exchanger
	Documents    documents.Set
	MaxQuestions int
	Archive      Recorder
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// Engine is the per-user conversation state machine.
type Engine struct {
	store        session.Store
	limiter      *ratelimit.Limiter
	responder    Exchanger
	docs         documents.Set
	maxQuestions int
	archive      Recorder
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewEngine validates opts and builds an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.Responder == nil {
		return nil, ErrNoResponder
	}
	docs := opts.Documents
	defaults := documents.Defaults()
	if strings.TrimSpace(docs.Terms) == "" {
		docs.Terms = defaults.Terms
	}
	if strings.TrimSpace(docs.Disclaimer) == "" {
		docs.Disclaimer = defaults.Disclaimer
	}
	maxQ := opts.MaxQuestions
	if maxQ <= 0 {
		maxQ = DefaultMaxQuestions
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:        opts.Store,
		limiter:      opts.Limiter,
		responder:    opts.Responder,
		docs:         docs,
		maxQuestions: maxQ,
		archive:      opts.Archive,
		metrics:      opts.Metrics,
		now:          now,
	}, nil
}

// Store returns the session store the engine works on.
func (e *Engine) Store() session.Store { return e.store }

// result is an Outcome plus what Handle must do with the session afterwards.
type result struct {
	Outcome
	drop     bool
	readOnly bool
}

// Handle processes one event to completion. Events of one user are serialized by
// the store lock; the responder exchange runs inside that lock.
func (e *Engine) Handle(ctx context.Context, ev Event) Outcome {
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	e.metrics.IncUpdate(ev.Kind.String())

	if !e.limiter.Excluded(ev.Kind.updateKind()) && !e.limiter.Allow(ev.UserID, ev.At) {
		e.metrics.IncRateLimited()
		e.metrics.IncRejection("rate_limit")
		logger.Debug(ctx, logger.ComponentIntake, "intake.rate_limited",
			slog.Int64("user_id", ev.UserID),
			slog.String("kind", ev.Kind.String()),
			slog.String("status", StatusLimited),
		)
		out := Outcome{Status: StatusLimited}
		if ev.IsCallback() {
			out.Notice = MsgRateLimited
		} else {
			out.say(MsgRateLimited)
		}
		return out
	}

	unlock := e.store.Lock(ev.UserID)
	defer unlock()

	s, ok := e.store.Get(ev.UserID)
	if !ok {
		s = e.store.Create(ev.UserID, ev.At)
	}
	from := s.Stage

	res := e.dispatch(ctx, s, ev)
	if res.Status == "" {
		res.Status = StatusOK
	}

	switch {
	case res.drop:
		e.store.Delete(ev.UserID)
	case res.readOnly, res.Status == StatusStale, res.Status == StatusRejected:
	default:
		s.LastInteractionAt = ev.At
		if err := e.store.Update(s); err != nil {
			logger.Error(ctx, logger.ComponentIntake, "intake.save",
				slog.Int64("user_id", ev.UserID),
				slog.String("err", err.Error()),
			)
		}
	}

	if s.Stage != from {
		e.metrics.IncTransition(string(from), string(s.Stage))
		logger.Info(ctx, logger.ComponentIntake, "intake.transition",
			slog.Int64("user_id", ev.UserID),
			slog.String("from_stage", string(from)),
			slog.String("to_stage", string(s.Stage)),
		)
	}
	if res.Status == StatusStale || res.Status == StatusRejected {
		e.metrics.IncRejection(res.Status)
	}
	logger.Debug(ctx, logger.ComponentIntake, "intake.handled",
		slog.Int64("user_id", ev.UserID),
		slog.String("kind", ev.Kind.String()),
		slog.String("stage", string(s.Stage)),
		slog.Int("step", s.ProfileStep),
		slog.String("status", res.Status),
	)
	return res.Outcome
}

func (e *Engine) dispatch(ctx context.Context, s *session.Session, ev Event) result {
	if ev.Kind == EventText && (isCommand(ev.Text) || !answeringText(s)) {
		switch keywordOf(ev.Text) {
		case kwReset:
			s.Reset()
			return result{Outcome: reply(MsgReset)}
		case kwExit:
			return e.exit(s)
		case kwStatus:
			return e.status(s)
		}
	}

	switch s.Stage {
	case session.StageCollectingProfile:
		return e.collect(ctx, s, ev)
	case session.StageActiveConversation:
		return e.converse(ctx, s, ev)
	default:
		return e.consent(s, ev)
	}
}

func (e *Engine) exit(s *session.Session) result {
	name := strings.TrimSpace(s.Profile[KeyName])
	if name == "" {
		name = "your pet"
	}
	s.Reset()
	return result{
		Outcome: reply(fmt.Sprintf("Goodbye! Give %s a pat from me. Say \"hi\" whenever you need help again.", name)),
		drop:    true,
	}
}

func (e *Engine) status(s *session.Session) result {
	raw, err := json.MarshalIndent(s.WithoutLinks(), "", "  ")
	if err != nil {
		return result{Outcome: Outcome{Replies: []Reply{{Text: MsgGenericFailure}}, Status: StatusError, Err: err}, readOnly: true}
	}
	return result{Outcome: reply("Session state:\n" + string(raw)), readOnly: true}
}

// Consent stage.

func (e *Engine) consent(s *session.Session, ev Event) result {
	switch ev.Kind {
	case EventConsent:
		return e.decide(s, ev.Consent)
	case EventChoice:
		return stale(consentHint(s))
	case EventText:
		if keywordOf(ev.Text) == kwGreeting {
			s.Consent = session.Consent{}
			s.PendingDocument = session.DocumentTerms
			return result{Outcome: Outcome{Replies: []Reply{documentReply(session.DocumentTerms, e.docs.Terms)}}}
		}
	}
	return result{Outcome: rejected(consentHint(s))}
}

func consentHint(s *session.Session) string {
	if s.PendingDocument != session.DocumentNone {
		return MsgUseConsentBtns
	}
	return MsgSayHi
}

func (e *Engine) decide(s *session.Session, d ConsentDecision) result {
	if s.PendingDocument == session.DocumentNone || d.Document != s.PendingDocument {
		return stale(consentHint(s))
	}

	if !d.Accept {
		msg := MsgTermsDeclined
		if d.Document == session.DocumentDisclaimer {
			msg = MsgDisclaimerDeclined
		}
		s.Consent = session.Consent{}
		s.PendingDocument = session.DocumentNone
		out := reply(msg)
		out.Notice = noticeDeclined
		return result{Outcome: out}
	}

	out := Outcome{Notice: noticeAccepted, Status: StatusOK}
	if d.Document == session.DocumentTerms {
		s.Consent.TermsAccepted = true
		s.PendingDocument = session.DocumentDisclaimer
		out.add(documentReply(session.DocumentDisclaimer, e.docs.Disclaimer))
		return result{Outcome: out}
	}

	s.Consent.DisclaimerAccepted = true
	s.BeginIntake()
	out.say(MsgWelcome)
	out.add(promptReply(s))
	return result{Outcome: out}
}

func documentReply(doc session.Document, body string) Reply {
	return Reply{
		Text: body,
		Buttons: [][]Button{{
			{Label: "✅ Accept", Unique: ConsentUnique, Data: ConsentDecision{Document: doc, Accept: true}.Data()},
			{Label: "❌ Decline", Unique: ConsentUnique, Data: ConsentDecision{Document: doc}.Data()},
		}},
	}
}

// Profile stage.

func (e *Engine) collect(ctx context.Context, s *session.Session, ev Event) result {
	if s.ProfileStep >= len(Fields) {
		return e.complete(ctx, s, Outcome{Status: StatusOK}, ev.At)
	}
	f := Fields[s.ProfileStep]

	switch ev.Kind {
	case EventConsent:
		return stale(MsgConsentRecorded+" "+expecting(s), promptReply(s))
	case EventChoice:
		return e.choose(ctx, s, f, ev.Choice, ev.At)
	case EventMedia:
		return reject(MsgTextOnly, promptReply(s))
	}

	text := strings.TrimSpace(ev.Text)
	switch {
	case keywordOf(text) == kwGreeting && (isCommand(text) || !answeringText(s)):
		out := reply("We're in the middle of setting up your pet's profile.")
		out.add(promptReply(s))
		return result{Outcome: out, readOnly: true}
	case isSetPet(text):
		return e.quickProfile(ctx, s, text, ev.At)
	case s.AwaitingFreeformField == f.Key:
		if text == "" {
			return reject(MsgEmptyAnswer)
		}
		return e.capture(ctx, s, f, text, nil, ev.At)
	case f.Kind == FieldChoice:
		return reject(MsgUseButtons, promptReply(s))
	case text == "":
		return reject(MsgEmptyAnswer, promptReply(s))
	}
	return e.capture(ctx, s, f, text, nil, ev.At)
}

// answeringText reports whether the session waits for a typed profile answer.
// Bare keywords are taken as that answer.
func answeringText(s *session.Session) bool {
	if s.Stage != session.StageCollectingProfile || s.ProfileStep >= len(Fields) {
		return false
	}
	f := Fields[s.ProfileStep]
	return f.Kind == FieldText || s.AwaitingFreeformField == f.Key
}

func (e *Engine) choose(ctx context.Context, s *session.Session, f Field, c Choice, at time.Time) result {
	if c.Field != f.Key {
		return stale("That selection is not for the current step. "+expecting(s), promptReply(s))
	}
	opt, ok := f.option(c.Value)
	if f.Kind != FieldChoice || !ok {
		return reject(MsgOptionUnknown, promptReply(s))
	}

	if opt.Freeform {
		s.AwaitingFreeformField = f.Key
		out := Outcome{Status: StatusOK, Notice: noticeSaved}
		out.Edit = &Reply{Text: promptText(s) + "\n→ " + opt.Label}
		out.say(fmt.Sprintf("Please type %s %s.", possessive(s.Profile[KeyName]), strings.ToLower(f.Label)))
		return result{Outcome: out}
	}

	edit := &Reply{Text: promptText(s) + "\n✓ " + opt.Value}
	return e.capture(ctx, s, f, opt.Value, edit, at)
}

func (e *Engine) capture(ctx context.Context, s *session.Session, f Field, value string, edit *Reply, at time.Time) result {
	s.Profile[f.Key] = value
	s.AwaitingFreeformField = ""
	s.ProfileStep++

	out := Outcome{Status: StatusOK, Edit: edit}
	if edit != nil {
		out.Notice = noticeSaved
	}
	if s.ProfileStep < len(Fields) {
		out.add(promptReply(s))
		return result{Outcome: out}
	}
	return e.complete(ctx, s, out, at)
}

// complete re-validates the profile. A gap rewinds to the first missing field.
func (e *Engine) complete(ctx context.Context, s *session.Session, out Outcome, at time.Time) result {
	if idx := FirstMissing(s.Profile); idx < len(Fields) {
		s.ProfileStep = idx
		s.AwaitingFreeformField = ""
		logger.Info(ctx, logger.ComponentIntake, "intake.rewind",
			slog.Int64("user_id", s.UserID),
			slog.Int("step", idx),
			slog.String("field", Fields[idx].Key),
		)
		out.say(fmt.Sprintf("Looks like the %s is still missing, let's fill it in.", strings.ToLower(Fields[idx].Label)))
		out.add(promptReply(s))
		return result{Outcome: out}
	}

	s.ProfileStep = len(Fields)
	s.Stage = session.StageActiveConversation
	out.add(Reply{Text: Summary(s.Profile), Markdown: true})
	e.recordProfile(ctx, s, at)
	return result{Outcome: out}
}

func (e *Engine) quickProfile(ctx context.Context, s *session.Session, text string, at time.Time) result {
	q, ok := parseSetPet(text)
	if !ok {
		return reject(setPetUsage)
	}
	q.apply(s.Profile)
	s.AwaitingFreeformField = ""
	out := reply(fmt.Sprintf("Pet details set: Name=%s, Type=%s, Age=%s, Breed=%s", q.name, q.kind, q.age, q.breed))

	if s.Stage == session.StageActiveConversation {
		e.recordProfile(ctx, s, at)
		return result{Outcome: out}
	}
	if next := FirstMissing(s.Profile); next > s.ProfileStep {
		s.ProfileStep = next
	}
	if s.ProfileStep < len(Fields) {
		out.add(promptReply(s))
		return result{Outcome: out}
	}
	return e.complete(ctx, s, out, at)
}

func promptText(s *session.Session) string {
	f := Fields[s.ProfileStep]
	return fmt.Sprintf("Step %d of %d: %s", s.ProfileStep+1, len(Fields), f.prompt(s.Profile))
}

func promptReply(s *session.Session) Reply {
	r := Reply{Text: promptText(s)}
	f := Fields[s.ProfileStep]
	if f.Kind != FieldChoice {
		return r
	}
	var row []Button
	for _, o := range f.Options {
		row = append(row, Button{Label: o.Label, Unique: ChoiceUnique, Data: Choice{Field: f.Key, Value: o.Value}.Data()})
		if len(row) == 2 {
			r.Buttons = append(r.Buttons, row)
			row = nil
		}
	}
	if len(row) > 0 {
		r.Buttons = append(r.Buttons, row)
	}
	return r
}

// expecting names the step the session is waiting for.
func expecting(s *session.Session) string {
	switch s.Stage {
	case session.StageCollectingProfile:
		if s.ProfileStep < len(Fields) {
			return fmt.Sprintf("We're on step %d of %d: %s.", s.ProfileStep+1, len(Fields), Fields[s.ProfileStep].Label)
		}
	case session.StageActiveConversation:
		name := strings.TrimSpace(s.Profile[KeyName])
		if name == "" {
			name = "your pet"
		}
		return fmt.Sprintf("Your profile is complete, so just tell me what's going on with %s.", name)
	}
	return consentHint(s)
}

func possessive(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "your pet's"
	}
	if strings.HasSuffix(strings.ToLower(name), "s") {
		return name + "'"
	}
	return name + "'s"
}

// Conversation stage.

func (e *Engine) converse(ctx context.Context, s *session.Session, ev Event) result {
	if ev.IsCallback() {
		return stale("That button is from an earlier step. " + expecting(s))
	}

	text := strings.TrimSpace(ev.Text)
	if ev.Kind == EventText {
		switch {
		case text == "":
			return reject(MsgEmptyMessage)
		case keywordOf(text) == kwGreeting && strings.HasPrefix(text, "/"):
			return result{Outcome: reply(expecting(s)), readOnly: true}
		case isSetPet(text):
			return e.quickProfile(ctx, s, text, ev.At)
		}
	}
	if text == "" && len(ev.Media) == 0 {
		return reject(MsgEmptyMessage)
	}
	if len(ev.Media) > 0 && ev.Resolve != nil {
		media, err := ev.Resolve(ctx)
		if err != nil {
			return result{Outcome: Outcome{Replies: []Reply{{Text: MsgMediaUnavailable}}, Status: StatusError, Err: err}}
		}
		ev.Media = media
	}
	return e.exchange(ctx, s, text, ev)
}

// exchange forwards one user turn. On any failure the user turn is rolled back so
// the history keeps alternating user and assistant turns.
func (e *Engine) exchange(ctx context.Context, s *session.Session, text string, ev Event) result {
	mark := len(s.History)
	s.AppendTurn(session.UserTurn(text, ev.Media))
	if ev.Typing != nil {
		ev.Typing()
	}

	files := ev.Media
	if files == nil {
		files = []session.Media{}
	}
	res, err := e.responder.Exchange(ctx, responder.Request{
		Message:        text,
		PetDetails:     copyProfile(s.Profile),
		ChatHistory:    s.History,
		Files:          files,
		QuestionsAsked: s.QuestionsAsked,
		MaxQuestions:   e.maxQuestions,
	})
	if err != nil {
		s.TruncateHistory(mark)
		return result{Outcome: Outcome{Replies: []Reply{{Text: ResponderMessage(err)}}, Status: StatusError, Err: err}}
	}
	if strings.TrimSpace(res.Text) == "" {
		s.TruncateHistory(mark)
		return result{Outcome: Outcome{Replies: []Reply{{Text: MsgBlankReply}}, Status: StatusError}}
	}

	s.AppendTurn(session.AssistantTurn(res.Text))
	s.QuestionsAsked = responder.CountQuestion(s.QuestionsAsked, e.maxQuestions, res.Text)
	e.recordTurns(ctx, s, res.ExchangeID, s.History[mark:], ev.At)
	return result{Outcome: Outcome{Replies: []Reply{{Text: res.Text, Markdown: true}}, Status: StatusOK}}
}

func (e *Engine) recordProfile(ctx context.Context, s *session.Session, at time.Time) {
	if e.archive == nil {
		return
	}
	if err := e.archive.RecordProfile(ctx, s.UserID, copyProfile(s.Profile), at); err != nil {
		e.archiveFailed(ctx, s.UserID, "archive.profile", err)
	}
}

func (e *Engine) recordTurns(ctx context.Context, s *session.Session, exchangeID string, turns []session.Turn, at time.Time) {
	if e.archive == nil {
		return
	}
	if err := e.archive.RecordTurns(ctx, s.UserID, exchangeID, turns, at); err != nil {
		e.archiveFailed(ctx, s.UserID, "archive.turns", err)
	}
}

func (e *Engine) archiveFailed(ctx context.Context, userID int64, event string, err error) {
	e.metrics.IncArchiveError()
	logger.Warn(ctx, logger.ComponentArchive, event,
		slog.Int64("user_id", userID),
		slog.String("status", "error"),
		slog.String("err", err.Error()),
	)
}

func copyProfile(p map[string]string) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func reject(text string, extra ...Reply) result {
	out := rejected(text)
	out.Replies = append(out.Replies, extra...)
	return result{Outcome: out}
}

func stale(text string, extra ...Reply) result {
	out := rejected(text)
	out.Status = StatusStale
	out.Notice = noticeStale
	out.Replies = append(out.Replies, extra...)
	return result{Outcome: out}
}
