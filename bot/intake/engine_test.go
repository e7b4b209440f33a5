package intake

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m3rciful/petbot/bot/responder"
	"github.com/m3rciful/petbot/bot/session"
	"github.com/m3rciful/petbot/core/ratelimit"
)

type fakeResponder struct {
	mu       sync.Mutex
	calls    []responder.Request
	inFlight int32
	overlap  atomic.Bool
	answer   func(req responder.Request) (responder.Reply, error)
}

func (f *fakeResponder) Exchange(_ context.Context, req responder.Request) (responder.Reply, error) {
	if atomic.AddInt32(&f.inFlight, 1) > 1 {
		f.overlap.Store(true)
	}
	defer atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	f.calls = append(f.calls, req)
	answer := f.answer
	f.mu.Unlock()

	if answer == nil {
		return responder.Reply{Text: "Does it happen after meals?", ExchangeID: "x-1"}, nil
	}
	return answer(req)
}

func (f *fakeResponder) lastCall(t *testing.T) responder.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("responder was not called")
	}
	return f.calls[len(f.calls)-1]
}

type fakeRecorder struct {
	mu       sync.Mutex
	profiles []map[string]string
	turns    [][]session.Turn
	err      error
}

func (r *fakeRecorder) RecordProfile(_ context.Context, _ int64, p map[string]string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = append(r.profiles, p)
	return r.err
}

func (r *fakeRecorder) RecordTurns(_ context.Context, _ int64, _ string, turns []session.Turn, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turns)
	return r.err
}

type harness struct {
	t     *testing.T
	eng   *Engine
	store session.Store
	resp  *fakeResponder
	rec   *fakeRecorder
	now   time.Time
	user  int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		store: session.NewMemoryStore(),
		resp:  &fakeResponder{},
		rec:   &fakeRecorder{},
		now:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		user:  42,
	}
	eng, err := NewEngine(Options{
		Store:     h.store,
		Limiter:   ratelimit.New(time.Second),
		Responder: h.resp,
		Archive:   h.rec,
		Now:       func() time.Time { return h.now },
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	h.eng = eng
	return h
}

// send delivers ev two seconds after the previous one so the cooldown never triggers.
func (h *harness) send(ev Event) Outcome {
	h.t.Helper()
	h.now = h.now.Add(2 * time.Second)
	ev.At = h.now
	ev.UserID = h.user
	ev.ChatID = h.user
	return h.eng.Handle(context.Background(), ev)
}

func (h *harness) text(s string) Outcome {
	return h.send(Event{Kind: EventText, Text: s})
}

func (h *harness) choose(field, value string) Outcome {
	return h.send(Event{Kind: EventChoice, Choice: Choice{Field: field, Value: value}})
}

func (h *harness) consent(doc session.Document, accept bool) Outcome {
	return h.send(Event{Kind: EventConsent, Consent: ConsentDecision{Document: doc, Accept: accept}})
}

func (h *harness) session() *session.Session {
	h.t.Helper()
	s, ok := h.store.Get(h.user)
	if !ok {
		h.t.Fatal("session not found")
	}
	return s
}

func (h *harness) checkStep() {
	h.t.Helper()
	s := h.session()
	if s.ProfileStep > len(Fields) {
		h.t.Fatalf("profile step %d exceeds field count %d", s.ProfileStep, len(Fields))
	}
	if s.Stage == session.StageActiveConversation && FirstMissing(s.Profile) != len(Fields) {
		h.t.Fatalf("active session with incomplete profile: %v", s.Profile)
	}
}

func (h *harness) completeIntake() Outcome {
	h.t.Helper()
	h.text("hi")
	h.consent(session.DocumentTerms, true)
	h.consent(session.DocumentDisclaimer, true)
	h.text("Rex")
	h.choose(KeyType, "Dog")
	h.text("Labrador")
	h.choose(KeyAge, "4-7 years")
	h.choose(KeyGender, "Male")
	out := h.text("30 kg")
	if got := h.session().Stage; got != session.StageActiveConversation {
		h.t.Fatalf("stage = %q after intake", got)
	}
	return out
}

func lastText(out Outcome) string {
	if len(out.Replies) == 0 {
		return ""
	}
	return out.Replies[len(out.Replies)-1].Text
}

func TestNewEngineValidates(t *testing.T) {
	if _, err := NewEngine(Options{Responder: &fakeResponder{}}); !errors.Is(err, ErrNoStore) {
		t.Fatalf("err = %v, want ErrNoStore", err)
	}
	if _, err := NewEngine(Options{Store: session.NewMemoryStore()}); !errors.Is(err, ErrNoResponder) {
		t.Fatalf("err = %v, want ErrNoResponder", err)
	}
}

func TestFullIntakeScenario(t *testing.T) {
	h := newHarness(t)

	out := h.text("Hello")
	if len(out.Replies) != 1 || !strings.HasPrefix(out.Replies[0].Text, "Terms of Service") {
		t.Fatalf("greeting replies = %+v", out.Replies)
	}
	if btns := out.Replies[0].Buttons; len(btns) != 1 || btns[0][0].Unique != ConsentUnique || btns[0][0].Data != "terms|accept" {
		t.Fatalf("terms buttons = %+v", btns)
	}

	out = h.consent(session.DocumentTerms, true)
	if out.Notice != noticeAccepted || !strings.HasPrefix(lastText(out), "Medical Disclaimer") {
		t.Fatalf("terms accept outcome = %+v", out)
	}

	out = h.consent(session.DocumentDisclaimer, true)
	if len(out.Replies) != 2 || out.Replies[0].Text != MsgWelcome {
		t.Fatalf("disclaimer accept replies = %+v", out.Replies)
	}
	if !strings.HasPrefix(out.Replies[1].Text, "Step 1 of 6") {
		t.Fatalf("first prompt = %q", out.Replies[1].Text)
	}
	s := h.session()
	if s.Stage != session.StageCollectingProfile || s.ProfileStep != 0 || !s.Consent.TermsAccepted || !s.Consent.DisclaimerAccepted {
		t.Fatalf("session after consent = %+v", s)
	}

	out = h.text("Rex")
	h.checkStep()
	if !strings.Contains(lastText(out), "Is Rex a dog or a cat?") || len(out.Replies[0].Buttons) == 0 {
		t.Fatalf("type prompt = %+v", out.Replies)
	}
	if out.Replies[0].Buttons[0][0].Data != "pet_type|Dog" {
		t.Fatalf("button data = %q", out.Replies[0].Buttons[0][0].Data)
	}

	out = h.choose(KeyType, "Dog")
	h.checkStep()
	if out.Edit == nil || !strings.Contains(out.Edit.Text, "✓ Dog") {
		t.Fatalf("selection edit = %+v", out.Edit)
	}

	steps := []func() Outcome{
		func() Outcome { return h.text("Labrador") },
		func() Outcome { return h.choose(KeyAge, "4-7 years") },
		func() Outcome { return h.choose(KeyGender, "Male") },
	}
	for _, step := range steps {
		if out := step(); out.Status != StatusOK {
			t.Fatalf("step outcome = %+v", out)
		}
		h.checkStep()
	}

	out = h.text("30 kg")
	h.checkStep()
	s = h.session()
	if s.Stage != session.StageActiveConversation || s.ProfileStep != len(Fields) {
		t.Fatalf("final session = %+v", s)
	}
	summary := out.Replies[len(out.Replies)-1]
	if !summary.Markdown || !strings.Contains(summary.Text, "*Name:* Rex") || !strings.Contains(summary.Text, "*Weight:* 30 kg") {
		t.Fatalf("summary = %+v", summary)
	}
	if len(h.rec.profiles) != 1 || h.rec.profiles[0][KeyBreed] != "Labrador" {
		t.Fatalf("recorded profiles = %+v", h.rec.profiles)
	}
}

func TestRateLimitRejectsSecondEventWithoutMutation(t *testing.T) {
	store := session.NewMemoryStore()
	eng, err := NewEngine(Options{Store: store, Limiter: ratelimit.New(time.Second), Responder: &fakeResponder{}})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first := eng.Handle(context.Background(), Event{Kind: EventText, UserID: 7, Text: "hi", At: at})
	if first.Status != StatusOK {
		t.Fatalf("first outcome = %+v", first)
	}
	before, _ := store.Get(7)

	second := eng.Handle(context.Background(), Event{Kind: EventText, UserID: 7, Text: "/reset", At: at.Add(500 * time.Millisecond)})
	if second.Status != StatusLimited || lastText(second) != MsgRateLimited {
		t.Fatalf("second outcome = %+v", second)
	}
	after, _ := store.Get(7)
	b1, _ := json.Marshal(before)
	b2, _ := json.Marshal(after)
	if string(b1) != string(b2) {
		t.Fatalf("session mutated by limited event:\n%s\n%s", b1, b2)
	}

	cb := eng.Handle(context.Background(), Event{Kind: EventConsent, UserID: 7, At: at.Add(900 * time.Millisecond),
		Consent: ConsentDecision{Document: session.DocumentTerms, Accept: true}})
	if cb.Status != StatusLimited || cb.Notice != MsgRateLimited || len(cb.Replies) != 0 {
		t.Fatalf("callback outcome = %+v", cb)
	}

	third := eng.Handle(context.Background(), Event{Kind: EventConsent, UserID: 7, At: at.Add(1100 * time.Millisecond),
		Consent: ConsentDecision{Document: session.DocumentTerms, Accept: true}})
	if third.Status != StatusOK {
		t.Fatalf("event after the window = %+v", third)
	}
}

func TestRateLimitExclusionBypassesCooldown(t *testing.T) {
	eng, err := NewEngine(Options{
		Store:     session.NewMemoryStore(),
		Limiter:   ratelimit.New(time.Second, "callback"),
		Responder: &fakeResponder{},
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	at := time.Now()
	eng.Handle(context.Background(), Event{Kind: EventText, UserID: 1, Text: "hi", At: at})
	out := eng.Handle(context.Background(), Event{Kind: EventConsent, UserID: 1, At: at.Add(10 * time.Millisecond),
		Consent: ConsentDecision{Document: session.DocumentTerms, Accept: true}})
	if out.Status != StatusOK {
		t.Fatalf("excluded callback was limited: %+v", out)
	}
}

func TestNonGreetingBeforeConsent(t *testing.T) {
	h := newHarness(t)
	out := h.text("my cat is sick")
	if out.Status != StatusRejected || lastText(out) != MsgSayHi {
		t.Fatalf("outcome = %+v", out)
	}
	h.text("hi")
	out = h.text("ok")
	if lastText(out) != MsgUseConsentBtns {
		t.Fatalf("pending reminder = %+v", out)
	}
}

func TestDeclineResetsConsent(t *testing.T) {
	h := newHarness(t)
	h.text("hi")
	h.consent(session.DocumentTerms, true)
	out := h.consent(session.DocumentDisclaimer, false)
	if lastText(out) != MsgDisclaimerDeclined || out.Notice != noticeDeclined {
		t.Fatalf("decline outcome = %+v", out)
	}
	s := h.session()
	if s.Stage != session.StageAwaitingConsent || s.Consent.TermsAccepted || s.PendingDocument != session.DocumentNone {
		t.Fatalf("session after decline = %+v", s)
	}

	out = h.consent(session.DocumentDisclaimer, true)
	if out.Status != StatusStale || h.session().Consent.DisclaimerAccepted {
		t.Fatalf("stale accept outcome = %+v", out)
	}
}

func TestStaleConsentButton(t *testing.T) {
	h := newHarness(t)
	h.text("hi")
	h.consent(session.DocumentTerms, true)
	out := h.consent(session.DocumentTerms, true)
	if out.Status != StatusStale || h.session().PendingDocument != session.DocumentDisclaimer {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestTextForChoiceFieldIsRejected(t *testing.T) {
	h := newHarness(t)
	h.text("hi")
	h.consent(session.DocumentTerms, true)
	h.consent(session.DocumentDisclaimer, true)
	h.text("Luna")

	out := h.text("Cat")
	if out.Status != StatusRejected || out.Replies[0].Text != MsgUseButtons {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Replies) != 2 || len(out.Replies[1].Buttons) == 0 {
		t.Fatalf("buttons were not re-sent: %+v", out.Replies)
	}
	if s := h.session(); s.ProfileStep != 1 || s.Profile[KeyType] != "" {
		t.Fatalf("session mutated: %+v", s)
	}
}

func TestEmptyTextAnswerIsRejected(t *testing.T) {
	h := newHarness(t)
	h.text("hi")
	h.consent(session.DocumentTerms, true)
	h.consent(session.DocumentDisclaimer, true)
	out := h.text("   ")
	if out.Status != StatusRejected || h.session().ProfileStep != 0 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestCustomAgeFreeform(t *testing.T) {
	h := newHarness(t)
	h.text("hi")
	h.consent(session.DocumentTerms, true)
	h.consent(session.DocumentDisclaimer, true)
	h.text("Bella")
	h.choose(KeyType, "Cat")
	h.text("Siamese")

	out := h.choose(KeyAge, CustomValue)
	if out.Edit == nil || lastText(out) != "Please type Bella's age." {
		t.Fatalf("custom outcome = %+v", out)
	}
	if s := h.session(); s.AwaitingFreeformField != KeyAge || s.ProfileStep != 3 {
		t.Fatalf("session = %+v", s)
	}

	h.text("2.5 years")
	s := h.session()
	if s.Profile[KeyAge] != "2.5 years" || s.ProfileStep != 4 || s.AwaitingFreeformField != "" {
		t.Fatalf("session after freeform = %+v", s)
	}
}

func TestStaleSelectionDuringIntake(t *testing.T) {
	h := newHarness(t)
	h.text("hi")
	h.consent(session.DocumentTerms, true)
	h.consent(session.DocumentDisclaimer, true)
	h.text("Rex")
	h.choose(KeyType, "Dog")

	out := h.choose(KeyType, "Cat")
	if out.Status != StatusStale || !strings.Contains(out.Replies[0].Text, "step 3 of 6: Breed") {
		t.Fatalf("outcome = %+v", out)
	}
	if s := h.session(); s.Profile[KeyType] != "Dog" || s.ProfileStep != 2 {
		t.Fatalf("session mutated: %+v", s)
	}
}

func TestStaleSelectionAfterActive(t *testing.T) {
	h := newHarness(t)
	h.completeIntake()
	before := h.session()

	for _, c := range []Choice{{KeyType, "Cat"}, {KeyGender, "Female"}, {KeyAge, CustomValue}} {
		out := h.choose(c.Field, c.Value)
		if out.Status != StatusStale || !strings.Contains(out.Replies[0].Text, "Your profile is complete") {
			t.Fatalf("outcome = %+v", out)
		}
		s := h.session()
		if s.ProfileStep != before.ProfileStep || s.Profile[KeyType] != "Dog" || s.Profile[KeyGender] != "Male" || s.AwaitingFreeformField != "" {
			t.Fatalf("session mutated: %+v", s)
		}
	}
}

func TestCompletenessRewindsToFirstMissing(t *testing.T) {
	for missing := 0; missing < len(Fields)-1; missing++ {
		h := newHarness(t)
		s := h.store.Create(h.user, h.now)
		s.Stage = session.StageCollectingProfile
		s.Consent = session.Consent{TermsAccepted: true, DisclaimerAccepted: true}
		for i, f := range Fields[:len(Fields)-1] {
			if i != missing {
				s.Profile[f.Key] = "x"
			}
		}
		s.ProfileStep = len(Fields) - 1
		if err := h.store.Update(s); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		out := h.text("12 kg")
		got := h.session()
		if got.ProfileStep != missing || got.Stage != session.StageCollectingProfile {
			t.Fatalf("missing %d: step = %d stage = %q", missing, got.ProfileStep, got.Stage)
		}
		if !strings.Contains(out.Replies[0].Text, strings.ToLower(Fields[missing].Label)) {
			t.Fatalf("missing %d: reply = %q", missing, out.Replies[0].Text)
		}
	}
}

func TestKeywordsAreValidTextAnswers(t *testing.T) {
	h := newHarness(t)
	h.text("hi")
	h.consent(session.DocumentTerms, true)
	h.consent(session.DocumentDisclaimer, true)

	out := h.text("Hey")
	if s := h.session(); s.Profile[KeyName] != "Hey" || s.ProfileStep != 1 {
		t.Fatalf("name answer refused: profile=%v step=%d reply=%q", s.Profile, s.ProfileStep, lastText(out))
	}

	out = h.text("hello")
	if s := h.session(); s.ProfileStep != 1 || !strings.Contains(lastText(out), "Step 2 of 6") {
		t.Fatalf("greeting on a choice step: step=%d reply=%q", s.ProfileStep, lastText(out))
	}

	h.choose(KeyType, "Cat")
	h.text("Exit")
	if s := h.session(); s.Profile[KeyBreed] != "Exit" || s.ProfileStep != 3 {
		t.Fatalf("breed answer refused: profile=%v step=%d", s.Profile, s.ProfileStep)
	}

	h.choose(KeyAge, CustomValue)
	h.text("reset")
	if s := h.session(); s.Profile[KeyAge] != "reset" || s.Stage != session.StageCollectingProfile {
		t.Fatalf("custom answer refused: profile=%v stage=%q", s.Profile, s.Stage)
	}

	out = h.text("/exit")
	if !strings.Contains(lastText(out), "Give Hey a pat") {
		t.Fatalf("farewell = %q", lastText(out))
	}
	if _, ok := h.store.Get(h.user); ok {
		t.Fatal("/exit must still end the session during a text step")
	}
}

func TestQuickProfileCommand(t *testing.T) {
	h := newHarness(t)
	h.text("hi")
	h.consent(session.DocumentTerms, true)
	h.consent(session.DocumentDisclaimer, true)

	out := h.text(`/setpet "Tommy" dog 5 "Golden Retriever"`)
	s := h.session()
	if s.Profile[KeyName] != "Tommy" || s.Profile[KeyType] != "Dog" || s.Profile[KeyAge] != "5 years" || s.Profile[KeyBreed] != "Golden Retriever" {
		t.Fatalf("profile = %+v", s.Profile)
	}
	if s.ProfileStep != FieldIndex(KeyGender) || !strings.Contains(lastText(out), "Step 5 of 6") {
		t.Fatalf("step = %d, reply = %q", s.ProfileStep, lastText(out))
	}

	out = h.text("/setpet Tommy")
	if out.Status != StatusRejected || !strings.HasPrefix(lastText(out), "Usage: /setpet") {
		t.Fatalf("usage outcome = %+v", out)
	}
}

func TestActiveExchange(t *testing.T) {
	h := newHarness(t)
	h.completeIntake()

	typed := false
	out := h.send(Event{Kind: EventText, Text: "Rex keeps scratching his ear", Typing: func() { typed = true }})
	if out.Status != StatusOK || lastText(out) != "Does it happen after meals?" || !out.Replies[0].Markdown {
		t.Fatalf("outcome = %+v", out)
	}
	if !typed {
		t.Fatal("typing callback was not called")
	}

	req := h.resp.lastCall(t)
	if req.Message != "Rex keeps scratching his ear" || req.PetDetails[KeyName] != "Rex" || req.MaxQuestions != DefaultMaxQuestions {
		t.Fatalf("request = %+v", req)
	}
	if req.Files == nil || len(req.ChatHistory) != 1 {
		t.Fatalf("request files/history = %+v / %+v", req.Files, req.ChatHistory)
	}

	s := h.session()
	if len(s.History) != 2 || s.History[0].Role != session.RoleUser || s.History[1].Role != session.RoleAssistant {
		t.Fatalf("history = %+v", s.History)
	}
	if s.QuestionsAsked != 1 {
		t.Fatalf("questions asked = %d", s.QuestionsAsked)
	}
	if len(h.rec.turns) != 1 || len(h.rec.turns[0]) != 2 {
		t.Fatalf("recorded turns = %+v", h.rec.turns)
	}
}

func TestActiveMediaExchange(t *testing.T) {
	h := newHarness(t)
	h.completeIntake()

	photo := session.Media{Type: "photo", Link: "https://api.telegram.org/file/botT/photos/1.jpg", MimeType: "image/jpeg"}
	h.send(Event{Kind: EventMedia, Text: "see this", Media: []session.Media{photo}})

	req := h.resp.lastCall(t)
	if len(req.Files) != 1 || req.Files[0].Link != photo.Link {
		t.Fatalf("files = %+v", req.Files)
	}
	user := h.session().History[0]
	if len(user.Content) != 2 || user.Content[1].Media == nil {
		t.Fatalf("user turn = %+v", user)
	}
}

func TestMediaResolvedOnlyWhenForwarded(t *testing.T) {
	h := newHarness(t)
	calls := 0
	link := "https://api.telegram.org/file/botT/photos/1.jpg"
	var resolveErr error
	media := func() Event {
		return Event{
			Kind:  EventMedia,
			Media: []session.Media{{Type: "photo", MimeType: "image/jpeg"}},
			Resolve: func(context.Context) ([]session.Media, error) {
				calls++
				if resolveErr != nil {
					return nil, resolveErr
				}
				return []session.Media{{Type: "photo", MimeType: "image/jpeg", Link: link}}, nil
			},
		}
	}

	h.send(media())
	if calls != 0 {
		t.Fatalf("resolved %d times before the conversation started", calls)
	}

	h.completeIntake()
	ev := media()
	ev.UserID, ev.At = h.user, h.now.Add(100*time.Millisecond)
	if out := h.eng.Handle(context.Background(), ev); out.Status != StatusLimited || calls != 0 {
		t.Fatalf("limited event: status=%q calls=%d", out.Status, calls)
	}

	h.send(media())
	if req := h.resp.lastCall(t); calls != 1 || len(req.Files) != 1 || req.Files[0].Link != link {
		t.Fatalf("calls=%d files=%+v", calls, req.Files)
	}

	resolveErr = errors.New("file is too big")
	out := h.send(media())
	if lastText(out) != MsgMediaUnavailable || out.Err == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if n := len(h.session().History); n != 2 {
		t.Fatalf("history length = %d", n)
	}
}

func TestResponderFailuresAreDistinctAndRollBack(t *testing.T) {
	h := newHarness(t)
	h.completeIntake()

	seen := map[string]responder.Kind{}
	for _, kind := range []responder.Kind{responder.KindTimeout, responder.KindNonZeroExit, responder.KindMalformedOutput} {
		kind := kind
		h.resp.answer = func(responder.Request) (responder.Reply, error) {
			return responder.Reply{}, &responder.Error{Kind: kind}
		}
		out := h.text("is this serious?")
		if out.Status != StatusError || out.Err == nil {
			t.Fatalf("%s: outcome = %+v", kind, out)
		}
		msg := lastText(out)
		if prev, dup := seen[msg]; dup {
			t.Fatalf("%s and %s share message %q", prev, kind, msg)
		}
		seen[msg] = kind
		if n := len(h.session().History); n != 0 {
			t.Fatalf("%s: history length = %d, want rollback", kind, n)
		}
	}

	h.resp.answer = func(responder.Request) (responder.Reply, error) {
		return responder.Reply{}, errors.New("boom")
	}
	if out := h.text("hello?"); lastText(out) != MsgGenericFailure {
		t.Fatalf("generic failure = %+v", out)
	}
}

func TestBlankReplyIsSoftFailure(t *testing.T) {
	h := newHarness(t)
	h.completeIntake()
	h.resp.answer = func(responder.Request) (responder.Reply, error) {
		return responder.Reply{Text: "  \n"}, nil
	}
	out := h.text("anything?")
	if lastText(out) != MsgBlankReply || out.Err != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if s := h.session(); len(s.History) != 0 || s.QuestionsAsked != 0 {
		t.Fatalf("session = %+v", s)
	}
}

func TestResetFromActive(t *testing.T) {
	h := newHarness(t)
	h.completeIntake()
	h.text("help please")

	out := h.text("/reset")
	if lastText(out) != MsgReset {
		t.Fatalf("outcome = %+v", out)
	}
	s := h.session()
	if s.Stage != session.StageAwaitingConsent || len(s.Profile) != 0 || len(s.History) != 0 ||
		s.Consent.TermsAccepted || s.Consent.DisclaimerAccepted || s.ProfileStep != 0 {
		t.Fatalf("session after reset = %+v", s)
	}

	out = h.text("hi")
	if !strings.HasPrefix(lastText(out), "Terms of Service") || h.session().PendingDocument != session.DocumentTerms {
		t.Fatalf("greeting after reset = %+v", out)
	}
}

func TestExitDropsSession(t *testing.T) {
	h := newHarness(t)
	h.completeIntake()
	out := h.text("EXIT")
	if !strings.Contains(lastText(out), "Give Rex a pat") {
		t.Fatalf("farewell = %q", lastText(out))
	}
	if _, ok := h.store.Get(h.user); ok {
		t.Fatal("session should be removed on exit")
	}
	if out := h.text("what now"); lastText(out) != MsgSayHi {
		t.Fatalf("after exit = %+v", out)
	}
}

func TestStatusIsReadOnly(t *testing.T) {
	h := newHarness(t)
	h.completeIntake()
	before := h.session()

	out := h.text("/status")
	if !strings.Contains(lastText(out), `"stage": "active_conversation"`) || lastText(out) == "" {
		t.Fatalf("status = %q", lastText(out))
	}
	if out.Replies[0].Markdown {
		t.Fatal("status dump must be plain text")
	}
	after := h.session()
	if !after.LastInteractionAt.Equal(before.LastInteractionAt) {
		t.Fatal("status must not touch the session")
	}
}

func TestStatusHidesMediaLinks(t *testing.T) {
	h := newHarness(t)
	h.completeIntake()
	const token = "123456:SECRET-TOKEN"
	photo := session.Media{Type: "photo", Link: "https://api.telegram.org/file/bot" + token + "/photos/file_1.jpg", MimeType: "image/jpeg"}
	h.send(Event{Kind: EventMedia, Text: "see this", Media: []session.Media{photo}})

	dump := lastText(h.text("/status"))
	if strings.Contains(dump, token) || !strings.Contains(dump, `"type": "photo"`) {
		t.Fatalf("status = %q", dump)
	}
	if got := h.session().History[0].Content[1].Media.Link; got != photo.Link {
		t.Fatalf("stored link = %q", got)
	}
}

func TestConcurrentEventsAreSerialized(t *testing.T) {
	h := newHarness(t)
	h.completeIntake()
	h.resp.answer = func(responder.Request) (responder.Reply, error) {
		time.Sleep(5 * time.Millisecond)
		return responder.Reply{Text: "noted"}, nil
	}

	eng, err := NewEngine(Options{Store: h.store, Responder: h.resp})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng.Handle(context.Background(), Event{Kind: EventText, UserID: h.user, Text: "update"})
		}()
	}
	wg.Wait()

	if h.resp.overlap.Load() {
		t.Fatal("exchanges for one user overlapped")
	}
	if n := len(h.session().History); n != 20 {
		t.Fatalf("history length = %d, want 20", n)
	}
}

func TestArchiveFailureIsInvisible(t *testing.T) {
	h := newHarness(t)
	h.rec.err = errors.New("disk full")
	out := h.completeIntake()
	if !strings.Contains(lastText(out), "Profile complete") {
		t.Fatalf("summary = %q", lastText(out))
	}
}
