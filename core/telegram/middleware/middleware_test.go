package middleware

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/petbot/core/telegram/helpers"
)

func newContext(t *testing.T, u tele.Update) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	return b.NewContext(u)
}

func textUpdate(userID int64, text string) tele.Update {
	return tele.Update{
		ID: 10,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	}
}

func TestUpdateKind(t *testing.T) {
	cases := []struct {
		name string
		u    tele.Update
		want string
	}{
		{"callback", tele.Update{Callback: &tele.Callback{Data: "x"}}, "callback"},
		{"command", textUpdate(1, "/start"), "command"},
		{"text", textUpdate(1, "hello"), "text"},
		{"photo", tele.Update{Message: &tele.Message{Photo: &tele.Photo{}}}, "media"},
		{"voice", tele.Update{Message: &tele.Message{Voice: &tele.Voice{}}}, "media"},
		{"empty message", tele.Update{Message: &tele.Message{}}, "other"},
		{"nothing", tele.Update{}, "other"},
	}
	for _, c := range cases {
		if got := updateKind(c.u); got != c.want {
			t.Fatalf("%s: updateKind = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestMetricsObservesAndResetsTally(t *testing.T) {
	c := newContext(t, textUpdate(5, "hi"))
	tghelpers.ResetReplies(c)
	tghelpers.SetOutcome(c, "stale")

	var kind string
	var observed bool
	mw := Metrics(func(k string, took time.Duration) {
		kind, observed = k, took >= 0
	})
	want := errors.New("boom")
	err := mw(func(c tele.Context) error {
		if _, _, outcome := tghelpers.Replies(c); outcome != "" {
			t.Fatalf("tally not reset, outcome %q", outcome)
		}
		tghelpers.SetOutcome(c, "ok")
		return want
	})(c)

	if !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
	if !observed || kind != "text" {
		t.Fatalf("observer got kind %q, called %v", kind, observed)
	}
	if _, _, outcome := tghelpers.Replies(c); outcome != "ok" {
		t.Fatalf("outcome = %q", outcome)
	}
}

func TestMetricsWithoutObserver(t *testing.T) {
	c := newContext(t, textUpdate(5, "hi"))
	called := false
	if err := Metrics(nil)(func(tele.Context) error { called = true; return nil })(c); err != nil {
		t.Fatalf("err = %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestAdminOnly(t *testing.T) {
	cases := []struct {
		name    string
		adminID int64
		sender  int64
		allowed bool
	}{
		{"admin", 7, 7, true},
		{"stranger", 7, 8, false},
		{"no admin configured", 0, 0, false},
	}
	for _, tc := range cases {
		c := newContext(t, textUpdate(tc.sender, "/stats"))
		var ran, rejected bool
		h := AdminOnly(AdminOptions{
			AdminID:  tc.adminID,
			OnReject: func(tele.Context) error { rejected = true; return nil },
		})(func(tele.Context) error { ran = true; return nil })

		if err := h(c); err != nil {
			t.Fatalf("%s: err = %v", tc.name, err)
		}
		if ran != tc.allowed || rejected == tc.allowed {
			t.Fatalf("%s: ran=%v rejected=%v", tc.name, ran, rejected)
		}
	}
}

func TestAdminOnlyWithoutSender(t *testing.T) {
	c := newContext(t, tele.Update{ID: 3})
	ran := false
	h := AdminOnly(AdminOptions{AdminID: 7})(func(tele.Context) error { ran = true; return nil })
	if err := h(c); err != nil || ran {
		t.Fatalf("err=%v ran=%v", err, ran)
	}
}

func TestRecoverReportsPanic(t *testing.T) {
	c := newContext(t, textUpdate(1, "hi"))
	var got any
	err := Recover(func(v any) { got = v })(func(tele.Context) error { panic("bad") })(c)
	if err == nil || got != "bad" {
		t.Fatalf("err=%v panic=%v", err, got)
	}
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := newContext(t, textUpdate(4, "hello"))
	err := LoggerMiddleware(func(c tele.Context) error {
		if _, ok := tghelpers.ContextFrom(c); !ok {
			t.Fatalf("context not stored")
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
}
