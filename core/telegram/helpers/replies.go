package helpers

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

const repliesKey = "petbot.replies"

// replies tallies what one update produced. Sends are counted when queued, so
// the tally is complete when the handler returns.
type replies struct {
	mu       sync.Mutex
	messages int
	keyboard bool
	outcome  string
}

// ResetReplies starts a fresh tally for the update behind c.
func ResetReplies(c tele.Context) {
	c.Set(repliesKey, &replies{})
}

func tally(c tele.Context) *replies {
	r, _ := c.Get(repliesKey).(*replies)
	return r
}

func countReply(c tele.Context, keyboard bool) {
	if r := tally(c); r != nil {
		r.mu.Lock()
		r.messages++
		r.keyboard = r.keyboard || keyboard
		r.mu.Unlock()
	}
}

// SetOutcome records how the conversation engine classified the update.
func SetOutcome(c tele.Context, outcome string) {
	if r := tally(c); r != nil {
		r.mu.Lock()
		r.outcome = outcome
		r.mu.Unlock()
	}
}

// Replies returns the number of queued replies, whether any carried a
// keyboard, and the recorded outcome.
func Replies(c tele.Context) (messages int, keyboard bool, outcome string) {
	r := tally(c)
	if r == nil {
		return 0, false, ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages, r.keyboard, r.outcome
}
