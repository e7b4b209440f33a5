package intake

// Button is an inline button. Unique and Data form the callback payload.
type Button struct {
	Label  string
	Unique string
	Data   string
}

// Reply is one outbound message. Long text is paginated by the transport, with
// Buttons attached to the last page.
type Reply struct {
	Text     string
	Markdown bool
	Buttons  [][]Button
}

// Outcome statuses.
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusStale    = "stale"
	StatusLimited  = "limited"
	StatusError    = "error"
)

// Outcome is everything the transport has to do for one event.
type Outcome struct {
	Replies []Reply
	// Edit replaces the text of the message that carried the callback.
	Edit *Reply
	// Notice is shown as the callback answer.
	Notice string
	Status string
	// Err is the failure behind a StatusError outcome, kept for logging.
	Err error
}

func (o *Outcome) say(text string) {
	o.Replies = append(o.Replies, Reply{Text: text})
}

func (o *Outcome) add(r Reply) {
	o.Replies = append(o.Replies, r)
}

func reply(text string) Outcome {
	return Outcome{Replies: []Reply{{Text: text}}, Status: StatusOK}
}

func rejected(text string) Outcome {
	return Outcome{Replies: []Reply{{Text: text}}, Status: StatusRejected}
}
