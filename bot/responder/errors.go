package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failed exchange.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindNonZeroExit     Kind = "non_zero_exit"
	KindMalformedOutput Kind = "malformed_output"
	KindEmptyOutput     Kind = "empty_output"
	KindTransportStart  Kind = "transport_start_failure"
	// KindRemote means the responder answered with an explicit error field.
	KindRemote Kind = "remote_error"
)

// Error is returned by every failed exchange.
type Error struct {
	Kind Kind
	// ExitCode is the process exit status, or the HTTP status for HTTP transports.
	ExitCode int
	// Diagnostic carries stderr, a response body or the remote error text.
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("responder: ")
	b.WriteString(string(e.Kind))
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (code %d)", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Diagnostic != "" {
		b.WriteString(": ")
		b.WriteString(e.Diagnostic)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code is picked up by handler summaries as err_code.
func (e *Error) Code() string { return "RESPONDER_" + strings.ToUpper(string(e.Kind)) }

// KindOf extracts the kind from err.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}

// classify maps transport failures that were not already typed. A deadline on ctx
// always wins because killed processes and aborted requests surface secondary errors.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		var re *Error
		if errors.As(err, &re) && re.Kind == KindTimeout {
			return err
		}
		return &Error{Kind: KindTimeout, Err: context.DeadlineExceeded}
	}
	if _, ok := KindOf(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Kind: KindTransportStart, Err: err}
}
