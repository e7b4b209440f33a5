package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// defaultWaitDelay is how long Wait keeps draining pipes after the child was killed.
const defaultWaitDelay = 2 * time.Second

// ProcessTransport runs one child process per exchange: the request is written to
// stdin as JSON and the reply is read from stdout.
type ProcessTransport struct {
	command   string
	args      []string
	dir       string
	waitDelay time.Duration
}

// NewProcessTransport returns a transport for command with args, run in dir.
func NewProcessTransport(command string, args []string, dir string) *ProcessTransport {
	return &ProcessTransport{
		command:   command,
		args:      append([]string(nil), args...),
		dir:       dir,
		waitDelay: defaultWaitDelay,
	}
}

// Name implements Transport.
func (t *ProcessTransport) Name() string { return "process" }

// Call implements Transport. The child is killed when ctx ends and is always reaped
// before Call returns.
func (t *ProcessTransport) Call(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.command, t.args...)
	cmd.Dir = t.dir
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = t.waitDelay

	if err := cmd.Start(); err != nil {
		return Response{}, &Error{Kind: KindTransportStart, Err: err}
	}
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return Response{}, &Error{Kind: KindTimeout, Err: ctxErr, Diagnostic: clip(stderr.String())}
		}
		return Response{}, ctxErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			diag := stderr.String()
			if diag == "" {
				diag = stdout.String()
			}
			return Response{}, &Error{Kind: KindNonZeroExit, ExitCode: exitErr.ExitCode(), Diagnostic: clip(diag)}
		}
		return Response{}, &Error{Kind: KindTransportStart, Err: waitErr}
	}
	return DecodeResponse(stdout.Bytes())
}
