package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter fans lines out to its sinks from a single goroutine so handlers
// never block on stdout or disk. After Close, writes go to the sinks directly.
type asyncWriter struct {
	queue chan []byte
	flush chan chan error
	done  chan struct{}

	// mu guards closed; senders hold it shared while queueing.
	mu     sync.RWMutex
	closed bool

	sinkMu sync.Mutex
	sinks  []*bufio.Writer
	err    error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		queue: make(chan []byte, 256),
		flush: make(chan chan error),
		done:  make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				w.flushAll()
				return
			}
			w.writeLine(line)
		case ack := <-w.flush:
			w.drain()
			ack <- w.flushAll()
		}
	}
}

// drain writes the lines already queued without waiting for more.
func (w *asyncWriter) drain() {
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				return
			}
			w.writeLine(line)
		default:
			return
		}
	}
}

// Write queues a copy of p. A full queue blocks the caller rather than
// dropping the line.
func (w *asyncWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	line := append([]byte(nil), p...)

	w.mu.RLock()
	if !w.closed {
		w.queue <- line
		w.mu.RUnlock()
		return nil
	}
	w.mu.RUnlock()

	w.writeLine(line)
	return w.lastErr()
}

// Flush blocks until every queued line has reached the sinks.
func (w *asyncWriter) Flush() error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return w.lastErr()
	}
	ack := make(chan error, 1)
	w.flush <- ack
	w.mu.RUnlock()
	return <-ack
}

// Close drains the queue and returns the first write error seen.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return w.lastErr()
}

func (w *asyncWriter) writeLine(p []byte) {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			w.keep(err)
			continue
		}
		w.keep(sink.Flush())
	}
}

func (w *asyncWriter) flushAll() error {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	var errs []error
	for _, sink := range w.sinks {
		errs = append(errs, sink.Flush())
	}
	return errors.Join(errs...)
}

// keep records err if it is the first one; callers hold sinkMu.
func (w *asyncWriter) keep(err error) {
	if err != nil && w.err == nil {
		w.err = err
	}
}

func (w *asyncWriter) lastErr() error {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	return w.err
}
