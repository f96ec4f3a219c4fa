// Package hostio names the narrow collaborator interfaces spec §6 leaves
// to the embedding host: a write sink and an optional hardware-timer
// source. Neither the dispatch core nor the formatter in package format
// imports this package's concrete sinks directly — they accept an
// io.Writer, and it is cmd/heyvm that decides which hostio.Sink backs it.
package hostio

import (
	"io"
	"os"
	"sync"
	"time"
)

// Sink is the Go analog of the source's hal_write: a single narrow write
// path every byte of VM-visible output funnels through. fd follows the
// conventional 1=stdout/2=stderr split.
type Sink interface {
	Write(fd int, buf []byte) (int, error)
}

// Timer is the optional hardware-timer collaborator spec §4.9 describes
// for driving preemption ticks; the CLI supplies a time.Ticker-backed
// fallback when no real timer is wired.
type Timer interface {
	Tick() <-chan time.Time
	Stop()
}

// StdSink writes fd 1 to stdout and everything else to stderr, the
// default sink cmd/heyvm installs when no other sink is configured.
type StdSink struct{}

func (StdSink) Write(fd int, buf []byte) (int, error) {
	if fd == 1 {
		return os.Stdout.Write(buf)
	}
	return os.Stderr.Write(buf)
}

// WriterFor adapts a Sink to an io.Writer bound to a fixed fd, the shape
// vm.New's sink parameter and the format package's Fprintf expect.
func WriterFor(s Sink, fd int) io.Writer {
	return &fdWriter{sink: s, fd: fd}
}

type fdWriter struct {
	sink Sink
	fd   int
}

func (w *fdWriter) Write(p []byte) (int, error) { return w.sink.Write(w.fd, p) }

// TickerTimer implements Timer over a time.Ticker — the software fallback
// spec §4.9 allows when no hardware timer is present.
type TickerTimer struct {
	ticker *time.Ticker
}

// NewTickerTimer starts a timer firing every interval.
func NewTickerTimer(interval time.Duration) *TickerTimer {
	return &TickerTimer{ticker: time.NewTicker(interval)}
}

func (t *TickerTimer) Tick() <-chan time.Time { return t.ticker.C }
func (t *TickerTimer) Stop()                  { t.ticker.Stop() }

// BufSink buffers every write in memory instead of touching a real fd,
// for tests and for the websocket debug-stream sink to tee from.
type BufSink struct {
	mu  sync.Mutex
	buf []byte
}

func (b *BufSink) Write(fd int, p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Bytes returns a copy of everything written so far.
func (b *BufSink) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}
