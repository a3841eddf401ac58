// Package logging provides the async, queued logging facade used across
// every exchange and participant thread (spec §5 "logger thread"). It
// wraps github.com/yanun0323/logs (grounded on
// yanun0323-go-hft/internal/ingest/marketdata/binance_pub.go's
// logs.Info/logs.Errorf call shape) behind a bounded channel drained by
// one goroutine, reproducing the async file-backed logger of
// original_source/src/include/logging/logger.hpp: hot-path callers never
// block on I/O, they just enqueue a formatted line.
package logging

import (
	"fmt"
	"os"

	"github.com/yanun0323/logs"
)

// Logger queues formatted lines for a single background drain goroutine.
type Logger struct {
	lines chan string
	done  chan struct{}
}

// New starts a logger with the given queue depth (spec §4.2-style fixed
// capacity; on overflow Logf drops the new line rather than apply
// backpressure, so the hot path never blocks — logging queue overflow is
// not one of the fatal invariants of spec §7.3).
func New(queueDepth int) *Logger {
	l := &Logger{
		lines: make(chan string, queueDepth),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) run() {
	defer close(l.done)
	for line := range l.lines {
		logs.Info(line)
	}
}

// Logf enqueues a formatted line. Never blocks: a full queue drops the
// line rather than stall the caller's hot loop.
func (l *Logger) Logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	select {
	case l.lines <- line:
	default:
	}
}

// Close stops accepting new lines and waits for the drain goroutine to
// flush what's queued.
func (l *Logger) Close() {
	close(l.lines)
	<-l.done
}

// Fatalf logs synchronously (bypassing the queue, since the process is
// about to exit and must not lose the message) and aborts the process.
// This is the handler for spec §7.3 invariant violations: pool
// exhaustion, ring overrun, snapshot sequence discontinuity, unknown
// request type.
func Fatalf(format string, args ...any) {
	logs.Errorf(format, args...)
	os.Exit(1)
}
