// Package progress delivers batch progress to logs, Redis streams and MQTT
// without slowing the import down.
package progress

import (
	"sync"

	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/batch"
)

// Log logs state changes at Info and record progress at Debug
type Log struct {
	logger *zap.Logger
	last   batch.State
}

// NewLog creates a log observer
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger, last: batch.StateIdle}
}

// OnProgress implements batch.Observer
func (l *Log) OnProgress(p batch.Progress) {
	fields := []zap.Field{
		zap.String("run_id", p.RunID),
		zap.String("collect_id", p.CollectID),
		zap.String("state", p.StateName),
		zap.Int("processed", p.Processed),
		zap.Int("committed", p.Committed),
		zap.Int("total", p.Total),
	}
	if p.State != l.last {
		l.last = p.State
		l.logger.Info("Import state changed", fields...)
		return
	}
	l.logger.Debug("Import progress", append(fields, zap.Int("record_index", p.Index))...)
}

// Fanout forwards every update to each observer in order
type Fanout []batch.Observer

// OnProgress implements batch.Observer
func (f Fanout) OnProgress(p batch.Progress) {
	for _, o := range f {
		o.OnProgress(p)
	}
}

// Async hands updates to a background goroutine through a buffered
// channel. When the buffer is full the update is dropped, except terminal
// states which wait for room.
type Async struct {
	next    batch.Observer
	updates chan batch.Progress
	done    chan struct{}
	logger  *zap.Logger

	mu      sync.Mutex
	dropped int
	closed  bool
}

// NewAsync starts delivering to next
func NewAsync(next batch.Observer, buffer int, logger *zap.Logger) *Async {
	if buffer <= 0 {
		buffer = 1
	}
	a := &Async{
		next:    next,
		updates: make(chan batch.Progress, buffer),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for p := range a.updates {
		a.next.OnProgress(p)
	}
}

// OnProgress implements batch.Observer
func (a *Async) OnProgress(p batch.Progress) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if p.State.Terminal() {
		a.updates <- p
		return
	}
	select {
	case a.updates <- p:
	default:
		a.dropped++
	}
}

// Dropped number of updates discarded on a full buffer
func (a *Async) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close stops accepting updates and waits for queued ones to be delivered
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.updates)
	a.mu.Unlock()

	<-a.done
	if a.dropped > 0 {
		a.logger.Debug("Progress updates dropped", zap.Int("dropped", a.dropped))
	}
}
