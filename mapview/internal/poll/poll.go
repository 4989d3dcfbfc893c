// Package poll runs the fetch → fingerprint → reconcile cycle for the plot
// map. A cycle re-renders only when the fetched rows differ from the last
// applied remote rows.
//
// Typical usage:
//
//	l := poll.New(src, ctrl, poll.Options{Interval: 5 * time.Second})
//	go l.Run(ctx)
//	defer l.Close()
//
// Manual refresh calls Poll directly; concurrent cycles coalesce.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
	"github.com/hazyhaar/plotmap/mapview/internal/source"
)

// Applier receives a changed row set. Apply must not retain plots.
type Applier interface {
	Apply(plots []plot.Plot)
}

// ApplyFunc adapts a function to Applier.
type ApplyFunc func(plots []plot.Plot)

// Apply calls f.
func (f ApplyFunc) Apply(plots []plot.Plot) { f(plots) }

// Ticker is the subset of time.Ticker the loop uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// Record describes one completed cycle.
type Record struct {
	Outcome     Outcome
	Fingerprint string
	Rows        int

	// Plots is set for OutcomeChanged. Read-only.
	Plots    []plot.Plot
	Err      error
	Duration time.Duration
	At       time.Time
}

// Options tunes the loop.
type Options struct {
	// Interval between cycles. Retries use the same interval. Default: 5s.
	Interval time.Duration
	// Placeholder is applied once when a fetch fails before any rows were
	// ever applied. Nil disables it.
	Placeholder []plot.Plot
	// Recorder receives every completed cycle. Optional.
	Recorder func(ctx context.Context, r Record)
	// NewTicker overrides time.NewTicker.
	NewTicker func(d time.Duration) Ticker
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.NewTicker == nil {
		o.NewTicker = func(d time.Duration) Ticker { return stdTicker{time.NewTicker(d)} }
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Loop owns the polling state machine. It is safe for concurrent use.
type Loop struct {
	src   source.Source
	apply Applier
	opts  Options

	inFlight atomic.Bool
	closed   atomic.Bool
	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once

	mu          sync.Mutex
	fingerprint string // last applied remote rows
	rows        int
	everApplied bool
	lastErr     string
	lastPoll    time.Time

	polls     atomic.Int64
	changes   atomic.Int64
	unchanged atomic.Int64
	failures  atomic.Int64
	skipped   atomic.Int64
	discarded atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Polls       int64     `json:"polls"`
	Changes     int64     `json:"changes"`
	Unchanged   int64     `json:"unchanged"`
	Failures    int64     `json:"failures"`
	Skipped     int64     `json:"skipped"`
	Discarded   int64     `json:"discarded"`
	State       string    `json:"state"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastPollAt  time.Time `json:"last_poll_at,omitzero"`
}

// New creates a Loop. Call Run to start the ticker.
func New(src source.Source, apply Applier, opts Options) *Loop {
	opts.defaults()
	return &Loop{src: src, apply: apply, opts: opts, stop: make(chan struct{})}
}

// State returns the current state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Fingerprint returns the fingerprint of the last applied remote rows.
func (l *Loop) Fingerprint() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fingerprint
}

// Stats returns the current counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Polls:       l.polls.Load(),
		Changes:     l.changes.Load(),
		Unchanged:   l.unchanged.Load(),
		Failures:    l.failures.Load(),
		Skipped:     l.skipped.Load(),
		Discarded:   l.discarded.Load(),
		State:       l.State().String(),
		Fingerprint: l.fingerprint,
		LastError:   l.lastErr,
		LastPollAt:  l.lastPoll,
	}
}

// Run polls immediately, then on every tick, until ctx is cancelled or
// Close is called.
func (l *Loop) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	log := l.opts.Logger
	log.Info("poll: started", "interval", l.opts.Interval)
	l.Poll(ctx)

	t := l.opts.NewTicker(l.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("poll: stopped")
			return
		case <-t.C():
			l.Poll(ctx)
		}
	}
}

// Close stops Run and discards results of cycles still in flight. Safe to
// call more than once.
func (l *Loop) Close() {
	l.closed.Store(true)
	l.stopOnce.Do(func() { close(l.stop) })
}

// Poll runs one cycle. If a cycle is already in flight it returns
// OutcomeSkipped without fetching.
func (l *Loop) Poll(ctx context.Context) Outcome {
	if l.closed.Load() {
		return OutcomeDiscarded
	}
	if !l.inFlight.CompareAndSwap(false, true) {
		l.skipped.Add(1)
		return OutcomeSkipped
	}
	defer l.inFlight.Store(false)
	defer l.setState(StateIdle)

	l.polls.Add(1)
	l.setState(StateFetching)
	start := time.Now()
	plots, err := l.src.Fetch(ctx)

	if l.closed.Load() || ctx.Err() != nil {
		if err == nil {
			l.settle(false)
		}
		l.discarded.Add(1)
		l.opts.Logger.Debug("poll: result discarded after teardown")
		return OutcomeDiscarded
	}

	rec := Record{At: start, Duration: time.Since(start)}
	switch {
	case errors.Is(err, source.ErrNotModified):
		l.mu.Lock()
		fp, rows := l.fingerprint, l.rows
		l.mu.Unlock()
		return l.finishUnchanged(ctx, rec, fp, rows)
	case err != nil:
		return l.fail(ctx, rec, err)
	}

	kept, dropped := plot.Dedupe(plots)
	if len(dropped) > 0 {
		l.opts.Logger.Warn("poll: duplicate plot ids dropped", "ids", dropped)
	}
	if len(kept) == 0 {
		l.settle(false)
		return l.fail(ctx, rec, fmt.Errorf("%w: no rows with a plot id", source.ErrMalformed))
	}

	fp := plot.Fingerprint(kept)
	rec.Fingerprint = fp
	rec.Rows = len(kept)
	if fp == l.Fingerprint() {
		l.settle(true)
		return l.finishUnchanged(ctx, rec, fp, len(kept))
	}

	l.setState(StateChanged)
	l.setState(StateReconciling)
	l.apply.Apply(kept)
	l.settle(true)
	l.changes.Add(1)
	l.mu.Lock()
	l.fingerprint = fp
	l.rows = len(kept)
	l.everApplied = true
	l.lastErr = ""
	l.lastPoll = start
	l.mu.Unlock()
	l.opts.Logger.Info("poll: data changed", "rows", len(kept), "fingerprint", short(fp), "duration", rec.Duration)

	rec.Outcome = OutcomeChanged
	rec.Plots = kept
	l.record(ctx, rec)
	return OutcomeChanged
}

func (l *Loop) finishUnchanged(ctx context.Context, rec Record, fp string, rows int) Outcome {
	l.setState(StateUnchanged)
	l.unchanged.Add(1)
	l.mu.Lock()
	l.lastErr = ""
	l.lastPoll = rec.At
	l.mu.Unlock()
	l.opts.Logger.Debug("poll: no change", "fingerprint", short(fp))
	rec.Outcome = OutcomeUnchanged
	rec.Fingerprint = fp
	rec.Rows = rows
	l.record(ctx, rec)
	return OutcomeUnchanged
}

func (l *Loop) fail(ctx context.Context, rec Record, err error) Outcome {
	l.setState(StateFetchFailed)
	l.failures.Add(1)
	l.opts.Logger.Warn("poll: fetch failed", "error", err)

	l.mu.Lock()
	l.lastErr = err.Error()
	l.lastPoll = rec.At
	usePlaceholder := !l.everApplied && len(l.opts.Placeholder) > 0
	if usePlaceholder {
		l.everApplied = true
	}
	l.mu.Unlock()

	if usePlaceholder {
		l.opts.Logger.Info("poll: showing placeholder data", "rows", len(l.opts.Placeholder))
		l.apply.Apply(plot.Clone(l.opts.Placeholder))
	}

	rec.Outcome = OutcomeFailed
	rec.Err = err
	l.record(ctx, rec)
	return OutcomeFailed
}

func (l *Loop) record(ctx context.Context, r Record) {
	if l.opts.Recorder != nil {
		l.opts.Recorder(ctx, r)
	}
}

// settle commits or rolls back the source's conditional-request state for
// a successful fetch. Only rows that match the applied set may be cached.
func (l *Loop) settle(applied bool) {
	c, ok := l.src.(source.Committer)
	if !ok {
		return
	}
	if applied {
		c.Commit()
	} else {
		c.Rollback()
	}
}

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
