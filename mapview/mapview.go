package mapview

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
	"github.com/hazyhaar/plotmap/mapview/internal/poll"
	"github.com/hazyhaar/plotmap/mapview/internal/scene"
	"github.com/hazyhaar/plotmap/mapview/internal/source"
	"github.com/hazyhaar/plotmap/mapview/internal/state"
	"github.com/hazyhaar/plotmap/mapview/internal/store"
)

// Service wires the source, the poll loop, the state controller and the
// optional history store.
type Service struct {
	cfg    *Config
	ctrl   *state.Controller
	loop   *poll.Loop
	file   *source.FileSource
	store  *store.Store
	logger *slog.Logger

	ownStore bool
	updates  chan struct{}

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger    *slog.Logger
	src       source.Source
	historyDB *sql.DB
	newTicker func(time.Duration) poll.Ticker
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ServiceOption {
	return func(o *serviceOptions) { o.logger = l }
}

// WithSource replaces the configured source.
func WithSource(src Source) ServiceOption {
	return func(o *serviceOptions) { o.src = src }
}

// WithHistoryDB records history in an already-open SQLite database
// instead of History.Path. The schema is applied by New; the caller keeps
// ownership of db.
func WithHistoryDB(db *sql.DB) ServiceOption {
	return func(o *serviceOptions) { o.historyDB = db }
}

// WithTicker overrides the poll ticker, for tests.
func WithTicker(fn func(time.Duration) Ticker) ServiceOption {
	return func(o *serviceOptions) { o.newTicker = fn }
}

// New creates a Service. Call Start to begin polling and Close when done.
func New(cfg *Config, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()

	var o serviceOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	svc := &Service{
		cfg:     cfg,
		logger:  o.logger,
		updates: make(chan struct{}, 1),
	}

	src := o.src
	if src == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if cfg.Source.File != "" {
			svc.file = source.NewFile(cfg.Source.File, o.logger)
			src = svc.file
		} else {
			src = source.NewHTTP(cfg.Source.HTTPConfig)
		}
		src = source.WithRetry(src, cfg.Source.Retries, cfg.Source.RetryBackoff, o.logger)
	}

	if o.historyDB != nil {
		if err := store.ApplySchema(o.historyDB); err != nil {
			return nil, fmt.Errorf("mapview: history schema: %w", err)
		}
		svc.store = store.NewStore(o.historyDB)
	} else if cfg.History.Path != "" {
		st, err := store.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("mapview: history: %w", err)
		}
		svc.store = st
		svc.ownStore = true
	}

	svc.ctrl = state.New(state.WithLogger(o.logger), state.WithOnRender(svc.onRender))

	popts := poll.Options{
		Interval:  cfg.Poll.Interval,
		Recorder:  svc.record,
		NewTicker: o.newTicker,
		Logger:    o.logger,
	}
	if cfg.Poll.Placeholder {
		popts.Placeholder = plot.Placeholder()
	}
	svc.loop = poll.New(src, svc.ctrl, popts)
	return svc, nil
}

// Start launches the poll loop, the file watcher and history pruning.
// It returns immediately.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop.Run(ctx)
	}()

	if s.file != nil && *s.cfg.Source.Watch {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.file.Watch(ctx, func() { s.Refresh(ctx) }); err != nil {
				s.logger.Warn("mapview: file watch stopped", "error", err)
			}
		}()
	}

	if s.store != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.pruneLoop(ctx)
		}()
	}
	s.logger.Info("mapview: started", "interval", s.cfg.Poll.Interval, "history", s.store != nil)
}

// Close stops polling, discards in-flight results and closes the history
// store if the Service opened it. Safe to call more than once.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.loop.Close()
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		s.wg.Wait()
		if s.ownStore {
			err = s.store.Close()
		}
		s.logger.Info("mapview: closed")
	})
	return err
}

// Refresh runs one fetch cycle now. It coalesces with a cycle already in
// flight and returns OutcomeSkipped in that case.
func (s *Service) Refresh(ctx context.Context) Outcome {
	return s.loop.Poll(ctx)
}

// Updates signals after every view change. Signals coalesce; read View
// after receiving.
func (s *Service) Updates() <-chan struct{} { return s.updates }

func (s *Service) onRender(state.View) {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// View returns the current snapshot.
func (s *Service) View() View { return s.ctrl.View() }

// WriteSVG writes the current map with selection and zoom applied.
func (s *Service) WriteSVG(w io.Writer) error {
	v := s.ctrl.View()
	return scene.WriteSVG(w, v.Scene, v.Overlay())
}

// Plots returns a copy of the working set, including local edits.
func (s *Service) Plots() []Plot { return s.ctrl.Plots() }

// Select selects a plot; unknown ids return false.
func (s *Service) Select(id string) bool { return s.ctrl.Select(id) }

// ClearSelection drops the selection.
func (s *Service) ClearSelection() { s.ctrl.ClearSelection() }

// Activate selects id, or opens an edit draft in edit mode.
func (s *Service) Activate(id string) bool { return s.ctrl.Activate(id) }

// ActivateAt activates the plot under a viewport point.
func (s *Service) ActivateAt(x, y float64) (string, bool) { return s.ctrl.ActivateAt(x, y) }

// SetEditMode toggles edit mode.
func (s *Service) SetEditMode(on bool) { s.ctrl.SetEditMode(on) }

// SetZoom sets the zoom factor, clamped.
func (s *Service) SetZoom(f float64) float64 { return s.ctrl.SetZoom(f) }

// ZoomIn steps the zoom up.
func (s *Service) ZoomIn() float64 { return s.ctrl.ZoomIn() }

// ZoomOut steps the zoom down.
func (s *Service) ZoomOut() float64 { return s.ctrl.ZoomOut() }

// ResetZoom returns to 100%.
func (s *Service) ResetZoom() float64 { return s.ctrl.ResetZoom() }

// Wheel applies a cursor-anchored wheel zoom.
func (s *Service) Wheel(e WheelEvent) View { return s.ctrl.Wheel(e) }

// SetScroll records the viewport scroll offset.
func (s *Service) SetScroll(x, y float64) Point { return s.ctrl.SetScroll(x, y) }

// BeginEdit opens an edit draft for id.
func (s *Service) BeginEdit(id string) (Draft, bool) { return s.ctrl.BeginEdit(id) }

// CurrentDraft returns the open draft, if any.
func (s *Service) CurrentDraft() (Draft, bool) { return s.ctrl.Draft() }

// CancelEdit discards the open draft.
func (s *Service) CancelEdit() { s.ctrl.CancelEdit() }

// CommitEdit applies d to the working set and records it in history.
// Validation failures return a *ValidationError and leave the draft open.
func (s *Service) CommitEdit(ctx context.Context, d Draft) (Plot, error) {
	edited, err := s.ctrl.CommitEdit(d)
	if err != nil {
		return Plot{}, err
	}
	if s.store != nil {
		e := &store.EditEntry{PlotID: edited.ID, PlotName: edited.Name, SVGCode: edited.Fragment}
		if err := s.store.InsertEdit(context.WithoutCancel(ctx), e); err != nil {
			s.logger.Warn("mapview: edit log failed", "plot_id", edited.ID, "error", err)
		}
	}
	return edited, nil
}

// Stats combines poll counters with render counters.
type Stats struct {
	Poll     PollStats `json:"poll"`
	Renders  uint64    `json:"renders"`
	Revision uint64    `json:"revision"`
	Rows     int       `json:"rows"`
}

// Stats returns current counters.
func (s *Service) Stats() Stats {
	v := s.ctrl.View()
	return Stats{
		Poll:     s.loop.Stats(),
		Renders:  s.ctrl.Renders(),
		Revision: v.Revision,
		Rows:     v.RowCount,
	}
}

// FetchHistory lists recent poll cycles.
func (s *Service) FetchHistory(ctx context.Context, limit int) ([]*FetchLogEntry, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.FetchHistory(ctx, limit)
}

// EditHistory lists committed edits, optionally for one plot.
func (s *Service) EditHistory(ctx context.Context, plotID string, limit int) ([]*EditEntry, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.EditHistory(ctx, plotID, limit)
}

// Snapshots lists applied row sets.
func (s *Service) Snapshots(ctx context.Context, limit int) ([]*Snapshot, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.ListSnapshots(ctx, limit)
}

// Snapshot returns an applied row set by fingerprint.
func (s *Service) Snapshot(ctx context.Context, fingerprint string) (*Snapshot, []Plot, error) {
	if s.store == nil {
		return nil, nil, ErrHistoryDisabled
	}
	snap, plots, err := s.store.GetSnapshot(ctx, fingerprint)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, fingerprint)
	}
	return snap, plots, err
}

// WriteSnapshotSVG renders a stored row set as it looked when applied,
// without the live selection or zoom.
func (s *Service) WriteSnapshotSVG(ctx context.Context, w io.Writer, fingerprint string) error {
	_, plots, err := s.Snapshot(ctx, fingerprint)
	if err != nil {
		return err
	}
	return scene.WriteSVG(w, scene.Compose(plots), scene.Overlay{})
}

// record persists a poll cycle. History is best-effort: failures are
// logged and never reach the loop.
func (s *Service) record(ctx context.Context, r poll.Record) {
	if s.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	e := &store.FetchLogEntry{
		Outcome:     r.Outcome.String(),
		Fingerprint: r.Fingerprint,
		RowCount:    r.Rows,
		DurationMs:  r.Duration.Milliseconds(),
		FetchedAt:   r.At.UnixMilli(),
	}
	if r.Err != nil {
		e.ErrorMessage = r.Err.Error()
	}
	if err := s.store.InsertFetchLog(ctx, e); err != nil {
		s.logger.Warn("mapview: fetch log failed", "error", err)
	}
	if r.Outcome == poll.OutcomeChanged {
		if err := s.store.RecordSnapshot(ctx, r.Fingerprint, r.Plots); err != nil {
			s.logger.Warn("mapview: snapshot failed", "error", err)
		}
	}
}

func (s *Service) pruneLoop(ctx context.Context) {
	prune := func() {
		n, err := s.store.Prune(ctx, s.cfg.History.Retention)
		if err != nil {
			s.logger.Warn("mapview: prune failed", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("mapview: pruned fetch log", "rows", n)
		}
	}
	prune()
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			prune()
		}
	}
}
