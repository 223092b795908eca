package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/orgenrich/internal/logging"
	"github.com/JonMunkholm/orgenrich/internal/propublica"
	"github.com/JonMunkholm/orgenrich/internal/reference"
)

// Defaults for Options fields left zero.
const (
	DefaultRunTimeout     = 10 * time.Minute
	DefaultRunTTL         = 30 * time.Minute
	DefaultMaxUploadBytes = 50 << 20
)

// ReferenceStore provides the shared reference dataset.
type ReferenceStore interface {
	Dataset(ctx context.Context) (*reference.Dataset, error)
	Reload(ctx context.Context) (*reference.Dataset, error)
	Status() reference.Status
}

// Enricher looks up a batch of EINs.
type Enricher interface {
	FetchAll(ctx context.Context, eins []string) propublica.Batch
}

// Options configures a Service.
type Options struct {
	// ReferenceRequired makes an unavailable reference dataset fail the run.
	// When false the run continues without local matching and reports a
	// warning.
	ReferenceRequired bool

	// KeepUnmatched keeps every row without an EIN during deduplication.
	KeepUnmatched bool

	MaxUploadBytes int64
	RunTimeout     time.Duration
	RunTTL         time.Duration

	// Limiter bounds concurrent runs. Nil selects NewRunLimiter(0, 0).
	Limiter *RunLimiter
}

// Service runs enrichments and keeps their results until they expire.
type Service struct {
	ref      ReferenceStore
	enricher Enricher
	opts     Options
	limiter  *RunLimiter

	mu   sync.RWMutex
	runs map[string]*Run
}

// NewService creates a Service.
func NewService(ref ReferenceStore, enricher Enricher, opts Options) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.RunTTL <= 0 {
		opts.RunTTL = DefaultRunTTL
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewRunLimiter(0, 0)
	}

	return &Service{
		ref:      ref,
		enricher: enricher,
		opts:     opts,
		limiter:  limiter,
		runs:     make(map[string]*Run),
	}
}

// Enrich runs the whole pipeline on one upload and blocks until it is done.
// Once a slot is acquired the run is not cancelled by ctx; it is bounded by
// the run timeout instead. Configuration and input errors abort the run and
// nothing is stored.
func (s *Service) Enrich(ctx context.Context, req Request) (*Run, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	run := &Run{
		ID:        uuid.New().String(),
		FileName:  req.FileName,
		StartedAt: time.Now(),
	}
	ctx = logging.WithRunID(ctx, run.ID)

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RunTimeout)
	defer cancel()

	logger := logging.WithFields(ctx, "file", req.FileName)
	logger.Info("run started", "bytes", len(req.Data))

	if err := s.process(runCtx, req, run); err != nil {
		logger.Warn("run failed", "error", err)
		return nil, err
	}

	run.FinishedAt = time.Now()
	run.ExpiresAt = run.FinishedAt.Add(s.opts.RunTTL)

	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	s.cleanup(run.ID, s.opts.RunTTL)

	logger.Info("run completed",
		"rows_in", run.Stats.InputRows,
		"rows_out", run.Stats.OutputRows,
		"lookups_found", run.Stats.LookupsFound,
		"warnings", len(run.Warnings),
		"duration", run.Duration().Round(time.Millisecond),
	)
	return run, nil
}

// Preview parses an upload and reports the detected name column and the
// first PreviewRows rows.
func (s *Service) Preview(ctx context.Context, req Request) (*Preview, error) {
	t, err := s.parse(req)
	if err != nil {
		return nil, err
	}
	inf, err := inferNameColumn(t)
	if err != nil {
		return nil, err
	}

	return &Preview{
		FileName:   req.FileName,
		Columns:    t.Columns,
		NameColumn: inf,
		TotalRows:  t.Len(),
		Rows:       t.Head(PreviewRows).Records()[1:],
	}, nil
}

// GetRun returns a stored run.
func (s *Service) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// ActiveRuns returns the number of stored runs.
func (s *Service) ActiveRuns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// ReferenceStatus reports the state of the reference dataset.
func (s *Service) ReferenceStatus() reference.Status {
	return s.ref.Status()
}

// ReloadReference re-reads the reference dataset. The previous dataset stays
// in use if the reload fails.
func (s *Service) ReloadReference(ctx context.Context) (reference.Status, error) {
	_, err := s.ref.Reload(ctx)
	return s.ref.Status(), err
}

// LimiterStatus reports run slot usage.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// Drain waits for in-flight runs to finish.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// cleanup removes the run from tracking after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}
