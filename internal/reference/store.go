package reference

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store holds the process-wide reference dataset. The first successful Load
// is cached; failures are not, so a corrected directory is picked up by the
// next run without a restart.
//
// Loads run outside mu. Readers keep seeing the cached dataset while a
// reload is in flight, and concurrent loads share one call to the source.
type Store struct {
	src   Source
	loads singleflight.Group

	mu      sync.RWMutex
	ds      *Dataset
	lastErr error
	tried   time.Time
}

// NewStore creates a store backed by src. Nothing is read until the first
// call to Dataset.
func NewStore(src Source) *Store {
	return &Store{src: src}
}

// Dataset returns the cached dataset, loading it on first use.
func (s *Store) Dataset(ctx context.Context) (*Dataset, error) {
	if ds := s.cached(); ds != nil {
		return ds, nil
	}
	return s.load(ctx)
}

// Reload re-reads the source. On failure the previously cached dataset, if
// any, stays in place and the error is returned.
func (s *Store) Reload(ctx context.Context) (*Dataset, error) {
	if _, err := s.load(ctx); err != nil {
		return s.cached(), err
	}
	return s.cached(), nil
}

func (s *Store) cached() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

// load reads the source once for all concurrent callers and publishes the
// result.
func (s *Store) load(ctx context.Context) (*Dataset, error) {
	v, err, _ := s.loads.Do("load", func() (any, error) {
		start := time.Now()
		ds, err := s.src.Load(ctx)

		s.mu.Lock()
		s.tried = time.Now()
		if err != nil {
			s.lastErr = err
		} else {
			s.ds = ds
			s.lastErr = nil
		}
		s.mu.Unlock()

		if err != nil {
			slog.Error("reference load failed", "source", s.src.String(), "error", err)
			return nil, err
		}
		slog.Info("reference loaded",
			"source", s.src.String(),
			"records", ds.Len(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

// Status is a snapshot of the store for monitoring.
type Status struct {
	Source    string    `json:"source"`
	Loaded    bool      `json:"loaded"`
	Info      *Info     `json:"info,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	LastTry   time.Time `json:"last_attempt,omitempty"`
}

// Status reports whether a dataset is cached and the most recent load error.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Source:  s.src.String(),
		Loaded:  s.ds != nil,
		LastTry: s.tried,
	}
	if s.ds != nil {
		info := s.ds.Info()
		st.Info = &info
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
