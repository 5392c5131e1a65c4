package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultLoadTimeout = 2 * time.Second

type loaded struct {
	model Model
}

// Lazy loads its model from the registry on first use and caches it for the
// life of the process. Concurrent first callers share one in-flight load; a
// caller whose context expires first gives up with ErrUnavailable while the
// load carries on for the others. A failed load is not cached.
type Lazy struct {
	registry    Registry
	version     string
	loadTimeout time.Duration
	logger      *slog.Logger
	onLoad      func(version string, d time.Duration, err error)

	group   singleflight.Group
	current atomic.Pointer[loaded]
}

// LazyOption configures a Lazy model.
type LazyOption func(*Lazy)

// WithLoadTimeout bounds a single registry load.
func WithLoadTimeout(d time.Duration) LazyOption {
	return func(l *Lazy) {
		if d > 0 {
			l.loadTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) LazyOption {
	return func(l *Lazy) {
		l.logger = logger
	}
}

// WithLoadObserver is called after every load attempt.
func WithLoadObserver(fn func(version string, d time.Duration, err error)) LazyOption {
	return func(l *Lazy) {
		l.onLoad = fn
	}
}

func NewLazy(registry Registry, version string, opts ...LazyOption) *Lazy {
	l := &Lazy{
		registry:    registry,
		version:     version,
		loadTimeout: defaultLoadTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Score loads the model if needed and scores f.
func (l *Lazy) Score(ctx context.Context, f Features) (float64, error) {
	m, err := l.get(ctx)
	if err != nil {
		return 0, err
	}
	score, err := m.Score(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrUnavailable, l.version, err)
	}
	return score, nil
}

// Version reports the configured version, loaded or not.
func (l *Lazy) Version() string {
	return l.version
}

// Loaded reports whether the model is cached.
func (l *Lazy) Loaded() bool {
	return l.current.Load() != nil
}

// Warm triggers the load ahead of the first request.
func (l *Lazy) Warm(ctx context.Context) error {
	_, err := l.get(ctx)
	return err
}

func (l *Lazy) get(ctx context.Context) (Model, error) {
	if p := l.current.Load(); p != nil {
		return p.model, nil
	}

	ch := l.group.DoChan(l.version, func() (any, error) {
		if p := l.current.Load(); p != nil {
			return p.model, nil
		}
		return l.load()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, l.version, res.Err)
		}
		return res.Val.(Model), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: waiting for load: %w", ErrUnavailable, l.version, ctx.Err())
	}
}

// load is detached from caller contexts; only loadTimeout bounds it.
func (l *Lazy) load() (Model, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.loadTimeout)
	defer cancel()

	start := time.Now()
	m, err := l.registry.Load(ctx, l.version)
	elapsed := time.Since(start)
	if l.onLoad != nil {
		l.onLoad(l.version, elapsed, err)
	}
	if err != nil {
		l.logger.Error("model load failed",
			"version", l.version,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	l.current.Store(&loaded{model: m})
	l.logger.Info("model loaded",
		"version", l.version,
		"duration_ms", elapsed.Milliseconds(),
	)
	return m, nil
}
