// Package appctx holds the collaborators shared by every step of a backup run.
package appctx

import (
	"io"
	"time"

	"gdrive-backup/domain/notification"
	"gdrive-backup/domain/remote"
	"gdrive-backup/infrastructure/metrics"

	"go.uber.org/zap"
)

// Env is passed by reference to each component instead of package-level state
type Env struct {
	Store    remote.Store
	Notifier notification.EmailSender // nil disables failure alerts
	Logger   *zap.Logger
	Output   io.Writer // Progress markers
	Metrics  *metrics.Recorder
	Sleep    func(time.Duration)
	Now      func() time.Time
}

// Option is a functional option for configuring Env
type Option func(*Env)

// WithNotifier sets the failure alert channel
func WithNotifier(n notification.EmailSender) Option {
	return func(e *Env) {
		e.Notifier = n
	}
}

// WithLogger sets the log sink
func WithLogger(l *zap.Logger) Option {
	return func(e *Env) {
		e.Logger = l
	}
}

// WithOutput sets the writer receiving progress markers
func WithOutput(w io.Writer) Option {
	return func(e *Env) {
		e.Output = w
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Env) {
		e.Metrics = m
	}
}

// WithSleep replaces the blocking sleep (for testing)
func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Env) {
		e.Sleep = sleep
	}
}

// WithClock replaces the wall clock (for testing)
func WithClock(now func() time.Time) Option {
	return func(e *Env) {
		e.Now = now
	}
}

// New creates an Env around store. Unset collaborators get quiet defaults.
func New(store remote.Store, opts ...Option) *Env {
	e := &Env{
		Store:  store,
		Logger: zap.NewNop(),
		Output: io.Discard,
		Sleep:  time.Sleep,
		Now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.Metrics == nil {
		e.Metrics = metrics.New()
	}

	return e
}
