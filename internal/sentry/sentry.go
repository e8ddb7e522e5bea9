package sentry

import (
	"context"
	"time"

	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/logger"
	"github.com/getsentry/sentry-go"
)

// Service reports failures to Sentry. A disabled service is a no-op, so callers
// never need to check the configuration themselves.
type Service struct {
	cfg    *config.Configuration
	logger *logger.Logger
}

// Option adjusts the client options before the SDK is initialized.
type Option func(*sentry.ClientOptions)

// NewSentryService initializes the global Sentry client when sentry.enabled is set.
func NewSentryService(cfg *config.Configuration, log *logger.Logger, opts ...Option) *Service {
	s := &Service{cfg: cfg, logger: log}
	if !cfg.Sentry.Enabled {
		return s
	}

	options := sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		EnableTracing:    cfg.Sentry.SampleRate > 0,
		TracesSampleRate: cfg.Sentry.SampleRate,
		AttachStacktrace: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		log.Errorw("failed to initialize sentry, error reporting disabled", "error", err)
		s.cfg = nil
		return s
	}
	log.Infow("sentry initialized", "environment", cfg.Sentry.Environment)
	return s
}

// WithBeforeSend installs a hook that sees every event before it is sent.
// Returning nil drops the event.
func WithBeforeSend(fn func(*sentry.Event, *sentry.EventHint) *sentry.Event) Option {
	return func(o *sentry.ClientOptions) {
		o.BeforeSend = fn
	}
}

func (s *Service) IsEnabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Sentry.Enabled
}

// CaptureException reports err on the hub of ctx, falling back to the global hub.
func (s *Service) CaptureException(ctx context.Context, err error) {
	if !s.IsEnabled() || err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}

// StartMonitoringSpan starts a span for operation. It returns a nil span and the
// unchanged context when the service is disabled.
func (s *Service) StartMonitoringSpan(ctx context.Context, operation string, data map[string]interface{}) (*sentry.Span, context.Context) {
	if !s.IsEnabled() {
		return nil, ctx
	}
	span := sentry.StartSpan(ctx, operation)
	for k, v := range data {
		span.SetData(k, v)
	}
	return span, span.Context()
}

// Flush waits for buffered events to be delivered.
func (s *Service) Flush(timeout time.Duration) bool {
	if !s.IsEnabled() {
		return true
	}
	return sentry.Flush(timeout)
}
