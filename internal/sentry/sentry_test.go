package sentry

import (
	"context"
	"errors"
	"testing"

	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/logger"
	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Disabled(t *testing.T) {
	svc := NewSentryService(config.GetDefaultConfig(), logger.NewNopLogger())
	assert.False(t, svc.IsEnabled())

	ctx := context.Background()
	span, spanCtx := svc.StartMonitoringSpan(ctx, "op", map[string]interface{}{"k": "v"})
	assert.Nil(t, span)
	assert.Equal(t, ctx, spanCtx)
	svc.CaptureException(ctx, errors.New("ignored"))
	assert.True(t, svc.Flush(0))

	var nilService *Service
	assert.False(t, nilService.IsEnabled())
	nilService.CaptureException(ctx, errors.New("ignored"))
}

func TestService_InvalidDSNDisablesReporting(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Sentry.Enabled = true
	cfg.Sentry.DSN = "not a dsn"

	svc := NewSentryService(cfg, logger.NewNopLogger())
	assert.False(t, svc.IsEnabled())
}

func TestService_CaptureException(t *testing.T) {
	var captured []*sentry.Event
	cfg := config.GetDefaultConfig()
	cfg.Sentry.Enabled = true
	cfg.Sentry.DSN = "https://public@sentry.example.test/1"
	cfg.Sentry.SampleRate = 0

	svc := NewSentryService(cfg, logger.NewNopLogger(), WithBeforeSend(func(e *sentry.Event, _ *sentry.EventHint) *sentry.Event {
		captured = append(captured, e)
		return nil
	}))
	require.True(t, svc.IsEnabled())

	svc.CaptureException(context.Background(), nil)
	svc.CaptureException(context.Background(), errors.New("fiscal issuer timed out"))

	require.Len(t, captured, 1)
	assert.Equal(t, "local", captured[0].Environment)
	require.NotEmpty(t, captured[0].Exception)
	assert.Equal(t, "fiscal issuer timed out", captured[0].Exception[0].Value)

	span, spanCtx := svc.StartMonitoringSpan(context.Background(), "fiscal.issue", map[string]interface{}{"charge_id": "chg_1"})
	require.NotNil(t, span)
	assert.Equal(t, "fiscal.issue", span.Op)
	assert.NotNil(t, sentry.SpanFromContext(spanCtx))
	span.Finish()
}
