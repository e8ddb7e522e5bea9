package worker

import (
	"testing"

	"github.com/flexprice/collections/internal/config"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/sentry"
	"github.com/flexprice/collections/internal/temporal/interceptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterceptors(t *testing.T) {
	log := logger.NewNopLogger()

	t.Run("logging only when sentry is disabled", func(t *testing.T) {
		got := Interceptors(log, sentry.NewSentryService(config.GetDefaultConfig(), log))
		require.Len(t, got, 1)
		assert.IsType(t, &interceptor.LoggingInterceptor{}, got[0])
	})

	t.Run("sentry next to logging when enabled", func(t *testing.T) {
		cfg := config.GetDefaultConfig()
		cfg.Sentry.Enabled = true
		cfg.Sentry.DSN = "https://public@sentry.example.test/1"

		got := Interceptors(log, sentry.NewSentryService(cfg, log))
		require.Len(t, got, 2)
		assert.IsType(t, &interceptor.LoggingInterceptor{}, got[0])
		assert.IsType(t, &interceptor.SentryInterceptor{}, got[1])
	})
}
