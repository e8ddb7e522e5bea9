package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/flexprice/collections/internal/config"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/sentry"
	"github.com/flexprice/collections/internal/types"
	sentrygo "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *gin.Engine {
	log := logger.NewNopLogger()
	return newEngineWithSentry(sentry.NewSentryService(config.GetDefaultConfig(), log))
}

func newEngineWithSentry(sentryService *sentry.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewNopLogger()
	r := gin.New()
	r.Use(RequestContextMiddleware(), LoggingMiddleware(log), ErrorHandler(log, sentryService, false))
	return r
}

func TestErrorHandler_MapsMarkedErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		hint   string
	}{
		{
			name:   "not found",
			err:    ierr.NewError("charge chg_1 not found").WithHint("Charge not found").Mark(ierr.ErrNotFound),
			status: http.StatusNotFound,
			hint:   "Charge not found",
		},
		{
			name:   "validation",
			err:    ierr.NewError("bad").WithHint("File name is required").Mark(ierr.ErrValidation),
			status: http.StatusBadRequest,
			hint:   "File name is required",
		},
		{
			name:   "invalid operation",
			err:    ierr.NewError("paid").WithHint("Charge is not pending").Mark(ierr.ErrInvalidOperation),
			status: http.StatusBadRequest,
			hint:   "Charge is not pending",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine()
			r.GET("/x", func(c *gin.Context) { _ = c.Error(tt.err) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.hint)
			assert.NotContains(t, w.Body.String(), "internal_error")
		})
	}
}

func TestRequestContextMiddleware(t *testing.T) {
	r := newEngine()
	var requestID, actor, agency string
	r.GET("/x", func(c *gin.Context) {
		ctx := c.Request.Context()
		requestID = types.GetRequestID(ctx)
		actor = types.GetActor(ctx)
		agency = types.GetAgencyID(ctx)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(types.HeaderActor, "ops@agency")
	req.Header.Set(types.HeaderAgencyID, "agency_sur")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Header().Get(types.HeaderRequestID))
	assert.Equal(t, "ops@agency", actor)
	assert.Equal(t, "agency_sur", agency)
}

func TestErrorHandler_ReportsServerErrorsToSentry(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentrygo.Event
	)
	cfg := config.GetDefaultConfig()
	cfg.Sentry.Enabled = true
	cfg.Sentry.DSN = "https://public@sentry.example.test/1"
	svc := sentry.NewSentryService(cfg, logger.NewNopLogger(), sentry.WithBeforeSend(
		func(event *sentrygo.Event, _ *sentrygo.EventHint) *sentrygo.Event {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
			return nil
		},
	))
	require.True(t, svc.IsEnabled())

	r := newEngineWithSentry(svc)
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(ierr.NewError("issuer unreachable").Mark(ierr.ErrHTTPClient))
	})
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(ierr.NewError("charge chg_1 not found").Mark(ierr.ErrNotFound))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	require.GreaterOrEqual(t, w.Code, http.StatusInternalServerError)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	var messages []string
	for _, ex := range events[0].Exception {
		messages = append(messages, ex.Value)
	}
	assert.Contains(t, strings.Join(messages, "\n"), "issuer unreachable")
}
