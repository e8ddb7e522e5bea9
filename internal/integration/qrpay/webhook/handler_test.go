package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) RefreshIntentFromProvider(ctx context.Context, intentID string) error {
	args := m.Called(ctx, intentID)
	return args.Error(0)
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandler_HandleWebhookEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.paid","data":{"id":"pi_001","status":"paid","external_reference":"fbi_123"}}`)

	t.Run("valid signature refreshes the intent", func(t *testing.T) {
		refresher := new(mockRefresher)
		refresher.On("RefreshIntentFromProvider", mock.Anything, "fbi_123").Return(nil).Once()
		h := NewHandler("whsec", refresher, logger.NewNopLogger())

		require.NoError(t, h.HandleWebhookEvent(context.Background(), payload, sign("whsec", payload)))
		refresher.AssertExpectations(t)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		refresher := new(mockRefresher)
		h := NewHandler("whsec", refresher, logger.NewNopLogger())

		err := h.HandleWebhookEvent(context.Background(), payload, sign("other", payload))
		require.Error(t, err)
		assert.True(t, ierr.IsPermissionDenied(err))
		refresher.AssertNotCalled(t, "RefreshIntentFromProvider", mock.Anything, mock.Anything)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		refresher := new(mockRefresher)
		h := NewHandler("", refresher, logger.NewNopLogger())

		err := h.HandleWebhookEvent(context.Background(), []byte(`{"id":"evt_2","type":"payment_intent.created","data":{"id":"pi_2"}}`), "")
		require.NoError(t, err)
		refresher.AssertNotCalled(t, "RefreshIntentFromProvider", mock.Anything, mock.Anything)
	})

	t.Run("garbled payload", func(t *testing.T) {
		h := NewHandler("", new(mockRefresher), logger.NewNopLogger())
		err := h.HandleWebhookEvent(context.Background(), []byte(`{`), "")
		assert.True(t, ierr.IsValidation(err))
	})
}
