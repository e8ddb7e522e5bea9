package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
)

// IntentRefresher reloads a fallback intent from the provider.
type IntentRefresher interface {
	RefreshIntentFromProvider(ctx context.Context, intentID string) error
}

// Handler turns provider notifications into intent refreshes. Notifications are
// only a hint: the intent status is always read back from the provider.
type Handler struct {
	secret    string
	refresher IntentRefresher
	logger    *logger.Logger
}

func NewHandler(secret string, refresher IntentRefresher, logger *logger.Logger) *Handler {
	return &Handler{secret: secret, refresher: refresher, logger: logger}
}

// VerifySignature checks the HMAC-SHA256 of payload. An empty secret disables the check.
func (h *Handler) VerifySignature(payload []byte, signature string) error {
	if h.secret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ierr.NewError("invalid webhook signature").
			WithHint("Webhook signature does not match").
			Mark(ierr.ErrPermissionDenied)
	}
	return nil
}

// HandleWebhookEvent verifies and dispatches one notification.
func (h *Handler) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	if err := h.VerifySignature(payload, signature); err != nil {
		h.logger.Warnw("rejected payment intent webhook", "error", err)
		return err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid webhook payload").
			Mark(ierr.ErrValidation)
	}

	h.logger.Infow("processing payment intent webhook",
		"event_id", event.ID,
		"event_type", event.Type,
		"provider_reference", event.Data.ID,
		"intent_id", event.Data.ExternalReference,
	)

	switch event.Type {
	case EventIntentPaid, EventIntentExpired, EventIntentCanceled:
	default:
		h.logger.Infow("ignoring payment intent webhook", "event_type", event.Type)
		return nil
	}

	if event.Data.ExternalReference == "" {
		return ierr.NewError("webhook without intent reference").
			WithHint("Webhook data must carry external_reference").
			Mark(ierr.ErrValidation)
	}
	return h.refresher.RefreshIntentFromProvider(ctx, event.Data.ExternalReference)
}
