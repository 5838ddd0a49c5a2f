package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/app"
)

// PaymentApplier is the minimal interface needed by the payment webhook.
type PaymentApplier interface {
	ApplyPaymentEvent(ctx context.Context, in app.PaymentEventInput) (app.PaymentResult, error)
}

// HandlePaymentWebhook returns an HTTP handler for provider payment events.
// Unknown fields are tolerated since providers add them freely.
func HandlePaymentWebhook(svc PaymentApplier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}

		var req webhookRequest
		if !decodeAndValidate(w, r, &req, false) {
			return
		}

		res, err := svc.ApplyPaymentEvent(r.Context(), app.PaymentEventInput{
			IdempotencyKey: req.IdempotencyKey,
			OrderID:        req.OrderID,
			Status:         req.Status,
			Payload:        req.ProviderPayload,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		switch res.Outcome {
		case app.OutcomeProcessed:
			writeJSON(w, http.StatusOK, webhookResponse{
				Message: "Webhook processed",
				OrderID: res.Order.ID,
				Status:  string(res.Order.Status),
			})
		case app.OutcomeOrderNotFound:
			writeJSON(w, http.StatusAccepted, webhookResponse{
				Message:     "Order not found, webhook recorded",
				ResultState: res.ResultState,
			})
		default:
			writeJSON(w, http.StatusOK, webhookResponse{
				Message:     "Webhook already processed",
				ResultState: res.ResultState,
			})
		}
	}
}

type webhookRequest struct {
	IdempotencyKey  string         `json:"idempotency_key" validate:"required,max=255"`
	OrderID         string         `json:"order_id" validate:"required,max=64"`
	Status          string         `json:"status" validate:"required,oneof=paid cancelled"`
	ProviderPayload map[string]any `json:"provider_payload"`
}

type webhookResponse struct {
	Message     string `json:"message"`
	OrderID     string `json:"order_id,omitempty"`
	Status      string `json:"status,omitempty"`
	ResultState string `json:"result_state,omitempty"`
}
