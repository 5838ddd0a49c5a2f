package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/domain"
)

// HoldPromoter is the minimal interface needed to turn a hold into an order.
type HoldPromoter interface {
	PromoteHold(ctx context.Context, holdID string) (domain.Order, error)
}

// HandleCreateOrder returns an HTTP handler that promotes a hold to an order.
func HandleCreateOrder(svc HoldPromoter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}

		var req createOrderRequest
		if !decodeAndValidate(w, r, &req, true) {
			return
		}

		order, err := svc.PromoteHold(r.Context(), req.HoldID)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, orderResponse{
			OrderID:   order.ID,
			Status:    string(order.Status),
			ProductID: order.ProductID,
			Quantity:  order.Quantity,
		})
	}
}

type createOrderRequest struct {
	HoldID string `json:"hold_id" validate:"required,uuid"`
}

type orderResponse struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"qty"`
}
