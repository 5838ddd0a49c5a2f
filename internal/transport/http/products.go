package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/app"
)

// ProductReader is the minimal interface needed for product reads.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (app.ProductView, error)
	ListProducts(ctx context.Context) ([]app.ProductView, error)
}

// HandleListProducts returns an HTTP handler for GET /products.
func HandleListProducts(svc ProductReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}

		views, err := svc.ListProducts(r.Context())
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		resp := make([]productResponse, 0, len(views))
		for _, v := range views {
			resp = append(resp, toProductResponse(v))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleGetProduct returns an HTTP handler for GET /products/{id}.
func HandleGetProduct(svc ProductReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}

		id, ok := parseProductPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if uuid.Validate(id) != nil {
			writeError(w, http.StatusUnprocessableEntity, codeInvalidID, "invalid id")
			return
		}

		view, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toProductResponse(view))
	}
}

func parseProductPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "products" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type productResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Price          string `json:"price"`
	TotalStock     int    `json:"total_stock"`
	AvailableStock int    `json:"available_stock"`
}

func toProductResponse(v app.ProductView) productResponse {
	return productResponse{
		ID:             v.ID,
		Name:           v.Name,
		Price:          v.Price.StringFixed(2),
		TotalStock:     v.TotalStock,
		AvailableStock: v.AvailableStock,
	}
}
