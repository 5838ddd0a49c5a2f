package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/app"
	"github.com/cimillas/flash-sale/internal/domain"
)

func TestHandleGetProduct(t *testing.T) {
	t.Parallel()

	svc := stubProducts{views: []app.ProductView{{
		Product:        domain.Product{ID: testProductID, Name: "Sneakers", Price: decimal.RequireFromString("99.5"), TotalStock: 10},
		AvailableStock: 4,
	}}}
	handler := HandleGetProduct(svc, zap.NewNop())

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/"+testProductID, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got productResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, productResponse{ID: testProductID, Name: "Sneakers", Price: "99.50", TotalStock: 10, AvailableStock: 4}, got)
	})

	t.Run("unknown", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/"+testHoldID, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/abc", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("nested path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/"+testProductID+"/extra", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleListProducts(t *testing.T) {
	t.Parallel()

	svc := stubProducts{views: []app.ProductView{
		{Product: domain.Product{ID: "a", Name: "A", Price: decimal.NewFromInt(1), TotalStock: 1}, AvailableStock: 1},
		{Product: domain.Product{ID: "b", Name: "B", Price: decimal.NewFromInt(2), TotalStock: 2}, AvailableStock: 0},
	}}
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()

	HandleListProducts(svc, zap.NewNop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []productResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "2.00", got[1].Price)
	assert.Equal(t, 0, got[1].AvailableStock)
}

type stubProducts struct {
	views []app.ProductView
}

func (s stubProducts) GetProduct(_ context.Context, id string) (app.ProductView, error) {
	for _, v := range s.views {
		if v.ID == id {
			return v, nil
		}
	}
	return app.ProductView{}, domain.ErrProductNotFound
}

func (s stubProducts) ListProducts(context.Context) ([]app.ProductView, error) {
	return s.views, nil
}
