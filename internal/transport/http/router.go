package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services bundles what the router dispatches to.
type Services struct {
	Holds    HoldCreator
	Orders   HoldPromoter
	Payments PaymentApplier
	Products ProductReader
}

// RouterConfig carries the non-service router inputs.
type RouterConfig struct {
	Logger      *zap.Logger
	CORSOrigins []string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// HealthChecks are run by /health, keyed by dependency name.
	HealthChecks map[string]HealthCheck
}

// NewRouter wires every route plus the logging, recovery and CORS middleware.
func NewRouter(svc Services, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/health", HandleHealth(cfg.HealthChecks, logger))
	if cfg.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle("/holds", HandleCreateHold(svc.Holds, logger))
	mux.Handle("/orders", HandleCreateOrder(svc.Orders, logger))
	mux.Handle("/payments/webhook", HandlePaymentWebhook(svc.Payments, logger))
	mux.Handle("/products", HandleListProducts(svc.Products, logger))
	mux.Handle("/products/", HandleGetProduct(svc.Products, logger))
	mux.Handle("/", NotFoundHandler())

	return RequestLogger(Recoverer(CORS(cfg.CORSOrigins, mux), logger), logger)
}
