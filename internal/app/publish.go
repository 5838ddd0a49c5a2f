package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/events"
)

// publish runs after commit; a failure is logged and never undoes the change.
func publish(ctx context.Context, p events.Publisher, logger *zap.Logger, evt events.Event) {
	if err := p.Publish(ctx, evt); err != nil {
		logger.Warn("publish event failed",
			zap.String("type", string(evt.Type)),
			zap.String("product_id", evt.ProductID),
			zap.Error(err),
		)
	}
}
