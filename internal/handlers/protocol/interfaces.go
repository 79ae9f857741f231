package protocol

import (
	"context"

	"seller-gateway/internal/models"
	"seller-gateway/internal/services/audit"
)

// Processor supplies the business half of an action: given the inbound
// request, it composes the message body of the matching on_<action>
// callback. Processors run on the callback workers, never on the
// synchronous request path.
type Processor interface {
	Process(ctx context.Context, req *models.Request) (map[string]interface{}, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, req *models.Request) (map[string]interface{}, error)

func (f ProcessorFunc) Process(ctx context.Context, req *models.Request) (map[string]interface{}, error) {
	return f(ctx, req)
}

// IdempotencyService deduplicates retried inbound requests.
type IdempotencyService interface {
	GetOrCompute(ctx context.Context, key models.IdempotencyKey, compute func() (*models.AckResponse, error)) ([]byte, bool, error)
}

// CallbackEnqueuer hands delivery work to the asynchronous worker pool.
type CallbackEnqueuer interface {
	Enqueue(task *models.CallbackTask) error
}

// AuditLogger records received requests and their synchronous verdicts.
type AuditLogger interface {
	LogRequest(ctx context.Context, req *audit.RequestLogParams) error
}
