package protocol

import (
	"context"
	"fmt"
	"time"

	"seller-gateway/internal/config"
	"seller-gateway/internal/models"
	"seller-gateway/internal/services/ack"
	"seller-gateway/internal/services/callback"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline is the worker-side half of an action: it runs the registered
// processor for the inbound request, composes the on_<action> envelope and
// hands it to the retry service for delivery. Business failures after the
// ACK become error callbacks, never dropped messages.
type Pipeline struct {
	processors map[string]Processor
	delivery   callback.TaskDeliverer
	responder  *ack.Responder
	protocol   config.ProtocolConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewPipeline creates the callback composition pipeline. processors is
// keyed by inbound action name.
func NewPipeline(processors map[string]Processor, delivery callback.TaskDeliverer, protocolCfg config.ProtocolConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		processors: processors,
		delivery:   delivery,
		responder:  ack.NewResponder(),
		protocol:   protocolCfg,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the pipeline clock. Test hook.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Deliver composes the callback payload for the task and delivers it.
// Tasks carrying a prebuilt payload skip composition.
func (p *Pipeline) Deliver(ctx context.Context, task *models.CallbackTask) error {
	if task.Payload == nil {
		if task.Request == nil {
			return fmt.Errorf("callback task %s has neither payload nor request", task.TaskID)
		}
		task.Payload = p.compose(ctx, task.Request)
	}
	return p.delivery.Deliver(ctx, task)
}

func (p *Pipeline) compose(ctx context.Context, req *models.Request) *models.Response {
	callbackCtx := p.callbackContext(&req.Context)

	processor, ok := p.processors[req.Context.Action]
	if !ok {
		p.logger.Error("no processor registered for action", zap.String("action", req.Context.Action))
		return &models.Response{
			Context: callbackCtx,
			Error: p.responder.BuildCallbackError(fmt.Errorf("no processor for action %s",
				req.Context.Action)),
		}
	}

	message, err := processor.Process(ctx, req)
	if err != nil {
		p.logger.Warn("processor failed, sending error callback",
			zap.String("action", req.Context.Action),
			zap.String("transaction_id", req.Context.TransactionID),
			zap.Error(err),
		)
		return &models.Response{
			Context: callbackCtx,
			Error:   p.responder.BuildCallbackError(err),
		}
	}

	return &models.Response{
		Context: callbackCtx,
		Message: message,
	}
}

// callbackContext derives the on_<action> context: same transaction, fresh
// message identity and timestamp, this gateway's identity filled in.
func (p *Pipeline) callbackContext(inbound *models.Context) models.Context {
	out := *inbound
	out.Action = models.CallbackAction(inbound.Action)
	out.MessageID = uuid.New().String()
	out.Timestamp = p.now().UTC()
	out.BppID = p.protocol.SubscriberID
	out.BppURI = p.protocol.SubscriberURI
	return out
}
