package protocol

import (
	"context"
	"net/http"
	"time"

	"seller-gateway/internal/config"
	"seller-gateway/internal/middleware"
	"seller-gateway/internal/models"
	"seller-gateway/internal/services/ack"
	"seller-gateway/internal/services/audit"
	"seller-gateway/internal/utils"
	"seller-gateway/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActionHandler is the generic inbound handler shared by every protocol
// action. It validates the envelope, answers synchronously with ACK or
// NACK, and hands the asynchronous half to the callback queue. Retried
// deliveries of the same message replay the stored acknowledgment byte for
// byte without re-triggering business logic.
type ActionHandler struct {
	action      string
	idempotency IdempotencyService
	queue       CallbackEnqueuer
	auditor     AuditLogger
	responder   *ack.Responder
	protocol    config.ProtocolConfig
	defaultTTL  int
	logger      *zap.Logger
}

// NewActionHandler creates the handler for one inbound action. auditor may
// be nil.
func NewActionHandler(
	action string,
	idempotency IdempotencyService,
	queue CallbackEnqueuer,
	auditor AuditLogger,
	protocolCfg config.ProtocolConfig,
	defaultTTLSeconds int,
	logger *zap.Logger,
) *ActionHandler {
	return &ActionHandler{
		action:      action,
		idempotency: idempotency,
		queue:       queue,
		auditor:     auditor,
		responder:   ack.NewResponder(),
		protocol:    protocolCfg,
		defaultTTL:  defaultTTLSeconds,
		logger:      logger,
	}
}

// Handle processes one POST /<action> request.
func (h *ActionHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	traceID := utils.ExtractTraceID(utils.EnsureTraceparent(c.GetHeader("traceparent")))

	var req models.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("unparseable request body",
			zap.String("action", h.action),
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		h.respondNack(c, nil, traceID, errors.NewGatewayError(errors.TypeProtocol, errors.CodeInvalidBody,
			"invalid request body", err.Error()))
		return
	}

	if err := req.Context.Validate(); err != nil {
		h.logger.Warn("invalid request context",
			zap.String("action", h.action),
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		h.respondNack(c, &req, traceID, errors.NewGatewayError(errors.TypeProtocol, errors.CodeMissingContext,
			"invalid context", err.Error()))
		return
	}

	if req.Context.Action != h.action {
		h.respondNack(c, &req, traceID, errors.NewGatewayError(errors.TypeProtocol, errors.CodeMissingContext,
			"invalid context", "context.action does not match endpoint"))
		return
	}

	key := models.IdempotencyKey{
		TransactionID: req.Context.TransactionID,
		MessageID:     req.Context.MessageID,
		Action:        h.action,
	}

	responseBytes, replayed, err := h.idempotency.GetOrCompute(ctx, key, func() (*models.AckResponse, error) {
		if err := h.queue.Enqueue(h.buildTask(&req)); err != nil {
			return nil, err
		}
		return h.responder.BuildAck(), nil
	})
	if err != nil {
		h.logger.Error("request processing failed",
			zap.String("action", h.action),
			zap.String("transaction_id", req.Context.TransactionID),
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		h.respondNack(c, &req, traceID, err)
		return
	}

	if replayed {
		h.logger.Info("duplicate request replayed",
			zap.String("action", h.action),
			zap.String("transaction_id", req.Context.TransactionID),
			zap.String("message_id", req.Context.MessageID),
		)
	} else {
		h.audit(&req, middleware.GetSubscriberID(c), models.StatusACK, "", traceID)
	}

	c.Data(http.StatusOK, "application/json", responseBytes)
}

// buildTask captures the inbound request for asynchronous processing. The
// callback answers to the caller's advertised URI with the on_<action>
// counterpart.
func (h *ActionHandler) buildTask(req *models.Request) *models.CallbackTask {
	ttlSeconds := h.defaultTTL
	if req.Context.TTL != "" {
		if d, err := models.ParseISODuration(req.Context.TTL); err == nil && d > 0 {
			ttlSeconds = int(d.Seconds())
		}
	}

	return &models.CallbackTask{
		TaskID:        uuid.New().String(),
		TargetURL:     req.Context.BapURI,
		Action:        models.CallbackAction(h.action),
		TransactionID: req.Context.TransactionID,
		MessageID:     req.Context.MessageID,
		Request:       req,
		TTLSeconds:    ttlSeconds,
	}
}

// respondNack answers in-envelope: the rejection rides a well-formed
// acknowledgment at HTTP 200, so counterparties always parse one shape.
func (h *ActionHandler) respondNack(c *gin.Context, req *models.Request, traceID string, err error) {
	nack := h.responder.BuildNack(err)
	if req != nil {
		nackCode := ""
		if nack.Error != nil {
			nackCode = nack.Error.Code
		}
		h.audit(req, middleware.GetSubscriberID(c), models.StatusNACK, nackCode, traceID)
	}
	c.JSON(http.StatusOK, nack)
}

func (h *ActionHandler) audit(req *models.Request, subscriberID, ackStatus, nackCode, traceID string) {
	if h.auditor == nil {
		return
	}
	logCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = h.auditor.LogRequest(logCtx, &audit.RequestLogParams{
		TransactionID:  req.Context.TransactionID,
		MessageID:      req.Context.MessageID,
		Action:         h.action,
		SubscriberID:   subscriberID,
		RequestPayload: req.Message,
		AckStatus:      ackStatus,
		NackCode:       nackCode,
		TraceID:        traceID,
	})
}
