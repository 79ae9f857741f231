package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"seller-gateway/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestLog is one received protocol request and its synchronous outcome.
type RequestLog struct {
	RequestID      string
	TransactionID  string
	MessageID      string
	Action         string
	SubscriberID   string
	RequestPayload map[string]interface{}
	AckStatus      string
	NackCode       string
	TraceID        string
	CreatedAt      time.Time
}

// CallbackDeliveryLog is one delivery attempt of an asynchronous callback.
type CallbackDeliveryLog struct {
	TaskID      string
	CallbackURL string
	AttemptNo   int
	Status      string
	Error       sql.NullString
	CreatedAt   time.Time
}

// DBClient interface for database operations
type DBClient interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository handles audit log storage
type Repository struct {
	db     DBClient
	logger *zap.Logger
}

// NewRepository creates a new audit repository
func NewRepository(db DBClient, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// StoreRequestLog stores a request log entry
// Note: created_at is set by the database (DEFAULT now())
func (r *Repository) StoreRequestLog(ctx context.Context, log *RequestLog) error {
	if log.RequestID == "" {
		log.RequestID = uuid.New().String()
	}

	payloadJSON, err := json.Marshal(log.RequestPayload)
	if err != nil {
		return errors.WrapGatewayError(err, errors.TypeCore, errors.CodeInternal,
			"audit log serialization failed", "failed to marshal request payload")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	query := `INSERT INTO audit.request_logs (
		request_id, transaction_id, message_id, action, subscriber_id,
		request_payload, ack_status, nack_code, trace_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		log.RequestID,
		log.TransactionID,
		log.MessageID,
		log.Action,
		sqlNullString(log.SubscriberID),
		payloadJSON,
		log.AckStatus,
		sqlNullString(log.NackCode),
		log.TraceID,
	)

	if err != nil {
		r.logger.Error("failed to store request log", zap.Error(err))
		return errors.WrapGatewayError(err, errors.TypeCore, errors.CodeInternal,
			"audit log storage failed", "database error")
	}

	r.logger.Debug("audit request stored",
		zap.String("request_id", log.RequestID),
		zap.String("action", log.Action),
		zap.String("trace_id", log.TraceID),
	)

	return nil
}

// StoreCallbackDeliveryLog stores a callback delivery log entry
// Note: caller must guarantee monotonic attempt numbers
func (r *Repository) StoreCallbackDeliveryLog(ctx context.Context, log *CallbackDeliveryLog) error {
	if log.TaskID == "" {
		log.TaskID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	query := `INSERT INTO audit.callback_delivery_logs (
		task_id, callback_url, attempt_no, status, error
	) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		log.TaskID,
		log.CallbackURL,
		log.AttemptNo,
		log.Status,
		log.Error,
	)

	if err != nil {
		r.logger.Error("failed to store callback delivery log", zap.Error(err))
		return errors.WrapGatewayError(err, errors.TypeCore, errors.CodeInternal,
			"callback delivery log storage failed", "database error")
	}

	r.logger.Debug("audit callback_delivery stored",
		zap.String("task_id", log.TaskID),
		zap.String("callback_url", log.CallbackURL),
		zap.Int("attempt_no", log.AttemptNo),
		zap.String("status", log.Status),
	)

	return nil
}

func sqlNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
