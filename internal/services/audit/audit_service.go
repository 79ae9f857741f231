package audit

import (
	"context"
	"database/sql"
	"time"

	"seller-gateway/internal/repository/audit"

	"go.uber.org/zap"
)

// Repository interface for audit operations
type Repository interface {
	StoreRequestLog(ctx context.Context, log *audit.RequestLog) error
	StoreCallbackDeliveryLog(ctx context.Context, log *audit.CallbackDeliveryLog) error
}

// Service provides audit logging functionality. Audit writes are
// best-effort: a storage failure is logged but never fails the request
// path that triggered it.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new audit service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// LogRequest records a received protocol request and its synchronous verdict.
func (s *Service) LogRequest(ctx context.Context, req *RequestLogParams) error {
	log := &audit.RequestLog{
		TransactionID:  req.TransactionID,
		MessageID:      req.MessageID,
		Action:         req.Action,
		SubscriberID:   req.SubscriberID,
		RequestPayload: req.RequestPayload,
		AckStatus:      req.AckStatus,
		NackCode:       req.NackCode,
		TraceID:        req.TraceID,
		CreatedAt:      time.Now(),
	}

	if err := s.repo.StoreRequestLog(ctx, log); err != nil {
		s.logger.Error("failed to log request", zap.Error(err))
		return err
	}

	return nil
}

// LogCallbackDelivery records a callback delivery attempt.
func (s *Service) LogCallbackDelivery(ctx context.Context, req *CallbackDeliveryLogParams) error {
	log := &audit.CallbackDeliveryLog{
		TaskID:      req.TaskID,
		CallbackURL: req.CallbackURL,
		AttemptNo:   req.AttemptNo,
		Status:      req.Status,
		Error:       sql.NullString{String: req.Error, Valid: req.Error != ""},
		CreatedAt:   time.Now(),
	}

	if err := s.repo.StoreCallbackDeliveryLog(ctx, log); err != nil {
		s.logger.Error("failed to log callback delivery", zap.Error(err))
		return err
	}

	return nil
}

// RequestLogParams contains parameters for request logging
type RequestLogParams struct {
	TransactionID  string
	MessageID      string
	Action         string
	SubscriberID   string
	RequestPayload map[string]interface{}
	AckStatus      string
	NackCode       string
	TraceID        string
}

// CallbackDeliveryLogParams contains parameters for callback delivery logging
type CallbackDeliveryLogParams struct {
	TaskID      string
	CallbackURL string
	AttemptNo   int
	Status      string
	Error       string
}
