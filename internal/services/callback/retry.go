package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"seller-gateway/internal/config"
	"seller-gateway/internal/models"
	"seller-gateway/internal/services/audit"
	"seller-gateway/internal/services/metrics"
	"seller-gateway/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TaskDispatcher performs a single delivery attempt.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, task *models.CallbackTask) models.DispatchResult
}

// StreamPublisher appends entries to a Redis stream. Used for the dead
// letter queue.
type StreamPublisher interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// DeliveryAuditor records callback delivery attempts.
type DeliveryAuditor interface {
	LogCallbackDelivery(ctx context.Context, req *audit.CallbackDeliveryLogParams) error
}

// RetryService drives at-least-once delivery of callback tasks: it retries
// failed attempts on the configured backoff schedule, bounded by the
// request's TTL, and parks exhausted tasks on the dead letter stream so a
// delivery failure is never silently dropped.
type RetryService struct {
	dispatcher     TaskDispatcher
	config         config.RetryConfig
	callbackConfig config.CallbackConfig
	stream         StreamPublisher
	auditor        DeliveryAuditor
	metrics        *metrics.Service
	logger         *zap.Logger
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewRetryService creates a retry service. stream, auditor and metrics may
// be nil.
func NewRetryService(
	dispatcher TaskDispatcher,
	retryConfig config.RetryConfig,
	callbackConfig config.CallbackConfig,
	stream StreamPublisher,
	auditor DeliveryAuditor,
	m *metrics.Service,
	logger *zap.Logger,
) *RetryService {
	return &RetryService{
		dispatcher:     dispatcher,
		config:         retryConfig,
		callbackConfig: callbackConfig,
		stream:         stream,
		auditor:        auditor,
		metrics:        m,
		logger:         logger,
		sleep:          sleepContext,
	}
}

// WithSleep overrides the inter-attempt wait. Test hook.
func (r *RetryService) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *RetryService {
	r.sleep = sleep
	return r
}

// Deliver attempts delivery of the task until it succeeds, the attempt
// budget is spent, or the remaining TTL cannot cover the next backoff.
func (r *RetryService) Deliver(ctx context.Context, task *models.CallbackTask) error {
	deadline := time.Time{}
	if task.TTLSeconds > 0 {
		deadline = time.Now().Add(time.Duration(task.TTLSeconds) * time.Second)
	}

	var lastErr error
	attempt := 0

	for attempt < r.config.CallbackMaxRetries {
		attempt++

		start := time.Now()
		result := r.dispatcher.Dispatch(ctx, task)
		r.logAttempt(task, attempt, result)

		if result.Success {
			if r.metrics != nil {
				r.metrics.RecordCallbackDelivered(task.Action, time.Since(start))
			}
			return nil
		}
		lastErr = result.Err

		if attempt >= r.config.CallbackMaxRetries {
			break
		}

		backoff := r.backoffFor(attempt)
		if !deadline.IsZero() && time.Now().Add(backoff).After(deadline) {
			r.logger.Warn("request ttl exhausted, abandoning retries",
				zap.String("task_id", task.TaskID),
				zap.Int("attempt", attempt),
			)
			break
		}

		if r.metrics != nil {
			r.metrics.RecordCallbackRetry()
		}
		r.logger.Info("callback failed, retrying",
			zap.String("task_id", task.TaskID),
			zap.String("action", task.Action),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(result.Err),
		)

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}
	}

	if r.metrics != nil {
		r.metrics.RecordCallbackFailed(task.Action)
	}

	if r.callbackConfig.DLQEnabled && r.stream != nil {
		if err := r.parkInDLQ(ctx, task, attempt, lastErr); err != nil {
			r.logger.Error("failed to park callback in dead letter queue",
				zap.String("task_id", task.TaskID),
				zap.Error(err),
			)
		}
	}

	return errors.WrapGatewayError(lastErr, errors.TypeDomain, errors.CodeCallbackFailed,
		"callback delivery failed", fmt.Sprintf("failed after %d attempts", attempt))
}

// backoffFor returns the wait before the next attempt. The schedule is
// validated at config load to cover CallbackMaxRetries entries.
func (r *RetryService) backoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx < len(r.config.CallbackBackoff) {
		return time.Duration(r.config.CallbackBackoff[idx]) * time.Second
	}
	return time.Duration(r.config.CallbackBackoff[len(r.config.CallbackBackoff)-1]) * time.Second
}

func (r *RetryService) logAttempt(task *models.CallbackTask, attempt int, result models.DispatchResult) {
	if r.auditor == nil {
		return
	}
	status := "success"
	errorMsg := ""
	if !result.Success {
		status = "failed"
		if result.Err != nil {
			errorMsg = result.Err.Error()
		}
	}
	logCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = r.auditor.LogCallbackDelivery(logCtx, &audit.CallbackDeliveryLogParams{
		TaskID:      task.TaskID,
		CallbackURL: JoinURL(task.TargetURL, task.Action),
		AttemptNo:   attempt,
		Status:      status,
		Error:       errorMsg,
	})
}

func (r *RetryService) parkInDLQ(ctx context.Context, task *models.CallbackTask, attempts int, lastErr error) error {
	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal dlq payload: %w", err)
	}

	errText := "unknown"
	if lastErr != nil {
		errText = lastErr.Error()
	}

	args := &redis.XAddArgs{
		Stream: r.callbackConfig.DLQStream,
		Values: map[string]interface{}{
			"task_id":        task.TaskID,
			"target_url":     task.TargetURL,
			"action":         task.Action,
			"transaction_id": task.TransactionID,
			"message_id":     task.MessageID,
			"payload":        string(payloadJSON),
			"error":          errText,
			"attempts":       attempts,
			"timestamp":      time.Now().Unix(),
		},
	}

	if err := r.stream.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("dlq publish failed: %w", err)
	}

	r.logger.Info("callback parked in dead letter queue",
		zap.String("task_id", task.TaskID),
		zap.String("dlq_stream", r.callbackConfig.DLQStream),
	)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
