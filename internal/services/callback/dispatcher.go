package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"seller-gateway/internal/config"
	"seller-gateway/internal/models"

	"go.uber.org/zap"
)

// PayloadSigner produces the Authorization header for an outbound payload.
type PayloadSigner interface {
	AuthHeader(payload []byte) (string, error)
}

// Dispatcher performs a single signed delivery attempt of a callback task.
// It never returns an error: transport and protocol failures are folded into
// the DispatchResult so the retry layer owns all failure policy.
type Dispatcher struct {
	httpClient *http.Client
	signer     PayloadSigner
	logger     *zap.Logger
}

// NewDispatcher creates a callback dispatcher.
func NewDispatcher(cfg config.CallbackConfig, signer PayloadSigner, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		signer:     signer,
		logger:     logger,
	}
}

// Dispatch signs the task payload and POSTs it to the counterparty's
// callback endpoint. One attempt, bounded by the HTTP client timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, task *models.CallbackTask) models.DispatchResult {
	body, err := json.Marshal(task.Payload)
	if err != nil {
		return models.DispatchResult{Err: fmt.Errorf("failed to marshal callback payload: %w", err)}
	}

	endpoint := JoinURL(task.TargetURL, task.Action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.DispatchResult{Err: fmt.Errorf("failed to build callback request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	authHeader, err := d.signer.AuthHeader(body)
	if err != nil {
		return models.DispatchResult{Err: fmt.Errorf("failed to sign callback: %w", err)}
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return models.DispatchResult{Err: fmt.Errorf("callback request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.DispatchResult{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("callback rejected with status %d", resp.StatusCode),
		}
	}

	d.logger.Debug("callback delivered",
		zap.String("task_id", task.TaskID),
		zap.String("action", task.Action),
		zap.String("endpoint", endpoint),
	)

	return models.DispatchResult{Success: true, StatusCode: resp.StatusCode}
}

// JoinURL appends the action path segment to a callback base URL without
// doubling slashes.
func JoinURL(base, action string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(action, "/")
}
