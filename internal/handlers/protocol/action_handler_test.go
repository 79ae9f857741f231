package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seller-gateway/internal/config"
	"seller-gateway/internal/models"
	"seller-gateway/internal/services/audit"
	"seller-gateway/internal/services/idempotency"
	"seller-gateway/pkg/errors"
)

type stubQueue struct {
	mu    sync.Mutex
	tasks []*models.CallbackTask
	err   error
}

func (q *stubQueue) Enqueue(task *models.CallbackTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *stubQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogRequest(ctx context.Context, req *audit.RequestLogParams) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func protocolCfg() config.ProtocolConfig {
	return config.ProtocolConfig{
		SubscriberID:  "seller.example.com",
		SubscriberURI: "https://seller.example.com/protocol",
		Domain:        "ONDC:RET14",
	}
}

func handlerFixture(t *testing.T, action string, queue CallbackEnqueuer, auditor AuditLogger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	idem := idempotency.NewService(idempotency.NewMemoryStorage(), time.Hour, nil, zap.NewNop())
	handler := NewActionHandler(action, idem, queue, auditor, protocolCfg(), 30, zap.NewNop())

	router := gin.New()
	router.POST("/"+action, handler.Handle)
	return router
}

func requestBody(action string) string {
	return fmt.Sprintf(`{
		"context": {
			"domain": "ONDC:RET14",
			"action": %q,
			"bap_id": "buyer-app.example.com",
			"bap_uri": "https://buyer-app.example.com/protocol",
			"transaction_id": "t1",
			"message_id": "m1",
			"timestamp": "2026-08-30T10:00:00Z",
			"ttl": "PT30S"
		},
		"message": {"intent": {}}
	}`, action)
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestActionHandler_AcceptsAndEnqueues(t *testing.T) {
	queue := &stubQueue{}
	router := handlerFixture(t, "search", queue, nil)

	w := postJSON(router, "/search", requestBody("search"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.AckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsACK())

	require.Equal(t, 1, queue.count())
	task := queue.tasks[0]
	assert.Equal(t, "on_search", task.Action)
	assert.Equal(t, "https://buyer-app.example.com/protocol", task.TargetURL)
	assert.Equal(t, "t1", task.TransactionID)
	assert.Equal(t, 30, task.TTLSeconds)
	assert.NotNil(t, task.Request)
}

func TestActionHandler_DuplicateRepliesIdenticallyWithoutSecondEnqueue(t *testing.T) {
	queue := &stubQueue{}
	router := handlerFixture(t, "confirm", queue, nil)

	first := postJSON(router, "/confirm", requestBody("confirm"))
	second := postJSON(router, "/confirm", requestBody("confirm"))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	// Retried delivery never re-triggers the asynchronous work.
	assert.Equal(t, 1, queue.count())
}

func TestActionHandler_UnparseableBodyNacks(t *testing.T) {
	queue := &stubQueue{}
	router := handlerFixture(t, "search", queue, nil)

	w := postJSON(router, "/search", `{not json`)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.AckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsACK())
	assert.Equal(t, "40001", resp.Error.Code)
	assert.Equal(t, 0, queue.count())
}

func TestActionHandler_InvalidContextNacks(t *testing.T) {
	queue := &stubQueue{}
	router := handlerFixture(t, "search", queue, nil)

	w := postJSON(router, "/search", `{"context":{"domain":"ONDC:RET14","action":"search"},"message":{}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.AckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsACK())
	assert.Equal(t, "40002", resp.Error.Code)
	assert.Equal(t, 0, queue.count())
}

func TestActionHandler_ActionMismatchNacks(t *testing.T) {
	queue := &stubQueue{}
	router := handlerFixture(t, "search", queue, nil)

	w := postJSON(router, "/search", requestBody("confirm"))

	var resp models.AckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsACK())
	assert.Equal(t, "40002", resp.Error.Code)
	assert.Equal(t, 0, queue.count())
}

func TestActionHandler_QueueFullNacks(t *testing.T) {
	queue := &stubQueue{err: errors.NewGatewayError(errors.TypeCore, errors.CodeInternal, "callback queue full", "")}
	router := handlerFixture(t, "search", queue, nil)

	w := postJSON(router, "/search", requestBody("search"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.AckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsACK())
	assert.Equal(t, "50000", resp.Error.Code)
}

func TestActionHandler_FailedEnqueueIsNotCached(t *testing.T) {
	queue := &stubQueue{err: errors.NewGatewayError(errors.TypeCore, errors.CodeInternal, "callback queue full", "")}
	gin.SetMode(gin.TestMode)

	idem := idempotency.NewService(idempotency.NewMemoryStorage(), time.Hour, nil, zap.NewNop())
	handler := NewActionHandler("search", idem, queue, nil, protocolCfg(), 30, zap.NewNop())
	router := gin.New()
	router.POST("/search", handler.Handle)

	first := postJSON(router, "/search", requestBody("search"))
	var firstResp models.AckResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	assert.False(t, firstResp.IsACK())

	// Queue recovers; the same message must now be accepted, not replayed
	// as a cached failure.
	queue.err = nil
	second := postJSON(router, "/search", requestBody("search"))
	var secondResp models.AckResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	assert.True(t, secondResp.IsACK())
	assert.Equal(t, 1, queue.count())
}

func TestActionHandler_DefaultTTLWhenAbsent(t *testing.T) {
	queue := &stubQueue{}
	router := handlerFixture(t, "search", queue, nil)

	body := `{
		"context": {
			"domain": "ONDC:RET14",
			"action": "search",
			"bap_uri": "https://buyer-app.example.com/protocol",
			"transaction_id": "t1",
			"message_id": "m1",
			"timestamp": "2026-08-30T10:00:00Z"
		},
		"message": {}
	}`
	w := postJSON(router, "/search", body)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, queue.count())
	assert.Equal(t, 30, queue.tasks[0].TTLSeconds)
}

func TestActionHandler_AuditsVerdicts(t *testing.T) {
	queue := &stubQueue{}
	auditor := new(MockAuditLogger)
	auditor.On("LogRequest", mock.Anything, mock.MatchedBy(func(p *audit.RequestLogParams) bool {
		return p.Action == "search" && p.AckStatus == models.StatusACK && p.TransactionID == "t1"
	})).Return(nil).Once()

	router := handlerFixture(t, "search", queue, auditor)
	w := postJSON(router, "/search", requestBody("search"))

	assert.Equal(t, http.StatusOK, w.Code)
	auditor.AssertExpectations(t)
}

func TestActionHandler_AuditsNackWithCode(t *testing.T) {
	queue := &stubQueue{}
	auditor := new(MockAuditLogger)
	auditor.On("LogRequest", mock.Anything, mock.MatchedBy(func(p *audit.RequestLogParams) bool {
		return p.AckStatus == models.StatusNACK && p.NackCode == "40002"
	})).Return(nil).Once()

	router := handlerFixture(t, "search", queue, auditor)
	postJSON(router, "/search", requestBody("confirm"))

	auditor.AssertExpectations(t)
}

func TestRegisterRoutes_AllActionsMounted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	queue := &stubQueue{}
	idem := idempotency.NewService(idempotency.NewMemoryStorage(), time.Hour, nil, zap.NewNop())

	router := gin.New()
	RegisterRoutes(router.Group("/"), idem, queue, nil, protocolCfg(), 30, zap.NewNop())

	for _, action := range Actions {
		w := postJSON(router, "/"+action, requestBody(action))
		assert.Equal(t, http.StatusOK, w.Code, action)
	}
	assert.Equal(t, len(Actions), queue.count())
}
