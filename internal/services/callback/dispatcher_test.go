package callback

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seller-gateway/internal/config"
	"seller-gateway/internal/models"
)

type stubSigner struct {
	header string
	err    error
	signed [][]byte
}

func (s *stubSigner) AuthHeader(payload []byte) (string, error) {
	s.signed = append(s.signed, payload)
	return s.header, s.err
}

func sampleTask(targetURL string) *models.CallbackTask {
	return &models.CallbackTask{
		TaskID:        "task-1",
		TargetURL:     targetURL,
		Action:        "on_search",
		TransactionID: "t1",
		MessageID:     "m1",
		Payload: &models.Response{
			Context: models.Context{
				Domain:        "ONDC:RET14",
				Action:        "on_search",
				TransactionID: "t1",
				MessageID:     "m1",
			},
			Message: map[string]interface{}{"catalog": map[string]interface{}{}},
		},
		TTLSeconds: 30,
	}
}

func TestDispatcher_DeliversSignedPayload(t *testing.T) {
	var gotAuth string
	var gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	signer := &stubSigner{header: `Signature keyId="bpp|uk|ed25519"`}
	dispatcher := NewDispatcher(config.CallbackConfig{HTTPTimeout: 2 * time.Second}, signer, zap.NewNop())

	result := dispatcher.Dispatch(context.Background(), sampleTask(server.URL))

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, `Signature keyId="bpp|uk|ed25519"`, gotAuth)
	assert.Equal(t, "/on_search", gotPath)

	var payload models.Response
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "on_search", payload.Context.Action)

	// The signature covers the exact bytes sent on the wire.
	require.Len(t, signer.signed, 1)
	assert.Equal(t, gotBody, signer.signed[0])
}

func TestDispatcher_Non2xxIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(config.CallbackConfig{HTTPTimeout: 2 * time.Second}, &stubSigner{}, zap.NewNop())
	result := dispatcher.Dispatch(context.Background(), sampleTask(server.URL))

	assert.False(t, result.Success)
	assert.Equal(t, http.StatusBadGateway, result.StatusCode)
	assert.Error(t, result.Err)
}

func TestDispatcher_ConnectionFailure(t *testing.T) {
	dispatcher := NewDispatcher(config.CallbackConfig{HTTPTimeout: time.Second}, &stubSigner{}, zap.NewNop())
	result := dispatcher.Dispatch(context.Background(), sampleTask("http://127.0.0.1:1"))

	assert.False(t, result.Success)
	assert.Error(t, result.Err)
}

func TestDispatcher_SignerFailure(t *testing.T) {
	dispatcher := NewDispatcher(config.CallbackConfig{HTTPTimeout: time.Second}, &stubSigner{err: assert.AnError}, zap.NewNop())
	result := dispatcher.Dispatch(context.Background(), sampleTask("http://example.com"))

	assert.False(t, result.Success)
	assert.Error(t, result.Err)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://bap.example.com/on_search", JoinURL("https://bap.example.com", "on_search"))
	assert.Equal(t, "https://bap.example.com/on_search", JoinURL("https://bap.example.com/", "on_search"))
	assert.Equal(t, "https://bap.example.com/beckn/on_confirm", JoinURL("https://bap.example.com/beckn/", "/on_confirm"))
}
