package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Smoke probe for a running gateway instance. Drives the happy path end to
// end: health, a dev-mode search request, a byte-identical duplicate replay,
// and a registry cache flush. Requires PROTOCOL_DEV_MODE_BYPASS=true on the
// target so requests pass the signature gate without a registry.
type smokeProbe struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func newSmokeProbe(baseURL string) *smokeProbe {
	logger, _ := zap.NewDevelopment()
	return &smokeProbe{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (p *smokeProbe) checkHealth() error {
	resp, err := p.httpClient.Get(p.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	p.logger.Info("health ok")
	return nil
}

func (p *smokeProbe) searchRequest() ([]byte, error) {
	body := map[string]interface{}{
		"context": map[string]interface{}{
			"domain":         "ONDC:RET14",
			"country":        "IND",
			"city":           "std:080",
			"action":         "search",
			"core_version":   "1.2.0",
			"bap_id":         "smoke-probe.example.com",
			"bap_uri":        "https://smoke-probe.example.com/protocol",
			"transaction_id": uuid.NewString(),
			"message_id":     uuid.NewString(),
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
			"ttl":            "PT30S",
		},
		"message": map[string]interface{}{
			"intent": map[string]interface{}{
				"item": map[string]interface{}{
					"descriptor": map[string]interface{}{"name": "coffee"},
				},
			},
		},
	}
	return json.Marshal(body)
}

func (p *smokeProbe) postSearch(payload []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Dev-Mode", "true")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (p *smokeProbe) checkSearchAndReplay() error {
	payload, err := p.searchRequest()
	if err != nil {
		return err
	}

	first, err := p.postSearch(payload)
	if err != nil {
		return err
	}
	var ack struct {
		Message struct {
			Ack struct {
				Status string `json:"status"`
			} `json:"ack"`
		} `json:"message"`
	}
	if err := json.Unmarshal(first, &ack); err != nil {
		return fmt.Errorf("unparseable ack: %w", err)
	}
	if ack.Message.Ack.Status != "ACK" {
		return fmt.Errorf("expected ACK, got %s: %s", ack.Message.Ack.Status, first)
	}
	p.logger.Info("search acknowledged")

	second, err := p.postSearch(payload)
	if err != nil {
		return err
	}
	if !bytes.Equal(first, second) {
		return fmt.Errorf("duplicate replay differs from original response")
	}
	p.logger.Info("duplicate replayed byte-identically")
	return nil
}

func (p *smokeProbe) checkCacheFlush() error {
	resp, err := p.httpClient.Post(p.baseURL+"/internal/registry/invalidate", "application/json", bytes.NewReader([]byte("{}")))
	if err != nil {
		return fmt.Errorf("invalidate request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("invalidate returned %d", resp.StatusCode)
	}
	p.logger.Info("registry cache flushed")
	return nil
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "gateway base URL")
	flag.Parse()

	probe := newSmokeProbe(*baseURL)
	defer probe.logger.Sync()

	steps := []struct {
		name string
		run  func() error
	}{
		{"health", probe.checkHealth},
		{"search + replay", probe.checkSearchAndReplay},
		{"cache flush", probe.checkCacheFlush},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			probe.logger.Error("smoke step failed", zap.String("step", step.name), zap.Error(err))
			os.Exit(1)
		}
	}
	probe.logger.Info("smoke run passed")
}
