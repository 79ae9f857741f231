package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"seller-gateway/internal/config"
	"seller-gateway/internal/models"

	"go.uber.org/zap"
)

// Client calls the network registry's /lookup endpoint to fetch subscriber
// records. All failures are non-fatal to the caller: the resolver converts
// them into a fail-closed authentication rejection.
type Client struct {
	httpClient *http.Client
	config     config.RegistryConfig
	domain     string
	country    string
	city       string
	logger     *zap.Logger
}

// NewClient creates a registry lookup client.
func NewClient(cfg config.RegistryConfig, protocol config.ProtocolConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.LookupTimeout,
		},
		config:  cfg,
		domain:  protocol.Domain,
		country: protocol.Country,
		city:    protocol.City,
		logger:  logger,
	}
}

// Lookup queries the registry for candidate records and returns the entry
// whose ukId matches exactly. Returns (nil, nil) when no usable match
// exists; an error only for transport/shape failures the caller may want
// to log apart.
func (c *Client) Lookup(ctx context.Context, subscriberID, ukID string) (*models.SubscriberRecord, error) {
	if ukID == "" {
		c.logger.Warn("registry lookup called without ukId")
		return nil, nil
	}

	body, err := json.Marshal(models.RegistryLookupRequest{
		SubscriberID: subscriberID,
		UkID:         ukID,
		Domain:       c.domain,
		Country:      c.country,
		City:         c.city,
		Type:         c.config.ParticipantType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lookup request: %w", err)
	}

	url := c.config.URL + "/lookup"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("registry lookup failed",
			zap.String("subscriber_id", subscriberID),
			zap.String("uk_id", ukID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("registry lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("registry lookup returned non-2xx",
			zap.Int("status", resp.StatusCode),
			zap.String("subscriber_id", subscriberID),
			zap.String("uk_id", ukID),
		)
		return nil, fmt.Errorf("registry lookup returned status %d", resp.StatusCode)
	}

	var candidates []models.SubscriberRecord
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		c.logger.Warn("invalid response format from registry",
			zap.String("uk_id", ukID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("registry response is not a record array: %w", err)
	}

	for i := range candidates {
		if candidates[i].UkID != ukID {
			continue
		}
		if candidates[i].SigningPublicKey == "" {
			c.logger.Warn("subscriber found but missing signing_public_key",
				zap.String("subscriber_id", candidates[i].SubscriberID),
				zap.String("uk_id", ukID),
			)
			return nil, nil
		}
		return &candidates[i], nil
	}

	c.logger.Warn("subscriber not found in registry response",
		zap.String("subscriber_id", subscriberID),
		zap.String("uk_id", ukID),
		zap.Int("candidates", len(candidates)),
	)
	return nil, nil
}
