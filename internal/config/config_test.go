package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Protocol: ProtocolConfig{
			SubscriberID:     "seller.example.com",
			UkID:             "uk-1",
			Domain:           "ONDC:RET14",
			PrivateKeyPath:   "/keys/signing_private_key.b64",
			PublicKeyPath:    "/keys/signing_public_key.b64",
			ClockSkewSeconds: 5,
			ValiditySeconds:  300,
		},
		Registry: RegistryConfig{
			URL:             "https://registry.example.org",
			LookupTimeout:   5 * time.Second,
			CacheTTL:        5 * time.Minute,
			ParticipantType: "BPP",
		},
		Callback: CallbackConfig{
			HTTPTimeout:   30 * time.Second,
			MaxConcurrent: 100,
			QueueSize:     1000,
		},
		Retry: RetryConfig{
			CallbackMaxRetries: 3,
			CallbackBackoff:    []int{1, 2, 4, 8, 15},
		},
		TTL: TTLConfig{
			IdempotencyKey: time.Hour,
			RequestTTL:     30,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Protocol(t *testing.T) {
	cfg := validConfig()
	cfg.Protocol.SubscriberID = ""
	assert.ErrorContains(t, cfg.Validate(), "subscriber id is required")

	cfg = validConfig()
	cfg.Protocol.UkID = ""
	assert.ErrorContains(t, cfg.Validate(), "uk id is required")

	cfg = validConfig()
	cfg.Protocol.PrivateKeyPath = ""
	assert.ErrorContains(t, cfg.Validate(), "private key path is required")

	cfg = validConfig()
	cfg.Protocol.ValiditySeconds = 0
	assert.ErrorContains(t, cfg.Validate(), "signature validity")
}

func TestConfig_Validate_Registry(t *testing.T) {
	cfg := validConfig()
	cfg.Registry.URL = ""
	assert.ErrorContains(t, cfg.Validate(), "url is required")

	cfg = validConfig()
	cfg.Registry.CacheTTL = 0
	assert.ErrorContains(t, cfg.Validate(), "cache ttl")
}

func TestConfig_Validate_Callback(t *testing.T) {
	cfg := validConfig()
	cfg.Callback.DLQEnabled = true
	assert.ErrorContains(t, cfg.Validate(), "dlq stream is required")

	cfg = validConfig()
	cfg.Callback.QueueSize = 0
	assert.ErrorContains(t, cfg.Validate(), "queue size")
}

func TestConfig_Validate_Retry(t *testing.T) {
	cfg := validConfig()
	cfg.Retry.CallbackBackoff = []int{1}
	assert.ErrorContains(t, cfg.Validate(), "backoff array length")

	cfg = validConfig()
	cfg.Retry.CallbackBackoff = []int{20, 20, 20}
	assert.ErrorContains(t, cfg.Validate(), "exceeds request TTL")
}

func TestParseBackoffDurations(t *testing.T) {
	assert.Equal(t, []int{1, 2, 4}, parseBackoffDurations("1s,2s,4s"))
	assert.Equal(t, []int{1, 2, 4, 8, 15}, parseBackoffDurations(""))
	assert.Equal(t, []int{1, 2, 4, 8, 15}, parseBackoffDurations("garbage"))
	assert.Equal(t, []int{5, 10}, parseBackoffDurations(" 5s , bad , 10s "))
}

func TestParseDurationWithDefault(t *testing.T) {
	d, err := parseDurationWithDefault("", 10*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)

	d, err = parseDurationWithDefault("30s", 10*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	_, err = parseDurationWithDefault("nope", 10*time.Second)
	assert.Error(t, err)
}
