package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Protocol ProtocolConfig
	Registry RegistryConfig
	Callback CallbackConfig
	Retry    RetryConfig
	TTL      TTLConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port              int
	Host              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	TrustedProxyCIDRs []string
}

type PostgresConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	DB                    string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
}

// ProtocolConfig carries the gateway's own network identity and signing
// material locations.
type ProtocolConfig struct {
	SubscriberID     string
	SubscriberURI    string
	ProviderName     string
	UkID             string
	Domain           string
	Country          string
	City             string
	PrivateKeyPath   string
	PublicKeyPath    string
	ClockSkewSeconds int
	ValiditySeconds  int // lifetime of outbound signatures (created..expires)
	DevModeBypass    bool
}

type RegistryConfig struct {
	URL             string
	LookupTimeout   time.Duration
	CacheTTL        time.Duration
	ParticipantType string
}

type CallbackConfig struct {
	HTTPTimeout   time.Duration
	MaxConcurrent int
	QueueSize     int
	DLQStream     string
	DLQEnabled    bool
}

type RetryConfig struct {
	CallbackMaxRetries int
	CallbackBackoff    []int // backoff durations in seconds, indexed by attempt
}

type TTLConfig struct {
	IdempotencyKey time.Duration
	RequestTTL     int // default protocol request TTL in seconds
}

type LoggingConfig struct {
	Level    string
	Encoding string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "10s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("POSTGRES_CONNECTION_MAX_LIFETIME", "1h")
	viper.SetDefault("REGISTRY_LOOKUP_TIMEOUT", "5s")
	viper.SetDefault("REGISTRY_CACHE_TTL", "5m")
	viper.SetDefault("REGISTRY_PARTICIPANT_TYPE", "BPP")
	viper.SetDefault("PROTOCOL_CLOCK_SKEW_SECONDS", 5)
	viper.SetDefault("PROTOCOL_SIGNATURE_VALIDITY_SECONDS", 300)
	viper.SetDefault("PROTOCOL_CITY", "std:080")
	viper.SetDefault("PROTOCOL_COUNTRY", "IND")
	viper.SetDefault("IDEMPOTENCY_KEY_TTL", "1h")
	viper.SetDefault("REQUEST_TTL_SECONDS", 30)
	viper.SetDefault("CALLBACK_HTTP_TIMEOUT", "30s")
	viper.SetDefault("CALLBACK_MAX_CONCURRENT", 100)
	viper.SetDefault("CALLBACK_QUEUE_SIZE", 1000)
	viper.SetDefault("CALLBACK_MAX_RETRIES", 3)
	viper.SetDefault("CALLBACK_BACKOFF", "1s,2s,4s,8s,15s")

	readTimeout, err := parseDurationWithDefault(viper.GetString("SERVER_READ_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := parseDurationWithDefault(viper.GetString("SERVER_WRITE_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	connMaxLifetime, _ := parseDurationWithDefault(viper.GetString("POSTGRES_CONNECTION_MAX_LIFETIME"), time.Hour)
	lookupTimeout, _ := parseDurationWithDefault(viper.GetString("REGISTRY_LOOKUP_TIMEOUT"), 5*time.Second)
	registryCacheTTL, _ := parseDurationWithDefault(viper.GetString("REGISTRY_CACHE_TTL"), 5*time.Minute)
	idempotencyTTL, _ := parseDurationWithDefault(viper.GetString("IDEMPOTENCY_KEY_TTL"), time.Hour)
	callbackTimeout, _ := parseDurationWithDefault(viper.GetString("CALLBACK_HTTP_TIMEOUT"), 30*time.Second)

	cfg := &Config{
		Server: ServerConfig{
			Port:              viper.GetInt("SERVER_PORT"),
			Host:              viper.GetString("SERVER_HOST"),
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			TrustedProxyCIDRs: splitNonEmpty(viper.GetString("SERVER_TRUSTED_PROXY_CIDRS")),
		},
		Postgres: PostgresConfig{
			Host:                  viper.GetString("POSTGRES_HOST"),
			Port:                  viper.GetInt("POSTGRES_PORT"),
			User:                  viper.GetString("POSTGRES_USER"),
			Password:              viper.GetString("POSTGRES_PASSWORD"),
			DB:                    viper.GetString("POSTGRES_DB"),
			SSLMode:               viper.GetString("POSTGRES_SSL_MODE"),
			MaxConnections:        viper.GetInt("POSTGRES_MAX_CONNECTIONS"),
			MaxIdleConnections:    viper.GetInt("POSTGRES_MAX_IDLE_CONNECTIONS"),
			ConnectionMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Host:         viper.GetString("REDIS_HOST"),
			Port:         viper.GetInt("REDIS_PORT"),
			Password:     viper.GetString("REDIS_PASSWORD"),
			DB:           viper.GetInt("REDIS_DB"),
			KeyPrefix:    viper.GetString("REDIS_KEY_PREFIX"),
			PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
		Protocol: ProtocolConfig{
			SubscriberID:     viper.GetString("PROTOCOL_SUBSCRIBER_ID"),
			SubscriberURI:    viper.GetString("PROTOCOL_SUBSCRIBER_URI"),
			ProviderName:     viper.GetString("PROTOCOL_PROVIDER_NAME"),
			UkID:             viper.GetString("PROTOCOL_UK_ID"),
			Domain:           viper.GetString("PROTOCOL_DOMAIN"),
			Country:          viper.GetString("PROTOCOL_COUNTRY"),
			City:             viper.GetString("PROTOCOL_CITY"),
			PrivateKeyPath:   viper.GetString("PROTOCOL_PRIVATE_KEY_PATH"),
			PublicKeyPath:    viper.GetString("PROTOCOL_PUBLIC_KEY_PATH"),
			ClockSkewSeconds: viper.GetInt("PROTOCOL_CLOCK_SKEW_SECONDS"),
			ValiditySeconds:  viper.GetInt("PROTOCOL_SIGNATURE_VALIDITY_SECONDS"),
			DevModeBypass:    viper.GetBool("PROTOCOL_DEV_MODE_BYPASS"),
		},
		Registry: RegistryConfig{
			URL:             viper.GetString("REGISTRY_URL"),
			LookupTimeout:   lookupTimeout,
			CacheTTL:        registryCacheTTL,
			ParticipantType: viper.GetString("REGISTRY_PARTICIPANT_TYPE"),
		},
		Callback: CallbackConfig{
			HTTPTimeout:   callbackTimeout,
			MaxConcurrent: viper.GetInt("CALLBACK_MAX_CONCURRENT"),
			QueueSize:     viper.GetInt("CALLBACK_QUEUE_SIZE"),
			DLQStream:     viper.GetString("CALLBACK_DLQ_STREAM"),
			DLQEnabled:    viper.GetBool("CALLBACK_DLQ_ENABLED"),
		},
		Retry: RetryConfig{
			CallbackMaxRetries: viper.GetInt("CALLBACK_MAX_RETRIES"),
			CallbackBackoff:    parseBackoffDurations(viper.GetString("CALLBACK_BACKOFF")),
		},
		TTL: TTLConfig{
			IdempotencyKey: idempotencyTTL,
			RequestTTL:     viper.GetInt("REQUEST_TTL_SECONDS"),
		},
		Logging: LoggingConfig{
			Level:    viper.GetString("LOG_LEVEL"),
			Encoding: viper.GetString("LOG_ENCODING"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.validateProtocol(); err != nil {
		return fmt.Errorf("protocol config: %w", err)
	}
	if err := c.validateRegistry(); err != nil {
		return fmt.Errorf("registry config: %w", err)
	}
	if err := c.validateRedis(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}
	if err := c.validateCallback(); err != nil {
		return fmt.Errorf("callback config: %w", err)
	}
	if err := c.validateRetry(); err != nil {
		return fmt.Errorf("retry config: %w", err)
	}
	return nil
}

func (c *Config) validateProtocol() error {
	if c.Protocol.SubscriberID == "" {
		return fmt.Errorf("subscriber id is required")
	}
	if c.Protocol.UkID == "" {
		return fmt.Errorf("uk id is required")
	}
	if c.Protocol.PrivateKeyPath == "" {
		return fmt.Errorf("private key path is required")
	}
	if c.Protocol.PublicKeyPath == "" {
		return fmt.Errorf("public key path is required")
	}
	if c.Protocol.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.Protocol.ValiditySeconds <= 0 {
		return fmt.Errorf("signature validity must be greater than 0")
	}
	if c.Protocol.ClockSkewSeconds < 0 {
		return fmt.Errorf("clock skew must not be negative")
	}
	return nil
}

func (c *Config) validateRegistry() error {
	if c.Registry.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Registry.LookupTimeout <= 0 {
		return fmt.Errorf("lookup timeout must be greater than 0")
	}
	if c.Registry.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be greater than 0")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Redis.Port == 0 {
		return fmt.Errorf("port is required")
	}
	return nil
}

func (c *Config) validateCallback() error {
	if c.Callback.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be greater than 0")
	}
	if c.Callback.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be greater than 0")
	}
	if c.Callback.QueueSize <= 0 {
		return fmt.Errorf("queue size must be greater than 0")
	}
	if c.Callback.DLQEnabled && c.Callback.DLQStream == "" {
		return fmt.Errorf("dlq stream is required when dlq is enabled")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.CallbackMaxRetries <= 0 {
		return fmt.Errorf("callback max retries must be greater than 0")
	}
	if len(c.Retry.CallbackBackoff) < c.Retry.CallbackMaxRetries {
		return fmt.Errorf("callback backoff array length (%d) must be >= max retries (%d)",
			len(c.Retry.CallbackBackoff), c.Retry.CallbackMaxRetries)
	}
	totalBackoff := 0
	for _, b := range c.Retry.CallbackBackoff[:c.Retry.CallbackMaxRetries] {
		totalBackoff += b
	}
	if c.TTL.RequestTTL <= 0 {
		return fmt.Errorf("request ttl must be greater than 0")
	}
	if totalBackoff > c.TTL.RequestTTL {
		return fmt.Errorf("callback retry backoff total (%ds) exceeds request TTL (%ds)", totalBackoff, c.TTL.RequestTTL)
	}
	return nil
}

func parseBackoffDurations(backoffStr string) []int {
	if backoffStr == "" {
		return []int{1, 2, 4, 8, 15}
	}
	parts := strings.Split(backoffStr, ",")
	durations := make([]int, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		durations = append(durations, int(d.Seconds()))
	}
	if len(durations) == 0 {
		return []int{1, 2, 4, 8, 15}
	}
	return durations
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseDurationWithDefault(s string, defaultVal time.Duration) (time.Duration, error) {
	if s == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(s)
}
