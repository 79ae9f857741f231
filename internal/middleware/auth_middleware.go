package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"seller-gateway/internal/models"
	"seller-gateway/internal/services/ack"
	"seller-gateway/internal/services/metrics"
	"seller-gateway/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// SubscriberContextKey holds the verified caller identity for handlers.
	SubscriberContextKey = "subscriber_id"
	// DevModeHeader requests the signature bypass. Honored only when the
	// bypass is enabled in configuration.
	DevModeHeader = "X-Dev-Mode"
)

// Authenticator decides whether a request may pass, based on its
// Authorization header and the exact body bytes received.
type Authenticator interface {
	Authenticate(ctx context.Context, authHeader string, devModeRequested bool, rawBody []byte) models.Verdict
}

type TrustedProxyChecker interface {
	IsTrustedProxy(remoteAddr string) bool
}

type SignatureAuthConfig struct {
	// Realm is advertised in the WWW-Authenticate challenge. Conventionally
	// the gateway's own subscriber ID.
	Realm               string
	TrustedProxyChecker TrustedProxyChecker
	Metrics             *metrics.Service
}

// SignatureAuth verifies the detached signature on every inbound request.
// Transport-level rejections carry the negative acknowledgment envelope in
// the body so callers can key on stable error codes. The request body is
// consumed for verification and restored for downstream binding.
func SignatureAuth(gate Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return SignatureAuthWithConfig(gate, logger, SignatureAuthConfig{})
}

func SignatureAuthWithConfig(gate Authenticator, logger *zap.Logger, config SignatureAuthConfig) gin.HandlerFunc {
	responder := ack.NewResponder()
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			reject(c, logger, responder, config,
				errors.NewGatewayError(errors.TypeProtocol, errors.CodeInvalidBody, "unreadable request body", ""))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		devModeRequested := strings.EqualFold(c.GetHeader(DevModeHeader), "true")
		verdict := gate.Authenticate(c.Request.Context(), c.GetHeader("Authorization"), devModeRequested, body)

		if config.Metrics != nil {
			outcome := "accepted"
			if !verdict.Accepted {
				outcome = "rejected"
			}
			config.Metrics.RecordAuthVerdict(outcome)
		}

		if !verdict.Accepted {
			logger.Warn("request rejected by signature gate",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", extractClientIP(c, config.TrustedProxyChecker)),
				zap.Int("error_code", verdict.Reason.Code),
				zap.Error(verdict.Reason),
			)
			reject(c, logger, responder, config, verdict.Reason)
			return
		}

		c.Set(SubscriberContextKey, verdict.SubscriberID)
		c.Next()
	}
}

func reject(c *gin.Context, logger *zap.Logger, responder *ack.Responder, config SignatureAuthConfig, reason *errors.GatewayError) {
	status := errors.GetHTTPStatus(reason)
	if status == http.StatusUnauthorized && config.Realm != "" {
		c.Header("WWW-Authenticate", fmt.Sprintf(`Signature realm="%s",headers="(created) (expires) digest"`, config.Realm))
	}
	c.AbortWithStatusJSON(status, responder.BuildNack(reason))
}

// extractClientIP resolves the true client address, honoring forwarding
// headers only when the immediate peer is a trusted proxy.
func extractClientIP(c *gin.Context, proxyChecker TrustedProxyChecker) string {
	remoteAddr := c.Request.RemoteAddr
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	if proxyChecker != nil && proxyChecker.IsTrustedProxy(host) {
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
		if xrip := c.GetHeader("X-Real-IP"); xrip != "" {
			return xrip
		}
	}

	return host
}

// GetSubscriberID returns the verified caller identity set by SignatureAuth,
// or "" when the request did not pass through it.
func GetSubscriberID(c *gin.Context) string {
	id, exists := c.Get(SubscriberContextKey)
	if !exists {
		return ""
	}
	subscriberID, ok := id.(string)
	if !ok {
		return ""
	}
	return subscriberID
}
