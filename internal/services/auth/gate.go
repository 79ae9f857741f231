package auth

import (
	"context"
	"encoding/json"
	"time"

	"seller-gateway/internal/models"
	"seller-gateway/pkg/errors"

	"go.uber.org/zap"
)

// SubscriberResolver resolves a counterparty's registry record. A nil
// record without error means the key could not be found; the gate treats
// resolver errors the same way (fail-closed).
type SubscriberResolver interface {
	Resolve(ctx context.Context, subscriberID, ukID string) (*models.SubscriberRecord, error)
}

// Gate authenticates inbound requests. Each stage is a hard gate that
// short-circuits to a rejection; authentication never reaches business
// logic with a partial verdict.
type Gate struct {
	resolver      SubscriberResolver
	clockSkew     time.Duration
	devModeBypass bool
	logger        *zap.Logger
	now           func() time.Time
}

// NewGate creates an authentication gate. devModeBypass must stay false in
// any default deployment; it is only honored together with the per-request
// dev-mode header.
func NewGate(resolver SubscriberResolver, clockSkew time.Duration, devModeBypass bool, logger *zap.Logger) *Gate {
	return &Gate{
		resolver:      resolver,
		clockSkew:     clockSkew,
		devModeBypass: devModeBypass,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock overrides the gate's clock. Test hook.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Authenticate runs the staged verification of an inbound request:
// header present, header parsed, timestamps valid, key resolved, digest
// matches, signature valid. rawBody must be the exact bytes as received.
func (g *Gate) Authenticate(ctx context.Context, authHeader string, devModeRequested bool, rawBody []byte) models.Verdict {
	if g.devModeBypass && devModeRequested {
		return g.bypassVerdict(rawBody)
	}

	if authHeader == "" {
		return models.Reject(errors.NewGatewayError(errors.TypeProtocol, errors.CodeMissingHeader,
			"missing Authorization header", ""))
	}

	params, err := ParseAuthHeader(authHeader)
	if err != nil {
		g.logger.Warn("malformed authorization header", zap.Error(err))
		return models.Reject(errors.NewGatewayError(errors.TypeProtocol, errors.CodeMalformedHeader,
			"invalid Authorization header format", err.Error()))
	}

	if windowErr := ValidateWindow(params.Created, params.Expires, g.now(), g.clockSkew); windowErr != nil {
		g.logger.Warn("signature outside validity window",
			zap.Int64("created", params.Created),
			zap.Int64("expires", params.Expires),
			zap.String("subscriber_id", params.SubscriberID),
		)
		return models.Reject(windowErr)
	}

	record, err := g.resolver.Resolve(ctx, params.SubscriberID, params.UkID)
	if err != nil {
		g.logger.Warn("registry resolution failed",
			zap.String("subscriber_id", params.SubscriberID),
			zap.String("uk_id", params.UkID),
			zap.Error(err),
		)
	}
	if record == nil || !record.IsUsable(g.now()) {
		return models.Reject(errors.NewGatewayError(errors.TypeAuth, errors.CodeKeyNotFound,
			"public key not found for ukId", params.UkID))
	}

	if Digest(rawBody) != params.Digest {
		g.logger.Warn("digest mismatch",
			zap.String("subscriber_id", params.SubscriberID),
			zap.String("transaction_hint", params.UkID),
		)
		return models.Reject(errors.NewGatewayError(errors.TypeAuth, errors.CodeDigestMismatch,
			"digest mismatch", "request body does not match signed digest"))
	}

	publicKey, err := DecodePublicKey(record.SigningPublicKey)
	if err != nil {
		g.logger.Warn("registry record carries malformed public key",
			zap.String("subscriber_id", params.SubscriberID), zap.Error(err))
		return models.Reject(errors.NewGatewayError(errors.TypeAuth, errors.CodeKeyNotFound,
			"public key not found for ukId", "registry public key is malformed"))
	}

	signingString := SigningString(params.Created, params.Expires, params.Digest)
	valid, err := Verify([]byte(signingString), params.Signature, publicKey)
	if err != nil {
		// Malformed signature encoding: rejected like a mismatch, logged apart.
		g.logger.Warn("malformed signature in authorization header",
			zap.String("subscriber_id", params.SubscriberID), zap.Error(err))
		return models.Reject(errors.NewGatewayError(errors.TypeAuth, errors.CodeInvalidSignature,
			"invalid signature", "signature is not valid base64"))
	}
	if !valid {
		g.logger.Warn("signature verification failed",
			zap.String("subscriber_id", params.SubscriberID),
			zap.String("uk_id", params.UkID),
		)
		return models.Reject(errors.NewGatewayError(errors.TypeAuth, errors.CodeInvalidSignature,
			"invalid signature", "signature verification failed"))
	}

	return models.Accept(record.SubscriberID)
}

// bypassVerdict trusts the unauthenticated identity claim in the body.
// Only reachable when the explicit non-default config switch is on AND the
// request asked for dev mode.
func (g *Gate) bypassVerdict(rawBody []byte) models.Verdict {
	g.logger.Info("dev mode enabled, skipping signature verification")

	var req models.Request
	if err := json.Unmarshal(rawBody, &req); err != nil || req.Context.BapID == "" {
		return models.Accept("dev-mode-bap")
	}
	return models.Accept(req.Context.BapID)
}
