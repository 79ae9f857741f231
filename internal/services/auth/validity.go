package auth

import (
	"time"

	"seller-gateway/pkg/errors"
)

// ValidateWindow checks the signature validity interval against the current
// time with clock-skew tolerance. Boundaries are inclusive: a request with
// expires == now is still valid, created == now is already valid.
func ValidateWindow(created, expires int64, now time.Time, skew time.Duration) *errors.GatewayError {
	skewSeconds := int64(skew / time.Second)
	nowUnix := now.Unix()

	if created > nowUnix+skewSeconds {
		return errors.NewGatewayError(errors.TypeAuth, errors.CodeCreatedInFuture,
			"invalid created timestamp", "signature not yet valid")
	}
	if expires < nowUnix-skewSeconds {
		return errors.NewGatewayError(errors.TypeAuth, errors.CodeSignatureExpired,
			"signature expired", "validity window has passed")
	}
	return nil
}
