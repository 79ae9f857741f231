package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatewayError_Error(t *testing.T) {
	err := NewGatewayError(TypeAuth, CodeInvalidSignature, "authentication failed", "signature verification failed")
	assert.Equal(t, "[AUTH-ERROR 40106] authentication failed: signature verification failed", err.Error())

	errNoDetails := NewGatewayError(TypeCore, CodeInternal, "internal error", "")
	assert.Equal(t, "[CORE-ERROR 50000] internal error", errNoDetails.Error())
}

func TestGatewayError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := WrapGatewayError(cause, TypeCore, CodeRegistryDown, "registry unavailable", "dependency")

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestAsGatewayError(t *testing.T) {
	gwErr := NewGatewayError(TypeProtocol, CodeMissingHeader, "missing header", "")
	assert.Same(t, gwErr, AsGatewayError(gwErr))

	plain := fmt.Errorf("boom")
	wrapped := AsGatewayError(plain)
	assert.Equal(t, TypeCore, wrapped.Type)
	assert.Equal(t, CodeInternal, wrapped.Code)
	assert.Equal(t, plain, errors.Unwrap(wrapped))
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid body", NewGatewayError(TypeProtocol, CodeInvalidBody, "invalid body", ""), 400},
		{"missing context", NewGatewayError(TypeProtocol, CodeMissingContext, "missing context", ""), 400},
		{"missing header", NewGatewayError(TypeProtocol, CodeMissingHeader, "missing header", ""), 401},
		{"malformed header", NewGatewayError(TypeProtocol, CodeMalformedHeader, "malformed header", ""), 401},
		{"created in future", NewGatewayError(TypeAuth, CodeCreatedInFuture, "invalid created", ""), 401},
		{"expired", NewGatewayError(TypeAuth, CodeSignatureExpired, "signature expired", ""), 401},
		{"key not found", NewGatewayError(TypeAuth, CodeKeyNotFound, "public key not found", ""), 401},
		{"invalid signature", NewGatewayError(TypeAuth, CodeInvalidSignature, "invalid signature", ""), 401},
		{"digest mismatch", NewGatewayError(TypeAuth, CodeDigestMismatch, "digest mismatch", ""), 401},
		{"registry down", NewGatewayError(TypeCore, CodeRegistryDown, "registry unavailable", ""), 503},
		{"internal", NewGatewayError(TypeCore, CodeInternal, "internal error", ""), 500},
		{"plain error", fmt.Errorf("boom"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatus(tt.err))
		})
	}
}

func TestGatewayError_WithRetryable(t *testing.T) {
	err := NewGatewayError(TypeCore, CodeRegistryDown, "registry unavailable", "").WithRetryable(true)
	assert.True(t, err.Retryable)
}
