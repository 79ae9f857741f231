package errors

import (
	"fmt"
)

// Error taxonomy types used in protocol error envelopes.
// Counterparties key retry/backoff logic on Type + Code, so both are stable.
const (
	TypeProtocol = "PROTOCOL-ERROR"
	TypeAuth     = "AUTH-ERROR"
	TypeDomain   = "DOMAIN-ERROR"
	TypeCore     = "CORE-ERROR"
)

// Stable error codes. Never renumber.
const (
	CodeInvalidBody      = 40001
	CodeMissingContext   = 40002
	CodeMissingHeader    = 40101
	CodeMalformedHeader  = 40102
	CodeCreatedInFuture  = 40103
	CodeSignatureExpired = 40104
	CodeKeyNotFound      = 40105
	CodeInvalidSignature = 40106
	CodeDigestMismatch   = 40107
	CodeInternal         = 50000
	CodeRegistryDown     = 50001
	CodeItemUnavailable  = 60001
	CodeCallbackFailed   = 60002
)

type GatewayError struct {
	Type      string
	Code      int
	Message   string
	Details   string
	Retryable bool
	Cause     error
}

func (e *GatewayError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s %d] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s %d] %s", e.Type, e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

func (e *GatewayError) WithRetryable(retryable bool) *GatewayError {
	e.Retryable = retryable
	return e
}

func (e *GatewayError) WithCause(cause error) *GatewayError {
	e.Cause = cause
	return e
}

func NewGatewayError(errType string, code int, message, details string) *GatewayError {
	return &GatewayError{
		Type:    errType,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func WrapGatewayError(err error, errType string, code int, message, details string) *GatewayError {
	return &GatewayError{
		Type:    errType,
		Code:    code,
		Message: message,
		Details: details,
		Cause:   err,
	}
}

func IsGatewayError(err error) bool {
	_, ok := err.(*GatewayError)
	return ok
}

// AsGatewayError returns the typed error, or wraps err as an internal error
// so callers always have a Type/Code pair to put on the wire.
func AsGatewayError(err error) *GatewayError {
	if gwErr, ok := err.(*GatewayError); ok {
		return gwErr
	}
	return WrapGatewayError(err, TypeCore, CodeInternal, "internal error", err.Error())
}

// GetHTTPStatus maps an error to the transport-level status. Protocol NACKs
// are sent with 200 and an in-body error; this mapping applies only when the
// request is rejected before a protocol envelope can be produced.
func GetHTTPStatus(err error) int {
	gwErr, ok := err.(*GatewayError)
	if !ok {
		return 500
	}

	switch gwErr.Code {
	case CodeInvalidBody, CodeMissingContext:
		return 400
	case CodeMissingHeader, CodeMalformedHeader, CodeCreatedInFuture,
		CodeSignatureExpired, CodeKeyNotFound, CodeInvalidSignature, CodeDigestMismatch:
		return 401
	case CodeRegistryDown:
		return 503
	default:
		return 500
	}
}
