package ack

import (
	"strconv"

	"seller-gateway/internal/models"
	"seller-gateway/pkg/errors"
)

// Responder builds the immediate synchronous acknowledgment envelopes. Pure
// constructors, no I/O; every rejection reason maps to exactly one stable
// (type, code, message) triple so counterparties can key on codes.
type Responder struct{}

// NewResponder creates an ACK/NACK responder.
func NewResponder() *Responder {
	return &Responder{}
}

// BuildAck builds the positive acknowledgment for a received request.
func (r *Responder) BuildAck() *models.AckResponse {
	return &models.AckResponse{
		Message: models.AckMessage{Ack: models.AckStatus{Status: models.StatusACK}},
	}
}

// BuildNack builds the negative acknowledgment carrying the protocol error
// element. Arbitrary errors are folded into the CORE-ERROR bucket so a NACK
// never leaks an internal stack trace.
func (r *Responder) BuildNack(err error) *models.AckResponse {
	gwErr := errors.AsGatewayError(err)
	return &models.AckResponse{
		Message: models.AckMessage{Ack: models.AckStatus{Status: models.StatusNACK}},
		Error: &models.Error{
			Type:    gwErr.Type,
			Code:    strconv.Itoa(gwErr.Code),
			Message: gwErr.Message,
		},
	}
}

// BuildCallbackError builds the error element for an asynchronous callback
// reporting a post-ACK business failure.
func (r *Responder) BuildCallbackError(err error) *models.Error {
	gwErr := errors.AsGatewayError(err)
	return &models.Error{
		Type:    gwErr.Type,
		Code:    strconv.Itoa(gwErr.Code),
		Message: gwErr.Message,
	}
}
