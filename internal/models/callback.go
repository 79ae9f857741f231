package models

import (
	"fmt"
)

// CallbackTask is one unit of asynchronous delivery work: the final result
// of a protocol action, to be signed and POSTed to the counterparty's
// callback URL after the synchronous ACK has already been returned.
type CallbackTask struct {
	TaskID        string
	TargetURL     string
	Action        string
	TransactionID string
	MessageID     string
	// Request is the inbound request the callback answers. The payload is
	// composed from it on the worker side, after the ACK has been sent.
	Request *Request
	// Payload, when already set, is delivered as-is.
	Payload    *Response
	TTLSeconds int
}

// DispatchResult captures the outcome of a single delivery attempt. The
// dispatcher never returns transport failures as errors; they land here.
type DispatchResult struct {
	Success    bool
	StatusCode int
	Err        error
}

// IdempotencyKey deduplicates retried inbound deliveries of the same
// logical message.
type IdempotencyKey struct {
	TransactionID string
	MessageID     string
	Action        string
}

// String renders the composite key in its storage form.
func (k IdempotencyKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.TransactionID, k.MessageID, k.Action)
}
