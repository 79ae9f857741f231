package models

import (
	"seller-gateway/pkg/errors"
)

// Verdict is the outcome of inbound request authentication. Exactly one of
// the two shapes holds: accepted with a verified subscriber identity, or
// rejected with the gate's reason.
type Verdict struct {
	Accepted     bool
	SubscriberID string
	Reason       *errors.GatewayError
}

// Accept builds an accepting verdict for the verified subscriber.
func Accept(subscriberID string) Verdict {
	return Verdict{Accepted: true, SubscriberID: subscriberID}
}

// Reject builds a rejecting verdict carrying the gate's reason.
func Reject(reason *errors.GatewayError) Verdict {
	return Verdict{Reason: reason}
}
