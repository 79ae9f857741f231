package models

import (
	"time"
)

// Subscriber status values used by the network registry.
const (
	SubscriberStatusSubscribed   = "SUBSCRIBED"
	SubscriberStatusInitiated    = "INITIATED"
	SubscriberStatusUnsubscribed = "UNSUBSCRIBED"
)

// SubscriberRecord is the registry's view of a network participant. The
// gateway only ever holds read-only cached copies of these.
type SubscriberRecord struct {
	SubscriberID        string    `json:"subscriber_id"`
	SubscriberURL       string    `json:"subscriber_url,omitempty"`
	UkID                string    `json:"ukId"`
	SigningPublicKey    string    `json:"signing_public_key"`
	EncryptionPublicKey string    `json:"encr_public_key,omitempty"`
	Status              string    `json:"status,omitempty"`
	Type                string    `json:"type,omitempty"`
	Domain              string    `json:"domain,omitempty"`
	City                string    `json:"city,omitempty"`
	Country             string    `json:"country,omitempty"`
	ValidFrom           time.Time `json:"valid_from,omitempty"`
	ValidUntil          time.Time `json:"valid_until,omitempty"`
}

// IsUsable reports whether the record may back signature verification at the
// given instant: it must carry a signing key, be in SUBSCRIBED state, and be
// inside its validity window. Registries that omit status or window fields
// get the permissive reading for the omitted field only.
func (r *SubscriberRecord) IsUsable(now time.Time) bool {
	if r.SigningPublicKey == "" {
		return false
	}
	if r.Status != "" && r.Status != SubscriberStatusSubscribed {
		return false
	}
	if !r.ValidFrom.IsZero() && now.Before(r.ValidFrom) {
		return false
	}
	if !r.ValidUntil.IsZero() && now.After(r.ValidUntil) {
		return false
	}
	return true
}

// RegistryLookupRequest is the POST body sent to the registry /lookup
// endpoint.
type RegistryLookupRequest struct {
	SubscriberID string `json:"subscriber_id"`
	UkID         string `json:"ukId"`
	Domain       string `json:"domain"`
	Country      string `json:"country"`
	City         string `json:"city"`
	Type         string `json:"type"`
}
