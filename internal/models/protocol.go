package models

import (
	"fmt"
	"strings"
	"time"
)

// Context is the shared protocol context carried by every request and
// callback. transaction_id + message_id identify a logical message; the
// pair plus the action forms the idempotency key for inbound requests.
type Context struct {
	Domain        string    `json:"domain"`
	Action        string    `json:"action"`
	CoreVersion   string    `json:"core_version,omitempty"`
	BapID         string    `json:"bap_id,omitempty"`
	BapURI        string    `json:"bap_uri,omitempty"`
	BppID         string    `json:"bpp_id,omitempty"`
	BppURI        string    `json:"bpp_uri,omitempty"`
	TransactionID string    `json:"transaction_id"`
	MessageID     string    `json:"message_id"`
	City          string    `json:"city,omitempty"`
	Country       string    `json:"country,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	TTL           string    `json:"ttl,omitempty"` // ISO 8601 duration (e.g., "PT30S")
}

// validActions is the allowlist of inbound protocol actions and their
// callback counterparts. Prevents silent failures from typos in action names.
var validActions = map[string]bool{
	"search":     true,
	"select":     true,
	"init":       true,
	"confirm":    true,
	"status":     true,
	"track":      true,
	"cancel":     true,
	"update":     true,
	"on_search":  true,
	"on_select":  true,
	"on_init":    true,
	"on_confirm": true,
	"on_status":  true,
	"on_track":   true,
	"on_cancel":  true,
	"on_update":  true,
}

// CallbackAction returns the on_<action> counterpart for an inbound action.
func CallbackAction(action string) string {
	if strings.HasPrefix(action, "on_") {
		return action
	}
	return "on_" + action
}

// Validate checks the mandatory context fields before any handler touches
// the message body.
func (c *Context) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.Action == "" {
		return fmt.Errorf("action is required")
	}
	if !validActions[c.Action] {
		return fmt.Errorf("invalid action: %s", c.Action)
	}
	if c.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if c.MessageID == "" {
		return fmt.Errorf("message_id is required")
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	// Inbound buyer-side requests must carry a callback address.
	if !strings.HasPrefix(c.Action, "on_") && c.BapURI == "" {
		return fmt.Errorf("bap_uri is required")
	}
	if c.TTL != "" {
		if _, err := ParseISODuration(c.TTL); err != nil {
			return fmt.Errorf("invalid ttl format: %s (expected ISO 8601 duration, e.g., PT30S)", c.TTL)
		}
	}
	return nil
}

// ParseISODuration converts an ISO 8601 duration such as PT30S or PT15M into
// a time.Duration. Only the time component subset used by the protocol is
// supported.
func ParseISODuration(iso string) (time.Duration, error) {
	if !strings.HasPrefix(iso, "PT") {
		return 0, fmt.Errorf("unsupported duration: %s", iso)
	}
	goStr := strings.TrimPrefix(iso, "PT")
	goStr = strings.ReplaceAll(goStr, "H", "h")
	goStr = strings.ReplaceAll(goStr, "M", "m")
	goStr = strings.ReplaceAll(goStr, "S", "s")
	return time.ParseDuration(strings.ToLower(goStr))
}

// Request is an inbound protocol request. The message body is kept as a raw
// map; per-action processors validate the fields they consume.
type Request struct {
	Context Context                `json:"context"`
	Message map[string]interface{} `json:"message"`
}

// GetContext returns the request context.
func (r *Request) GetContext() *Context {
	return &r.Context
}

// Response is an outbound callback payload.
type Response struct {
	Context Context                `json:"context"`
	Message map[string]interface{} `json:"message,omitempty"`
	Error   *Error                 `json:"error,omitempty"`
}

// Error is the protocol error element carried inside envelopes.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// AckStatus values for the synchronous acknowledgment.
const (
	StatusACK  = "ACK"
	StatusNACK = "NACK"
)

// AckResponse is the immediate synchronous reply to an inbound request.
// NACKs carry an Error element alongside the status.
type AckResponse struct {
	Context *Context   `json:"context,omitempty"`
	Message AckMessage `json:"message"`
	Error   *Error     `json:"error,omitempty"`
}

// AckMessage wraps the ack element.
type AckMessage struct {
	Ack AckStatus `json:"ack"`
}

// AckStatus holds the ACK/NACK marker.
type AckStatus struct {
	Status string `json:"status"`
}

// IsACK reports whether the response acknowledged the request.
func (r *AckResponse) IsACK() bool {
	return r.Message.Ack.Status == StatusACK
}
