package utils

import (
	"strings"

	"github.com/google/uuid"
)

// Traceparent is the decoded form of a W3C trace context header. Only
// version 00 headers are recognized.
type Traceparent struct {
	TraceID string
	SpanID  string
	Flags   string
}

// ParseTraceparent decodes and validates a traceparent header. The second
// return is false when the header is absent or malformed; callers mint a
// fresh context in that case instead of propagating garbage upstream.
func ParseTraceparent(header string) (Traceparent, bool) {
	parts := strings.Split(header, "-")
	if len(parts) != 4 || parts[0] != "00" {
		return Traceparent{}, false
	}

	tp := Traceparent{TraceID: parts[1], SpanID: parts[2], Flags: parts[3]}
	if !isLowerHex(tp.TraceID, 32) || !isLowerHex(tp.SpanID, 16) || !isLowerHex(tp.Flags, 2) {
		return Traceparent{}, false
	}
	// All-zero trace and span ids are reserved as invalid.
	if tp.TraceID == strings.Repeat("0", 32) || tp.SpanID == strings.Repeat("0", 16) {
		return Traceparent{}, false
	}
	return tp, true
}

// String renders the header form.
func (t Traceparent) String() string {
	return "00-" + t.TraceID + "-" + t.SpanID + "-" + t.Flags
}

// NewTraceparent mints a sampled trace context with random trace and span
// ids.
func NewTraceparent() Traceparent {
	return Traceparent{
		TraceID: strings.ReplaceAll(uuid.NewString(), "-", ""),
		SpanID:  strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Flags:   "01",
	}
}

// EnsureTraceparent returns the given header when it is valid, otherwise a
// freshly minted one.
func EnsureTraceparent(header string) string {
	if tp, ok := ParseTraceparent(header); ok {
		return tp.String()
	}
	return NewTraceparent().String()
}

// ExtractTraceID returns the trace id of a valid traceparent header, or
// the empty string when the header does not parse.
func ExtractTraceID(header string) string {
	tp, ok := ParseTraceparent(header)
	if !ok {
		return ""
	}
	return tp.TraceID
}

func isLowerHex(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
