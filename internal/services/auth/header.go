package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// headerScheme is the leading token of the Authorization header.
const headerScheme = "Signature"

// CoveredFields is the mandatory covered-fields list, in signing order.
const CoveredFields = "(created) (expires) digest"

// HeaderParams is the parsed form of the structured Authorization header:
//
//	Signature keyId="sub|ukid|ed25519",algorithm="ed25519",created="t1",
//	expires="t2",headers="(created) (expires) digest",signature="...",digest="..."
//
// Instances are immutable once parsed.
type HeaderParams struct {
	SubscriberID string
	UkID         string
	Algorithm    string
	Created      int64
	Expires      int64
	Headers      string
	Signature    string
	Digest       string
}

var headerParamPattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

var requiredHeaderFields = []string{"keyId", "algorithm", "signature", "created", "expires", "headers", "digest"}

// ParseAuthHeader parses the wire form of the Authorization header into
// typed params. Any missing required field, unsupported algorithm, bad
// keyId shape, or non-numeric timestamp is a parse failure.
func ParseAuthHeader(header string) (*HeaderParams, error) {
	if !strings.HasPrefix(header, headerScheme+" ") {
		return nil, fmt.Errorf("missing %s scheme prefix", headerScheme)
	}

	matches := headerParamPattern.FindAllStringSubmatch(header[len(headerScheme)+1:], -1)
	if matches == nil {
		return nil, fmt.Errorf("malformed header parameters")
	}

	fields := make(map[string]string, len(matches))
	for _, m := range matches {
		fields[m[1]] = m[2]
	}

	for _, name := range requiredHeaderFields {
		if fields[name] == "" {
			return nil, fmt.Errorf("missing required field: %s", name)
		}
	}

	if fields["algorithm"] != Algorithm {
		return nil, fmt.Errorf("unsupported algorithm: %s", fields["algorithm"])
	}

	subscriberID, ukID, err := splitKeyID(fields["keyId"])
	if err != nil {
		return nil, err
	}

	if !coversMandatoryFields(fields["headers"]) {
		return nil, fmt.Errorf("headers list must cover %q in order", CoveredFields)
	}

	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created timestamp: %s", fields["created"])
	}
	expires, err := strconv.ParseInt(fields["expires"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expires timestamp: %s", fields["expires"])
	}

	return &HeaderParams{
		SubscriberID: subscriberID,
		UkID:         ukID,
		Algorithm:    fields["algorithm"],
		Created:      created,
		Expires:      expires,
		Headers:      fields["headers"],
		Signature:    fields["signature"],
		Digest:       fields["digest"],
	}, nil
}

// Serialize renders the exact wire form. Parse(Serialize(p)) round-trips and
// Serialize produces byte-identical output for identical params; field order
// is fixed.
func (p *HeaderParams) Serialize() string {
	keyID := fmt.Sprintf("%s|%s|%s", p.SubscriberID, p.UkID, p.Algorithm)
	return fmt.Sprintf(`%s keyId="%s",algorithm="%s",created="%d",expires="%d",headers="%s",signature="%s",digest="%s"`,
		headerScheme, keyID, p.Algorithm, p.Created, p.Expires, p.Headers, p.Signature, p.Digest)
}

// splitKeyID extracts subscriber and unique key identifiers from the keyId
// field. The algorithm suffix, when present, is ignored; the algorithm
// field is authoritative.
func splitKeyID(keyID string) (subscriberID, ukID string, err error) {
	parts := strings.Split(keyID, "|")
	if len(parts) != 2 && len(parts) != 3 {
		return "", "", fmt.Errorf("invalid keyId format: %s", keyID)
	}
	if parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid keyId format: %s", keyID)
	}
	return parts[0], parts[1], nil
}

// coversMandatoryFields checks that the covered-fields list names
// (created), (expires), and digest in that order. Extra covered fields are
// tolerated as long as the mandatory three keep their relative order.
func coversMandatoryFields(headers string) bool {
	tokens := strings.Fields(headers)
	want := strings.Fields(CoveredFields)
	i := 0
	for _, tok := range tokens {
		if i < len(want) && tok == want[i] {
			i++
		}
	}
	return i == len(want)
}
