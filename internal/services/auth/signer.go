package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"seller-gateway/internal/config"
)

// Signer produces Authorization headers for outbound signed requests and
// callbacks using the gateway's own key pair and network identity.
type Signer struct {
	privateKey   ed25519.PrivateKey
	publicKey    ed25519.PublicKey
	subscriberID string
	ukID         string
	validity     time.Duration
	now          func() time.Time
}

// NewSigner loads the configured key pair and builds a signer.
func NewSigner(cfg config.ProtocolConfig) (*Signer, error) {
	privateKey, publicKey, err := LoadKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}
	if cfg.SubscriberID == "" || cfg.UkID == "" {
		return nil, fmt.Errorf("subscriber identity not configured")
	}
	return &Signer{
		privateKey:   privateKey,
		publicKey:    publicKey,
		subscriberID: cfg.SubscriberID,
		ukID:         cfg.UkID,
		validity:     time.Duration(cfg.ValiditySeconds) * time.Second,
		now:          time.Now,
	}, nil
}

// NewSignerFromKeys builds a signer from in-memory key material. Used by
// tests and the self-test path.
func NewSignerFromKeys(privateKey ed25519.PrivateKey, publicKey ed25519.PublicKey, subscriberID, ukID string, validity time.Duration) *Signer {
	return &Signer{
		privateKey:   privateKey,
		publicKey:    publicKey,
		subscriberID: subscriberID,
		ukID:         ukID,
		validity:     validity,
		now:          time.Now,
	}
}

// WithClock overrides the signer's clock. Test hook.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// AuthHeader signs the payload and returns the full Authorization header
// for an outbound request. payload must be the exact bytes to be sent.
func (s *Signer) AuthHeader(payload []byte) (string, error) {
	if len(s.privateKey) == 0 {
		return "", fmt.Errorf("private key not loaded")
	}

	digest := Digest(payload)
	created := s.now().Unix()
	expires := created + int64(s.validity/time.Second)

	signingString := SigningString(created, expires, digest)
	signature := Sign([]byte(signingString), s.privateKey)

	params := &HeaderParams{
		SubscriberID: s.subscriberID,
		UkID:         s.ukID,
		Algorithm:    Algorithm,
		Created:      created,
		Expires:      expires,
		Headers:      CoveredFields,
		Signature:    base64.StdEncoding.EncodeToString(signature),
		Digest:       digest,
	}
	return params.Serialize(), nil
}

// PublicKey exposes the signer's public key for registry registration and
// verification self-tests.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.publicKey
}

// SelfTest signs and verifies a probe message with the loaded pair,
// catching mismatched key files at startup rather than on the first
// rejected callback.
func (s *Signer) SelfTest() error {
	probe := []byte("signer self-test")
	signingString := SigningString(0, 0, Digest(probe))
	valid, err := Verify([]byte(signingString),
		base64.StdEncoding.EncodeToString(Sign([]byte(signingString), s.privateKey)), s.publicKey)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("configured key pair does not verify its own signature")
	}
	return nil
}
