package auth

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Algorithm is the single signature algorithm supported on the network.
const Algorithm = "ed25519"

// DigestAlgorithm names the body hash inside the canonical signing string.
const DigestAlgorithm = "BLAKE2B-256"

// Digest computes the base64 blake2b-256 hash of the exact body bytes as
// received. Re-serializing the body before hashing changes the digest and
// breaks verification, so callers must pass the raw bytes.
func Digest(body []byte) string {
	hash := blake2b.Sum256(body)
	return base64.StdEncoding.EncodeToString(hash[:])
}

// SigningString builds the canonical string covered by the signature. Both
// sides of the network must produce this byte-for-byte: field order,
// newlines, and spacing are all significant.
func SigningString(created, expires int64, digest string) string {
	return fmt.Sprintf("(created): %d\n(expires): %d\ndigest: %s=%s", created, expires, DigestAlgorithm, digest)
}

// Sign produces a detached ed25519 signature over the signing string.
// Pure function over the provided key material.
func Sign(signingString []byte, privateKey ed25519.PrivateKey) []byte {
	return ed25519.Sign(privateKey, signingString)
}

// Verify checks a base64 signature against the signing string. A
// cryptographic mismatch is a normal false result; only malformed input
// (signature that is not valid base64, wrong key size) returns an error.
func Verify(signingString []byte, signatureBase64 string, publicKey ed25519.PublicKey) (bool, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size: expected %d, got %d", ed25519.PublicKeySize, len(publicKey))
	}
	signatureBytes, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return ed25519.Verify(publicKey, signingString, signatureBytes), nil
}

// DecodePublicKey decodes a base64 raw ed25519 public key as published in
// the registry.
func DecodePublicKey(publicKeyBase64 string) (ed25519.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(publicKeyBase64))
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: expected %d, got %d", ed25519.PublicKeySize, len(decoded))
	}
	return ed25519.PublicKey(decoded), nil
}

// LoadKeyPair loads base64-encoded raw ed25519 keys from file paths. Key
// material is provisioned out of band; this never generates keys.
func LoadKeyPair(privateKeyPath, publicKeyPath string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	privateKeyBytes, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyBytes, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read public key file: %w", err)
	}

	privateKeyDecoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(privateKeyBytes)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyDecoded) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("invalid private key size: expected %d, got %d", ed25519.PrivateKeySize, len(privateKeyDecoded))
	}

	publicKey, err := DecodePublicKey(string(publicKeyBytes))
	if err != nil {
		return nil, nil, err
	}

	return ed25519.PrivateKey(privateKeyDecoded), publicKey, nil
}

// GenerateSigningKeyPair creates a fresh ed25519 key pair, base64-encoded.
// Bootstrap/testing utility only; production keys come from configuration.
func GenerateSigningKeyPair() (publicKeyBase64, privateKeyBase64 string, err error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate signing key pair: %w", err)
	}
	return base64.StdEncoding.EncodeToString(publicKey),
		base64.StdEncoding.EncodeToString(privateKey), nil
}

// GenerateEncryptionKeyPair creates a fresh x25519 key pair, base64-encoded,
// for the registry's encryption-key slot.
func GenerateEncryptionKeyPair() (publicKeyBase64, privateKeyBase64 string, err error) {
	privateKey, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate encryption key pair: %w", err)
	}
	return base64.StdEncoding.EncodeToString(privateKey.PublicKey().Bytes()),
		base64.StdEncoding.EncodeToString(privateKey.Bytes()), nil
}
