package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest_Deterministic(t *testing.T) {
	body := []byte(`{"context":{"transaction_id":"t1"}}`)
	assert.Equal(t, Digest(body), Digest(body))

	// Any re-serialization (here: added whitespace) changes the digest.
	reserialized := []byte(`{"context": {"transaction_id": "t1"}}`)
	assert.NotEqual(t, Digest(body), Digest(reserialized))
}

func TestSignVerify_RoundTrip(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	body := []byte(`{"context":{"transaction_id":"t1","message_id":"m1"}}`)
	signingString := []byte(SigningString(1700000000, 1700000300, Digest(body)))

	signature := Sign(signingString, privateKey)
	valid, err := Verify(signingString, base64.StdEncoding.EncodeToString(signature), publicKey)
	assert.NoError(t, err)
	assert.True(t, valid)
}

func TestVerify_TamperedBody(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	body := []byte(`{"amount":100}`)
	signingString := []byte(SigningString(1700000000, 1700000300, Digest(body)))
	signature := base64.StdEncoding.EncodeToString(Sign(signingString, privateKey))

	// Flip a single byte of the body and recompute the signing string the
	// way a verifier would.
	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01
	tamperedSigningString := []byte(SigningString(1700000000, 1700000300, Digest(tampered)))

	valid, err := Verify(tamperedSigningString, signature, publicKey)
	assert.NoError(t, err)
	assert.False(t, valid)
}

func TestVerify_WrongKey(t *testing.T) {
	_, privateKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPublicKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signingString := []byte(SigningString(1, 2, Digest([]byte("body"))))
	signature := base64.StdEncoding.EncodeToString(Sign(signingString, privateKey))

	valid, err := Verify(signingString, signature, otherPublicKey)
	assert.NoError(t, err)
	assert.False(t, valid)
}

func TestVerify_MalformedSignature(t *testing.T) {
	publicKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	valid, err := Verify([]byte("anything"), "not-valid-base64!!!", publicKey)
	assert.Error(t, err)
	assert.False(t, valid)
}

func TestVerify_BadKeySize(t *testing.T) {
	valid, err := Verify([]byte("anything"), base64.StdEncoding.EncodeToString([]byte("sig")), []byte("short"))
	assert.Error(t, err)
	assert.False(t, valid)
}

func TestSigningString_Format(t *testing.T) {
	got := SigningString(100, 400, "ZGlnZXN0")
	assert.Equal(t, "(created): 100\n(expires): 400\ndigest: BLAKE2B-256=ZGlnZXN0", got)
}

func TestGenerateSigningKeyPair(t *testing.T) {
	publicB64, privateB64, err := GenerateSigningKeyPair()
	require.NoError(t, err)

	publicKey, err := DecodePublicKey(publicB64)
	require.NoError(t, err)
	privateBytes, err := base64.StdEncoding.DecodeString(privateB64)
	require.NoError(t, err)
	require.Len(t, privateBytes, ed25519.PrivateKeySize)

	signingString := []byte(SigningString(1, 2, Digest([]byte("probe"))))
	signature := Sign(signingString, ed25519.PrivateKey(privateBytes))
	valid, err := Verify(signingString, base64.StdEncoding.EncodeToString(signature), publicKey)
	assert.NoError(t, err)
	assert.True(t, valid)
}

func TestGenerateEncryptionKeyPair(t *testing.T) {
	publicB64, privateB64, err := GenerateEncryptionKeyPair()
	require.NoError(t, err)

	publicBytes, err := base64.StdEncoding.DecodeString(publicB64)
	require.NoError(t, err)
	assert.Len(t, publicBytes, 32)

	privateBytes, err := base64.StdEncoding.DecodeString(privateB64)
	require.NoError(t, err)
	assert.Len(t, privateBytes, 32)
}

func TestLoadKeyPair(t *testing.T) {
	publicB64, privateB64, err := GenerateSigningKeyPair()
	require.NoError(t, err)

	dir := t.TempDir()
	privatePath := filepath.Join(dir, "signing_private_key.b64")
	publicPath := filepath.Join(dir, "signing_public_key.b64")
	require.NoError(t, os.WriteFile(privatePath, []byte(privateB64+"\n"), 0o600))
	require.NoError(t, os.WriteFile(publicPath, []byte(publicB64+"\n"), 0o600))

	privateKey, publicKey, err := LoadKeyPair(privatePath, publicPath)
	require.NoError(t, err)
	assert.Len(t, []byte(privateKey), ed25519.PrivateKeySize)
	assert.Len(t, []byte(publicKey), ed25519.PublicKeySize)
}

func TestLoadKeyPair_MissingFile(t *testing.T) {
	_, _, err := LoadKeyPair("/nonexistent/private.b64", "/nonexistent/public.b64")
	assert.Error(t, err)
}

func TestDecodePublicKey_Invalid(t *testing.T) {
	_, err := DecodePublicKey("%%%")
	assert.Error(t, err)

	_, err = DecodePublicKey(base64.StdEncoding.EncodeToString([]byte("too-short")))
	assert.Error(t, err)
}
