package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

const (
	// PublicKeySize is the size of an attestation public key in bytes.
	PublicKeySize = ed25519.PublicKeySize
	// SignatureSize is the size of an attestation signature in bytes.
	SignatureSize = ed25519.SignatureSize
)

// PublicKey identifies a signing identity. It travels inside every encoded
// attestation, so verifiers can check the signature with no key lookup.
// The implementation uses Ed25519 public keys.
type PublicKey []byte

// NewPublicKeyFromBytes creates a PublicKey from a byte slice.
// The input is copied so callers cannot mutate the key afterwards.
func NewPublicKeyFromBytes(data []byte) PublicKey {
	pk := make([]byte, len(data))
	copy(pk, data)
	return PublicKey(pk)
}

// NewPublicKeyFromString creates a PublicKey from a hex-encoded string.
func NewPublicKeyFromString(data string) (PublicKey, error) {
	rawBytes, err := hex.DecodeString(data)
	if err != nil {
		return PublicKey{}, err
	}

	return NewPublicKeyFromBytes(rawBytes), nil
}

// Bytes returns the public key as a byte slice, for serialization and
// cryptographic operations.
func (pk PublicKey) Bytes() []byte {
	return pk
}

// Equal compares two public keys in constant time.
func (pk PublicKey) Equal(other PublicKey) bool {
	return subtle.ConstantTimeCompare(pk, other) == 1
}

// String returns the hex encoding of the public key. Used in logs, API
// responses, and as a map key.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk)
}

// PrivateKey is the signing half of an attestation identity. It is created
// once at process start and must never leave the process.
// The implementation uses Ed25519 private keys.
type PrivateKey []byte

// NewPrivateKeyFromBytes creates a PrivateKey from a byte slice.
// The input is copied so callers cannot mutate the key afterwards.
func NewPrivateKeyFromBytes(data []byte) PrivateKey {
	sk := make([]byte, len(data))
	copy(sk, data)
	return PrivateKey(sk)
}

// Bytes returns the private key as a byte slice, e.g. for sealing inside a
// TEE. Handle with care: this exposes sensitive key material.
func (sk PrivateKey) Bytes() []byte {
	return sk
}

// PublicKey derives the public key corresponding to this private key.
// For Ed25519, the public key is the second half of the private key.
func (sk PrivateKey) PublicKey() (PublicKey, error) {
	if len(sk) < ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	return NewPublicKeyFromBytes(sk[32:]), nil
}

// GenerateKeyPair generates a new Ed25519 key pair for attestation signing.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PublicKey(publicKey), PrivateKey(privateKey), nil
}

// Signature is a digital signature over an attestation message. It is the
// proof an external verifier checks before acting on a reported KPI value.
type Signature []byte

// NewSignature creates a Signature from a byte slice.
// The input is copied so callers cannot mutate the signature afterwards.
func NewSignature(data []byte) Signature {
	sig := make([]byte, len(data))
	copy(sig, data)
	return Signature(sig)
}

// Bytes returns the signature as a byte slice for serialization.
func (s Signature) Bytes() []byte {
	return []byte(s)
}

// Verify reports whether this signature is valid for the given data under
// the given public key.
func (s Signature) Verify(publicKey PublicKey, data []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), data, s)
}

// String returns the hex encoding of the signature, for logs and API
// responses.
func (s Signature) String() string {
	return hex.EncodeToString(s.Bytes())
}

// Sign signs data with the given private key using Ed25519.
func Sign(privateKey PrivateKey, data []byte) (Signature, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	signature := ed25519.Sign(ed25519.PrivateKey(privateKey), data)
	return Signature(signature), nil
}
