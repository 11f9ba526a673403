package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// minMasterSecretSize guards against low-entropy secrets. 16 bytes matches
// the minimum seal-key size of common TEE sealing interfaces.
const minMasterSecretSize = 16

// DeriveSigningKey deterministically derives an Ed25519 signing key from a
// master secret using HKDF-SHA256. TEE deployments seal one master secret to
// the enclave and re-derive the same signing identity on every boot, so the
// registered public key survives restarts without persisting the key itself.
//
// The info string domain-separates derived keys; use a distinct info per
// purpose (e.g. "attestation-signing-v1").
func DeriveSigningKey(masterSecret []byte, info string) (PrivateKey, error) {
	if len(masterSecret) < minMasterSecretSize {
		return nil, errors.New("master secret too short")
	}

	kdf := hkdf.New(sha256.New, masterSecret, nil, []byte(info))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, err
	}

	return PrivateKey(ed25519.NewKeyFromSeed(seed)), nil
}
