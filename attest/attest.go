package attest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/settleline/earnout/crypto"
	"github.com/settleline/earnout/kpi"
)

// DigestSize is the size of a computation hash in bytes.
const DigestSize = sha256.Size

// Digest is a SHA-256 computation hash. It commits to the canonical document
// sequence and the KPI value derived from it.
type Digest []byte

// NewDigestFromBytes creates a Digest from a byte slice.
// The input is copied so callers cannot mutate the digest afterwards.
func NewDigestFromBytes(data []byte) Digest {
	d := make([]byte, len(data))
	copy(d, data)
	return Digest(d)
}

// NewDigestFromString creates a Digest from a hex-encoded string.
func NewDigestFromString(data string) (Digest, error) {
	rawBytes, err := hex.DecodeString(data)
	if err != nil {
		return Digest{}, err
	}
	return NewDigestFromBytes(rawBytes), nil
}

// Bytes returns the digest as a byte slice.
func (d Digest) Bytes() []byte {
	return []byte(d)
}

// String returns the hex encoding of the digest, for logs and API responses.
func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// SigningIdentity is the long-lived key pair the service signs attestations
// with. It is constructed once at startup and injected into whatever needs to
// sign; the private half never leaves this struct after construction.
type SigningIdentity struct {
	privateKey crypto.PrivateKey
	publicKey  crypto.PublicKey
}

// NewSigningIdentity wraps an existing private key into a SigningIdentity.
func NewSigningIdentity(privateKey crypto.PrivateKey) (*SigningIdentity, error) {
	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	return &SigningIdentity{
		privateKey: crypto.NewPrivateKeyFromBytes(privateKey.Bytes()),
		publicKey:  publicKey,
	}, nil
}

// GenerateSigningIdentity creates a SigningIdentity with a fresh random key
// pair. Used for ephemeral identities and in tests.
func GenerateSigningIdentity() (*SigningIdentity, error) {
	_, privateKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return NewSigningIdentity(privateKey)
}

// PublicKey returns the identity's public key.
func (id *SigningIdentity) PublicKey() crypto.PublicKey {
	return id.publicKey
}

// Sign signs a message under this identity.
func (id *SigningIdentity) Sign(message []byte) (crypto.Signature, error) {
	return crypto.Sign(id.privateKey, message)
}

// Attestation binds a KPI value to the documents it was computed from, the
// time of computation, and the signing identity. Timestamp is milliseconds
// since the Unix epoch.
type Attestation struct {
	ComputationHash Digest
	KPIValue        int64
	Timestamp       int64
	TEEPublicKey    crypto.PublicKey
	Signature       crypto.Signature
}

// Message reconstructs the exact byte string the signature covers:
// computation hash, then KPI value and timestamp as big-endian 8-byte words.
func (a *Attestation) Message() []byte {
	msg := make([]byte, 0, DigestSize+16)
	msg = append(msg, a.ComputationHash...)
	msg = binary.BigEndian.AppendUint64(msg, uint64(a.KPIValue))
	msg = binary.BigEndian.AppendUint64(msg, uint64(a.Timestamp))
	return msg
}

// ComputeHash derives the computation hash for a canonical document sequence
// and the KPI value computed from it. The KPI value is appended as a signed
// big-endian 8-byte word so the hash commits to the result, not just the
// inputs.
func ComputeHash(canonicalDocuments []byte, kpiValue int64) Digest {
	h := sha256.New()
	h.Write(canonicalDocuments)
	h.Write(binary.BigEndian.AppendUint64(nil, uint64(kpiValue)))
	return Digest(h.Sum(nil))
}

// SigningError reports a failure to produce an attestation signature. It is
// fatal for the request: a compute result is never downgraded to unsigned
// when signing fails.
type SigningError struct {
	Reason string
	Err    error
}

func (e *SigningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signing failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("signing failed: %s", e.Reason)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Attestor produces signed attestations for computed KPI results.
// Implementations other than SoftwareAttestor (e.g. hardware-backed signing)
// must produce the same message construction so verifiers stay compatible.
type Attestor interface {
	Attest(result *kpi.KPIResult, documents []json.RawMessage) (*Attestation, error)
}

// SoftwareAttestor signs attestations with an in-process SigningIdentity.
type SoftwareAttestor struct {
	identity *SigningIdentity
	now      func() time.Time
}

// AttestorOption configures a SoftwareAttestor.
type AttestorOption func(*SoftwareAttestor)

// WithClock overrides the attestor's wall clock. Used in tests to pin
// timestamps.
func WithClock(now func() time.Time) AttestorOption {
	return func(sa *SoftwareAttestor) {
		sa.now = now
	}
}

// NewSoftwareAttestor creates an attestor signing with the given identity.
func NewSoftwareAttestor(identity *SigningIdentity, opts ...AttestorOption) *SoftwareAttestor {
	sa := &SoftwareAttestor{
		identity: identity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(sa)
	}
	return sa
}

// Attest canonicalizes the documents, hashes them together with the KPI
// value, and signs hash, value, and a fresh timestamp as one message.
func (sa *SoftwareAttestor) Attest(result *kpi.KPIResult, documents []json.RawMessage) (*Attestation, error) {
	if sa.identity == nil {
		return nil, &SigningError{Reason: "no signing identity configured"}
	}
	if result == nil {
		return nil, errors.New("kpi result is required")
	}

	canonical, err := CanonicalDocuments(documents)
	if err != nil {
		return nil, err
	}

	attestation := &Attestation{
		ComputationHash: ComputeHash(canonical, result.KPI),
		KPIValue:        result.KPI,
		Timestamp:       sa.now().UnixMilli(),
		TEEPublicKey:    sa.identity.PublicKey(),
	}

	signature, err := sa.identity.Sign(attestation.Message())
	if err != nil {
		return nil, &SigningError{Reason: "sign attestation message", Err: err}
	}
	attestation.Signature = signature

	return attestation, nil
}
