package services

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/settleline/earnout/attest"
	"github.com/settleline/earnout/crypto"
	"github.com/settleline/earnout/kpi"
)

// Operation selects the compute path for a request.
type Operation string

const (
	// OperationSimple computes the KPI without signing anything.
	OperationSimple Operation = "simple"
	// OperationWithAttestation runs the full pipeline and returns a signed,
	// encoded attestation. This is the default.
	OperationWithAttestation Operation = "with_attestation"
)

// Valid returns true if the operation is recognized.
func (o Operation) Valid() bool {
	switch o {
	case OperationSimple, OperationWithAttestation:
		return true
	}
	return false
}

// ByteArray serializes as a JSON array of byte values (0-255) instead of the
// base64 string encoding/json uses for []byte. On-chain verifier tooling
// consumes attestation bytes in this form.
type ByteArray []byte

// MarshalJSON renders the bytes as a numeric array.
func (b ByteArray) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	sb.WriteByte(']')
	return []byte(sb.String()), nil
}

// UnmarshalJSON parses a numeric array, rejecting values outside 0-255.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("byte array: %w", err)
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte array: value %d at index %d out of range", v, i)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// ComputeRequest is the body of POST /compute.
type ComputeRequest struct {
	Documents []json.RawMessage `json:"documents"`
	Operation Operation         `json:"operation,omitempty"`
	// InitialKPI offsets the aggregation baseline in minor units. Only
	// honored for the simple operation; attested results always start at 0.
	InitialKPI int64 `json:"initial_kpi,omitempty"`
}

// AttestationInfo is the JSON rendering of an attestation, with binary
// fields hex encoded.
type AttestationInfo struct {
	KPIValue        int64  `json:"kpi_value"`
	ComputationHash string `json:"computation_hash"`
	Timestamp       int64  `json:"timestamp"`
	TEEPublicKey    string `json:"tee_public_key"`
	Signature       string `json:"signature"`
}

// NewAttestationInfo converts an attestation into its JSON rendering.
func NewAttestationInfo(a *attest.Attestation) *AttestationInfo {
	return &AttestationInfo{
		KPIValue:        a.KPIValue,
		ComputationHash: a.ComputationHash.String(),
		Timestamp:       a.Timestamp,
		TEEPublicKey:    a.TEEPublicKey.String(),
		Signature:       a.Signature.String(),
	}
}

// ToAttestation parses the hex fields back into an attestation.
func (i *AttestationInfo) ToAttestation() (*attest.Attestation, error) {
	hash, err := attest.NewDigestFromString(i.ComputationHash)
	if err != nil {
		return nil, fmt.Errorf("invalid computation hash: %w", err)
	}
	pubKey, err := crypto.NewPublicKeyFromString(i.TEEPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	sigBytes, err := hex.DecodeString(i.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}
	return &attest.Attestation{
		ComputationHash: hash,
		KPIValue:        i.KPIValue,
		Timestamp:       i.Timestamp,
		TEEPublicKey:    pubKey,
		Signature:       crypto.NewSignature(sigBytes),
	}, nil
}

// ComputeData is the data payload of a successful POST /compute response.
// Attestation fields are only present for the with_attestation operation.
type ComputeData struct {
	KPIResult        *kpi.KPIResult   `json:"kpi_result"`
	Attestation      *AttestationInfo `json:"attestation,omitempty"`
	AttestationBytes ByteArray        `json:"attestation_bytes,omitempty"`
}

// ComputeResponse is the full POST /compute response envelope.
type ComputeResponse struct {
	Success bool         `json:"success"`
	Data    *ComputeData `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// VerifyRequest is the body of POST /verify. Documents are optional; when
// present, the computation hash is re-derived from them and checked against
// the attestation.
type VerifyRequest struct {
	AttestationBytes ByteArray         `json:"attestation_bytes"`
	Documents        []json.RawMessage `json:"documents,omitempty"`
}

// VerifyData is the data payload of a POST /verify response.
type VerifyData struct {
	Valid       bool             `json:"valid"`
	Reason      string           `json:"reason,omitempty"`
	Attestation *AttestationInfo `json:"attestation"`
}

// VerifyResponse is the full POST /verify response envelope.
type VerifyResponse struct {
	Success bool        `json:"success"`
	Data    *VerifyData `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// IdentityReport describes the service's signing identity. It is served from
// GET /identity wrapped in a Signed envelope, so callers can pin the key a
// TEE quote vouches for.
type IdentityReport struct {
	Service         string `json:"service"`
	Version         string `json:"version"`
	PublicKey       string `json:"public_key"`
	AttestationType string `json:"attestation_type"`
	Quote           []byte `json:"quote,omitempty"`
}

// AuditRecord is one issued attestation as persisted in the audit store.
type AuditRecord struct {
	ID               string    `json:"id"`
	KPIValue         int64     `json:"kpi_value"`
	EntriesProcessed int       `json:"entries_processed"`
	ComputationHash  string    `json:"computation_hash"`
	Timestamp        int64     `json:"timestamp"`
	TEEPublicKey     string    `json:"tee_public_key"`
	AttestationBytes ByteArray `json:"attestation_bytes"`
	CreatedAt        time.Time `json:"created_at"`
}

// AttestationListData is the data payload of GET /attestations.
type AttestationListData struct {
	Attestations []*AuditRecord `json:"attestations"`
}

// AttestationListResponse is the full GET /attestations response envelope.
type AttestationListResponse struct {
	Success bool                 `json:"success"`
	Data    *AttestationListData `json:"data,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// errorResponse is the envelope for all failed requests.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
