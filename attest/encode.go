package attest

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/settleline/earnout/crypto"
)

// EncodedSize is the exact length of an encoded attestation in bytes.
// The layout is frozen; external verifiers parse it by offset.
const EncodedSize = DigestSize + 8 + 8 + crypto.PublicKeySize + crypto.SignatureSize

// Field offsets within the encoded layout. All integers are big-endian;
// kpi_value is signed two's-complement, timestamp is unsigned.
const (
	hashOffset      = 0
	kpiOffset       = hashOffset + DigestSize
	timestampOffset = kpiOffset + 8
	publicKeyOffset = timestampOffset + 8
	signatureOffset = publicKeyOffset + crypto.PublicKeySize
)

// EncodingError reports a malformed attestation on encode or decode.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("attestation encoding: %s", e.Reason)
}

// Encode serializes an attestation into the fixed 144-byte layout:
// computation_hash(32) kpi_value(8) timestamp(8) tee_public_key(32)
// signature(64).
func Encode(a *Attestation) ([]byte, error) {
	if a == nil {
		return nil, &EncodingError{Reason: "nil attestation"}
	}
	if len(a.ComputationHash) != DigestSize {
		return nil, &EncodingError{Reason: fmt.Sprintf("computation hash is %d bytes, want %d", len(a.ComputationHash), DigestSize)}
	}
	if a.Timestamp < 0 {
		return nil, &EncodingError{Reason: fmt.Sprintf("negative timestamp %d", a.Timestamp)}
	}
	if len(a.TEEPublicKey) != crypto.PublicKeySize {
		return nil, &EncodingError{Reason: fmt.Sprintf("public key is %d bytes, want %d", len(a.TEEPublicKey), crypto.PublicKeySize)}
	}
	if len(a.Signature) != crypto.SignatureSize {
		return nil, &EncodingError{Reason: fmt.Sprintf("signature is %d bytes, want %d", len(a.Signature), crypto.SignatureSize)}
	}

	out := make([]byte, EncodedSize)
	copy(out[hashOffset:], a.ComputationHash)
	binary.BigEndian.PutUint64(out[kpiOffset:], uint64(a.KPIValue))
	binary.BigEndian.PutUint64(out[timestampOffset:], uint64(a.Timestamp))
	copy(out[publicKeyOffset:], a.TEEPublicKey)
	copy(out[signatureOffset:], a.Signature)
	return out, nil
}

// Decode parses the fixed 144-byte layout back into an Attestation. The
// input is copied, so the result does not alias the caller's buffer.
func Decode(data []byte) (*Attestation, error) {
	if len(data) != EncodedSize {
		return nil, &EncodingError{Reason: fmt.Sprintf("encoded attestation is %d bytes, want %d", len(data), EncodedSize)}
	}

	timestamp := binary.BigEndian.Uint64(data[timestampOffset:])
	if timestamp > math.MaxInt64 {
		return nil, &EncodingError{Reason: fmt.Sprintf("timestamp %d out of range", timestamp)}
	}

	return &Attestation{
		ComputationHash: NewDigestFromBytes(data[hashOffset:kpiOffset]),
		KPIValue:        int64(binary.BigEndian.Uint64(data[kpiOffset:])),
		Timestamp:       int64(timestamp),
		TEEPublicKey:    crypto.NewPublicKeyFromBytes(data[publicKeyOffset : publicKeyOffset+crypto.PublicKeySize]),
		Signature:       crypto.NewSignature(data[signatureOffset : signatureOffset+crypto.SignatureSize]),
	}, nil
}
