package attest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleline/earnout/kpi"
)

func TestVerifyRejectsAnySingleByteFlip(t *testing.T) {
	encoded, err := Encode(testAttestation(t))
	require.NoError(t, err)

	// Every byte of the encoding is covered: hash, value, and timestamp are
	// part of the signed message, and corrupting key or signature breaks the
	// signature itself.
	for i := range encoded {
		tampered := make([]byte, len(encoded))
		copy(tampered, encoded)
		tampered[i] ^= 0x01

		decoded, err := Decode(tampered)
		if err != nil {
			// Flipping the timestamp's top bit fails decoding outright.
			continue
		}
		assert.False(t, decoded.Verify(), "flip at offset %d still verifies", i)
	}
}

func TestMatchesDocuments(t *testing.T) {
	attestor, _ := newTestAttestor(t)
	docs := settlementDocuments()

	attestation, err := attestor.Attest(&kpi.KPIResult{KPI: 30000}, docs)
	require.NoError(t, err)

	require.NoError(t, attestation.MatchesDocuments(docs))

	// Different documents.
	err = attestation.MatchesDocuments(rawDocs(`{"employeeDetails": {}, "grossPay": 1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")

	// Same documents, different order.
	err = attestation.MatchesDocuments([]json.RawMessage{docs[1], docs[0]})
	require.Error(t, err)
}

func TestVerifyBytes(t *testing.T) {
	encoded, err := Encode(testAttestation(t))
	require.NoError(t, err)

	attestation, ok, err := VerifyBytes(encoded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(30000), attestation.KPIValue)

	// Corrupted signature decodes fine but fails verification.
	encoded[143] ^= 0xFF
	attestation, ok, err = VerifyBytes(encoded)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotNil(t, attestation)

	// Truncated input is a decoding error, not an invalid signature.
	_, _, err = VerifyBytes(encoded[:100])
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
}

func TestRequireValid(t *testing.T) {
	encoded, err := Encode(testAttestation(t))
	require.NoError(t, err)

	attestation, err := RequireValid(encoded)
	require.NoError(t, err)
	require.NotNil(t, attestation)

	encoded[80] ^= 0x01
	_, err = RequireValid(encoded)
	require.Error(t, err)
}
