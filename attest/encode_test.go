package attest

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleline/earnout/kpi"
)

func testAttestation(t *testing.T) *Attestation {
	t.Helper()
	attestor, _ := newTestAttestor(t)
	attestation, err := attestor.Attest(&kpi.KPIResult{KPI: 30000, EntriesProcessed: 2}, settlementDocuments())
	require.NoError(t, err)
	return attestation
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := testAttestation(t)

	encoded, err := Encode(original)
	require.NoError(t, err)
	require.Len(t, encoded, EncodedSize)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, original.ComputationHash, decoded.ComputationHash)
	assert.Equal(t, original.KPIValue, decoded.KPIValue)
	assert.Equal(t, original.Timestamp, decoded.Timestamp)
	assert.Equal(t, original.TEEPublicKey, decoded.TEEPublicKey)
	assert.Equal(t, original.Signature, decoded.Signature)
	assert.True(t, decoded.Verify())
}

func TestEncodeLayout(t *testing.T) {
	a := testAttestation(t)
	a.KPIValue = -2
	encoded, err := Encode(a)
	require.NoError(t, err)

	assert.Equal(t, a.ComputationHash.Bytes(), encoded[0:32])
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFE), binary.BigEndian.Uint64(encoded[32:40]))
	assert.Equal(t, uint64(a.Timestamp), binary.BigEndian.Uint64(encoded[40:48]))
	assert.Equal(t, a.TEEPublicKey.Bytes(), encoded[48:80])
	assert.Equal(t, a.Signature.Bytes(), encoded[80:144])
}

func TestEncodeRejectsMalformedAttestation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Attestation)
	}{
		{name: "short hash", mutate: func(a *Attestation) { a.ComputationHash = a.ComputationHash[:31] }},
		{name: "negative timestamp", mutate: func(a *Attestation) { a.Timestamp = -1 }},
		{name: "short public key", mutate: func(a *Attestation) { a.TEEPublicKey = a.TEEPublicKey[:16] }},
		{name: "short signature", mutate: func(a *Attestation) { a.Signature = a.Signature[:63] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testAttestation(t)
			tt.mutate(a)

			_, err := Encode(a)
			var encErr *EncodingError
			require.ErrorAs(t, err, &encErr)
		})
	}

	_, err := Encode(nil)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	for _, size := range []int{0, 1, EncodedSize - 1, EncodedSize + 1, 2 * EncodedSize} {
		_, err := Decode(make([]byte, size))
		var encErr *EncodingError
		require.ErrorAs(t, err, &encErr, "size %d", size)
	}
}

func TestDecodeRejectsTimestampOverflow(t *testing.T) {
	encoded, err := Encode(testAttestation(t))
	require.NoError(t, err)

	// Set the timestamp's top bit: the unsigned value no longer fits int64.
	encoded[40] |= 0x80

	_, err = Decode(encoded)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Contains(t, encErr.Reason, "timestamp")
}

func TestDecodeCopiesInput(t *testing.T) {
	encoded, err := Encode(testAttestation(t))
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.True(t, decoded.Verify())

	for i := range encoded {
		encoded[i] = 0
	}
	assert.True(t, decoded.Verify())
}

func BenchmarkEncodeDecode(b *testing.B) {
	identity, err := GenerateSigningIdentity()
	require.NoError(b, err)
	attestor := NewSoftwareAttestor(identity)

	attestation, err := attestor.Attest(&kpi.KPIResult{KPI: 30000, EntriesProcessed: 2}, settlementDocuments())
	require.NoError(b, err)
	encoded, err := Encode(attestation)
	require.NoError(b, err)

	b.Run("encode", func(b *testing.B) {
		for b.Loop() {
			_, err := Encode(attestation)
			require.NoError(b, err)
		}
	})

	b.Run("decode", func(b *testing.B) {
		for b.Loop() {
			_, err := Decode(encoded)
			require.NoError(b, err)
		}
	})

	b.Run("verify", func(b *testing.B) {
		for b.Loop() {
			if !attestation.Verify() {
				b.Fatal("signature did not verify")
			}
		}
	})
}
