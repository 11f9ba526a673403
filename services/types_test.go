package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleline/earnout/attest"
	"github.com/settleline/earnout/kpi"
)

func TestByteArrayMarshalsAsNumbers(t *testing.T) {
	b := ByteArray{0, 1, 255}
	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, "[0,1,255]", string(out))

	var back ByteArray
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, b, back)
}

func TestByteArrayMarshalsNilAsNull(t *testing.T) {
	var b ByteArray
	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestByteArrayRejectsOutOfRangeValues(t *testing.T) {
	var b ByteArray
	assert.Error(t, json.Unmarshal([]byte(`[256]`), &b))
	assert.Error(t, json.Unmarshal([]byte(`[-1]`), &b))
	assert.Error(t, json.Unmarshal([]byte(`["ff"]`), &b))
}

func TestAttestationInfoRoundTrip(t *testing.T) {
	identity, err := attest.GenerateSigningIdentity()
	require.NoError(t, err)

	attestor := attest.NewSoftwareAttestor(identity)
	attestation, err := attestor.Attest(&kpi.KPIResult{KPI: 30000, EntriesProcessed: 2}, settlementBatch())
	require.NoError(t, err)

	info := NewAttestationInfo(attestation)
	assert.Equal(t, attestation.ComputationHash.String(), info.ComputationHash)
	assert.Equal(t, attestation.TEEPublicKey.String(), info.TEEPublicKey)

	back, err := info.ToAttestation()
	require.NoError(t, err)
	assert.Equal(t, attestation.ComputationHash, back.ComputationHash)
	assert.Equal(t, attestation.KPIValue, back.KPIValue)
	assert.Equal(t, attestation.Timestamp, back.Timestamp)
	assert.True(t, back.Verify())
}

func TestAttestationInfoRejectsBadHex(t *testing.T) {
	info := &AttestationInfo{
		ComputationHash: "zz",
		TEEPublicKey:    "00",
		Signature:       "00",
	}
	_, err := info.ToAttestation()
	assert.Error(t, err)
}
