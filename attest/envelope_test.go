package attest

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testReport struct {
	Service string `json:"service"`
	KPI     int64  `json:"kpi"`
}

func TestSignedEnvelopeRoundTrip(t *testing.T) {
	identity, err := GenerateSigningIdentity()
	require.NoError(t, err)

	signed, err := NewSigned(identity, &testReport{Service: "earnout", KPI: 30000})
	require.NoError(t, err)

	// Over the wire and back.
	wire, err := json.Marshal(signed)
	require.NoError(t, err)
	received, err := DecodeMessage[Signed[testReport]](bytes.NewReader(wire))
	require.NoError(t, err)

	obj, pubkey, err := received.Recover()
	require.NoError(t, err)
	assert.Equal(t, "earnout", obj.Service)
	assert.Equal(t, int64(30000), obj.KPI)
	assert.True(t, identity.PublicKey().Equal(pubkey))
}

func TestSignedEnvelopeRejectsTamperedObject(t *testing.T) {
	identity, err := GenerateSigningIdentity()
	require.NoError(t, err)

	signed, err := NewSigned(identity, &testReport{Service: "earnout", KPI: 30000})
	require.NoError(t, err)

	signed.Object.KPI = 31337
	_, _, err = signed.Recover()
	require.Error(t, err)
}

func TestSignedEnvelopeRejectsSubstitutedKey(t *testing.T) {
	identity, err := GenerateSigningIdentity()
	require.NoError(t, err)
	other, err := GenerateSigningIdentity()
	require.NoError(t, err)

	signed, err := NewSigned(identity, &testReport{Service: "earnout"})
	require.NoError(t, err)

	signed.PublicKey = other.PublicKey()
	_, _, err = signed.Recover()
	require.Error(t, err)
}

func TestSignedEnvelopeRequiresIdentity(t *testing.T) {
	_, err := NewSigned(nil, &testReport{})
	require.Error(t, err)
}
