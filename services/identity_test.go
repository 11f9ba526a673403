package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleline/earnout/attest"
	"github.com/settleline/earnout/common"
	"github.com/settleline/earnout/tdx"
)

func TestIdentityServiceSoftwareOnly(t *testing.T) {
	identity, err := attest.GenerateSigningIdentity()
	require.NoError(t, err)

	svc, err := NewIdentityService(identity, nil)
	require.NoError(t, err)

	report, signer, err := svc.SignedReport().Recover()
	require.NoError(t, err)
	assert.Equal(t, common.PackageName, report.Service)
	assert.Equal(t, "software", report.AttestationType)
	assert.Empty(t, report.Quote)
	assert.Equal(t, identity.PublicKey().String(), report.PublicKey)
	assert.True(t, signer.Equal(identity.PublicKey()))
}

func TestIdentityServiceRequiresIdentity(t *testing.T) {
	_, err := NewIdentityService(nil, nil)
	require.Error(t, err)
}

func TestVerifyIdentityReportRoundTrip(t *testing.T) {
	identity, err := attest.GenerateSigningIdentity()
	require.NoError(t, err)

	provider := &tdx.DummyProvider{}
	svc, err := NewIdentityService(identity, provider)
	require.NoError(t, err)

	measurements, err := VerifyIdentityReport(DevMeasurementSource(), provider, svc.SignedReport())
	require.NoError(t, err)
	require.NotEmpty(t, measurements)
	assert.Equal(t, []byte{0}, measurements[tdx.RegisterMRTD])
}

func TestVerifyIdentityReportWithoutProvider(t *testing.T) {
	// A verifier without a provider only checks the envelope signature.
	identity, err := attest.GenerateSigningIdentity()
	require.NoError(t, err)

	svc, err := NewIdentityService(identity, nil)
	require.NoError(t, err)

	measurements, err := VerifyIdentityReport(nil, nil, svc.SignedReport())
	require.NoError(t, err)
	assert.Nil(t, measurements)
}

func TestVerifyIdentityReportRejectsSubstitutedKey(t *testing.T) {
	identity, err := attest.GenerateSigningIdentity()
	require.NoError(t, err)
	other, err := attest.GenerateSigningIdentity()
	require.NoError(t, err)

	// Report claims a key the envelope was not signed with.
	report := &IdentityReport{
		Service:         common.PackageName,
		Version:         common.Version,
		PublicKey:       other.PublicKey().String(),
		AttestationType: "software",
	}
	signed, err := attest.NewSigned(identity, report)
	require.NoError(t, err)

	_, err = VerifyIdentityReport(nil, nil, signed)
	require.ErrorContains(t, err, "does not match")
}

func TestVerifyIdentityReportRejectsMissingQuote(t *testing.T) {
	identity, err := attest.GenerateSigningIdentity()
	require.NoError(t, err)

	svc, err := NewIdentityService(identity, nil)
	require.NoError(t, err)

	_, err = VerifyIdentityReport(DevMeasurementSource(), &tdx.DummyProvider{}, svc.SignedReport())
	require.ErrorContains(t, err, "no quote")
}

func TestVerifyIdentityReportRejectsDisallowedBuild(t *testing.T) {
	identity, err := attest.GenerateSigningIdentity()
	require.NoError(t, err)

	provider := &tdx.DummyProvider{}
	svc, err := NewIdentityService(identity, provider)
	require.NoError(t, err)

	strict := NewStaticMeasurementSource(PublishedMeasurements{
		{
			MeasurementID: "prod-build",
			Measurements: map[int]MeasurementValue{
				tdx.RegisterMRTD: {Expected: "ff"},
			},
		},
	})

	_, err = VerifyIdentityReport(strict, provider, svc.SignedReport())
	require.ErrorContains(t, err, "not allowed")
}
