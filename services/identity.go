package services

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/settleline/earnout/attest"
	"github.com/settleline/earnout/common"
	"github.com/settleline/earnout/crypto"
	"github.com/settleline/earnout/tdx"
)

// identityDomain separates identity report data from any other use of the
// signing key's hash.
const identityDomain = "earnout-identity-v1"

// ReportDataForIdentity computes the TEE report data binding a signing
// public key. The quote then proves the key belongs to a measured build.
func ReportDataForIdentity(publicKey crypto.PublicKey) [tdx.ReportDataSize]byte {
	hash := sha256.New()
	hash.Write([]byte(identityDomain))
	hash.Write(publicKey.Bytes())

	var reportData [tdx.ReportDataSize]byte
	copy(reportData[:], hash.Sum(nil))
	return reportData
}

// IdentityService builds and serves the signed identity report for this
// process. The report and its quote are fixed at startup, when the signing
// identity is created.
type IdentityService struct {
	identity *attest.SigningIdentity
	signed   *attest.Signed[IdentityReport]
}

// NewIdentityService generates the quote for the given identity and signs
// the resulting report. A nil provider produces a software-only report with
// no quote.
func NewIdentityService(identity *attest.SigningIdentity, provider tdx.Provider) (*IdentityService, error) {
	if identity == nil {
		return nil, errors.New("signing identity is required")
	}

	report := &IdentityReport{
		Service:         common.PackageName,
		Version:         common.Version,
		PublicKey:       identity.PublicKey().String(),
		AttestationType: "software",
	}

	if provider != nil {
		quote, err := provider.Attest(ReportDataForIdentity(identity.PublicKey()))
		if err != nil {
			return nil, fmt.Errorf("could not attest identity: %w", err)
		}
		report.AttestationType = provider.AttestationType()
		report.Quote = quote
	}

	signed, err := attest.NewSigned(identity, report)
	if err != nil {
		return nil, fmt.Errorf("could not sign identity report: %w", err)
	}

	return &IdentityService{identity: identity, signed: signed}, nil
}

// SignedReport returns the signed identity report served from GET /identity.
func (s *IdentityService) SignedReport() *attest.Signed[IdentityReport] {
	return s.signed
}

// VerifyIdentityReport checks a signed identity report fetched from a
// service: the envelope signature, that the signer is the claimed key, and,
// when a provider is given, the TEE quote against the claimed key and the
// allowed build measurements.
func VerifyIdentityReport(source MeasurementSource, provider tdx.Provider, signed *attest.Signed[IdentityReport]) (tdx.Measurements, error) {
	report, signer, err := signed.Recover()
	if err != nil {
		return nil, err
	}

	claimedKey, err := crypto.NewPublicKeyFromString(report.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	if !signer.Equal(claimedKey) {
		return nil, errors.New("signer does not match claimed public key")
	}

	if provider == nil {
		return nil, nil
	}
	if len(report.Quote) == 0 {
		return nil, errors.New("no quote in identity report")
	}

	measurements, err := provider.Verify(report.Quote, ReportDataForIdentity(claimedKey))
	if err != nil {
		return nil, fmt.Errorf("could not verify quote: %w", err)
	}

	if source != nil {
		allowedMeasurements, err := source.GetAllowedMeasurements()
		if err != nil {
			return nil, fmt.Errorf("could not fetch allowed measurements: %w", err)
		}

		if _, err := VerifyMeasurementsMatch(allowedMeasurements, measurements); err != nil {
			return nil, fmt.Errorf("build is not allowed: %w", err)
		}
	}

	return measurements, nil
}
