// Package tdx generates and verifies Intel TDX quotes that bind the
// service's signing identity to a hardware-rooted build measurement.
// Quotes travel out of band (the identity endpoint); the fixed attestation
// wire format never embeds them.
package tdx

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/go-tdx-guest/abi"
	"github.com/google/go-tdx-guest/client"
	proto_checkconfig "github.com/google/go-tdx-guest/proto/checkconfig"
	proto "github.com/google/go-tdx-guest/proto/tdx"
	"github.com/google/go-tdx-guest/validate"
	"github.com/google/go-tdx-guest/verify"
)

// ReportDataSize is the size of the user data field a quote binds.
const ReportDataSize = 64

// Measurement register indices as returned by Verify.
const (
	RegisterMRTD = iota
	RegisterRTMR0
	RegisterRTMR1
	RegisterRTMR2
	RegisterRTMR3
)

// Measurements maps measurement register indices to their values.
type Measurements map[int][]byte

// Provider abstracts quote generation and verification so deployments can
// run with real TDX hardware, a remote quoting service, or no TEE at all.
type Provider interface {
	AttestationType() string
	Attest(reportData [ReportDataSize]byte) ([]byte, error)
	Verify(quote []byte, expectedReportData [ReportDataSize]byte) (Measurements, error)
}

// TDXProvider generates and verifies quotes using the local TDX device.
type TDXProvider struct{}

func (p *TDXProvider) AttestationType() string {
	return "dcap-tdx"
}

// Attest generates a TDX quote binding the report data.
func (p *TDXProvider) Attest(reportData [ReportDataSize]byte) ([]byte, error) {
	qp := &client.LinuxConfigFsQuoteProvider{}
	return qp.GetRawQuote(reportData)
}

// Verify validates a TDX quote and returns measurements if valid.
func (p *TDXProvider) Verify(quote []byte, expectedReportData [ReportDataSize]byte) (Measurements, error) {
	return VerifyDCAP(quote, expectedReportData[:])
}

// RemoteDCAPProvider fetches quotes from a quoting service on the same host
// (the usual setup when the workload container has no configfs access) and
// verifies them locally.
type RemoteDCAPProvider struct {
	URL     string
	Timeout time.Duration
}

func (p *RemoteDCAPProvider) AttestationType() string {
	return "dcap-tdx"
}

// Attest requests a TDX quote from the remote quoting service.
func (p *RemoteDCAPProvider) Attest(reportData [ReportDataSize]byte) ([]byte, error) {
	url := fmt.Sprintf("%s/attest/%s", p.URL, hex.EncodeToString(reportData[:]))

	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling remote quote provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote quote provider returned status %d: %s", resp.StatusCode, string(body))
	}

	rawQuote, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading quote from response: %w", err)
	}

	return rawQuote, nil
}

// Verify validates a TDX quote and returns measurements if valid.
func (p *RemoteDCAPProvider) Verify(quote []byte, expectedReportData [ReportDataSize]byte) (Measurements, error) {
	return VerifyDCAP(quote, expectedReportData[:])
}

func mustDecodeHex(data string) []byte {
	decoded, err := hex.DecodeString(data)
	if err != nil {
		panic(err.Error())
	}
	return decoded
}

// VerifyDCAP validates a TDX DCAP quote against expected report data and
// returns the quoted measurement registers.
func VerifyDCAP(rawQuote []byte, expectedReportData []byte) (Measurements, error) {
	anyQuote, err := abi.QuoteToProto(rawQuote)
	if err != nil {
		return nil, fmt.Errorf("could not convert raw bytes to QuoteV4: %v", err)
	}
	quote, ok := anyQuote.(*proto.QuoteV4)
	if !ok {
		return nil, errors.New("quote is not a QuoteV4")
	}

	config := &proto_checkconfig.Config{
		RootOfTrust: &proto_checkconfig.RootOfTrust{
			CheckCrl:      true,
			GetCollateral: true,
		},
		Policy: &proto_checkconfig.Policy{
			HeaderPolicy: &proto_checkconfig.HeaderPolicy{
				MinimumQeSvn:  0,
				MinimumPceSvn: 0,
				QeVendorId:    mustDecodeHex("939a7233f79c4ca9940a0db3957f0607"),
			},
			TdQuoteBodyPolicy: &proto_checkconfig.TDQuoteBodyPolicy{
				TdAttributes: mustDecodeHex("0000001000000000"),
				ReportData:   expectedReportData,
			},
		},
	}

	options, err := verify.RootOfTrustToOptions(config.RootOfTrust)
	if err != nil {
		return nil, fmt.Errorf("converting root of trust to options: %w", err)
	}

	if err := verify.TdxQuote(quote, options); err != nil {
		return nil, fmt.Errorf("verifying TDX quote: %w", err)
	}

	opts, err := validate.PolicyToOptions(config.Policy)
	if err != nil {
		return nil, fmt.Errorf("converting policy to options: %v", err)
	}

	if err := validate.TdxQuote(quote, opts); err != nil {
		return nil, fmt.Errorf("validating TDX quote: %v", err)
	}

	return Measurements{
		RegisterMRTD:  quote.GetTdQuoteBody().MrTd,
		RegisterRTMR0: quote.GetTdQuoteBody().Rtmrs[0],
		RegisterRTMR1: quote.GetTdQuoteBody().Rtmrs[1],
		RegisterRTMR2: quote.GetTdQuoteBody().Rtmrs[2],
		RegisterRTMR3: quote.GetTdQuoteBody().Rtmrs[3],
	}, nil
}

// DummyProvider provides mock attestation for deployments without TEE
// hardware. The quote is the report data itself.
type DummyProvider struct{}

func (p *DummyProvider) AttestationType() string {
	return "dummy-tdx"
}

// Attest returns the report data as a mock quote.
func (p *DummyProvider) Attest(reportData [ReportDataSize]byte) ([]byte, error) {
	ret := make([]byte, len(reportData))
	copy(ret, reportData[:])
	return ret, nil
}

// Verify checks that the mock quote matches the expected report data.
func (p *DummyProvider) Verify(quote []byte, expectedReportData [ReportDataSize]byte) (Measurements, error) {
	if !bytes.Equal(quote, expectedReportData[:]) {
		return nil, errors.New("quote does not match report data")
	}

	return Measurements{
		RegisterMRTD:  {0},
		RegisterRTMR0: {1},
		RegisterRTMR1: {2},
		RegisterRTMR2: {3},
		RegisterRTMR3: {4},
	}, nil
}
