// Command attest-cli provides CLI tools for working with earn-out settlement
// attestations.
//
// # Commands
//
// compute: Submit a document batch to a running service, or compute locally.
//
//	attest-cli compute --file=documents.json --service=http://localhost:8080
//
// verify: Check an encoded attestation offline, no service involved.
//
//	attest-cli verify --file=attestation.bin --documents=documents.json
//
// inspect: Decode an encoded attestation and print its fields.
//
//	attest-cli inspect --file=attestation.bin
//
// identity: Fetch a service's signing identity and verify its quote.
//
//	attest-cli identity --service=http://localhost:8080
package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/settleline/earnout/attest"
	"github.com/settleline/earnout/kpi"
	"github.com/settleline/earnout/services"
	"github.com/settleline/earnout/tdx"
)

// verificationConfig holds attestation verification settings.
type verificationConfig struct {
	measurementsURL  string
	skipVerification bool
}

func (v *verificationConfig) measurementSource() services.MeasurementSource {
	if v.skipVerification {
		return nil
	}
	if v.measurementsURL != "" {
		return services.NewRemoteMeasurementSource(v.measurementsURL)
	}
	return services.DevMeasurementSource()
}

// attestationProvider picks the verifier matching the attestation type a
// service reports. Software identities carry no quote, so there is nothing
// to verify beyond the envelope signature.
func attestationProvider(attestationType string) tdx.Provider {
	switch attestationType {
	case "dcap-tdx":
		return &tdx.TDXProvider{}
	case "dummy-tdx":
		return &tdx.DummyProvider{}
	default:
		return nil
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "compute":
		err = runCompute(args)
	case "verify":
		err = runVerify(args)
	case "inspect":
		err = runInspect(args)
	case "identity":
		err = runIdentity(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`attest-cli - CLI tools for earn-out settlement attestations

Usage:
  attest-cli <command> [options]

Commands:
  compute   Compute a KPI from a document batch
  verify    Verify an encoded attestation offline
  inspect   Decode an encoded attestation and print it
  identity  Fetch and verify a service's signing identity

Run 'attest-cli <command> --help' for command-specific options.`)
}

// --- Compute Command ---

func runCompute(args []string) error {
	var (
		serviceURL string
		filePath   string
		outPath    string
		simple     bool
		local      bool
		initialKPI int64
	)

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--service", "-s":
			i++
			if i < len(args) {
				serviceURL = args[i]
			}
		case "--file", "-f":
			i++
			if i < len(args) {
				filePath = args[i]
			}
		case "--out", "-o":
			i++
			if i < len(args) {
				outPath = args[i]
			}
		case "--simple":
			simple = true
		case "--local":
			local = true
		case "--initial-kpi":
			i++
			if i < len(args) {
				fmt.Sscanf(args[i], "%d", &initialKPI)
			}
		case "--help", "-h":
			printComputeHelp()
			return nil
		}
	}

	if filePath == "" {
		return fmt.Errorf("--file is required")
	}
	if initialKPI != 0 && !simple {
		return fmt.Errorf("--initial-kpi only applies to --simple computations")
	}

	documents, err := readDocuments(filePath)
	if err != nil {
		return err
	}

	if local {
		return computeLocal(documents, simple, initialKPI, outPath)
	}

	if serviceURL == "" {
		serviceURL = "http://localhost:8080"
	}
	return computeRemote(serviceURL, documents, simple, initialKPI, outPath)
}

func printComputeHelp() {
	fmt.Println(`attest-cli compute - Compute a KPI from a document batch

Usage:
  attest-cli compute --file=<documents.json> [options]

Options:
  --file, -f       JSON file holding an array of financial documents (required)
  --service, -s    Service URL (default: http://localhost:8080)
  --local          Compute locally with an ephemeral signing identity
  --simple         Compute the KPI only, without an attestation
  --initial-kpi    Baseline KPI value in minor units (--simple only)
  --out, -o        Write the encoded attestation bytes to a file

Examples:
  # Attested computation against a running service
  attest-cli compute -f documents.json -s https://settle.example.com -o attestation.bin

  # Quick local check of the KPI math
  attest-cli compute -f documents.json --local --simple`)
}

func computeLocal(documents []json.RawMessage, simple bool, initialKPI int64, outPath string) error {
	identity, err := attest.GenerateSigningIdentity()
	if err != nil {
		return fmt.Errorf("generating signing identity: %w", err)
	}
	svc := services.NewComputeService(&services.ComputeServiceConfig{
		Attestor: attest.NewSoftwareAttestor(identity),
	})

	ctx := context.Background()
	if simple {
		result, err := svc.ComputeSimple(ctx, documents, initialKPI)
		if err != nil {
			return err
		}
		printKPIResult(result)
		return nil
	}

	result, err := svc.ComputeWithAttestation(ctx, documents)
	if err != nil {
		return err
	}

	printKPIResult(result.KPIResult)
	fmt.Println("\nAttestation (signed with an ephemeral local identity):")
	printAttestationInfo(services.NewAttestationInfo(result.Attestation))
	return writeAttestation(outPath, result.AttestationBytes)
}

func computeRemote(serviceURL string, documents []json.RawMessage, simple bool, initialKPI int64, outPath string) error {
	request := services.ComputeRequest{
		Documents:  documents,
		Operation:  services.OperationWithAttestation,
		InitialKPI: initialKPI,
	}
	if simple {
		request.Operation = services.OperationSimple
	}

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Post(serviceURL+"/compute", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("calling service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("compute failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var response services.ComputeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if response.Data == nil {
		return fmt.Errorf("service returned no data")
	}

	printKPIResult(response.Data.KPIResult)
	if response.Data.Attestation != nil {
		fmt.Println("\nAttestation:")
		printAttestationInfo(response.Data.Attestation)
	}
	return writeAttestation(outPath, response.Data.AttestationBytes)
}

// --- Verify Command ---

func runVerify(args []string) error {
	var (
		filePath      string
		hexString     string
		documentsPath string
	)

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--file", "-f":
			i++
			if i < len(args) {
				filePath = args[i]
			}
		case "--hex":
			i++
			if i < len(args) {
				hexString = args[i]
			}
		case "--documents", "-d":
			i++
			if i < len(args) {
				documentsPath = args[i]
			}
		case "--help", "-h":
			printVerifyHelp()
			return nil
		}
	}

	encoded, err := readAttestationBytes(filePath, hexString)
	if err != nil {
		return err
	}

	attestation, err := attest.Decode(encoded)
	if err != nil {
		return fmt.Errorf("decoding attestation: %w", err)
	}
	if !attestation.Verify() {
		return fmt.Errorf("signature verification failed")
	}
	fmt.Println("Signature: OK")
	printAttestationInfo(services.NewAttestationInfo(attestation))

	if documentsPath == "" {
		return nil
	}

	documents, err := readDocuments(documentsPath)
	if err != nil {
		return err
	}
	if err := attestation.MatchesDocuments(documents); err != nil {
		return fmt.Errorf("document check failed: %w", err)
	}
	fmt.Println("\nDocuments: match the computation hash")
	return nil
}

func printVerifyHelp() {
	fmt.Println(`attest-cli verify - Verify an encoded attestation offline

Verification needs nothing but the attestation bytes; the signing key
travels inside them. Pass the original document batch to also check that
the attested hash covers exactly those documents.

Usage:
  attest-cli verify --file=<attestation.bin> [options]
  attest-cli verify --hex=<encoded-hex> [options]

Options:
  --file, -f       File holding the raw encoded attestation
  --hex            Encoded attestation as a hex string
  --documents, -d  JSON file with the document batch to check against

Examples:
  attest-cli verify -f attestation.bin
  attest-cli verify -f attestation.bin -d documents.json`)
}

// --- Inspect Command ---

func runInspect(args []string) error {
	var (
		filePath  string
		hexString string
		asJSON    bool
	)

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--file", "-f":
			i++
			if i < len(args) {
				filePath = args[i]
			}
		case "--hex":
			i++
			if i < len(args) {
				hexString = args[i]
			}
		case "--json":
			asJSON = true
		case "--help", "-h":
			printInspectHelp()
			return nil
		}
	}

	encoded, err := readAttestationBytes(filePath, hexString)
	if err != nil {
		return err
	}

	attestation, err := attest.Decode(encoded)
	if err != nil {
		return fmt.Errorf("decoding attestation: %w", err)
	}

	if asJSON {
		out, err := json.MarshalIndent(services.NewAttestationInfo(attestation), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	printAttestationInfo(services.NewAttestationInfo(attestation))
	fmt.Printf("Signature valid:  %t\n", attestation.Verify())
	return nil
}

func printInspectHelp() {
	fmt.Println(`attest-cli inspect - Decode an encoded attestation and print it

Usage:
  attest-cli inspect --file=<attestation.bin>
  attest-cli inspect --hex=<encoded-hex>

Options:
  --file, -f    File holding the raw encoded attestation
  --hex         Encoded attestation as a hex string
  --json        Print as JSON instead of text`)
}

// --- Identity Command ---

func runIdentity(args []string) error {
	var (
		serviceURL string
		verifyCfg  verificationConfig
	)

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--service", "-s":
			i++
			if i < len(args) {
				serviceURL = args[i]
			}
		case "--measurements-url":
			i++
			if i < len(args) {
				verifyCfg.measurementsURL = args[i]
			}
		case "--skip-verification":
			verifyCfg.skipVerification = true
		case "--help", "-h":
			printIdentityHelp()
			return nil
		}
	}

	if serviceURL == "" {
		serviceURL = "http://localhost:8080"
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Get(serviceURL + "/identity")
	if err != nil {
		return fmt.Errorf("fetching identity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("identity request failed (%d): %s", resp.StatusCode, string(respBody))
	}

	signed, err := attest.DecodeMessage[attest.Signed[services.IdentityReport]](resp.Body)
	if err != nil {
		return fmt.Errorf("decoding identity report: %w", err)
	}

	report, signer, err := signed.Recover()
	if err != nil {
		return fmt.Errorf("identity envelope signature invalid: %w", err)
	}

	fmt.Println("Identity report:")
	fmt.Printf("  Service:          %s\n", report.Service)
	fmt.Printf("  Version:          %s\n", report.Version)
	fmt.Printf("  Public key:       %s\n", report.PublicKey)
	fmt.Printf("  Attestation type: %s\n", report.AttestationType)
	fmt.Printf("  Quote:            %d bytes\n", len(report.Quote))
	fmt.Printf("  Envelope signer:  %s\n", signer.String())

	if verifyCfg.skipVerification {
		fmt.Println("\nAttestation verification skipped.")
		return nil
	}

	provider := attestationProvider(report.AttestationType)
	measurements, err := services.VerifyIdentityReport(verifyCfg.measurementSource(), provider, signed)
	if err != nil {
		return fmt.Errorf("identity verification failed: %w", err)
	}
	if provider == nil {
		fmt.Println("\nNo TEE quote to check (software identity); envelope signature verified.")
		return nil
	}

	fmt.Println("\nQuote verified; measured registers:")
	printMeasurements(measurements)
	return nil
}

func printIdentityHelp() {
	fmt.Println(`attest-cli identity - Fetch and verify a service's signing identity

Usage:
  attest-cli identity --service=<url> [options]

Options:
  --service, -s         Service URL (default: http://localhost:8080)
  --measurements-url    URL for allowed TEE measurements
  --skip-verification   Skip attestation verification (insecure)

Examples:
  attest-cli identity -s https://settle.example.com
  attest-cli identity -s https://settle.example.com --measurements-url=https://example.com/measurements.json`)
}

// --- Helpers ---

func readDocuments(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading documents file: %w", err)
	}
	var documents []json.RawMessage
	if err := json.Unmarshal(data, &documents); err != nil {
		return nil, fmt.Errorf("parsing documents file: %w", err)
	}
	return documents, nil
}

func readAttestationBytes(filePath, hexString string) ([]byte, error) {
	if filePath == "" && hexString == "" {
		return nil, fmt.Errorf("--file or --hex is required")
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("reading attestation file: %w", err)
		}
		return data, nil
	}
	data, err := hex.DecodeString(strings.TrimSpace(hexString))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

func writeAttestation(path string, encoded []byte) error {
	if path == "" || len(encoded) == 0 {
		return nil
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("writing attestation file: %w", err)
	}
	fmt.Printf("\nWrote %d attestation bytes to %s\n", len(encoded), path)
	return nil
}

func printKPIResult(result *kpi.KPIResult) {
	fmt.Printf("KPI value:         %d\n", result.KPI)
	fmt.Printf("Entries processed: %d\n", result.EntriesProcessed)
	if len(result.Breakdown) == 0 {
		return
	}

	kinds := make([]string, 0, len(result.Breakdown))
	for kind := range result.Breakdown {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	fmt.Println("Breakdown:")
	for _, kind := range kinds {
		fmt.Printf("  %-22s %d\n", kind, result.Breakdown[kpi.DocumentKind(kind)])
	}
}

func printAttestationInfo(info *services.AttestationInfo) {
	attestedAt := time.UnixMilli(info.Timestamp).UTC()
	fmt.Printf("Computation hash: %s\n", info.ComputationHash)
	fmt.Printf("KPI value:        %d\n", info.KPIValue)
	fmt.Printf("Attested at:      %s (%d ms)\n", attestedAt.Format(time.RFC3339), info.Timestamp)
	fmt.Printf("Public key:       %s\n", info.TEEPublicKey)
	fmt.Printf("Signature:        %s\n", info.Signature)
}

func printMeasurements(measurements tdx.Measurements) {
	names := map[int]string{
		tdx.RegisterMRTD:  "MRTD",
		tdx.RegisterRTMR0: "RTMR0",
		tdx.RegisterRTMR1: "RTMR1",
		tdx.RegisterRTMR2: "RTMR2",
		tdx.RegisterRTMR3: "RTMR3",
	}

	registers := make([]int, 0, len(measurements))
	for register := range measurements {
		registers = append(registers, register)
	}
	sort.Ints(registers)

	for _, register := range registers {
		name, ok := names[register]
		if !ok {
			name = fmt.Sprintf("register %d", register)
		}
		fmt.Printf("  %-6s %s\n", name, hex.EncodeToString(measurements[register]))
	}
}
