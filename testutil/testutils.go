package testutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/settleline/earnout/attest"
	"github.com/settleline/earnout/kpi"
)

// =====================================
// Document Generators
// =====================================

// DocumentOption is a function that modifies a generated document before
// serialization.
type DocumentOption func(map[string]any)

// WithField sets an arbitrary field on a generated document.
func WithField(key string, value any) DocumentOption {
	return func(doc map[string]any) {
		doc[key] = value
	}
}

// WithoutField removes a field from a generated document.
func WithoutField(key string) DocumentOption {
	return func(doc map[string]any) {
		delete(doc, key)
	}
}

func render(doc map[string]any, options []DocumentOption) json.RawMessage {
	for _, option := range options {
		option(doc)
	}
	raw, _ := json.Marshal(doc)
	return raw
}

// JournalEntry generates a journal entry document. Credit legs add to the
// KPI, debit legs subtract. A nil slice omits that side entirely.
func JournalEntry(id string, credits, debits []int64, options ...DocumentOption) json.RawMessage {
	doc := map[string]any{
		"journalEntryId": id,
		"date":           "2024-06-30",
		"description":    "Generated journal entry",
	}
	if credits != nil {
		doc["credits"] = legs("Revenue Account", credits)
	}
	if debits != nil {
		doc["debits"] = legs("Expense Account", debits)
	}
	return render(doc, options)
}

func legs(accountPrefix string, amounts []int64) []map[string]any {
	out := make([]map[string]any, len(amounts))
	for i, amount := range amounts {
		out[i] = map[string]any{
			"account": fmt.Sprintf("%s %d", accountPrefix, i+1),
			"amount":  amount,
		}
	}
	return out
}

// PayrollRecord generates a payroll record. Gross pay reduces the KPI.
func PayrollRecord(employeeID string, grossPay int64, options ...DocumentOption) json.RawMessage {
	doc := map[string]any{
		"employeeDetails": map[string]any{"id": employeeID, "name": "Test Employee"},
		"payPeriod":       "2024-06",
		"grossPay":        grossPay,
	}
	return render(doc, options)
}

// Asset describes one fixed asset for a generated register.
type Asset struct {
	ID              string
	OriginalCost    int64
	ResidualValue   int64
	UsefulLifeYears float64
}

// FixedAssetsRegister generates a fixed assets register document. Each
// asset's straight-line monthly depreciation reduces the KPI.
func FixedAssetsRegister(assets []Asset, options ...DocumentOption) json.RawMessage {
	list := make([]map[string]any, len(assets))
	for i, asset := range assets {
		list[i] = map[string]any{
			"assetID":          asset.ID,
			"originalCost":     asset.OriginalCost,
			"residualValue":    asset.ResidualValue,
			"usefulLife_years": asset.UsefulLifeYears,
		}
	}
	doc := map[string]any{"assetList": list}
	return render(doc, options)
}

// OverheadReport generates a corporate overhead report. Ten percent of the
// total cost reduces the KPI.
func OverheadReport(totalCost int64, options ...DocumentOption) json.RawMessage {
	doc := map[string]any{
		"reportTitle":       "Corporate Overhead Report",
		"period":            "2024-H1",
		"totalOverheadCost": totalCost,
	}
	return render(doc, options)
}

// SettlementBatch returns the standard two-document scenario: one journal
// entry crediting 50000 and one payroll record with gross pay 20000. The
// expected KPI is 30000.
func SettlementBatch() []json.RawMessage {
	return []json.RawMessage{
		JournalEntry("JE-1", []int64{50000}, nil),
		PayrollRecord("E-1", 20000),
	}
}

// =====================================
// Attestation Generators
// =====================================

// AttestationParams collects the knobs for a generated attestation.
type AttestationParams struct {
	Identity  *attest.SigningIdentity
	Documents []json.RawMessage
	KPIValue  int64
	Entries   int
	At        time.Time
}

// AttestationOption is a function that modifies AttestationParams.
type AttestationOption func(*AttestationParams)

// WithIdentity pins the signing identity instead of generating a fresh one.
func WithIdentity(identity *attest.SigningIdentity) AttestationOption {
	return func(p *AttestationParams) {
		p.Identity = identity
	}
}

// WithDocuments sets the attested documents.
func WithDocuments(documents []json.RawMessage) AttestationOption {
	return func(p *AttestationParams) {
		p.Documents = documents
	}
}

// WithKPIValue sets the attested KPI value.
func WithKPIValue(value int64) AttestationOption {
	return func(p *AttestationParams) {
		p.KPIValue = value
	}
}

// WithTime pins the attestation clock.
func WithTime(at time.Time) AttestationOption {
	return func(p *AttestationParams) {
		p.At = at
	}
}

// GenerateTestIdentity generates a fresh signing identity.
func GenerateTestIdentity() *attest.SigningIdentity {
	identity, _ := attest.GenerateSigningIdentity()
	return identity
}

// GenerateTestAttestation signs an attestation over the standard settlement
// batch with a fresh identity and a pinned clock, unless overridden by
// options.
func GenerateTestAttestation(options ...AttestationOption) *attest.Attestation {
	params := &AttestationParams{
		Identity:  GenerateTestIdentity(),
		Documents: SettlementBatch(),
		KPIValue:  30000,
		Entries:   2,
		At:        time.UnixMilli(1717171717171),
	}
	for _, option := range options {
		option(params)
	}

	attestor := attest.NewSoftwareAttestor(params.Identity,
		attest.WithClock(func() time.Time { return params.At }))

	attestation, _ := attestor.Attest(&kpi.KPIResult{
		KPI:              params.KPIValue,
		EntriesProcessed: params.Entries,
	}, params.Documents)
	return attestation
}

// GenerateEncodedAttestation produces the wire encoding of a generated
// attestation.
func GenerateEncodedAttestation(options ...AttestationOption) []byte {
	encoded, _ := attest.Encode(GenerateTestAttestation(options...))
	return encoded
}
