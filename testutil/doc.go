/*
Package testutil provides test fixture generators for the settlement pipeline.

The generators produce the financial documents the normalizer classifies and
signed attestations over them, so tests can focus on behavior instead of
fixture plumbing. All generators use the functional option pattern for
customization.

# Document Generators

Each known document kind has a generator returning json.RawMessage, ready to
feed into the compute pipeline:

	// A journal entry crediting 50000 minor units
	entry := testutil.JournalEntry("JE-1", []int64{50000}, nil)

	// A payroll record with gross pay 20000
	payroll := testutil.PayrollRecord("E-1", 20000)

	// An asset register with one asset depreciating 1000/month
	register := testutil.FixedAssetsRegister([]testutil.Asset{
		{ID: "A-1", OriginalCost: 12000, UsefulLifeYears: 1},
	})

	// An overhead report allocating 10% of 4000
	overhead := testutil.OverheadReport(4000)

Options tweak the generated object before serialization, e.g. to produce
malformed documents:

	bad := testutil.PayrollRecord("E-1", 20000, testutil.WithoutField("grossPay"))
	neg := testutil.OverheadReport(4000, testutil.WithField("totalOverheadCost", -1))

SettlementBatch returns the standard two-document scenario (journal entry
crediting 50000, payroll with gross pay 20000) whose expected KPI is 30000.

# Attestation Generators

GenerateTestAttestation signs an attestation with a fresh identity and a
pinned clock, customizable per test:

	attestation := testutil.GenerateTestAttestation(
		testutil.WithKPIValue(-500),
		testutil.WithTime(time.UnixMilli(1700000000000)),
	)

	encoded := testutil.GenerateEncodedAttestation()

This package is intended for testing only and must not be imported by
production code.
*/
package testutil
