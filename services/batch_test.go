package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleline/earnout/kpi"
	"github.com/settleline/earnout/testutil"
)

func TestComputeAllDocumentKinds(t *testing.T) {
	svc := newTestComputeService(t, nil)

	// 51200 credits - 18000 debits, 10000/month depreciation, 20000 gross
	// pay, 10% of 55 rounded to 6.
	batch := []json.RawMessage{
		testutil.JournalEntry("JE-9", []int64{50000, 1200}, []int64{18000}),
		testutil.FixedAssetsRegister([]testutil.Asset{
			{ID: "A-1", OriginalCost: 120000, UsefulLifeYears: 1},
		}),
		testutil.PayrollRecord("E-1", 20000),
		testutil.OverheadReport(55),
	}

	result, err := svc.ComputeSimple(context.Background(), batch, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(3194), result.KPI)
	assert.Equal(t, 4, result.EntriesProcessed)
	assert.Equal(t, int64(33200), result.Breakdown[kpi.KindJournalEntry])
	assert.Equal(t, int64(-10000), result.Breakdown[kpi.KindFixedAssets])
	assert.Equal(t, int64(-20000), result.Breakdown[kpi.KindPayroll])
	assert.Equal(t, int64(-6), result.Breakdown[kpi.KindOverhead])
}

func TestComputeMalformedGeneratedDocument(t *testing.T) {
	svc := newTestComputeService(t, nil)

	batch := []json.RawMessage{
		testutil.JournalEntry("JE-1", []int64{100}, nil),
		testutil.PayrollRecord("E-1", 20000, testutil.WithoutField("grossPay"), testutil.WithoutField("employeeDetails")),
	}

	_, err := svc.ComputeSimple(context.Background(), batch, 0)
	var classErr *kpi.ClassificationError
	require.ErrorAs(t, err, &classErr)
	assert.Equal(t, 1, classErr.Index)
}

func TestComputeOrderAffectsHashNotKPI(t *testing.T) {
	svc := newTestComputeService(t, nil)
	docs := testutil.SettlementBatch()
	reversed := []json.RawMessage{docs[1], docs[0]}

	forward, err := svc.ComputeWithAttestation(context.Background(), docs)
	require.NoError(t, err)
	backward, err := svc.ComputeWithAttestation(context.Background(), reversed)
	require.NoError(t, err)

	// Integer addition commutes, but the hash binds submission order.
	assert.Equal(t, forward.KPIResult.KPI, backward.KPIResult.KPI)
	assert.NotEqual(t, forward.Attestation.ComputationHash, backward.Attestation.ComputationHash)
}

func TestHandleVerifyForeignAttestation(t *testing.T) {
	// An attestation issued under a different identity still verifies: the
	// public key travels inside the encoded bytes.
	env := newHandlerEnv(t)
	encoded := testutil.GenerateEncodedAttestation()

	reqBody, err := json.Marshal(&VerifyRequest{
		AttestationBytes: ByteArray(encoded),
		Documents:        testutil.SettlementBatch(),
	})
	require.NoError(t, err)

	status, body := env.post(t, "/verify", string(reqBody))
	require.Equal(t, http.StatusOK, status)

	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, int64(30000), resp.Data.Attestation.KPIValue)
}
