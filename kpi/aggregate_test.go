package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateSettlementScenario(t *testing.T) {
	// One sales journal entry and one payroll run: 50000 - 20000.
	entries, err := Normalize(docs(
		`{"journalEntryId": "JE-1", "credits": [{"account": "Sales Revenue", "amount": 50000}]}`,
		`{"employeeDetails": {}, "grossPay": 20000}`,
	))
	require.NoError(t, err)

	result := Aggregate(entries, 0)
	require.NotNil(t, result)

	assert.Equal(t, int64(30000), result.KPI)
	assert.Equal(t, 2, result.EntriesProcessed)
	assert.Equal(t, int64(50000), result.Breakdown[KindJournalEntry])
	assert.Equal(t, int64(-20000), result.Breakdown[KindPayroll])
}

func permutations(entries []NormalizedEntry) [][]NormalizedEntry {
	if len(entries) <= 1 {
		return [][]NormalizedEntry{append([]NormalizedEntry(nil), entries...)}
	}
	var out [][]NormalizedEntry
	for i := range entries {
		rest := make([]NormalizedEntry, 0, len(entries)-1)
		rest = append(rest, entries[:i]...)
		rest = append(rest, entries[i+1:]...)
		for _, perm := range permutations(rest) {
			out = append(out, append([]NormalizedEntry{entries[i]}, perm...))
		}
	}
	return out
}

func TestAggregateOrderInvariance(t *testing.T) {
	entries := []NormalizedEntry{
		{SourceIndex: 0, Kind: KindJournalEntry, Contribution: 50000},
		{SourceIndex: 1, Kind: KindPayroll, Contribution: -20000},
		{SourceIndex: 2, Kind: KindOverhead, Contribution: -5000},
		{SourceIndex: 3, Kind: KindFixedAssets, Contribution: -1000},
	}

	reference := Aggregate(entries, 7)
	perms := permutations(entries)
	require.Len(t, perms, 24)

	for _, perm := range perms {
		result := Aggregate(perm, 7)
		assert.Equal(t, reference.KPI, result.KPI)
		assert.Equal(t, reference.EntriesProcessed, result.EntriesProcessed)
		assert.Equal(t, reference.Breakdown, result.Breakdown)
	}
}

func TestAggregateInitialKPI(t *testing.T) {
	entries := []NormalizedEntry{
		{Kind: KindJournalEntry, Contribution: 100},
	}

	assert.Equal(t, int64(100), Aggregate(entries, 0).KPI)
	assert.Equal(t, int64(600), Aggregate(entries, 500).KPI)
	assert.Equal(t, int64(-900), Aggregate(entries, -1000).KPI)
}

func TestAggregateNoEntries(t *testing.T) {
	result := Aggregate(nil, 42)
	require.NotNil(t, result)

	assert.Equal(t, int64(42), result.KPI)
	assert.Zero(t, result.EntriesProcessed)
	assert.Empty(t, result.Breakdown)
}

func TestAggregateBreakdownSubtotals(t *testing.T) {
	entries := []NormalizedEntry{
		{Kind: KindJournalEntry, Contribution: 100},
		{Kind: KindJournalEntry, Contribution: 250},
		{Kind: KindPayroll, Contribution: -40},
		{Kind: KindPayroll, Contribution: -60},
	}

	result := Aggregate(entries, 0)
	assert.Equal(t, int64(250), result.KPI)
	assert.Equal(t, int64(350), result.Breakdown[KindJournalEntry])
	assert.Equal(t, int64(-100), result.Breakdown[KindPayroll])
	assert.Len(t, result.Breakdown, 2)
}
