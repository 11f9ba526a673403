package kpi

// KPIResult is the outcome of folding a batch of normalized entries into a
// single KPI value. Immutable once produced; one result per compute
// invocation.
type KPIResult struct {
	// KPI is the aggregated value in signed fixed-point minor units.
	KPI int64 `json:"kpi"`
	// EntriesProcessed is the number of normalized entries folded in.
	EntriesProcessed int `json:"entries_processed"`
	// Breakdown maps each document kind to its subtotal contribution.
	Breakdown map[DocumentKind]int64 `json:"breakdown"`
}

// Aggregate folds entries into a KPIResult, starting from initialKPI.
// Contributions are added in submission order, but fixed-point integer
// addition is associative and commutative, so any permutation of the same
// entry multiset yields the same KPI value.
func Aggregate(entries []NormalizedEntry, initialKPI int64) *KPIResult {
	result := &KPIResult{
		KPI:       initialKPI,
		Breakdown: make(map[DocumentKind]int64, len(entries)),
	}

	for _, entry := range entries {
		result.KPI += entry.Contribution
		result.Breakdown[entry.Kind] += entry.Contribution
		result.EntriesProcessed++
	}

	return result
}
