package kpi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// DocumentKind identifies the classified shape of a financial document.
type DocumentKind string

const (
	KindJournalEntry DocumentKind = "journal_entry"
	KindFixedAssets  DocumentKind = "fixed_assets_register"
	KindPayroll      DocumentKind = "payroll"
	KindOverhead     DocumentKind = "overhead_report"
)

// overheadReportTitle is the exact report title that marks an overhead report.
const overheadReportTitle = "Corporate Overhead Report"

// Valid returns true if the document kind is recognized.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindJournalEntry, KindFixedAssets, KindPayroll, KindOverhead:
		return true
	}
	return false
}

var monthsPerYear = decimal.NewFromInt(12)

// decodeDocument parses a raw document into a generic object, preserving
// numeric literals as json.Number so no precision is lost before fixed-point
// parsing.
func decodeDocument(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	return doc, nil
}

// classify matches a decoded document against the known shapes in fixed
// priority order. The order mirrors the settlement ledger convention:
// journal entries first, then asset registers, payroll, and overhead
// reports. Returns false when no shape matches.
func classify(doc map[string]any) (DocumentKind, bool) {
	if _, ok := doc["journalEntryId"]; ok {
		return KindJournalEntry, true
	}
	if _, ok := doc["credits"]; ok {
		return KindJournalEntry, true
	}
	if _, ok := doc["debits"]; ok {
		return KindJournalEntry, true
	}

	if list, ok := doc["assetList"].([]any); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]any); ok {
			if _, ok := first["assetID"]; ok {
				return KindFixedAssets, true
			}
		}
	}

	if _, ok := doc["grossPay"]; ok {
		return KindPayroll, true
	}
	if _, ok := doc["employeeDetails"]; ok {
		return KindPayroll, true
	}

	if title, ok := doc["reportTitle"].(string); ok && title == overheadReportTitle {
		return KindOverhead, true
	}

	return "", false
}

// parseAmount parses a monetary field into fixed-point minor units.
// Accepts JSON numbers and numeric strings; rejects anything negative,
// fractional, or outside int64 range. The strictness is deliberate: an
// amount that cannot be represented exactly must never be approximated,
// because the KPI value derived from it is hashed and signed.
func parseAmount(v any, field string) (int64, error) {
	d, err := parseDecimal(v)
	if err != nil {
		return 0, fmt.Errorf("%s is not numeric", field)
	}
	if d.Sign() < 0 {
		return 0, fmt.Errorf("%s must be non-negative", field)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s must be integral minor units", field)
	}
	bi := d.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("%s exceeds the representable range", field)
	}
	return bi.Int64(), nil
}

func parseDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// journalEntryContribution sums credit legs and subtracts debit legs.
// Credited accounts are revenue-positive, debited accounts expense-negative;
// callers supply entries already split per standard ledger convention.
func journalEntryContribution(doc map[string]any) (int64, error) {
	credits, err := sumLegs(doc, "credits")
	if err != nil {
		return 0, err
	}
	debits, err := sumLegs(doc, "debits")
	if err != nil {
		return 0, err
	}
	return credits - debits, nil
}

func sumLegs(doc map[string]any, side string) (int64, error) {
	raw, ok := doc[side]
	if !ok {
		return 0, nil
	}
	legs, ok := raw.([]any)
	if !ok {
		return 0, fmt.Errorf("%s is not an array", side)
	}

	var total int64
	for i, leg := range legs {
		entry, ok := leg.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("%s[%d] is not an object", side, i)
		}
		amountRaw, ok := entry["amount"]
		if !ok {
			return 0, fmt.Errorf("%s[%d] is missing amount", side, i)
		}
		amount, err := parseAmount(amountRaw, fmt.Sprintf("%s[%d].amount", side, i))
		if err != nil {
			return 0, err
		}
		total += amount
	}
	return total, nil
}

// fixedAssetsContribution computes the negated sum of straight-line monthly
// depreciation over every asset in the register:
//
//	monthly = (originalCost - residualValue) / (usefulLife_years * 12)
//
// Division runs in decimal arithmetic and rounds half away from zero to
// whole minor units per asset, so the result is identical on every platform.
func fixedAssetsContribution(doc map[string]any) (int64, error) {
	list, ok := doc["assetList"].([]any)
	if !ok {
		return 0, fmt.Errorf("assetList is not an array")
	}

	var total int64
	for i, item := range list {
		asset, ok := item.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("assetList[%d] is not an object", i)
		}

		costRaw, ok := asset["originalCost"]
		if !ok {
			return 0, fmt.Errorf("assetList[%d] is missing originalCost", i)
		}
		cost, err := parseAmount(costRaw, fmt.Sprintf("assetList[%d].originalCost", i))
		if err != nil {
			return 0, err
		}

		var residual int64
		if residualRaw, ok := asset["residualValue"]; ok {
			residual, err = parseAmount(residualRaw, fmt.Sprintf("assetList[%d].residualValue", i))
			if err != nil {
				return 0, err
			}
		}
		if residual > cost {
			return 0, fmt.Errorf("assetList[%d]: residualValue exceeds originalCost", i)
		}

		lifeRaw, ok := asset["usefulLife_years"]
		if !ok {
			return 0, fmt.Errorf("assetList[%d] is missing usefulLife_years", i)
		}
		years, err := parseDecimal(lifeRaw)
		if err != nil {
			return 0, fmt.Errorf("assetList[%d].usefulLife_years is not numeric", i)
		}
		months := years.Mul(monthsPerYear)
		if months.Sign() <= 0 || !months.IsInteger() {
			return 0, fmt.Errorf("assetList[%d].usefulLife_years must yield a positive whole number of months", i)
		}

		monthly := decimal.NewFromInt(cost - residual).DivRound(months, 0)
		if !monthly.BigInt().IsInt64() {
			return 0, fmt.Errorf("assetList[%d]: depreciation exceeds the representable range", i)
		}
		total += monthly.BigInt().Int64()
	}

	return -total, nil
}

// payrollContribution negates gross pay: payroll is always a KPI reduction.
func payrollContribution(doc map[string]any) (int64, error) {
	grossRaw, ok := doc["grossPay"]
	if !ok {
		return 0, fmt.Errorf("payroll record is missing grossPay")
	}
	gross, err := parseAmount(grossRaw, "grossPay")
	if err != nil {
		return 0, err
	}
	return -gross, nil
}

// overheadContribution applies the 10% corporate overhead allocation,
// negated, rounded half away from zero to whole minor units.
func overheadContribution(doc map[string]any) (int64, error) {
	costRaw, ok := doc["totalOverheadCost"]
	if !ok {
		return 0, fmt.Errorf("overhead report is missing totalOverheadCost")
	}
	cost, err := parseAmount(costRaw, "totalOverheadCost")
	if err != nil {
		return 0, err
	}
	allocated := decimal.NewFromInt(cost).DivRound(decimal.NewFromInt(10), 0)
	return -allocated.BigInt().Int64(), nil
}
