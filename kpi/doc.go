// Package kpi normalizes financial documents and aggregates them into a
// single KPI value for earn-out settlement.
//
// The package is the deterministic heart of the compute pipeline. Raw JSON
// documents are classified into typed ledger entries by shape (tagged-variant
// decode in a fixed priority order), each entry contributes a signed
// fixed-point amount, and the aggregator folds contributions into one KPI
// value plus a per-kind breakdown.
//
// # Document kinds
//
// Four shapes are recognized, tried in this order:
//
//  1. journal_entry: has journalEntryId, credits, or debits.
//     Contribution = sum(credit amounts) - sum(debit amounts).
//  2. fixed_assets_register: has a non-empty assetList whose first item has
//     an assetID. Contribution = -sum of straight-line monthly depreciation
//     per asset.
//  3. payroll: has grossPay or employeeDetails. Contribution = -grossPay.
//  4. overhead_report: has reportTitle "Corporate Overhead Report".
//     Contribution = -10% of totalOverheadCost.
//
// A document matching no shape fails the whole batch with a
// ClassificationError carrying the offending index. Partial batches never
// produce a KPI: a silently skipped document would corrupt the financial
// result.
//
// # Fixed-point arithmetic
//
// All monetary values are signed 64-bit integers in minor units. Floating
// point is never used: the KPI value is later hashed and signed, and the
// resulting bytes must be identical across machines and platforms. Amounts
// are parsed with decimal arithmetic and rejected unless they are
// non-negative, integral, and fit in int64.
package kpi
