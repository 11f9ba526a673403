package kpi

import (
	"encoding/json"
	"fmt"
)

// NormalizedEntry is one classified document with its signed fixed-point
// contribution to the KPI. SourceIndex preserves the document's position in
// the submitted sequence for auditing; it never influences the KPI value.
type NormalizedEntry struct {
	SourceIndex  int          `json:"source_index"`
	Kind         DocumentKind `json:"kind"`
	Contribution int64        `json:"contribution"`
}

// ClassificationError reports the first document in a batch that could not
// be classified or whose amounts could not be parsed. The whole batch is
// aborted: no partial KPI is ever produced.
type ClassificationError struct {
	Index  int
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("document %d: %s", e.Index, e.Reason)
}

// Normalize classifies every document and computes its contribution,
// preserving submission order. It fails fast with a *ClassificationError on
// the first document that matches no known shape or carries an invalid
// amount.
func Normalize(documents []json.RawMessage) ([]NormalizedEntry, error) {
	entries := make([]NormalizedEntry, 0, len(documents))

	for i, raw := range documents {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, &ClassificationError{Index: i, Reason: err.Error()}
		}

		kind, ok := classify(doc)
		if !ok {
			return nil, &ClassificationError{Index: i, Reason: "document matches no known shape"}
		}

		contribution, err := contributionFor(kind, doc)
		if err != nil {
			return nil, &ClassificationError{Index: i, Reason: err.Error()}
		}

		entries = append(entries, NormalizedEntry{
			SourceIndex:  i,
			Kind:         kind,
			Contribution: contribution,
		})
	}

	return entries, nil
}

func contributionFor(kind DocumentKind, doc map[string]any) (int64, error) {
	switch kind {
	case KindJournalEntry:
		return journalEntryContribution(doc)
	case KindFixedAssets:
		return fixedAssetsContribution(doc)
	case KindPayroll:
		return payrollContribution(doc)
	case KindOverhead:
		return overheadContribution(doc)
	default:
		return 0, fmt.Errorf("unhandled document kind %q", kind)
	}
}
