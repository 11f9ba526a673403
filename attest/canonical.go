package attest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CanonicalDocuments serializes a document sequence into a single canonical
// byte string. Object keys are sorted lexicographically, insignificant
// whitespace is removed, and numeric literals are preserved verbatim, so the
// output depends only on document content and submission order.
// Note: order is part of the attested claim. Reordering the same documents
// yields different canonical bytes and therefore a different hash.
func CanonicalDocuments(documents []json.RawMessage) ([]byte, error) {
	decoded := make([]any, len(documents))
	for i, doc := range documents {
		dec := json.NewDecoder(bytes.NewReader(doc))
		dec.UseNumber()

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("canonicalize document %d: %w", i, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("canonicalize document %d: trailing data", i)
		}
		decoded[i] = v
	}

	canonical, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("canonicalize documents: %w", err)
	}
	return canonical, nil
}
