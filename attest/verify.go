package attest

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
)

// Verify reports whether the attestation's signature is valid for its own
// message under its embedded public key. It proves the fields were signed
// together by the holder of the key; it does not prove which documents the
// hash came from (see MatchesDocuments).
func (a *Attestation) Verify() bool {
	if len(a.ComputationHash) != DigestSize {
		return false
	}
	return a.Signature.Verify(a.TEEPublicKey, a.Message())
}

// MatchesDocuments recomputes the computation hash from a document sequence
// and checks it against the attestation. A mismatch means these are not the
// documents (or not the order) the attestation was issued for.
func (a *Attestation) MatchesDocuments(documents []json.RawMessage) error {
	canonical, err := CanonicalDocuments(documents)
	if err != nil {
		return err
	}

	expected := ComputeHash(canonical, a.KPIValue)
	if subtle.ConstantTimeCompare(expected, a.ComputationHash) != 1 {
		return fmt.Errorf("computation hash mismatch: attested %s, documents yield %s", a.ComputationHash, expected)
	}
	return nil
}

// VerifyBytes decodes an encoded attestation and checks its signature.
// A decode failure returns an *EncodingError; an invalid signature returns
// the decoded attestation with ok == false.
func VerifyBytes(data []byte) (a *Attestation, ok bool, err error) {
	a, err = Decode(data)
	if err != nil {
		return nil, false, err
	}
	return a, a.Verify(), nil
}

// RequireValid is VerifyBytes for callers that treat an invalid signature as
// an error rather than a boolean outcome.
func RequireValid(data []byte) (*Attestation, error) {
	a, ok, err := VerifyBytes(data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("attestation signature not valid")
	}
	return a, nil
}
