// Package attest produces and verifies signed KPI attestations.
//
// An attestation binds a computed KPI value to the exact document sequence it
// was derived from, a millisecond timestamp, and the signing identity's public
// key. Two honest runs over the same documents produce the same computation
// hash and sign the same message shape; only timestamp and signature differ.
//
// # Pipeline
//
// Documents are canonicalized in submission order, hashed together with the
// KPI value, and signed with Ed25519:
//
//	canonical = CanonicalDocuments(documents)
//	hash      = SHA-256(canonical || kpiBE8)
//	message   = hash || kpiBE8 || timestampBE8
//	signature = Sign(identity, message)
//
// The resulting Attestation serializes to a fixed 144-byte layout (Encode /
// Decode) that an independent verifier can check offline with Verify.
//
// # Signer Swap
//
// Attestor is the single production surface. SoftwareAttestor signs with an
// in-process SigningIdentity; a hardware-backed implementation can replace it
// without touching callers, since the message construction and wire layout
// are fixed here.
package attest
