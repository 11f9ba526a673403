// Package crypto provides the key and signature primitives for attestation signing.
//
// This package implements the identity layer of the settlement attestation
// pipeline:
//
//   - Ed25519 key pairs for the long-lived signing identity
//   - Signatures over attestation messages, with verification helpers
//   - HKDF-based derivation of the signing identity from a sealed master secret,
//     so TEE deployments keep a stable public identity across restarts
//
// Keys and signatures are named byte-slice types with hex String methods; they
// serialize cleanly into logs, JSON responses, and the fixed-width attestation
// wire format.
//
// # Key Management
//
// A signing identity is created exactly once at process start, either generated
// fresh, loaded from hex, or derived from a master secret (DeriveSigningKey).
// It is read-only for the lifetime of the process and safe for unlimited
// concurrent readers.
package crypto
