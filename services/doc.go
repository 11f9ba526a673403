/*
# Earn-out Settlement Services Package

The services package wraps the pure computation pipeline (kpi, attest) with the
HTTP API, persistence, and eventing needed for a real deployment.

## Components

1. **ComputeService** (`compute.go`)
  - Orchestrates the pipeline: validate, normalize, aggregate, attest, encode
  - `ComputeSimple` returns a KPI result without signing
  - `ComputeWithAttestation` returns result + attestation + 144-byte encoding

2. **Handler** (`handler.go`)
  - chi RouteRegistrar for the API surface
  - Endpoints:
  - `POST /compute` - Compute a KPI, optionally with a signed attestation
  - `POST /verify` - Decode and verify attestation bytes
  - `GET /identity` - Signed service identity document (key + TEE quote)
  - `GET /attestations` - Recent audit records

3. **Stores** (`store.go`, `postgres_store.go`)
  - AttestationStore keeps an audit record per issued attestation
  - PostgresStore for deployments, InMemoryStore for tests and dev

4. **Events** (`events.go`)
  - EventPublisher emits an event per issued attestation
  - KafkaPublisher for deployments, NoopPublisher by default

5. **Identity** (`identity.go`, `measurements.go`)
  - Binds the signing key into a TEE quote via a tdx.Provider
  - Verifiers check quotes against published build measurements

## Error Mapping

The handler maps pipeline errors to HTTP statuses:

  - ValidationError: 400 (empty or malformed request)
  - kpi.ClassificationError: 422 with the offending document index
  - attest.EncodingError on externally supplied bytes: 400
  - attest.SigningError and everything else: 500

Audit persistence and event publication are best effort: their failures are
logged and counted but never fail a compute request that already holds a
valid attestation.
*/
package services
