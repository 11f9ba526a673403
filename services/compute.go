package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/settleline/earnout/attest"
	"github.com/settleline/earnout/kpi"
	"github.com/settleline/earnout/metrics"
)

// ValidationError reports a request rejected before the pipeline ran at all.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// ComputeResult is the outcome of an attested computation.
type ComputeResult struct {
	KPIResult        *kpi.KPIResult
	Attestation      *attest.Attestation
	AttestationBytes []byte
}

// ComputeServiceConfig wires the compute service's collaborators. Attestor is
// required for attested computations; Store, Events, and Metrics are
// optional and default to no-ops.
type ComputeServiceConfig struct {
	Attestor attest.Attestor
	Store    AttestationStore
	Events   EventPublisher
	Metrics  *metrics.Collectors
	Log      *slog.Logger
}

// ComputeService runs the settlement pipeline. Every invocation is
// stateless; concurrent requests share nothing but the read-only signing
// identity inside the attestor.
type ComputeService struct {
	attestor attest.Attestor
	store    AttestationStore
	events   EventPublisher
	metrics  *metrics.Collectors
	log      *slog.Logger
}

// NewComputeService creates a compute service from the given configuration.
func NewComputeService(cfg *ComputeServiceConfig) *ComputeService {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	events := cfg.Events
	if events == nil {
		events = &NoopPublisher{}
	}
	return &ComputeService{
		attestor: cfg.Attestor,
		store:    cfg.Store,
		events:   events,
		metrics:  cfg.Metrics,
		log:      log,
	}
}

func validateDocuments(documents []json.RawMessage) error {
	if len(documents) == 0 {
		return &ValidationError{Reason: "documents must be a non-empty array"}
	}
	return nil
}

// ComputeSimple normalizes and aggregates without producing an attestation.
// The initial KPI seeds the aggregation, letting a caller continue from a
// prior subtotal.
func (s *ComputeService) ComputeSimple(ctx context.Context, documents []json.RawMessage, initialKPI int64) (*kpi.KPIResult, error) {
	start := time.Now()

	result, err := s.computeResult(documents, initialKPI)
	s.metrics.ObserveCompute(string(OperationSimple), statusLabel(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	s.log.Debug("Computed KPI", "operation", OperationSimple, "kpi", result.KPI, "entries", result.EntriesProcessed)
	return result, nil
}

// ComputeWithAttestation runs the full pipeline and returns the result with
// a signed, encoded attestation. Attested results always aggregate from a
// zero baseline so the signature certifies an absolute KPI.
func (s *ComputeService) ComputeWithAttestation(ctx context.Context, documents []json.RawMessage) (*ComputeResult, error) {
	start := time.Now()

	result, err := s.computeAttested(ctx, documents)
	s.metrics.ObserveCompute(string(OperationWithAttestation), statusLabel(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	s.log.Info("Issued attestation",
		"kpi", result.KPIResult.KPI,
		"entries", result.KPIResult.EntriesProcessed,
		"computationHash", result.Attestation.ComputationHash.String(),
		"timestamp", result.Attestation.Timestamp,
	)
	return result, nil
}

func (s *ComputeService) computeResult(documents []json.RawMessage, initialKPI int64) (*kpi.KPIResult, error) {
	if err := validateDocuments(documents); err != nil {
		return nil, err
	}

	entries, err := kpi.Normalize(documents)
	if err != nil {
		var classErr *kpi.ClassificationError
		if errors.As(err, &classErr) && s.metrics != nil {
			s.metrics.ClassificationFailures.Inc()
		}
		return nil, err
	}

	return kpi.Aggregate(entries, initialKPI), nil
}

func (s *ComputeService) computeAttested(ctx context.Context, documents []json.RawMessage) (*ComputeResult, error) {
	result, err := s.computeResult(documents, 0)
	if err != nil {
		return nil, err
	}

	if s.attestor == nil {
		return nil, &attest.SigningError{Reason: "no attestor configured"}
	}
	attestation, err := s.attestor.Attest(result, documents)
	if err != nil {
		return nil, err
	}

	encoded, err := attest.Encode(attestation)
	if err != nil {
		return nil, fmt.Errorf("encoding attestation: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AttestationsIssued.Inc()
	}
	s.recordAudit(ctx, result, attestation, encoded)

	return &ComputeResult{
		KPIResult:        result,
		Attestation:      attestation,
		AttestationBytes: encoded,
	}, nil
}

// recordAudit persists and publishes the issued attestation. Best effort:
// the caller already holds a valid attestation, so failures here are logged
// and counted, never propagated.
func (s *ComputeService) recordAudit(ctx context.Context, result *kpi.KPIResult, attestation *attest.Attestation, encoded []byte) {
	record := &AuditRecord{
		ID:               uuid.NewString(),
		KPIValue:         attestation.KPIValue,
		EntriesProcessed: result.EntriesProcessed,
		ComputationHash:  attestation.ComputationHash.String(),
		Timestamp:        attestation.Timestamp,
		TEEPublicKey:     attestation.TEEPublicKey.String(),
		AttestationBytes: ByteArray(encoded),
		CreatedAt:        time.Now().UTC(),
	}

	if s.store != nil {
		if err := s.store.Save(ctx, record); err != nil {
			if s.metrics != nil {
				s.metrics.StoreErrors.Inc()
			}
			s.log.Error("Failed to persist audit record", "err", err, "id", record.ID)
		}
	}

	if err := s.events.PublishAttestation(ctx, record); err != nil {
		s.log.Error("Failed to publish attestation event", "err", err, "id", record.ID)
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
