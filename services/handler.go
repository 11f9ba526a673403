package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"

	"github.com/settleline/earnout/attest"
	"github.com/settleline/earnout/kpi"
)

const (
	defaultAttestationListLimit = 20
	maxAttestationListLimit     = 100
)

// Handler exposes the compute pipeline over HTTP. It registers its routes
// through the httpserver.RouteRegistrar interface.
type Handler struct {
	svc      *ComputeService
	identity *IdentityService
	store    AttestationStore
	log      *slog.Logger
}

// NewHandler creates the API handler. Identity and store may be nil when the
// deployment does not serve those endpoints.
func NewHandler(svc *ComputeService, identity *IdentityService, store AttestationStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, identity: identity, store: store, log: log}
}

// RegisterRoutes registers the API endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return httplogger.LoggingMiddlewareSlog(h.log, next)
		})

		r.Post("/compute", h.handleCompute)
		r.Post("/verify", h.handleVerify)
		r.Get("/identity", h.handleIdentity)
		r.Get("/attestations", h.handleAttestations)
	})
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Reason: fmt.Sprintf("malformed request body: %v", err)})
		return
	}

	operation := req.Operation
	if operation == "" {
		operation = OperationWithAttestation
	}
	if !operation.Valid() {
		h.writeError(w, &ValidationError{Reason: fmt.Sprintf("unknown operation %q", req.Operation)})
		return
	}

	switch operation {
	case OperationSimple:
		result, err := h.svc.ComputeSimple(r.Context(), req.Documents, req.InitialKPI)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, &ComputeResponse{
			Success: true,
			Data:    &ComputeData{KPIResult: result},
		})

	case OperationWithAttestation:
		result, err := h.svc.ComputeWithAttestation(r.Context(), req.Documents)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, &ComputeResponse{
			Success: true,
			Data: &ComputeData{
				KPIResult:        result.KPIResult,
				Attestation:      NewAttestationInfo(result.Attestation),
				AttestationBytes: ByteArray(result.AttestationBytes),
			},
		})
	}
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Reason: fmt.Sprintf("malformed request body: %v", err)})
		return
	}
	if len(req.AttestationBytes) == 0 {
		h.writeError(w, &ValidationError{Reason: "attestation_bytes must be non-empty"})
		return
	}

	attestation, err := attest.Decode(req.AttestationBytes)
	if err != nil {
		// Undecodable bytes from the caller are a caller error, not ours.
		h.writeJSON(w, http.StatusBadRequest, &errorResponse{Success: false, Error: err.Error()})
		return
	}

	data := &VerifyData{
		Valid:       attestation.Verify(),
		Attestation: NewAttestationInfo(attestation),
	}
	if !data.Valid {
		data.Reason = "signature not valid"
	}
	if data.Valid && len(req.Documents) > 0 {
		if err := attestation.MatchesDocuments(req.Documents); err != nil {
			data.Valid = false
			data.Reason = err.Error()
		}
	}

	h.writeJSON(w, http.StatusOK, &VerifyResponse{Success: true, Data: data})
}

func (h *Handler) handleIdentity(w http.ResponseWriter, r *http.Request) {
	if h.identity == nil {
		h.writeJSON(w, http.StatusNotFound, &errorResponse{Success: false, Error: "identity not configured"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.identity.SignedReport())
}

func (h *Handler) handleAttestations(w http.ResponseWriter, r *http.Request) {
	limit := defaultAttestationListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, &ValidationError{Reason: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxAttestationListLimit {
		limit = maxAttestationListLimit
	}

	records := []*AuditRecord{}
	if h.store != nil {
		stored, err := h.store.Recent(r.Context(), limit)
		if err != nil {
			h.log.Error("Failed to list audit records", "err", err)
			h.writeJSON(w, http.StatusInternalServerError, &errorResponse{Success: false, Error: "internal error"})
			return
		}
		if stored != nil {
			records = stored
		}
	}

	h.writeJSON(w, http.StatusOK, &AttestationListResponse{
		Success: true,
		Data:    &AttestationListData{Attestations: records},
	})
}

// writeError maps pipeline errors onto the HTTP error taxonomy. Unknown
// errors become an opaque 500; the detail stays in the logs.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *ValidationError
		classErr      *kpi.ClassificationError
		signingErr    *attest.SigningError
	)

	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.As(err, &classErr):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case errors.As(err, &signingErr):
		message = "attestation signing failed"
		h.log.Error("Signing failure", "err", err)
	default:
		h.log.Error("Compute request failed", "err", err)
	}

	h.writeJSON(w, status, &errorResponse{Success: false, Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
