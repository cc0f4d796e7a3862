package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"consentledger/internal/domain"
	"consentledger/internal/usecase"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type entryResponse struct {
	LedgerID    string `json:"ledger_id"`
	Sequence    int64  `json:"sequence"`
	PayloadHash string `json:"payload_hash"`
	PrevHash    string `json:"prev_hash"`
	ChainHash   string `json:"chain_hash"`
	CreatedAt   string `json:"created_at"`
}

func buildEntryResponse(entry domain.LedgerEntry) entryResponse {
	return entryResponse{
		LedgerID:    entry.LedgerID,
		Sequence:    entry.Sequence,
		PayloadHash: entry.PayloadHash,
		PrevHash:    entry.PrevHash,
		ChainHash:   entry.ChainHash,
		CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Verification endpoints are pure: they parse bytes, run the offline
// verifier, and answer 200 whether or not the artifact verifies.

func (s *Server) handleVerifyLineage(c *gin.Context) {
	body, ok := s.readVerifyBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.verifier.VerifyLineageExport(body))
}

func (s *Server) handleVerifyProof(c *gin.Context) {
	body, ok := s.readVerifyBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.verifier.VerifyProofBundle(body))
}

func (s *Server) handleVerifyAnchor(c *gin.Context) {
	body, ok := s.readVerifyBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.verifier.VerifyAnchorSnapshot(body))
}

func (s *Server) handleVerifySystem(c *gin.Context) {
	body, ok := s.readVerifyBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.verifier.VerifySystemExport(body))
}

func (s *Server) handleLineageExport(c *gin.Context) {
	export, err := s.lineage.Export(c.Request.Context(), c.Param("tenant_id"), c.Param("consent_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, export)
}

func (s *Server) handleSystemExport(c *gin.Context) {
	export, err := s.system.Export(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, export)
}

type createTenantRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateTenant(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}
	id, err := s.tenants.Create(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tenant_id": id, "name": req.Name})
}

type appendEventRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (s *Server) handleAppendEvent(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	body, ok := s.readVerifyBody(c)
	if !ok {
		return
	}

	idemKey := c.GetHeader("Idempotency-Key")
	tenantID := c.Param("tenant_id")
	var requestHash string
	if idemKey != "" {
		if err := usecase.ValidateIdempotencyKey(idemKey); err != nil {
			writeErrorCode(c, http.StatusUnprocessableEntity, "INVALID_IDEMPOTENCY_KEY", err.Error())
			return
		}
		var err error
		requestHash, err = usecase.RequestHash(c.Request.Method, c.Request.URL.Path, body)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", err.Error())
			return
		}
		rec, found, err := s.idempotency.Lookup(c.Request.Context(), tenantID, idemKey)
		if err != nil {
			writeError(c, err)
			return
		}
		if found {
			s.replayOrConflict(c, rec, requestHash)
			return
		}
	}

	var req appendEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	entry, err := s.lineage.AppendEvent(c.Request.Context(), tenantID, c.Param("consent_id"), req.Action, req.Data)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := buildEntryResponse(entry)

	if idemKey != "" {
		respJSON, err := json.Marshal(resp)
		if err != nil {
			writeError(c, err)
			return
		}
		stored, inserted, err := s.idempotency.Store(c.Request.Context(), domain.IdempotencyRecord{
			TenantID:     tenantID,
			Key:          idemKey,
			RequestHash:  requestHash,
			ResponseJSON: respJSON,
			StatusCode:   http.StatusCreated,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		if !inserted {
			s.replayOrConflict(c, stored, requestHash)
			return
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// replayOrConflict answers a repeated idempotency key: the stored response
// when the request matches, 409 when the same key arrives with a different
// body.
func (s *Server) replayOrConflict(c *gin.Context, rec domain.IdempotencyRecord, requestHash string) {
	if rec.RequestHash != requestHash {
		s.recordSystemEvent(c, usecase.SystemEvent{
			EventType:    "idempotency_conflict",
			TenantID:     rec.TenantID,
			ResourceType: "idempotency_key",
			ResourceID:   rec.Key,
			PayloadHash:  requestHash,
		})
		writeErrorCode(c, http.StatusConflict, "IDEMPOTENCY_CONFLICT", "idempotency key reuse with different request")
		return
	}
	c.Header("Idempotency-Replayed", "true")
	c.Data(rec.StatusCode, "application/json", []byte(rec.ResponseJSON))
}

type registerIdentityRequest struct {
	IdentityID string `json:"identity_id"`
	PublicKey  string `json:"public_key"`
}

func (s *Server) handleRegisterIdentity(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req registerIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IdentityID == "" || req.PublicKey == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "identity_id and public_key are required")
		return
	}
	key, err := s.identity.Register(c.Request.Context(), c.Param("tenant_id"), req.IdentityID, req.PublicKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildIdentityResponse(key))
}

type delegateIdentityRequest struct {
	ChildIdentityID string `json:"child_identity_id"`
	ChildPublicKey  string `json:"child_public_key"`
	Signature       string `json:"signature"`
}

func (s *Server) handleDelegateIdentity(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req delegateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChildIdentityID == "" || req.ChildPublicKey == "" || req.Signature == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "child_identity_id, child_public_key, and signature are required")
		return
	}
	key, err := s.identity.Delegate(c.Request.Context(), c.Param("tenant_id"), c.Param("identity_id"), req.ChildIdentityID, req.ChildPublicKey, req.Signature)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildIdentityResponse(key))
}

func (s *Server) handleRevokeIdentity(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	tenantID := c.Param("tenant_id")
	identityID := c.Param("identity_id")
	if err := s.identity.Revoke(c.Request.Context(), tenantID, identityID); err != nil {
		writeError(c, err)
		return
	}
	s.recordSystemEvent(c, usecase.SystemEvent{
		EventType:    "identity_revoked",
		TenantID:     tenantID,
		ResourceType: "identity",
		ResourceID:   identityID,
	})
	c.JSON(http.StatusOK, gin.H{"identity_id": identityID, "revoked": true})
}

type identityResponse struct {
	IdentityID    string `json:"identity_id"`
	PublicKey     string `json:"public_key"`
	Fingerprint   string `json:"fingerprint"`
	DelegatedFrom string `json:"delegated_from,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func buildIdentityResponse(key domain.IdentityKey) identityResponse {
	return identityResponse{
		IdentityID:    key.IdentityID,
		PublicKey:     key.PublicKey,
		Fingerprint:   key.Fingerprint,
		DelegatedFrom: key.DelegatedFrom,
		CreatedAt:     key.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type issueAssertionRequest struct {
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleIssueAssertion(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req issueAssertionRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Payload) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "payload is required")
		return
	}
	entry, err := s.assertions.Issue(c.Request.Context(), c.Param("tenant_id"), req.Payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildEntryResponse(entry))
}

func (s *Server) handleAssertionProof(c *gin.Context) {
	sequence, err := strconv.ParseInt(c.Param("sequence"), 10, 64)
	if err != nil || sequence < 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "sequence must be a non-negative integer")
		return
	}
	bundle, err := s.assertions.BuildProof(c.Request.Context(), c.Param("tenant_id"), sequence)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) handleAnchorSnapshot(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	snap, err := s.anchors.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	s.recordSystemEvent(c, usecase.SystemEvent{
		EventType:    "anchor_published",
		ResourceType: "anchor_snapshot",
		PayloadHash:  snap.Digest,
	})
	c.JSON(http.StatusOK, snap)
}

// recordSystemEvent is fail-open telemetry; a dropped event is logged, never
// surfaced to the client.
func (s *Server) recordSystemEvent(c *gin.Context, ev usecase.SystemEvent) {
	if err := s.system.Record(c.Request.Context(), ev, true); err != nil && s.logger != nil {
		s.logger.Warn("system event dropped", zap.String("event_type", ev.EventType), zap.Error(err))
	}
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	key := c.GetHeader("X-Admin-Key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidIdempotencyKey):
		status, code = http.StatusUnprocessableEntity, "INVALID_IDEMPOTENCY_KEY"
	case errors.Is(err, domain.ErrIdempotencyConflict):
		status, code = http.StatusConflict, "IDEMPOTENCY_CONFLICT"
	case errors.Is(err, domain.ErrInvalidArtifact):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, domain.ErrSignatureInvalid):
		status, code = http.StatusBadRequest, "SIGNATURE_INVALID"
	case errors.Is(err, domain.ErrIdentityUnknown):
		status, code = http.StatusNotFound, "IDENTITY_UNKNOWN"
	case errors.Is(err, domain.ErrIdentityExists):
		status, code = http.StatusConflict, "IDENTITY_EXISTS"
	case errors.Is(err, domain.ErrIdentityRevoked):
		status, code = http.StatusConflict, "IDENTITY_REVOKED"
	case errors.Is(err, domain.ErrIdentityCycle):
		status, code = http.StatusConflict, "IDENTITY_CYCLE"
	case errors.Is(err, domain.ErrSequenceConflict), errors.Is(err, domain.ErrAppendOnlyViolation):
		status, code = http.StatusConflict, "LEDGER_CONFLICT"
	case errors.Is(err, domain.ErrChainBreak):
		status, code = http.StatusConflict, "CHAIN_BREAK"
	case errors.Is(err, domain.ErrSigningUnavailable):
		status, code = http.StatusServiceUnavailable, "SIGNING_UNAVAILABLE"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
