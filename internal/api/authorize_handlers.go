package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/quorumgate/quorumgate/internal/authorizer"
	"github.com/quorumgate/quorumgate/internal/logger"
	"github.com/quorumgate/quorumgate/internal/storage"
	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
	"github.com/quorumgate/quorumgate/pkg/types"
)

// descriptorPayload is the wire form of a transaction descriptor. Numeric
// fields are decimal strings, byte fields 0x-prefixed hex.
type descriptorPayload struct {
	To             string `json:"to"`
	Value          string `json:"value"`
	Data           string `json:"data"`
	Operation      uint8  `json:"operation"`
	SafeTxGas      string `json:"safeTxGas"`
	BaseGas        string `json:"baseGas"`
	GasPrice       string `json:"gasPrice"`
	GasToken       string `json:"gasToken"`
	RefundReceiver string `json:"refundReceiver"`
}

func (p *descriptorPayload) toDescriptor() (*types.TransactionDescriptor, error) {
	if !common.IsHexAddress(p.To) {
		return nil, fmt.Errorf("invalid 'to' address: %s", p.To)
	}

	desc := &types.TransactionDescriptor{
		To:        common.HexToAddress(p.To),
		Operation: types.Operation(p.Operation),
	}

	var err error
	if desc.Value, err = parseBig("value", p.Value); err != nil {
		return nil, err
	}
	if desc.SafeTxGas, err = parseBig("safeTxGas", p.SafeTxGas); err != nil {
		return nil, err
	}
	if desc.BaseGas, err = parseBig("baseGas", p.BaseGas); err != nil {
		return nil, err
	}
	if desc.GasPrice, err = parseBig("gasPrice", p.GasPrice); err != nil {
		return nil, err
	}

	if p.Data != "" {
		if desc.Data, err = hexutil.Decode(p.Data); err != nil {
			return nil, fmt.Errorf("invalid 'data' hex: %w", err)
		}
	}
	if p.GasToken != "" {
		if !common.IsHexAddress(p.GasToken) {
			return nil, fmt.Errorf("invalid 'gasToken' address: %s", p.GasToken)
		}
		desc.GasToken = common.HexToAddress(p.GasToken)
	}
	if p.RefundReceiver != "" {
		if !common.IsHexAddress(p.RefundReceiver) {
			return nil, fmt.Errorf("invalid 'refundReceiver' address: %s", p.RefundReceiver)
		}
		desc.RefundReceiver = common.HexToAddress(p.RefundReceiver)
	}

	return desc, nil
}

func parseBig(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal value for '%s': %s", field, s)
	}
	return v, nil
}

// authorizeRequest is the wire form of one authorization attempt.
type authorizeRequest struct {
	Descriptor descriptorPayload `json:"descriptor"`
	UniqueID   string            `json:"uniqueId"`
	Signatures string            `json:"signatures"`
	Proof      []string          `json:"proof,omitempty"`
}

// handleAuthorize handles POST /v1/transactions/authorize.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrBadRequest, "invalid request body"))
		return
	}

	desc, err := req.Descriptor.toDescriptor()
	if err != nil {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrBadRequest, err.Error()))
		return
	}

	uniqueID, err := types.ParseUniqueID(req.UniqueID)
	if err != nil {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrBadRequest, err.Error()))
		return
	}

	sigs, err := hexutil.Decode(req.Signatures)
	if err != nil {
		writeError(w, r, apperrors.MalformedSignatureBlob("signatures must be 0x-prefixed hex"))
		return
	}

	proof, err := parseProof(req.Proof)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.authz.Authorize(r.Context(), &authorizer.AuthorizeRequest{
		Descriptor: desc,
		UniqueID:   uniqueID,
		Signatures: sigs,
		Proof:      proof,
	})

	s.metrics.VerifyDuration.Observe(time.Since(start).Seconds())
	s.recordAudit(r, uniqueID, "authorize", err, len(proof) > 0)

	if err != nil {
		s.metrics.AuthorizeTotal.WithLabelValues("rejected").Inc()
		writeError(w, r, err)
		return
	}

	s.metrics.AuthorizeTotal.WithLabelValues("approved").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"uniqueId": uniqueID.Hex(),
		"result":   result,
	})
}

// revokeRequest carries the administrative caller's proof of identity: an
// ECDSA signature over the revocation digest for the unique ID in the path.
type revokeRequest struct {
	Caller    string `json:"caller"`
	Signature string `json:"signature"`
}

// handleRevoke handles POST /v1/authorizations/{id}/revoke.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	uniqueID, err := types.ParseUniqueID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrBadRequest, err.Error()))
		return
	}

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrBadRequest, "invalid request body"))
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrBadRequest, "invalid caller address"))
		return
	}
	caller := common.HexToAddress(req.Caller)

	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		writeError(w, r, apperrors.MalformedSignatureBlob("signature must be 0x-prefixed hex"))
		return
	}

	// The claimed caller must have signed the revocation digest. Whether that
	// caller is allowed to revoke is the authorizer's decision.
	digest := s.authz.RevocationDigest(uniqueID)
	if !verifyCallerSignature(digest, sig, caller) {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrUnauthorized, "caller signature does not match"))
		return
	}

	err = s.authz.Revoke(r.Context(), caller, uniqueID)
	s.recordAudit(r, uniqueID, "revoke", err, false)
	if err != nil {
		s.metrics.RevokeTotal.WithLabelValues("rejected").Inc()
		writeError(w, r, err)
		return
	}

	s.metrics.RevokeTotal.WithLabelValues("revoked").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked", "uniqueId": uniqueID.Hex()})
}

// handleGetAuthorization handles GET /v1/authorizations/{id}.
func (s *Server) handleGetAuthorization(w http.ResponseWriter, r *http.Request) {
	uniqueID, err := types.ParseUniqueID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrBadRequest, err.Error()))
		return
	}

	consumed, err := s.authz.IsConsumed(r.Context(), uniqueID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uniqueId": uniqueID.Hex(),
		"consumed": consumed,
	})
}

// handleListAudit handles GET /v1/authorizations/{id}/audit.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	uniqueID, err := types.ParseUniqueID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrBadRequest, err.Error()))
		return
	}

	if s.audit == nil {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrNotFound, "audit trail not available on this backend"))
		return
	}

	records, err := s.audit.ListByUniqueID(r.Context(), uniqueID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		entries = append(entries, map[string]any{
			"id":          rec.ID.String(),
			"action":      rec.Action,
			"outcome":     rec.Outcome,
			"errorCode":   rec.ErrorCode,
			"batched":     rec.Batched,
			"requestedAt": rec.RequestedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uniqueId": uniqueID.Hex(),
		"entries":  entries,
	})
}

func parseProof(proof []string) ([]common.Hash, error) {
	if len(proof) == 0 {
		return nil, nil
	}
	hashes := make([]common.Hash, 0, len(proof))
	for i, p := range proof {
		raw, err := hexutil.Decode(p)
		if err != nil || len(raw) != common.HashLength {
			return nil, apperrors.MalformedProof(
				fmt.Sprintf("sibling %d must be a 32-byte 0x-prefixed hash", i))
		}
		hashes = append(hashes, common.BytesToHash(raw))
	}
	return hashes, nil
}

// recordAudit appends an audit row when an audit store is configured. Audit
// write failures are logged, never surfaced to the caller.
func (s *Server) recordAudit(r *http.Request, id types.UniqueID, action string, callErr error, batched bool) {
	if s.audit == nil {
		return
	}

	rec := &storage.AuditRecord{
		UniqueID: id,
		Action:   action,
		Outcome:  storage.AuditOutcomeApproved,
		Batched:  batched,
	}
	if action == "revoke" {
		rec.Outcome = storage.AuditOutcomeRevoked
	}
	if callErr != nil {
		rec.Outcome = storage.AuditOutcomeRejected
		if appErr, ok := apperrors.IsAppError(callErr); ok {
			rec.ErrorCode = appErr.Code
		} else {
			rec.ErrorCode = apperrors.ErrCodeInternalError
		}
	}

	if err := s.audit.Record(r.Context(), rec); err != nil {
		logger.FromContext(r.Context()).Error("failed to record audit row", "error", err)
	}
}
