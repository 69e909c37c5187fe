package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
)

// validateSignatureRequest is the wire form of the EIP-1271-style query.
type validateSignatureRequest struct {
	Data      string `json:"data"`
	Signature string `json:"signature"`
}

// handleValidateSignature handles POST /v1/signatures/validate. The endpoint
// is read-only: it answers whether the blob is a valid threshold signature
// over the data, and consumes nothing.
func (s *Server) handleValidateSignature(w http.ResponseWriter, r *http.Request) {
	var req validateSignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrBadRequest, "invalid request body"))
		return
	}

	data, err := hexutil.Decode(req.Data)
	if err != nil {
		writeError(w, r, apperrors.WithDetail(apperrors.ErrBadRequest, "data must be 0x-prefixed hex"))
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		writeError(w, r, apperrors.MalformedSignatureBlob("signature must be 0x-prefixed hex"))
		return
	}

	magic, err := s.authz.IsValidSignature(data, sig)
	if err != nil {
		s.metrics.ValidateTotal.WithLabelValues("invalid").Inc()
		writeError(w, r, err)
		return
	}

	s.metrics.ValidateTotal.WithLabelValues("valid").Inc()
	writeJSON(w, http.StatusOK, map[string]string{
		"magicValue": hexutil.Encode(magic[:]),
	})
}

// verifyCallerSignature checks that a single 65-byte signature over digest
// recovers to the claimed caller address.
func verifyCallerSignature(digest common.Hash, sig []byte, caller common.Address) bool {
	if len(sig) != crypto.SignatureLength {
		return false
	}

	rs := make([]byte, crypto.SignatureLength)
	copy(rs, sig)
	if rs[64] >= 27 {
		rs[64] -= 27
	}

	pub, err := crypto.SigToPub(digest.Bytes(), rs)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == caller
}
