package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumgate/quorumgate/internal/authorizer"
	"github.com/quorumgate/quorumgate/internal/config"
	"github.com/quorumgate/quorumgate/internal/metrics"
	"github.com/quorumgate/quorumgate/internal/storage"
	"github.com/quorumgate/quorumgate/internal/txhash"
	"github.com/quorumgate/quorumgate/internal/wallet"
	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
	"github.com/quorumgate/quorumgate/pkg/types"
)

// stubService is a canned AuthorizationService for handler tests.
type stubService struct {
	domain txhash.Domain

	authorizeErr error
	revokeErr    error
	consumed     bool

	lastAuthorize *authorizer.AuthorizeRequest
	lastRevoker   common.Address
}

func (s *stubService) Authorize(_ context.Context, req *authorizer.AuthorizeRequest) (*wallet.ExecutionResult, error) {
	s.lastAuthorize = req
	if s.authorizeErr != nil {
		return nil, s.authorizeErr
	}
	return &wallet.ExecutionResult{Success: true}, nil
}

func (s *stubService) Revoke(_ context.Context, caller common.Address, _ types.UniqueID) error {
	s.lastRevoker = caller
	return s.revokeErr
}

func (s *stubService) IsConsumed(context.Context, types.UniqueID) (bool, error) {
	return s.consumed, nil
}

func (s *stubService) IsValidSignature(_, signature []byte) ([4]byte, error) {
	if len(signature) == 0 {
		return [4]byte{}, apperrors.MalformedSignatureBlob("empty")
	}
	return authorizer.MagicValue, nil
}

func (s *stubService) RevocationDigest(id types.UniqueID) common.Hash {
	return s.domain.MessageDigest([]byte("revoke:" + id.Hex()))
}

func newTestServer(stub *stubService) *Server {
	cfg := &config.Config{Port: 0, RateLimitRPS: 1000, RateLimitBurst: 1000}
	return NewServer(cfg, stub, nil, metrics.New())
}

func validAuthorizeBody() map[string]any {
	return map[string]any{
		"descriptor": map[string]any{
			"to":        "0x1111111111111111111111111111111111111111",
			"value":     "1000",
			"data":      "0xcafe",
			"operation": 0,
		},
		"uniqueId":   "0x2a",
		"signatures": "0x" + fmt.Sprintf("%0130d", 0),
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleAuthorize(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		stub := &stubService{}
		s := newTestServer(stub)

		rec := postJSON(t, s.handleAuthorize, "/v1/transactions/authorize", validAuthorizeBody())
		require.Equal(t, http.StatusOK, rec.Code)

		require.NotNil(t, stub.lastAuthorize)
		assert.Equal(t, types.UniqueIDFromUint64(42), stub.lastAuthorize.UniqueID)
		assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"),
			stub.lastAuthorize.Descriptor.To)
		assert.Equal(t, big.NewInt(1000), stub.lastAuthorize.Descriptor.Value)
		assert.Equal(t, []byte{0xca, 0xfe}, stub.lastAuthorize.Descriptor.Data)
	})

	t.Run("proof is forwarded", func(t *testing.T) {
		stub := &stubService{}
		s := newTestServer(stub)

		sibling := crypto.Keccak256Hash([]byte("sibling"))
		body := validAuthorizeBody()
		body["proof"] = []string{sibling.Hex()}

		rec := postJSON(t, s.handleAuthorize, "/v1/transactions/authorize", body)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, stub.lastAuthorize.Proof, 1)
		assert.Equal(t, sibling, stub.lastAuthorize.Proof[0])
	})

	t.Run("app error mapped to status and code", func(t *testing.T) {
		stub := &stubService{authorizeErr: apperrors.WithDetail(apperrors.ErrIDAlreadyConsumed, "0x2a")}
		s := newTestServer(stub)

		rec := postJSON(t, s.handleAuthorize, "/v1/transactions/authorize", validAuthorizeBody())
		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp apperrors.AppError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, apperrors.ErrCodeIDAlreadyConsumed, resp.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		s := newTestServer(&stubService{})
		req := httptest.NewRequest(http.MethodPost, "/v1/transactions/authorize",
			bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		s.handleAuthorize(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid proof entry", func(t *testing.T) {
		s := newTestServer(&stubService{})
		body := validAuthorizeBody()
		body["proof"] = []string{"0x1234"}

		rec := postJSON(t, s.handleAuthorize, "/v1/transactions/authorize", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		stub := &stubService{authorizeErr: fmt.Errorf("pgx: connection refused")}
		s := newTestServer(stub)

		rec := postJSON(t, s.handleAuthorize, "/v1/transactions/authorize", validAuthorizeBody())
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "pgx")
	})
}

func TestHandleRevoke(t *testing.T) {
	domain := txhash.NewDomain(big.NewInt(1), common.HexToAddress("0xBBBB00000000000000000000000000000000BBBB"))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	caller := crypto.PubkeyToAddress(key.PublicKey)
	id := types.UniqueIDFromUint64(77)

	sign := func(t *testing.T) string {
		digest := domain.MessageDigest([]byte("revoke:" + id.Hex()))
		sig, err := crypto.Sign(digest.Bytes(), key)
		require.NoError(t, err)
		return hexutil.Encode(sig)
	}

	newRequest := func(body map[string]any) *http.Request {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost,
			"/v1/authorizations/"+id.Hex()+"/revoke", bytes.NewReader(raw))
		req.SetPathValue("id", id.Hex())
		return req
	}

	t.Run("valid caller signature", func(t *testing.T) {
		stub := &stubService{domain: domain}
		s := newTestServer(stub)

		rec := httptest.NewRecorder()
		s.handleRevoke(rec, newRequest(map[string]any{
			"caller":    caller.Hex(),
			"signature": sign(t),
		}))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, caller, stub.lastRevoker)
	})

	t.Run("mismatched caller fails closed", func(t *testing.T) {
		stub := &stubService{domain: domain}
		s := newTestServer(stub)

		rec := httptest.NewRecorder()
		s.handleRevoke(rec, newRequest(map[string]any{
			"caller":    "0x9999999999999999999999999999999999999999",
			"signature": sign(t),
		}))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, common.Address{}, stub.lastRevoker)
	})

	t.Run("unauthorized caller propagates", func(t *testing.T) {
		stub := &stubService{domain: domain, revokeErr: apperrors.ErrUnauthorized}
		s := newTestServer(stub)

		rec := httptest.NewRecorder()
		s.handleRevoke(rec, newRequest(map[string]any{
			"caller":    caller.Hex(),
			"signature": sign(t),
		}))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestHandleGetAuthorization(t *testing.T) {
	stub := &stubService{consumed: true}
	s := newTestServer(stub)

	id := types.UniqueIDFromUint64(42)
	req := httptest.NewRequest(http.MethodGet, "/v1/authorizations/"+id.Hex(), nil)
	req.SetPathValue("id", id.Hex())
	rec := httptest.NewRecorder()
	s.handleGetAuthorization(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["consumed"])
	assert.Equal(t, id.Hex(), resp["uniqueId"])
}

// stubAudit is an in-memory AuditLog for handler tests.
type stubAudit struct {
	records []*storage.AuditRecord
	listErr error
}

func (a *stubAudit) Record(_ context.Context, rec *storage.AuditRecord) error {
	a.records = append(a.records, rec)
	return nil
}

func (a *stubAudit) ListByUniqueID(_ context.Context, id types.UniqueID) ([]*storage.AuditRecord, error) {
	if a.listErr != nil {
		return nil, a.listErr
	}
	var out []*storage.AuditRecord
	for _, rec := range a.records {
		if rec.UniqueID == id {
			out = append(out, rec)
		}
	}
	return out, nil
}

func TestHandleListAudit(t *testing.T) {
	id := types.UniqueIDFromUint64(42)

	newRequest := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/v1/authorizations/"+id.Hex()+"/audit", nil)
		req.SetPathValue("id", id.Hex())
		return req
	}

	t.Run("returns trail oldest first", func(t *testing.T) {
		audit := &stubAudit{records: []*storage.AuditRecord{
			{UniqueID: id, Action: "authorize", Outcome: storage.AuditOutcomeRejected,
				ErrorCode: apperrors.ErrCodeSignatureVerification, RequestedAt: time.Now().UTC()},
			{UniqueID: id, Action: "authorize", Outcome: storage.AuditOutcomeApproved,
				RequestedAt: time.Now().UTC()},
			{UniqueID: types.UniqueIDFromUint64(7), Action: "authorize",
				Outcome: storage.AuditOutcomeApproved, RequestedAt: time.Now().UTC()},
		}}
		cfg := &config.Config{Port: 0, RateLimitRPS: 1000, RateLimitBurst: 1000}
		s := NewServer(cfg, &stubService{}, audit, metrics.New())

		rec := httptest.NewRecorder()
		s.handleListAudit(rec, newRequest())
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			UniqueID string           `json:"uniqueId"`
			Entries  []map[string]any `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, id.Hex(), resp.UniqueID)
		require.Len(t, resp.Entries, 2)
		assert.Equal(t, "rejected", resp.Entries[0]["outcome"])
		assert.Equal(t, "approved", resp.Entries[1]["outcome"])
	})

	t.Run("no audit store", func(t *testing.T) {
		s := newTestServer(&stubService{})

		rec := httptest.NewRecorder()
		s.handleListAudit(rec, newRequest())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAuthorizeEmitsAuditRow(t *testing.T) {
	audit := &stubAudit{}
	cfg := &config.Config{Port: 0, RateLimitRPS: 1000, RateLimitBurst: 1000}
	stub := &stubService{authorizeErr: apperrors.ErrSignatureVerification}
	s := NewServer(cfg, stub, audit, metrics.New())

	rec := postJSON(t, s.handleAuthorize, "/v1/transactions/authorize", validAuthorizeBody())
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Len(t, audit.records, 1)
	row := audit.records[0]
	assert.Equal(t, types.UniqueIDFromUint64(42), row.UniqueID)
	assert.Equal(t, "authorize", row.Action)
	assert.Equal(t, storage.AuditOutcomeRejected, row.Outcome)
	assert.Equal(t, apperrors.ErrCodeSignatureVerification, row.ErrorCode)
	assert.False(t, row.Batched)
}

func TestHandleValidateSignature(t *testing.T) {
	s := newTestServer(&stubService{})

	t.Run("valid", func(t *testing.T) {
		rec := postJSON(t, s.handleValidateSignature, "/v1/signatures/validate", map[string]any{
			"data":      "0xcafe",
			"signature": "0x01",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "0x1626ba7e", resp["magicValue"])
	})

	t.Run("invalid signature", func(t *testing.T) {
		rec := postJSON(t, s.handleValidateSignature, "/v1/signatures/validate", map[string]any{
			"data":      "0xcafe",
			"signature": "0x",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVerifyCallerSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	caller := crypto.PubkeyToAddress(key.PublicKey)

	digest := crypto.Keccak256Hash([]byte("revoke:0x01"))
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	assert.True(t, verifyCallerSignature(digest, sig, caller))

	// Ethereum-style v values are accepted too.
	shifted := append([]byte(nil), sig...)
	shifted[64] += 27
	assert.True(t, verifyCallerSignature(digest, shifted, caller))

	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	assert.False(t, verifyCallerSignature(digest, sig, other))
	assert.False(t, verifyCallerSignature(digest, sig[:64], caller))
}
