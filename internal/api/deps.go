package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumgate/quorumgate/internal/authorizer"
	"github.com/quorumgate/quorumgate/internal/storage"
	"github.com/quorumgate/quorumgate/internal/wallet"
	"github.com/quorumgate/quorumgate/pkg/types"
)

// AuthorizationService is the subset of authorizer.Authorizer used by the API
// layer. It is an interface to allow handler-level unit tests without a chain
// connection.
type AuthorizationService interface {
	Authorize(ctx context.Context, req *authorizer.AuthorizeRequest) (*wallet.ExecutionResult, error)
	Revoke(ctx context.Context, caller common.Address, id types.UniqueID) error
	IsConsumed(ctx context.Context, id types.UniqueID) (bool, error)
	IsValidSignature(data, signature []byte) ([4]byte, error)
	RevocationDigest(id types.UniqueID) common.Hash
}

// AuditLog records and serves authorization attempts. Nil-able: the memory
// ledger backend runs without one.
type AuditLog interface {
	Record(ctx context.Context, rec *storage.AuditRecord) error
	ListByUniqueID(ctx context.Context, id types.UniqueID) ([]*storage.AuditRecord, error)
}

var _ AuthorizationService = (*authorizer.Authorizer)(nil)
var _ AuditLog = (*storage.AuditRepository)(nil)
