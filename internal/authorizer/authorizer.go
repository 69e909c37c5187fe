// Package authorizer orchestrates transaction authorization: canonical
// hashing, optional Merkle batch inclusion, threshold signature checking,
// replay protection, and forwarding to the owning wallet.
package authorizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumgate/quorumgate/internal/ledger"
	"github.com/quorumgate/quorumgate/internal/merkle"
	"github.com/quorumgate/quorumgate/internal/sigset"
	"github.com/quorumgate/quorumgate/internal/txhash"
	"github.com/quorumgate/quorumgate/internal/wallet"
	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
	"github.com/quorumgate/quorumgate/pkg/types"
)

// MagicValue is the fixed 4-byte marker IsValidSignature returns on success
// (EIP-1271). The external wallet's signature dispatch matches on it; it is a
// protocol constant and must never change.
var MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

// Authorizer validates threshold-signed, replay-protected authorizations and
// forwards approved transactions to the wallet it guards. All collaborators
// are injected at construction and never swapped afterward.
type Authorizer struct {
	domain  txhash.Domain
	signers *sigset.SignerSet
	ledger  ledger.Ledger
	wallet  wallet.Wallet
	self    common.Address
}

// New wires an authorizer and verifies the precondition that the gateway
// identity is a registered owner of the wallet it guards; without that, its
// approvals have no effect downstream.
func New(
	ctx context.Context,
	domain txhash.Domain,
	signers *sigset.SignerSet,
	idLedger ledger.Ledger,
	w wallet.Wallet,
	self common.Address,
) (*Authorizer, error) {
	isOwner, err := w.IsOwner(ctx, self)
	if err != nil {
		return nil, fmt.Errorf("failed to check wallet ownership: %w", err)
	}
	if !isOwner {
		return nil, apperrors.WithDetail(apperrors.ErrNotOwnerOfWallet,
			fmt.Sprintf("gateway %s, wallet %s", self.Hex(), w.Address().Hex()))
	}

	return &Authorizer{
		domain:  domain,
		signers: signers,
		ledger:  idLedger,
		wallet:  w,
		self:    self,
	}, nil
}

// AuthorizeRequest carries one authorization attempt.
type AuthorizeRequest struct {
	Descriptor *types.TransactionDescriptor
	UniqueID   types.UniqueID
	// Signatures is the concatenated 65-byte signature blob over either the
	// transaction digest or, when Proof is present, the batch root.
	Signatures []byte
	// Proof, when non-empty, proves the transaction digest is a leaf of a
	// pre-signed Merkle batch.
	Proof []common.Hash
}

// Authorize runs the full authorization protocol. The unique ID is consumed
// before the descriptor is forwarded, so re-entrant execution cannot replay
// the same ID; consumption is not rolled back when the wallet itself reports
// a business failure.
func (a *Authorizer) Authorize(ctx context.Context, req *AuthorizeRequest) (*wallet.ExecutionResult, error) {
	if req.Descriptor == nil {
		return nil, apperrors.WithDetail(apperrors.ErrBadRequest, "descriptor is required")
	}
	if err := req.Descriptor.Validate(); err != nil {
		return nil, apperrors.WithDetail(apperrors.ErrBadRequest, err.Error())
	}

	consumed, err := a.ledger.IsConsumed(ctx, req.UniqueID)
	if err != nil {
		return nil, fmt.Errorf("ledger read failed: %w", err)
	}
	if consumed {
		return nil, apperrors.WithDetail(apperrors.ErrIDAlreadyConsumed, req.UniqueID.Hex())
	}

	digest := a.domain.TransactionDigest(req.Descriptor, req.UniqueID)

	toVerify := digest
	if len(req.Proof) > 0 {
		toVerify, err = merkle.Include(req.Proof, digest)
		if err != nil {
			return nil, err
		}
	}

	if err := a.signers.Verify(toVerify, req.Signatures); err != nil {
		return nil, err
	}

	// Consume strictly before forwarding. Consume is atomic, so a concurrent
	// attempt with the same ID loses here even if both passed the read above.
	if err := a.ledger.Consume(ctx, req.UniqueID); err != nil {
		return nil, err
	}

	result, err := a.wallet.Execute(ctx, req.Descriptor)
	if err != nil {
		return nil, apperrors.ExecutionFailed(err.Error())
	}

	slog.Info("transaction authorized",
		"uniqueId", req.UniqueID.Hex(),
		"to", req.Descriptor.To.Hex(),
		"batched", len(req.Proof) > 0,
		"executed", result.Success)
	return result, nil
}

// Revoke marks a unique ID consumed pre-emptively, blocking any future use of
// a leaked or abandoned pre-signed authorization. Only the owning wallet
// identity may revoke.
func (a *Authorizer) Revoke(ctx context.Context, caller common.Address, id types.UniqueID) error {
	if caller != a.wallet.Address() {
		return apperrors.WithDetail(apperrors.ErrUnauthorized,
			fmt.Sprintf("caller %s is not the owning wallet", caller.Hex()))
	}
	if err := a.ledger.Revoke(ctx, id); err != nil {
		return fmt.Errorf("ledger revoke failed: %w", err)
	}
	slog.Info("unique id revoked", "uniqueId", id.Hex())
	return nil
}

// IsConsumed exposes the ledger's consumed flag for a unique ID.
func (a *Authorizer) IsConsumed(ctx context.Context, id types.UniqueID) (bool, error) {
	return a.ledger.IsConsumed(ctx, id)
}

// RevocationDigest returns the digest an administrative caller must sign to
// prove its identity when revoking a unique ID over the HTTP channel.
func (a *Authorizer) RevocationDigest(id types.UniqueID) common.Hash {
	return a.domain.MessageDigest([]byte("revoke:" + id.Hex()))
}

// IsValidSignature answers the wallet's "is this blob a valid signature over
// this data, according to the gateway's signer set" query. It returns
// MagicValue on success and never mutates state; the wallet may call it from
// a context that forbids writes.
func (a *Authorizer) IsValidSignature(data, signature []byte) ([4]byte, error) {
	digest := a.domain.MessageDigest(data)
	if err := a.signers.Verify(digest, signature); err != nil {
		return [4]byte{}, err
	}
	return MagicValue, nil
}

// Domain exposes the signing domain, mainly for tooling that prepares
// payloads for signers.
func (a *Authorizer) Domain() txhash.Domain {
	return a.domain
}
