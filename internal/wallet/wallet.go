// Package wallet defines the owning-wallet collaborator the gateway forwards
// approved transactions to, and its production implementation against an
// EVM Safe-style wallet contract.
package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumgate/quorumgate/pkg/types"
)

// ExecutionResult is what the wallet reports back for a forwarded transaction.
type ExecutionResult struct {
	// Success mirrors the wallet's own success flag; a false value is a
	// business failure inside the wallet, not a gateway failure.
	Success bool `json:"success"`
	// TxHash identifies the submitted transaction, when one was broadcast.
	TxHash common.Hash `json:"txHash"`
}

// Wallet is the external execution collaborator. The gateway never implements
// wallet semantics itself; it only checks, consumes, and forwards.
type Wallet interface {
	// Address returns the wallet contract address, which is also the only
	// identity allowed to revoke unique IDs administratively.
	Address() common.Address
	// IsOwner reports whether addr is a registered owner/co-signer of the
	// wallet. Checked once at gateway start: a gateway that is not itself an
	// owner can approve all it wants to no effect.
	IsOwner(ctx context.Context, addr common.Address) (bool, error)
	// Execute forwards an approved transaction descriptor to the wallet.
	Execute(ctx context.Context, desc *types.TransactionDescriptor) (*ExecutionResult, error)
}
