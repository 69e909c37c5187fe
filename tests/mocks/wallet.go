// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumgate/quorumgate/internal/wallet"
	"github.com/quorumgate/quorumgate/pkg/types"
)

// Wallet is an in-memory owning-wallet collaborator. It records every
// forwarded descriptor and can be told to fail executions.
type Wallet struct {
	mu sync.Mutex

	Addr   common.Address
	Owners map[common.Address]bool

	// ExecuteErr, when set, is returned by Execute instead of a result.
	ExecuteErr error
	// ExecuteSuccess is the success flag reported for forwarded transactions.
	ExecuteSuccess bool

	Executed []*types.TransactionDescriptor
}

// NewWallet creates a mock wallet that recognizes the given owners and
// reports successful executions.
func NewWallet(addr common.Address, owners ...common.Address) *Wallet {
	m := &Wallet{
		Addr:           addr,
		Owners:         make(map[common.Address]bool, len(owners)),
		ExecuteSuccess: true,
	}
	for _, o := range owners {
		m.Owners[o] = true
	}
	return m
}

// Address implements wallet.Wallet.
func (m *Wallet) Address() common.Address {
	return m.Addr
}

// IsOwner implements wallet.Wallet.
func (m *Wallet) IsOwner(_ context.Context, addr common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Owners[addr], nil
}

// Execute implements wallet.Wallet.
func (m *Wallet) Execute(_ context.Context, desc *types.TransactionDescriptor) (*wallet.ExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ExecuteErr != nil {
		return nil, m.ExecuteErr
	}

	m.Executed = append(m.Executed, desc)
	return &wallet.ExecutionResult{Success: m.ExecuteSuccess}, nil
}

// ExecutedCount returns how many descriptors were forwarded.
func (m *Wallet) ExecutedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Executed)
}

var _ wallet.Wallet = (*Wallet)(nil)
