package types

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Operation is the call-type flag of a transaction descriptor.
type Operation uint8

const (
	// OperationCall is a normal CALL to the destination.
	OperationCall Operation = 0
	// OperationDelegateCall executes the destination's code in the wallet's context.
	OperationDelegateCall Operation = 1
)

// Valid reports whether the operation is one of the known call types.
func (op Operation) Valid() bool {
	return op == OperationCall || op == OperationDelegateCall
}

func (op Operation) String() string {
	switch op {
	case OperationCall:
		return "call"
	case OperationDelegateCall:
		return "delegatecall"
	default:
		return fmt.Sprintf("operation(%d)", uint8(op))
	}
}

// UniqueID is an opaque 256-bit replay-protection token chosen by the caller.
// Each ID authorizes at most one execution.
type UniqueID [32]byte

// UniqueIDFromBig converts a big integer into a UniqueID. Values wider than
// 256 bits are rejected.
func UniqueIDFromBig(v *big.Int) (UniqueID, error) {
	var id UniqueID
	if v == nil || v.Sign() < 0 {
		return id, fmt.Errorf("unique id must be a non-negative integer")
	}
	if v.BitLen() > 256 {
		return id, fmt.Errorf("unique id exceeds 256 bits")
	}
	v.FillBytes(id[:])
	return id, nil
}

// UniqueIDFromUint64 builds a UniqueID from a small integer. Convenience for
// tests and tooling.
func UniqueIDFromUint64(v uint64) UniqueID {
	var id UniqueID
	new(big.Int).SetUint64(v).FillBytes(id[:])
	return id
}

// ParseUniqueID parses a 0x-prefixed or bare hex string of at most 32 bytes,
// left-padding shorter values.
func ParseUniqueID(s string) (UniqueID, error) {
	var id UniqueID
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid unique id hex: %w", err)
	}
	if len(raw) > 32 {
		return id, fmt.Errorf("unique id exceeds 32 bytes")
	}
	copy(id[32-len(raw):], raw)
	return id, nil
}

// Big returns the ID as a big integer.
func (id UniqueID) Big() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// Hex returns the 0x-prefixed, zero-padded hex form used in APIs and storage.
func (id UniqueID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id UniqueID) String() string { return id.Hex() }

// TransactionDescriptor describes a proposed wallet transaction. Every field
// is folded into the canonical signing hash, so mutating any of them
// invalidates previously collected signatures. The fee tuple mirrors the
// wallet's refund parameters and is opaque to the authorization logic.
type TransactionDescriptor struct {
	To             common.Address `json:"to"`
	Value          *big.Int       `json:"value"`
	Data           []byte         `json:"data"`
	Operation      Operation      `json:"operation"`
	SafeTxGas      *big.Int       `json:"safeTxGas"`
	BaseGas        *big.Int       `json:"baseGas"`
	GasPrice       *big.Int       `json:"gasPrice"`
	GasToken       common.Address `json:"gasToken"`
	RefundReceiver common.Address `json:"refundReceiver"`
}

// Validate checks the descriptor fields that the authorization core depends
// on. Nil numeric fields are allowed; consumers hash and encode them as zero.
func (d *TransactionDescriptor) Validate() error {
	if !d.Operation.Valid() {
		return fmt.Errorf("unknown operation: %d", uint8(d.Operation))
	}
	for name, v := range map[string]*big.Int{
		"value":     d.Value,
		"safeTxGas": d.SafeTxGas,
		"baseGas":   d.BaseGas,
		"gasPrice":  d.GasPrice,
	} {
		if v != nil && v.Sign() < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
		if v != nil && v.BitLen() > 256 {
			return fmt.Errorf("%s exceeds 256 bits", name)
		}
	}
	return nil
}
