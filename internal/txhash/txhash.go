// Package txhash computes the canonical, replay-protected signing digests for
// the gateway. The scheme is EIP-712 compatible: payloads are bound to the
// (chain ID, gateway address) domain and prefixed with 0x19 0x01, so a
// signature collected for one deployment is meaningless on any other.
package txhash

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/quorumgate/quorumgate/pkg/types"
)

// Type strings of the signed structs. The field order is the system's signing
// format and must never change; any reordering silently invalidates every
// previously distributed signature and pre-signed Merkle root.
const (
	domainType = "EIP712Domain(uint256 chainId,address verifyingContract)"
	txType     = "AuthorizedTransaction(address to,uint256 value,bytes data,uint8 operation," +
		"uint256 safeTxGas,uint256 baseGas,uint256 gasPrice,address gasToken," +
		"address refundReceiver,uint256 uniqueId)"
	msgType = "AuthorizedMessage(bytes message)"
)

var (
	domainTypeHash = crypto.Keccak256Hash([]byte(domainType))
	txTypeHash     = crypto.Keccak256Hash([]byte(txType))
	msgTypeHash    = crypto.Keccak256Hash([]byte(msgType))
)

// Domain binds signing payloads to a single gateway deployment.
type Domain struct {
	separator common.Hash
}

// NewDomain derives the domain separator for a gateway deployed at the given
// address on the given chain.
func NewDomain(chainID *big.Int, gateway common.Address) Domain {
	enc := make([]byte, 0, 3*32)
	enc = append(enc, domainTypeHash.Bytes()...)
	enc = append(enc, common.BigToHash(chainID).Bytes()...)
	enc = append(enc, leftPadAddress(gateway)...)
	return Domain{separator: crypto.Keccak256Hash(enc)}
}

// Separator returns the raw domain separator hash.
func (d Domain) Separator() common.Hash {
	return d.separator
}

// TransactionDigest computes the canonical hash of a transaction descriptor
// plus its unique ID. This is the value signers sign (directly, or as a leaf
// of a pre-signed Merkle tree). Nil numeric fields encode as zero; the
// descriptor itself is never modified.
func (d Domain) TransactionDigest(desc *types.TransactionDescriptor, id types.UniqueID) common.Hash {
	enc := make([]byte, 0, 11*32)
	enc = append(enc, txTypeHash.Bytes()...)
	enc = append(enc, leftPadAddress(desc.To)...)
	enc = append(enc, padBig(desc.Value)...)
	// Dynamic bytes are folded in by hash, per EIP-712.
	enc = append(enc, crypto.Keccak256(desc.Data)...)
	enc = append(enc, common.BigToHash(big.NewInt(int64(desc.Operation))).Bytes()...)
	enc = append(enc, padBig(desc.SafeTxGas)...)
	enc = append(enc, padBig(desc.BaseGas)...)
	enc = append(enc, padBig(desc.GasPrice)...)
	enc = append(enc, leftPadAddress(desc.GasToken)...)
	enc = append(enc, leftPadAddress(desc.RefundReceiver)...)
	enc = append(enc, id[:]...)

	return d.wrap(crypto.Keccak256Hash(enc))
}

// MessageDigest computes the digest of an opaque byte payload for the
// signature-validation query path. No unique ID is involved; validating a
// message consumes nothing.
func (d Domain) MessageDigest(data []byte) common.Hash {
	enc := make([]byte, 0, 2*32)
	enc = append(enc, msgTypeHash.Bytes()...)
	enc = append(enc, crypto.Keccak256(data)...)
	return d.wrap(crypto.Keccak256Hash(enc))
}

func (d Domain) wrap(structHash common.Hash) common.Hash {
	enc := make([]byte, 0, 2+2*32)
	enc = append(enc, 0x19, 0x01)
	enc = append(enc, d.separator.Bytes()...)
	enc = append(enc, structHash.Bytes()...)
	return crypto.Keccak256Hash(enc)
}

func leftPadAddress(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

// padBig encodes v as a 32-byte word, treating nil as zero.
func padBig(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	return common.BigToHash(v).Bytes()
}
