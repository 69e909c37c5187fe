// Package merkle verifies inclusion of a leaf digest in a pre-signed batch
// root, and builds the trees those proofs come from.
//
// Pair hashing convention: keccak256 of the two child hashes concatenated
// with the numerically smaller hash first (sorted pairs). Proofs carry no
// left/right markers; the verifier and every tree builder must agree on this
// convention, so it is part of the system's compatibility contract.
//
// Caller obligation: each leaf fed into a tree must already incorporate its
// own unique ID (the canonical transaction digest does). Building a tree over
// unsalted leaves lets anyone who observes one proof forge membership claims
// for sibling hashes that were never individually authorized.
package merkle

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
)

// MaxProofDepth bounds proof length. Proofs come from untrusted callers and
// drive the fold loop; 64 siblings covers any tree with fewer than 2^64 leaves.
const MaxProofDepth = 64

// Include folds a leaf digest through an inclusion proof and returns the
// resulting root. The caller compares (or signs against) that root; Include
// itself has no notion of which roots are trusted.
func Include(proof []common.Hash, leaf common.Hash) (common.Hash, error) {
	if len(proof) > MaxProofDepth {
		return common.Hash{}, apperrors.MalformedProof(
			fmt.Sprintf("proof depth %d exceeds maximum %d", len(proof), MaxProofDepth))
	}

	node := leaf
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node, nil
}

// hashPair combines two nodes with the sorted-pair convention.
func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(a.Bytes())
	h.Write(b.Bytes())
	var out common.Hash
	h.Sum(out[:0])
	return out
}
