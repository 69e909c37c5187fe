package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Tree is an in-memory Merkle tree over a fixed set of leaf digests. It is
// the builder counterpart of Include: the batch tool constructs a Tree over
// canonical transaction digests, signers sign its root once, and each leaf is
// later presented with its proof.
type Tree struct {
	// levels[0] holds the leaves, levels[len-1] the single root.
	levels [][]common.Hash
}

// NewTree builds a tree over the given leaves. Odd nodes at any level are
// promoted unpaired to the next level, so no leaf is ever duplicated.
func NewTree(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("merkle tree needs at least one leaf")
	}

	levels := [][]common.Hash{append([]common.Hash(nil), leaves...)}
	for len(levels[len(levels)-1]) > 1 {
		cur := levels[len(levels)-1]
		next := make([]common.Hash, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 < len(cur) {
				next = append(next, hashPair(cur[i], cur[i+1]))
			} else {
				next = append(next, cur[i])
			}
		}
		levels = append(levels, next)
	}
	return &Tree{levels: levels}, nil
}

// Root returns the tree root.
func (t *Tree) Root() common.Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Proof returns the sibling path for the leaf at the given index.
func (t *Tree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, fmt.Errorf("leaf index %d out of range", index)
	}

	var proof []common.Hash
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		index /= 2
	}
	return proof, nil
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.levels[0])
}
