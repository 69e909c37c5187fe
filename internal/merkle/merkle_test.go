package merkle

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
)

func testLeaves(n int) []common.Hash {
	leaves := make([]common.Hash, n)
	for i := range leaves {
		leaves[i] = crypto.Keccak256Hash([]byte(fmt.Sprintf("leaf-%d", i)))
	}
	return leaves
}

func TestIncludeRoundTrip(t *testing.T) {
	// Exercise balanced and unbalanced trees, including the single-leaf tree
	// whose proof is empty.
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 33} {
		t.Run(fmt.Sprintf("%d leaves", n), func(t *testing.T) {
			leaves := testLeaves(n)
			tree, err := NewTree(leaves)
			require.NoError(t, err)

			for i, leaf := range leaves {
				proof, err := tree.Proof(i)
				require.NoError(t, err)

				root, err := Include(proof, leaf)
				require.NoError(t, err)
				assert.Equal(t, tree.Root(), root, "leaf %d must fold to the root", i)
			}
		})
	}
}

func TestIncludeRejectsForeignLeaf(t *testing.T) {
	leaves := testLeaves(8)
	tree, err := NewTree(leaves)
	require.NoError(t, err)

	proof, err := tree.Proof(3)
	require.NoError(t, err)

	forged := crypto.Keccak256Hash([]byte("never authorized"))
	root, err := Include(proof, forged)
	require.NoError(t, err)
	assert.NotEqual(t, tree.Root(), root)
}

func TestIncludeBoundsProofDepth(t *testing.T) {
	proof := make([]common.Hash, MaxProofDepth+1)
	_, err := Include(proof, common.Hash{})
	assert.ErrorIs(t, err, apperrors.ErrMalformedProof)
}

func TestPairOrderingIsCanonical(t *testing.T) {
	a := crypto.Keccak256Hash([]byte("a"))
	b := crypto.Keccak256Hash([]byte("b"))
	assert.Equal(t, hashPair(a, b), hashPair(b, a))
}

func TestNewTreeRejectsEmpty(t *testing.T) {
	_, err := NewTree(nil)
	assert.Error(t, err)
}

func TestProofIndexOutOfRange(t *testing.T) {
	tree, err := NewTree(testLeaves(4))
	require.NoError(t, err)

	_, err = tree.Proof(-1)
	assert.Error(t, err)
	_, err = tree.Proof(4)
	assert.Error(t, err)
}
