package sigset

import (
	"crypto/ecdsa"
	"math/big"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
)

// testSigners generates n keys and returns them together with their roster.
func testSigners(t *testing.T, n int) ([]*ecdsa.PrivateKey, []common.Address) {
	t.Helper()
	keys := make([]*ecdsa.PrivateKey, n)
	roster := make([]common.Address, n)
	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = key
		roster[i] = crypto.PubkeyToAddress(key.PublicKey)
	}
	return keys, roster
}

// signBlob signs the digest with each key and concatenates the signatures in
// the given order.
func signBlob(t *testing.T, digest common.Hash, keys ...*ecdsa.PrivateKey) []byte {
	t.Helper()
	var blob []byte
	for _, key := range keys {
		sig, err := crypto.Sign(digest.Bytes(), key)
		require.NoError(t, err)
		blob = append(blob, sig...)
	}
	return blob
}

// byRosterOrder sorts keys so their signatures land in increasing roster order.
func byRosterOrder(set *SignerSet, keys []*ecdsa.PrivateKey) []*ecdsa.PrivateKey {
	sorted := append([]*ecdsa.PrivateKey(nil), keys...)
	index := make(map[common.Address]int)
	for i, addr := range set.Roster() {
		index[addr] = i
	}
	sort.Slice(sorted, func(i, j int) bool {
		return index[crypto.PubkeyToAddress(sorted[i].PublicKey)] <
			index[crypto.PubkeyToAddress(sorted[j].PublicKey)]
	})
	return sorted
}

func TestInitialize(t *testing.T) {
	_, roster := testSigners(t, 3)

	t.Run("valid", func(t *testing.T) {
		set, err := New(roster, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, set.Threshold())
		assert.Equal(t, roster, set.Roster())
	})

	t.Run("exactly once", func(t *testing.T) {
		set, err := New(roster, 2)
		require.NoError(t, err)
		err = set.Initialize(roster, 2)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyInitialized)
	})

	t.Run("empty roster", func(t *testing.T) {
		_, err := New(nil, 1)
		assert.ErrorIs(t, err, apperrors.ErrEmptyRoster)
	})

	t.Run("threshold zero", func(t *testing.T) {
		_, err := New(roster, 0)
		assert.ErrorIs(t, err, apperrors.ErrInvalidThreshold)
	})

	t.Run("threshold exceeds roster", func(t *testing.T) {
		_, err := New(roster, 4)
		assert.ErrorIs(t, err, apperrors.ErrInvalidThreshold)
	})

	t.Run("duplicate signer", func(t *testing.T) {
		_, err := New([]common.Address{roster[0], roster[1], roster[0]}, 2)
		assert.ErrorIs(t, err, apperrors.ErrDuplicateSigner)
	})
}

func TestVerifyThreshold(t *testing.T) {
	keys, roster := testSigners(t, 3)
	set, err := New(roster, 2)
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("payload"))

	t.Run("exactly threshold succeeds", func(t *testing.T) {
		signers := byRosterOrder(set, []*ecdsa.PrivateKey{keys[0], keys[2]})
		require.NoError(t, set.Verify(digest, signBlob(t, digest, signers...)))
	})

	t.Run("all signers succeed", func(t *testing.T) {
		signers := byRosterOrder(set, keys)
		require.NoError(t, set.Verify(digest, signBlob(t, digest, signers...)))
	})

	t.Run("below threshold fails", func(t *testing.T) {
		err := set.Verify(digest, signBlob(t, digest, keys[1]))
		assert.ErrorIs(t, err, apperrors.ErrSignatureVerification)
	})

	t.Run("wrong roster order fails", func(t *testing.T) {
		signers := byRosterOrder(set, []*ecdsa.PrivateKey{keys[0], keys[2]})
		// Reverse to violate strictly increasing roster order.
		blob := signBlob(t, digest, signers[1], signers[0])
		assert.ErrorIs(t, set.Verify(digest, blob), apperrors.ErrSignatureVerification)
	})

	t.Run("duplicate signer fails", func(t *testing.T) {
		blob := signBlob(t, digest, keys[0], keys[0])
		assert.ErrorIs(t, set.Verify(digest, blob), apperrors.ErrSignatureVerification)
	})

	t.Run("non-roster signer fails", func(t *testing.T) {
		outsider, err := crypto.GenerateKey()
		require.NoError(t, err)
		blob := signBlob(t, digest, keys[0], outsider)
		assert.ErrorIs(t, set.Verify(digest, blob), apperrors.ErrSignatureVerification)
	})

	t.Run("signature over different digest fails", func(t *testing.T) {
		other := crypto.Keccak256Hash([]byte("other payload"))
		signers := byRosterOrder(set, []*ecdsa.PrivateKey{keys[0], keys[1]})
		blob := signBlob(t, other, signers...)
		// Recovery yields addresses outside the roster for the wrong digest.
		assert.Error(t, set.Verify(digest, blob))
	})
}

func TestVerifyMalformedBlob(t *testing.T) {
	keys, roster := testSigners(t, 3)
	set, err := New(roster, 2)
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("payload"))
	signers := byRosterOrder(set, []*ecdsa.PrivateKey{keys[0], keys[1]})
	valid := signBlob(t, digest, signers...)

	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, set.Verify(digest, nil), apperrors.ErrMalformedSignatureBlob)
	})

	t.Run("truncated", func(t *testing.T) {
		assert.ErrorIs(t, set.Verify(digest, valid[:70]), apperrors.ErrMalformedSignatureBlob)
	})

	t.Run("bad recovery id", func(t *testing.T) {
		bad := append([]byte(nil), valid...)
		bad[64] = 5
		assert.ErrorIs(t, set.Verify(digest, bad), apperrors.ErrMalformedSignatureBlob)
	})

	t.Run("high-s malleation rejected", func(t *testing.T) {
		single, err := New(roster[:1], 1)
		require.NoError(t, err)
		blob := signBlob(t, digest, keys[0])
		require.NoError(t, single.Verify(digest, blob))

		// Flip the signature to its upper-half-order twin: s' = N - s, v' = v ^ 1.
		// It recovers the same signer but violates the low-s signing contract.
		malleated := append([]byte(nil), blob...)
		s := new(big.Int).SetBytes(malleated[32:64])
		s.Sub(crypto.S256().Params().N, s)
		s.FillBytes(malleated[32:64])
		malleated[64] ^= 1

		assert.ErrorIs(t, single.Verify(digest, malleated), apperrors.ErrMalformedSignatureBlob)
	})

	t.Run("more signatures than roster", func(t *testing.T) {
		all := byRosterOrder(set, keys)
		blob := signBlob(t, digest, all...)
		blob = append(blob, signBlob(t, digest, keys[0])...)
		assert.ErrorIs(t, set.Verify(digest, blob), apperrors.ErrMalformedSignatureBlob)
	})
}

func TestVerifyAcceptsEthereumV(t *testing.T) {
	keys, roster := testSigners(t, 2)
	set, err := New(roster, 1)
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("payload"))
	blob := signBlob(t, digest, keys[0])

	// Shift v from {0,1} to the {27,28} convention wallets use.
	shifted := append([]byte(nil), blob...)
	shifted[64] += 27
	require.NoError(t, set.Verify(digest, shifted))
}

func TestVerifyIsPure(t *testing.T) {
	keys, roster := testSigners(t, 3)
	set, err := New(roster, 2)
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("payload"))
	signers := byRosterOrder(set, []*ecdsa.PrivateKey{keys[0], keys[1]})
	blob := signBlob(t, digest, signers...)

	for i := 0; i < 5; i++ {
		require.NoError(t, set.Verify(digest, blob))
	}
	assert.Equal(t, roster, set.Roster())
	assert.Equal(t, 2, set.Threshold())
}
