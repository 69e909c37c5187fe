// Package sigset implements the threshold signer set: a fixed roster of
// signer addresses plus the minimum number of signatures an authorization
// needs to carry.
package sigset

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	apperrors "github.com/quorumgate/quorumgate/pkg/errors"
)

// SignatureLength is the size of one signature component: r (32) || s (32) || v (1).
const SignatureLength = 65

// SignerSet holds the roster and threshold. The roster is set exactly once;
// rotation requires standing up a new set.
type SignerSet struct {
	roster    []common.Address
	index     map[common.Address]int
	threshold int
}

// New creates and initializes a signer set in one step.
func New(roster []common.Address, threshold int) (*SignerSet, error) {
	s := &SignerSet{}
	if err := s.Initialize(roster, threshold); err != nil {
		return nil, err
	}
	return s, nil
}

// Initialize sets the roster and threshold. It can be called exactly once.
func (s *SignerSet) Initialize(roster []common.Address, threshold int) error {
	if s.index != nil {
		return apperrors.ErrAlreadyInitialized
	}
	if len(roster) == 0 {
		return apperrors.ErrEmptyRoster
	}
	if threshold < 1 || threshold > len(roster) {
		return apperrors.WithDetail(apperrors.ErrInvalidThreshold,
			fmt.Sprintf("threshold %d, roster size %d", threshold, len(roster)))
	}

	index := make(map[common.Address]int, len(roster))
	for i, addr := range roster {
		if _, ok := index[addr]; ok {
			return apperrors.WithDetail(apperrors.ErrDuplicateSigner, addr.Hex())
		}
		index[addr] = i
	}

	s.roster = append([]common.Address(nil), roster...)
	s.index = index
	s.threshold = threshold
	return nil
}

// Roster returns a copy of the signer roster in insertion order.
func (s *SignerSet) Roster() []common.Address {
	return append([]common.Address(nil), s.roster...)
}

// Threshold returns the required signature count.
func (s *SignerSet) Threshold() int {
	return s.threshold
}

// Contains reports whether addr is a roster member.
func (s *SignerSet) Contains(addr common.Address) bool {
	_, ok := s.index[addr]
	return ok
}

// Verify checks an aggregate signature blob against the digest. The blob is a
// concatenation of 65-byte r||s||v secp256k1 signatures whose recovered
// signers must be roster members appearing in strictly increasing roster
// order; the strict ordering makes duplicate-signature padding impossible.
// At least threshold components are required. Verify never mutates state.
func (s *SignerSet) Verify(digest common.Hash, blob []byte) error {
	if len(blob) == 0 || len(blob)%SignatureLength != 0 {
		return apperrors.MalformedSignatureBlob(
			fmt.Sprintf("blob length %d is not a multiple of %d", len(blob), SignatureLength))
	}
	count := len(blob) / SignatureLength
	if count > len(s.roster) {
		return apperrors.MalformedSignatureBlob(
			fmt.Sprintf("%d signatures for a roster of %d", count, len(s.roster)))
	}

	prev := -1
	for i := 0; i < count; i++ {
		signer, err := recoverSigner(digest, blob[i*SignatureLength:(i+1)*SignatureLength])
		if err != nil {
			return err
		}

		pos, ok := s.index[signer]
		if !ok {
			return apperrors.SignatureVerificationFailed(
				fmt.Sprintf("signature %d from non-roster signer %s", i, signer.Hex()))
		}
		if pos <= prev {
			return apperrors.SignatureVerificationFailed(
				fmt.Sprintf("signature %d out of roster order", i))
		}
		prev = pos
	}

	if count < s.threshold {
		return apperrors.SignatureVerificationFailed(
			fmt.Sprintf("%d valid signatures, threshold is %d", count, s.threshold))
	}
	return nil
}

// recoverSigner recovers the signing address of one 65-byte component.
// Accepts both v in {27, 28} (Ethereum convention) and raw {0, 1}. The s
// component must be in the lower half of the curve order, so a blob's
// signatures cannot be malleated in transit.
func recoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	rs := make([]byte, SignatureLength)
	copy(rs, sig)

	v := rs[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, apperrors.MalformedSignatureBlob(
			fmt.Sprintf("invalid recovery id %d", sig[64]))
	}
	rs[64] = v

	r := new(big.Int).SetBytes(rs[:32])
	sv := new(big.Int).SetBytes(rs[32:64])
	if !crypto.ValidateSignatureValues(v, r, sv, true) {
		return common.Address{}, apperrors.MalformedSignatureBlob(
			"signature values out of range")
	}

	pub, err := crypto.SigToPub(digest.Bytes(), rs)
	if err != nil {
		return common.Address{}, apperrors.MalformedSignatureBlob(
			fmt.Sprintf("recovery failed: %v", err))
	}
	return crypto.PubkeyToAddress(*pub), nil
}
