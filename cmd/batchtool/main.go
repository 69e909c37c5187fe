// Command batchtool prepares a Merkle batch for one signing ceremony: it
// computes the canonical digest of every transaction in a batch file, builds
// the sorted-pair tree over those digests, and emits the root the signers
// should sign together with each leaf's inclusion proof.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/quorumgate/quorumgate/internal/merkle"
	"github.com/quorumgate/quorumgate/internal/txhash"
	"github.com/quorumgate/quorumgate/pkg/types"
)

// batchEntry is one transaction in the input file. Numeric fields are decimal
// strings, byte fields 0x-prefixed hex — the same wire form the gateway API
// accepts.
type batchEntry struct {
	To             string `json:"to"`
	Value          string `json:"value"`
	Data           string `json:"data"`
	Operation      uint8  `json:"operation"`
	SafeTxGas      string `json:"safeTxGas"`
	BaseGas        string `json:"baseGas"`
	GasPrice       string `json:"gasPrice"`
	GasToken       string `json:"gasToken"`
	RefundReceiver string `json:"refundReceiver"`
	UniqueID       string `json:"uniqueId"`
}

type batchFile struct {
	ChainID      string       `json:"chainId"`
	Gateway      string       `json:"gateway"`
	Transactions []batchEntry `json:"transactions"`
}

type proofOutput struct {
	UniqueID string   `json:"uniqueId"`
	Digest   string   `json:"digest"`
	Proof    []string `json:"proof"`
}

type batchOutput struct {
	Root   string        `json:"root"`
	Leaves []proofOutput `json:"leaves"`
}

func main() {
	var (
		inPath  = flag.String("in", "", "Input batch file (JSON)")
		outPath = flag.String("out", "", "Output file (default: stdout)")
	)
	flag.Parse()

	if *inPath == "" {
		log.Fatal("-in is required")
	}

	out, err := build(*inPath)
	if err != nil {
		log.Fatal(err)
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	encoded = append(encoded, '\n')

	if *outPath == "" {
		os.Stdout.Write(encoded)
		return
	}
	if err := os.WriteFile(*outPath, encoded, 0o644); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
}

func build(path string) (*batchOutput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var batch batchFile
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(batch.Transactions) == 0 {
		return nil, fmt.Errorf("batch file contains no transactions")
	}
	if !common.IsHexAddress(batch.Gateway) {
		return nil, fmt.Errorf("invalid gateway address: %s", batch.Gateway)
	}
	chainID, ok := new(big.Int).SetString(batch.ChainID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid chainId: %s", batch.ChainID)
	}

	domain := txhash.NewDomain(chainID, common.HexToAddress(batch.Gateway))

	// Every leaf already carries its own unique ID inside the digest; that
	// per-leaf salt is what makes sibling hashes safe to reveal in proofs.
	ids := make([]types.UniqueID, len(batch.Transactions))
	leaves := make([]common.Hash, len(batch.Transactions))
	seen := make(map[types.UniqueID]int, len(batch.Transactions))
	for i, entry := range batch.Transactions {
		desc, err := entry.descriptor()
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		id, err := types.ParseUniqueID(entry.UniqueID)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("transactions %d and %d share unique id %s", prev, i, id.Hex())
		}
		seen[id] = i

		ids[i] = id
		leaves[i] = domain.TransactionDigest(desc, id)
	}

	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return nil, err
	}

	out := &batchOutput{Root: tree.Root().Hex()}
	for i := range leaves {
		proof, err := tree.Proof(i)
		if err != nil {
			return nil, err
		}
		hexProof := make([]string, len(proof))
		for j, h := range proof {
			hexProof[j] = h.Hex()
		}
		out.Leaves = append(out.Leaves, proofOutput{
			UniqueID: ids[i].Hex(),
			Digest:   leaves[i].Hex(),
			Proof:    hexProof,
		})
	}
	return out, nil
}

func (e *batchEntry) descriptor() (*types.TransactionDescriptor, error) {
	if !common.IsHexAddress(e.To) {
		return nil, fmt.Errorf("invalid 'to' address: %s", e.To)
	}

	desc := &types.TransactionDescriptor{
		To:        common.HexToAddress(e.To),
		Operation: types.Operation(e.Operation),
	}

	var err error
	if desc.Value, err = parseBig("value", e.Value); err != nil {
		return nil, err
	}
	if desc.SafeTxGas, err = parseBig("safeTxGas", e.SafeTxGas); err != nil {
		return nil, err
	}
	if desc.BaseGas, err = parseBig("baseGas", e.BaseGas); err != nil {
		return nil, err
	}
	if desc.GasPrice, err = parseBig("gasPrice", e.GasPrice); err != nil {
		return nil, err
	}

	if e.Data != "" {
		raw, err := hexutil.Decode(e.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid 'data' hex: %w", err)
		}
		desc.Data = raw
	}
	if e.GasToken != "" {
		if !common.IsHexAddress(e.GasToken) {
			return nil, fmt.Errorf("invalid 'gasToken' address: %s", e.GasToken)
		}
		desc.GasToken = common.HexToAddress(e.GasToken)
	}
	if e.RefundReceiver != "" {
		if !common.IsHexAddress(e.RefundReceiver) {
			return nil, fmt.Errorf("invalid 'refundReceiver' address: %s", e.RefundReceiver)
		}
		desc.RefundReceiver = common.HexToAddress(e.RefundReceiver)
	}

	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

func parseBig(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal value for '%s': %s", field, s)
	}
	return v, nil
}
