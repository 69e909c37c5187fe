package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/quorumgate/quorumgate/pkg/types"
)

// safeABI is the slice of the wallet contract interface the gateway touches.
const safeABI = `[
  {"type":"function","name":"isOwner","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"execTransactionFromModule","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},
             {"name":"data","type":"bytes"},{"name":"operation","type":"uint8"}],
   "outputs":[{"name":"success","type":"bool"}]}
]`

// SafeClient talks to a Safe-style wallet contract over JSON-RPC. It checks
// ownership with eth_call and forwards approved transactions through the
// wallet's module entrypoint, broadcast from a relayer key that pays gas but
// holds no authorization power of its own.
type SafeClient struct {
	client     *ethclient.Client
	chainID    *big.Int
	wallet     common.Address
	abi        abi.ABI
	relayerKey *ecdsa.PrivateKey
	relayer    common.Address
}

// NewSafeClient connects to the RPC endpoint and auto-detects the chain ID.
func NewSafeClient(rpcURL string, wallet common.Address, relayerKey *ecdsa.PrivateKey) (*SafeClient, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(safeABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse wallet ABI: %w", err)
	}

	c := &SafeClient{
		client:  client,
		chainID: chainID,
		wallet:  wallet,
		abi:     parsed,
	}
	if relayerKey != nil {
		c.relayerKey = relayerKey
		c.relayer = crypto.PubkeyToAddress(relayerKey.PublicKey)
	}
	return c, nil
}

// Close releases the underlying RPC connection.
func (c *SafeClient) Close() {
	c.client.Close()
}

// ChainID returns the auto-detected chain ID.
func (c *SafeClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Address implements Wallet.
func (c *SafeClient) Address() common.Address {
	return c.wallet
}

// IsOwner implements Wallet via eth_call to the wallet's isOwner view.
func (c *SafeClient) IsOwner(ctx context.Context, addr common.Address) (bool, error) {
	input, err := c.abi.Pack("isOwner", addr)
	if err != nil {
		return false, fmt.Errorf("failed to pack isOwner call: %w", err)
	}

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.wallet, Data: input}, nil)
	if err != nil {
		return false, fmt.Errorf("isOwner call failed: %w", err)
	}

	results, err := c.abi.Unpack("isOwner", out)
	if err != nil {
		return false, fmt.Errorf("failed to unpack isOwner result: %w", err)
	}
	isOwner, ok := results[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isOwner result type %T", results[0])
	}
	return isOwner, nil
}

// Execute implements Wallet. The descriptor's fee tuple is the wallet's
// business; only (to, value, data, operation) cross the module entrypoint.
func (c *SafeClient) Execute(ctx context.Context, desc *types.TransactionDescriptor) (*ExecutionResult, error) {
	if c.relayerKey == nil {
		return nil, fmt.Errorf("no relayer key configured; cannot broadcast executions")
	}
	value := desc.Value
	if value == nil {
		value = new(big.Int)
	}
	input, err := c.abi.Pack("execTransactionFromModule",
		desc.To, value, desc.Data, uint8(desc.Operation))
	if err != nil {
		return nil, fmt.Errorf("failed to pack execution call: %w", err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.relayer)
	if err != nil {
		return nil, fmt.Errorf("failed to get relayer nonce: %w", err)
	}

	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.relayer,
		To:   &c.wallet,
		Data: input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tipCap, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	head, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain head: %w", err)
	}
	// baseFee*2 + tip keeps the transaction includable across a few blocks.
	feeCap := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tipCap)

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas * 120 / 100,
		To:        &c.wallet,
		Data:      input,
	})

	signedTx, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(c.chainID), c.relayerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign execution transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to broadcast execution: %w", err)
	}

	return &ExecutionResult{Success: true, TxHash: signedTx.Hash()}, nil
}
