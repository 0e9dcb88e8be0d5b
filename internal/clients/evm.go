package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/erc20-burn-relay/relayer/internal/model"
)

// claimRegistryABI is the part of the destination claim registry the relayer calls.
const claimRegistryABI = `[
	{
		"inputs": [],
		"name": "endHeight",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "height", "type": "uint256"},
			{
				"components": [
					{"internalType": "bytes32", "name": "txHash", "type": "bytes32"},
					{"internalType": "address", "name": "account", "type": "address"},
					{"internalType": "uint256", "name": "amount", "type": "uint256"}
				],
				"internalType": "struct BurnClaim[]",
				"name": "claims",
				"type": "tuple[]"
			}
		],
		"name": "storeErc20BurnedTransactions",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "bytes32", "name": "txHash", "type": "bytes32"}],
		"name": "TxHashAlreadyExist",
		"type": "error"
	}
]`

var (
	registryABI          = mustParseABI(claimRegistryABI)
	alreadyExistSelector = registryABI.Errors["TxHashAlreadyExist"].ID.Bytes()[:4]
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("ABI parse error: %v", err))
	}
	return parsed
}

// ErrTxHashAlreadyExist is returned when the registry rejects a claim it already holds.
var ErrTxHashAlreadyExist = errors.New("transaction hash already exists")

// burnClaim mirrors the registry's BurnClaim tuple for ABI packing.
type burnClaim struct {
	TxHash  [32]byte
	Account common.Address
	Amount  *big.Int
}

// EVMClient talks to the destination claim registry over JSON-RPC
type EVMClient struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     *zap.Logger
}

// NewEVMClient creates a new client for the destination chain. The private
// key may be empty for read-only use.
func NewEVMClient(logger *zap.Logger, rpcURL, privateKeyHex string) (*EVMClient, error) {
	client := &EVMClient{
		logger: logger.With(zap.String("component", "EVMClient")),
	}

	client.logger.Info("Connecting to destination chain", zap.String("rpcURL", rpcURL))
	ethClient, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %w", err)
	}
	client.client = ethClient

	if privateKeyHex == "" {
		return client, nil
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}
	client.privateKey = privateKey
	client.address = crypto.PubkeyToAddress(*publicKeyECDSA)

	return client, nil
}

// GetAddress returns the public address for this client
func (c *EVMClient) GetAddress() common.Address {
	return c.address
}

// Close releases the RPC connection.
func (c *EVMClient) Close() {
	c.client.Close()
}

// EndHeight reads the highest source block the registry has recorded.
func (c *EVMClient) EndHeight(ctx context.Context, registry common.Address) (uint64, error) {
	data, err := registryABI.Pack("endHeight")
	if err != nil {
		return 0, fmt.Errorf("ABI pack error: %w", err)
	}

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &registry, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call endHeight: %w", err)
	}

	values, err := registryABI.Unpack("endHeight", out)
	if err != nil {
		return 0, fmt.Errorf("ABI unpack error: %w", err)
	}
	height, ok := values[0].(*big.Int)
	if !ok || !height.IsUint64() {
		return 0, fmt.Errorf("endHeight returned %v", values[0])
	}
	return height.Uint64(), nil
}

// StoreBurnedTransactions records the claims of one source block and waits
// for the transaction to be mined. A registry that already holds one of the
// claims fails with ErrTxHashAlreadyExist.
func (c *EVMClient) StoreBurnedTransactions(ctx context.Context, registry common.Address, height uint64, claims []model.Claim) (string, error) {
	if c.privateKey == nil {
		return "", fmt.Errorf("no private key configured")
	}

	input := make([]burnClaim, len(claims))
	for i, claim := range claims {
		input[i] = burnClaim{TxHash: claim.TxHash, Account: claim.Address, Amount: claim.Amount}
	}

	data, err := registryABI.Pack("storeErc20BurnedTransactions", new(big.Int).SetUint64(height), input)
	if err != nil {
		return "", fmt.Errorf("ABI pack error: %w", err)
	}

	// a duplicate reverts, so estimation surfaces it before anything is signed
	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{From: c.address, To: &registry, Data: data})
	if err != nil {
		if isAlreadyExist(err) {
			return "", fmt.Errorf("%w: %v", ErrTxHashAlreadyExist, err)
		}
		return "", fmt.Errorf("failed to estimate gas: %w", err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	chainID, err := c.client.NetworkID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get chain ID: %w", err)
	}

	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get latest block header: %w", err)
	}

	// 2x base fee as max fee to ride out fluctuations
	baseFee := header.BaseFee
	maxPriorityFeePerGas := big.NewInt(100000000) // 0.1 gwei tip
	maxFeePerGas := new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFeePerGas.Add(maxFeePerGas, maxPriorityFeePerGas)

	c.logger.Debug("Gas fees calculated",
		zap.Uint64("gas", gas),
		zap.String("baseFee", baseFee.String()),
		zap.String("maxFeePerGas", maxFeePerGas.String()),
		zap.String("maxPriorityFeePerGas", maxPriorityFeePerGas.String()))

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: maxPriorityFeePerGas,
		GasFeeCap: maxFeePerGas,
		Gas:       gas + gas/5,
		To:        &registry,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signedTx, err := types.SignTx(tx, types.NewLondonSigner(chainID), c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	txHash := signedTx.Hash().Hex()
	c.logger.Debug("Transaction sent, waiting to be mined", zap.String("txHash", txHash))

	receipt, err := bind.WaitMined(ctx, c.client, signedTx)
	if err != nil {
		return txHash, fmt.Errorf("wait for %s: %w", txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return txHash, fmt.Errorf("transaction %s reverted in block %s", txHash, receipt.BlockNumber)
	}

	return txHash, nil
}

// isAlreadyExist recognises the registry's TxHashAlreadyExist revert, either
// by its custom error selector or by name in the node's message.
func isAlreadyExist(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if revert, decodeErr := hexutil.Decode(hexData); decodeErr == nil && len(revert) >= 4 {
				if bytes.Equal(revert[:4], alreadyExistSelector) {
					return true
				}
			}
		}
	}
	return strings.Contains(err.Error(), "TxHashAlreadyExist")
}
