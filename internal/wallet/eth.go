package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const receiptPollInterval = 2 * time.Second

// EthProvider is a Provider over a JSON-RPC node with a local signing key.
type EthProvider struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

func NewEthProvider(rpcURL, privateKeyHex string, chainID int64) (*EthProvider, error) {
	if rpcURL == "" {
		return nil, errors.New("missing rpc url")
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rpc endpoint: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("failed to derive public key")
	}

	return &EthProvider{
		client:     client,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
		chainID:    big.NewInt(chainID),
	}, nil
}

func (p *EthProvider) Address() string {
	return p.address.Hex()
}

func (p *EthProvider) GetFeeData(ctx context.Context) (*FeeData, error) {
	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	tipCap, err := p.client.SuggestGasTipCap(ctx)
	if err != nil {
		// Legacy nodes have no tip cap; the gas price alone is usable.
		zap.L().With(zap.Error(err)).Debug("Wallet: no tip cap available")
		tipCap = big.NewInt(0)
	}

	return &FeeData{
		GasPrice:             gasPrice,
		MaxFeePerGas:         new(big.Int).Add(gasPrice, tipCap),
		MaxPriorityFeePerGas: tipCap,
	}, nil
}

func (p *EthProvider) SendTransaction(ctx context.Context, req TransactionRequest) (string, error) {
	if !common.IsHexAddress(req.To) {
		return "", fmt.Errorf("invalid target address: %s", req.To)
	}

	nonce, err := p.client.PendingNonceAt(ctx, p.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := types.NewTransaction(nonce, common.HexToAddress(req.To), value, req.GasLimit, req.GasPrice, req.Data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(p.chainID), p.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := p.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	hash := signedTx.Hash().Hex()
	zap.L().With(zap.String("hash", hash), zap.String("to", req.To)).Debug("Wallet: transaction submitted")

	return hash, nil
}

func (p *EthProvider) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	balance, err := p.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// WaitForReceipt polls until the transaction is mined or the context ends.
// A reverted transaction is an error.
func (p *EthProvider) WaitForReceipt(ctx context.Context, txHash string) error {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	hash := common.HexToHash(txHash)
	for {
		receipt, err := p.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return fmt.Errorf("transaction failed: %s", txHash)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *EthProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
