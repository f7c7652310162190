package wallet

import (
	"context"
	"math/big"
)

// FeeData is the wallet's current view of network fees.
type FeeData struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// TransactionRequest is one transaction to submit: target, call data and the
// fee parameters the caller computed from FeeData plus the gas estimate.
type TransactionRequest struct {
	To       string
	Data     []byte
	Value    *big.Int
	GasPrice *big.Int
	GasLimit uint64
}

// Provider abstracts the connected wallet. Implementations sign and
// broadcast; they never interpret order semantics.
type Provider interface {
	Address() string
	GetFeeData(ctx context.Context) (*FeeData, error)
	SendTransaction(ctx context.Context, req TransactionRequest) (string, error)
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	WaitForReceipt(ctx context.Context, txHash string) error
}
