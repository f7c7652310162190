package checkout

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/immutable/checkout-go/internal/entity"
	"github.com/immutable/checkout-go/internal/event"
	"github.com/immutable/checkout-go/internal/sales"
	"github.com/immutable/checkout-go/internal/wallet"
	uuid "github.com/nu7hatch/gouuid"
	"go.uber.org/zap"
)

// ExecutionHooks let the caller interleave UI between execution steps.
type ExecutionHooks struct {
	BeforeTransaction func(method string)
	AfterTransaction  func(method string, hash string)
	OnError           func(method string, err *entity.CheckoutError)
}

// Orchestrator drives one checkout attempt through quote, sign and
// sequential transaction execution. It owns the execution cursor and state
// exclusively; attempts must not share an instance.
type Orchestrator struct {
	sales               *sales.Client
	wallet              wallet.Provider
	events              *event.Manager
	machine             *Machine
	confirmTransactions bool

	mu          sync.Mutex
	fetchingKey string
	lastQuote   *entity.OrderQuote
	lastError   *entity.CheckoutError
	execution   entity.ExecutionState
	cursor      int
	attemptID   string
}

func NewOrchestrator(salesClient *sales.Client, walletProvider wallet.Provider, events *event.Manager, confirmTransactions bool) *Orchestrator {
	return &Orchestrator{
		sales:               salesClient,
		wallet:              walletProvider,
		events:              events,
		machine:             NewMachine(),
		confirmTransactions: confirmTransactions,
	}
}

func (o *Orchestrator) State() State {
	return o.machine.Current()
}

func (o *Orchestrator) Quote() *entity.OrderQuote {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastQuote
}

func (o *Orchestrator) LastError() *entity.CheckoutError {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastError
}

func (o *Orchestrator) ExecutionState() entity.ExecutionState {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := entity.ExecutionState{Done: o.execution.Done}
	state.Transactions = append(state.Transactions, o.execution.Transactions...)
	return state
}

// FetchQuote prices the items for the wallet. An identical request observed
// while one is in flight is dropped, not queued: the caller gets the last
// known quote and no second network call happens.
func (o *Orchestrator) FetchQuote(ctx context.Context, items []entity.OrderItem, walletAddress string) (*entity.OrderQuote, error) {
	key := quoteKey(items, walletAddress)

	o.mu.Lock()
	if o.fetchingKey == key {
		last := o.lastQuote
		o.mu.Unlock()
		zap.L().With(zap.String("key", key)).Debug("Checkout: identical quote request dropped")
		return last, nil
	}
	o.fetchingKey = key
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.fetchingKey = ""
		o.mu.Unlock()
	}()

	if err := o.machine.Transition(StateQuoting); err != nil {
		return nil, err
	}

	quote, err := o.sales.FetchQuote(ctx, items, walletAddress)
	if err != nil {
		return nil, o.fail("quote", entity.AsCheckoutError(err, entity.ServiceBreakdown))
	}

	o.mu.Lock()
	o.lastQuote = quote
	o.mu.Unlock()

	if err := o.machine.Transition(StateQuoted); err != nil {
		return nil, err
	}
	o.events.Emit(event.QuoteFetched, quote)

	return quote, nil
}

// SelectDefaultCurrency picks the currency to pay with: the caller's
// preference when offered, else the quote's base currency, else the first
// offered. An unmatched preference is a diagnostic, not an error.
func (o *Orchestrator) SelectDefaultCurrency(quote *entity.OrderQuote, preferred string) *entity.QuoteCurrency {
	if quote == nil || len(quote.Currencies) == 0 {
		return nil
	}

	if preferred != "" {
		for i := range quote.Currencies {
			if strings.EqualFold(quote.Currencies[i].Name, preferred) {
				return &quote.Currencies[i]
			}
		}
		zap.L().With(zap.String("preferred", preferred)).Warn("Checkout: preferred currency not offered by quote")
	}

	for i := range quote.Currencies {
		if quote.Currencies[i].Base {
			return &quote.Currencies[i]
		}
	}

	return &quote.Currencies[0]
}

// Sign obtains the transaction set for the order and begins a fresh
// execution attempt.
func (o *Orchestrator) Sign(ctx context.Context, signReq sales.SignRequest) (*entity.SignedOrder, error) {
	if err := o.machine.Transition(StateSigning); err != nil {
		return nil, err
	}
	o.events.Emit(event.SignRequested, signReq)

	order, err := o.sales.Sign(ctx, signReq)
	if err != nil {
		return nil, o.fail("sign", entity.AsCheckoutError(err, entity.ServiceBreakdown))
	}

	o.mu.Lock()
	o.execution = entity.ExecutionState{}
	o.cursor = 0
	o.attemptID = newAttemptID()
	o.lastError = nil
	o.mu.Unlock()

	if err := o.machine.Transition(StateSigned); err != nil {
		return nil, err
	}

	return order, nil
}

// CheckBalance surfaces WALLET_REJECTED_NO_FUNDS before any transaction is
// submitted when the wallet cannot cover the required total.
func (o *Orchestrator) CheckBalance(ctx context.Context, required *big.Int) error {
	balance, err := o.wallet.GetBalance(ctx, o.wallet.Address())
	if err != nil {
		return entity.NewCheckoutError(entity.WalletFailed, "unable to read wallet balance", err)
	}

	if required != nil && balance.Cmp(required) < 0 {
		return entity.NewCheckoutError(entity.WalletRejectedNoFunds, "insufficient balance for order", nil).
			WithData("balance", balance.String()).
			WithData("required", required.String())
	}

	return nil
}

// ExecuteAll submits every transaction of the signed order strictly in the
// order returned by the sign endpoint, halting on the first failure. Partial
// progress is preserved and returned alongside the classified error.
func (o *Orchestrator) ExecuteAll(ctx context.Context, order *entity.SignedOrder, hooks ExecutionHooks) ([]entity.ExecutedTransaction, error) {
	if err := o.machine.Transition(StateExecuting); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.execution = entity.ExecutionState{}
	o.cursor = 0
	o.mu.Unlock()

	for _, txn := range order.Transactions {
		if hooks.BeforeTransaction != nil {
			hooks.BeforeTransaction(txn.MethodCall)
		}

		hash, cerr := o.executeOne(ctx, txn)
		if cerr != nil {
			if hooks.OnError != nil {
				hooks.OnError(txn.MethodCall, cerr)
			}
			return o.executedCopy(), o.fail("execute", cerr)
		}

		o.mu.Lock()
		o.execution.Transactions = append(o.execution.Transactions, entity.ExecutedTransaction{Method: txn.MethodCall, Hash: hash})
		o.cursor++
		o.mu.Unlock()

		if hooks.AfterTransaction != nil {
			hooks.AfterTransaction(txn.MethodCall, hash)
		}
	}

	o.mu.Lock()
	o.execution.Done = true
	o.mu.Unlock()

	if err := o.machine.Transition(StateDone); err != nil {
		return o.executedCopy(), err
	}

	return o.executedCopy(), nil
}

// ExecuteNextTransaction advances the cursor by exactly one transaction,
// for callers that interleave UI between steps. It reports true once every
// transaction in the set has produced a hash.
func (o *Orchestrator) ExecuteNextTransaction(ctx context.Context, order *entity.SignedOrder, hooks ExecutionHooks) (bool, error) {
	if current := o.machine.Current(); current != StateExecuting {
		if err := o.machine.Transition(StateExecuting); err != nil {
			return false, err
		}
	}

	o.mu.Lock()
	cursor := o.cursor
	o.mu.Unlock()

	if cursor >= len(order.Transactions) {
		return true, nil
	}

	txn := order.Transactions[cursor]
	if hooks.BeforeTransaction != nil {
		hooks.BeforeTransaction(txn.MethodCall)
	}

	hash, cerr := o.executeOne(ctx, txn)
	if cerr != nil {
		if hooks.OnError != nil {
			hooks.OnError(txn.MethodCall, cerr)
		}
		return false, o.fail("execute", cerr)
	}

	o.mu.Lock()
	o.execution.Transactions = append(o.execution.Transactions, entity.ExecutedTransaction{Method: txn.MethodCall, Hash: hash})
	o.cursor++
	done := o.cursor >= len(order.Transactions)
	if done {
		o.execution.Done = true
	}
	o.mu.Unlock()

	if hooks.AfterTransaction != nil {
		hooks.AfterTransaction(txn.MethodCall, hash)
	}

	if done {
		if err := o.machine.Transition(StateDone); err != nil {
			return true, err
		}
	}

	return done, nil
}

func (o *Orchestrator) executeOne(ctx context.Context, txn entity.PreparedTransaction) (string, *entity.CheckoutError) {
	feeData, err := o.wallet.GetFeeData(ctx)
	if err != nil {
		return "", entity.NewCheckoutError(ClassifyWalletError(err), "unable to read fee data", err)
	}

	data, err := decodeCallData(txn.RawData)
	if err != nil {
		return "", entity.NewCheckoutError(entity.InvalidParameters, "undecodable transaction data", err)
	}

	hash, err := o.wallet.SendTransaction(ctx, wallet.TransactionRequest{
		To:       txn.ContractAddress,
		Data:     data,
		GasPrice: feeData.GasPrice,
		GasLimit: txn.GasEstimate,
	})
	if err != nil {
		return "", entity.NewCheckoutError(ClassifyWalletError(err), "transaction submission failed", err)
	}

	o.events.Emit(event.TransactionSubmitted, entity.ExecutedTransaction{Method: txn.MethodCall, Hash: hash})

	if o.confirmTransactions {
		if err := o.wallet.WaitForReceipt(ctx, hash); err != nil {
			return "", entity.NewCheckoutError(ClassifyWalletError(err), "transaction did not confirm", err)
		}
		o.events.Emit(event.TransactionConfirmed, entity.ExecutedTransaction{Method: txn.MethodCall, Hash: hash})
	}

	return hash, nil
}

// fail records the error, moves to FAILED and emits the failure event. The
// typed error is returned for the caller's state.
func (o *Orchestrator) fail(component string, cerr *entity.CheckoutError) *entity.CheckoutError {
	diagnostic := newDiagnostic(component, string(cerr.Type), cerr)
	cerr.WithData("diagnostic", diagnostic)

	o.mu.Lock()
	o.lastError = cerr
	o.mu.Unlock()

	if err := o.machine.Transition(StateFailed); err != nil {
		zap.L().With(zap.Error(err)).Warn("Checkout: failure outside an active step")
	}

	zap.L().With(
		zap.String("component", component),
		zap.String("type", string(cerr.Type)),
		zap.String("slug", diagnostic.Slug),
		zap.Error(cerr),
	).Error("Checkout: step failed")

	o.events.Emit(event.CheckoutFailed, cerr)

	return cerr
}

func (o *Orchestrator) executedCopy() []entity.ExecutedTransaction {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]entity.ExecutedTransaction, len(o.execution.Transactions))
	copy(out, o.execution.Transactions)
	return out
}

func decodeCallData(raw string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(raw, "0x"))
}

func quoteKey(items []entity.OrderItem, walletAddress string) string {
	parts := make([]string, 0, len(items)+1)
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s:%d", item.ProductID, item.Quantity))
	}
	parts = append(parts, strings.ToLower(walletAddress))
	return strings.Join(parts, "|")
}

func newAttemptID() string {
	if u, err := uuid.NewV4(); err == nil {
		return u.String()
	}
	return ""
}
