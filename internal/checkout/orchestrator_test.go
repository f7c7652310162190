package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/immutable/checkout-go/internal/entity"
	"github.com/immutable/checkout-go/internal/event"
	"github.com/immutable/checkout-go/internal/sales"
	"github.com/immutable/checkout-go/internal/wallet"
)

type fakeWallet struct {
	mu         sync.Mutex
	sendErrs   []error
	sent       []wallet.TransactionRequest
	balance    *big.Int
	feeErr     error
	receiptErr error
}

func (f *fakeWallet) Address() string {
	return "0xwallet"
}

func (f *fakeWallet) GetFeeData(ctx context.Context) (*wallet.FeeData, error) {
	if f.feeErr != nil {
		return nil, f.feeErr
	}
	return &wallet.FeeData{GasPrice: big.NewInt(1000000000)}, nil
}

func (f *fakeWallet) SendTransaction(ctx context.Context, req wallet.TransactionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.sent)
	f.sent = append(f.sent, req)
	if i < len(f.sendErrs) && f.sendErrs[i] != nil {
		return "", f.sendErrs[i]
	}
	return fmt.Sprintf("0xhash%d", i+1), nil
}

func (f *fakeWallet) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if f.balance != nil {
		return f.balance, nil
	}
	return big.NewInt(1000000000000000000), nil
}

func (f *fakeWallet) WaitForReceipt(ctx context.Context, txHash string) error {
	return f.receiptErr
}

func twoStepOrder() *entity.SignedOrder {
	return &entity.SignedOrder{
		Transactions: []entity.PreparedTransaction{
			{ContractAddress: "0xusdc", GasEstimate: 60000, MethodCall: "approve(address,uint256)", RawData: "0xdead"},
			{ContractAddress: "0xcontract", GasEstimate: 200000, MethodCall: "execute(address,uint256,bytes)", RawData: "0xbeef"},
		},
		TransactionID: "order-1",
	}
}

func newExecutingOrchestrator(provider wallet.Provider) *Orchestrator {
	o := NewOrchestrator(nil, provider, event.NewManager(), false)
	o.machine.current = StateSigned
	return o
}

func TestExecuteAllHaltsOnWalletRejection(t *testing.T) {
	provider := &fakeWallet{sendErrs: []error{nil, errors.New("MetaMask Tx Signature: user rejected transaction")}}
	o := newExecutingOrchestrator(provider)

	executed, err := o.ExecuteAll(context.Background(), twoStepOrder(), ExecutionHooks{})

	var cerr *entity.CheckoutError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want CheckoutError", err)
	}
	if cerr.Type != entity.WalletRejected {
		t.Errorf("error type = %s, want %s", cerr.Type, entity.WalletRejected)
	}

	if len(executed) != 1 {
		t.Fatalf("executed = %d transactions, want 1", len(executed))
	}
	if executed[0].Method != "approve(address,uint256)" || executed[0].Hash != "0xhash1" {
		t.Errorf("executed[0] = %+v", executed[0])
	}

	state := o.ExecutionState()
	if state.Done {
		t.Error("execution reported done after a halted run")
	}
	if len(state.Transactions) != 1 {
		t.Errorf("preserved progress = %d transactions, want 1", len(state.Transactions))
	}
	if o.State() != StateFailed {
		t.Errorf("state = %s, want %s", o.State(), StateFailed)
	}
	if o.LastError() == nil || o.LastError().Type != entity.WalletRejected {
		t.Errorf("last error = %+v", o.LastError())
	}
}

func TestExecuteAllCompletesInOrder(t *testing.T) {
	provider := &fakeWallet{}
	o := newExecutingOrchestrator(provider)

	var calls []string
	hooks := ExecutionHooks{
		BeforeTransaction: func(method string) { calls = append(calls, "before "+method) },
		AfterTransaction:  func(method, hash string) { calls = append(calls, "after "+hash) },
	}

	executed, err := o.ExecuteAll(context.Background(), twoStepOrder(), hooks)
	if err != nil {
		t.Fatal(err)
	}

	if len(executed) != 2 || executed[0].Hash != "0xhash1" || executed[1].Hash != "0xhash2" {
		t.Errorf("executed = %+v", executed)
	}
	if !o.ExecutionState().Done {
		t.Error("execution not reported done")
	}
	if o.State() != StateDone {
		t.Errorf("state = %s, want %s", o.State(), StateDone)
	}

	want := []string{
		"before approve(address,uint256)", "after 0xhash1",
		"before execute(address,uint256,bytes)", "after 0xhash2",
	}
	if len(calls) != len(want) {
		t.Fatalf("hook calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("hook call %d = %q, want %q", i, calls[i], want[i])
		}
	}

	// Submission order matches the signed order, approval before execute.
	if provider.sent[0].To != "0xusdc" || provider.sent[1].To != "0xcontract" {
		t.Errorf("submission order = %+v", provider.sent)
	}
	if provider.sent[0].GasLimit != 60000 || provider.sent[1].GasLimit != 200000 {
		t.Errorf("gas limits = %d, %d", provider.sent[0].GasLimit, provider.sent[1].GasLimit)
	}
}

func TestExecuteNextTransactionSteps(t *testing.T) {
	o := newExecutingOrchestrator(&fakeWallet{})
	order := twoStepOrder()

	done, err := o.ExecuteNextTransaction(context.Background(), order, ExecutionHooks{})
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("done after first of two transactions")
	}
	if o.State() != StateExecuting {
		t.Errorf("state = %s, want %s", o.State(), StateExecuting)
	}

	done, err = o.ExecuteNextTransaction(context.Background(), order, ExecutionHooks{})
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("not done after final transaction")
	}
	if o.State() != StateDone {
		t.Errorf("state = %s, want %s", o.State(), StateDone)
	}
	if state := o.ExecutionState(); !state.Done || len(state.Transactions) != 2 {
		t.Errorf("execution state = %+v", state)
	}
}

func TestExecuteNextTransactionRetriesFailedStep(t *testing.T) {
	provider := &fakeWallet{sendErrs: []error{errors.New("user rejected transaction")}}
	o := newExecutingOrchestrator(provider)
	order := twoStepOrder()

	if _, err := o.ExecuteNextTransaction(context.Background(), order, ExecutionHooks{}); err == nil {
		t.Fatal("expected first step to fail")
	}
	if o.State() != StateFailed {
		t.Fatalf("state = %s, want %s", o.State(), StateFailed)
	}

	// The cursor stays on the failed step, retry resubmits it.
	done, err := o.ExecuteNextTransaction(context.Background(), order, ExecutionHooks{})
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("done after retrying the first of two transactions")
	}
	if provider.sent[1].To != order.Transactions[0].ContractAddress {
		t.Errorf("retry submitted %q, want the failed step again", provider.sent[1].To)
	}
}

func TestExecuteOneUndecodableData(t *testing.T) {
	o := newExecutingOrchestrator(&fakeWallet{})
	order := &entity.SignedOrder{
		Transactions: []entity.PreparedTransaction{
			{ContractAddress: "0xcontract", MethodCall: "execute(bytes)", RawData: "0xzz"},
		},
	}

	_, err := o.ExecuteAll(context.Background(), order, ExecutionHooks{})
	var cerr *entity.CheckoutError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want CheckoutError", err)
	}
	if cerr.Type != entity.InvalidParameters {
		t.Errorf("error type = %s, want %s", cerr.Type, entity.InvalidParameters)
	}
}

func TestCheckBalance(t *testing.T) {
	provider := &fakeWallet{balance: big.NewInt(100)}
	o := newExecutingOrchestrator(provider)

	if err := o.CheckBalance(context.Background(), big.NewInt(99)); err != nil {
		t.Errorf("sufficient balance rejected: %v", err)
	}

	err := o.CheckBalance(context.Background(), big.NewInt(101))
	var cerr *entity.CheckoutError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want CheckoutError", err)
	}
	if cerr.Type != entity.WalletRejectedNoFunds {
		t.Errorf("error type = %s, want %s", cerr.Type, entity.WalletRejectedNoFunds)
	}
}

func TestSelectDefaultCurrency(t *testing.T) {
	quote := &entity.OrderQuote{
		Currencies: []entity.QuoteCurrency{
			{Name: "ETH"},
			{Name: "USDC", Base: true},
			{Name: "GOG"},
		},
	}
	o := NewOrchestrator(nil, &fakeWallet{}, event.NewManager(), false)

	if got := o.SelectDefaultCurrency(quote, "gog"); got == nil || got.Name != "GOG" {
		t.Errorf("preferred match = %+v, want GOG", got)
	}
	if got := o.SelectDefaultCurrency(quote, "DOGE"); got == nil || got.Name != "USDC" {
		t.Errorf("unmatched preference = %+v, want base currency", got)
	}
	if got := o.SelectDefaultCurrency(quote, ""); got == nil || got.Name != "USDC" {
		t.Errorf("no preference = %+v, want base currency", got)
	}

	noBase := &entity.OrderQuote{Currencies: []entity.QuoteCurrency{{Name: "ETH"}, {Name: "GOG"}}}
	if got := o.SelectDefaultCurrency(noBase, ""); got == nil || got.Name != "ETH" {
		t.Errorf("no base flag = %+v, want first offered", got)
	}

	if got := o.SelectDefaultCurrency(nil, "USDC"); got != nil {
		t.Errorf("nil quote = %+v, want nil", got)
	}
}

func quoteBody() map[string]interface{} {
	return map[string]interface{}{
		"config": map[string]string{"contract_id": "contract-1"},
		"currencies": []map[string]interface{}{
			{"name": "USDC", "decimals": 6, "erc20_address": "0xusdc", "exchange_id": "usd-coin", "base": true},
		},
		"products": map[string]interface{}{},
		"total_amount": map[string]interface{}{
			"USDC": map[string]interface{}{"amount": 21.0, "currency": "USDC", "type": "crypto"},
		},
	}
}

func TestFetchQuoteDropsDuplicateInFlight(t *testing.T) {
	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
			<-release
		}
		_ = json.NewEncoder(w).Encode(quoteBody())
	}))
	t.Cleanup(server.Close)

	client, err := sales.NewClient(server.URL, "env-123", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	o := NewOrchestrator(client, &fakeWallet{}, event.NewManager(), false)

	items := []entity.OrderItem{{ProductID: "prod-1", Quantity: 2}}
	firstDone := make(chan error, 1)
	go func() {
		_, err := o.FetchQuote(context.Background(), items, "0xwallet")
		firstDone <- err
	}()

	<-entered

	// Identical request while the first is in flight: dropped, no second call.
	quote, err := o.FetchQuote(context.Background(), items, "0xwallet")
	if err != nil {
		t.Fatalf("dropped request returned error: %v", err)
	}
	if quote != nil {
		t.Errorf("dropped request returned a quote before any completed: %+v", quote)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("network calls = %d, want 1", got)
	}
	if o.State() != StateQuoted {
		t.Errorf("state = %s, want %s", o.State(), StateQuoted)
	}
	if o.Quote() == nil || o.Quote().Config.ContractID != "contract-1" {
		t.Errorf("stored quote = %+v", o.Quote())
	}
}

func TestFetchQuoteDistinctRequestsBothRun(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(quoteBody())
	}))
	t.Cleanup(server.Close)

	client, err := sales.NewClient(server.URL, "env-123", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	o := NewOrchestrator(client, &fakeWallet{}, event.NewManager(), false)

	if _, err := o.FetchQuote(context.Background(), []entity.OrderItem{{ProductID: "prod-1", Quantity: 1}}, "0xwallet"); err != nil {
		t.Fatal(err)
	}
	// A different basket re-quotes even though the first completed moments ago.
	if _, err := o.FetchQuote(context.Background(), []entity.OrderItem{{ProductID: "prod-1", Quantity: 2}}, "0xwallet"); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("network calls = %d, want 2", got)
	}
}
