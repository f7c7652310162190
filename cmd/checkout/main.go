package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/immutable/checkout-go/internal/checkout"
	"github.com/immutable/checkout-go/internal/config"
	appdi "github.com/immutable/checkout-go/internal/config/di"
	"github.com/immutable/checkout-go/internal/conversion"
	"github.com/immutable/checkout-go/internal/entity"
	"github.com/immutable/checkout-go/internal/event"
	"github.com/immutable/checkout-go/internal/fees"
	"github.com/immutable/checkout-go/internal/format"
	"github.com/immutable/checkout-go/internal/listing"
	"github.com/immutable/checkout-go/internal/sales"
	"github.com/immutable/checkout-go/internal/store"
	"github.com/immutable/checkout-go/internal/wallet"
	"github.com/sarulabs/di/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	container    di.Container
	table        *conversion.Table
	orchestrator *checkout.Orchestrator
	calculator   listing.Calculator
	flags        *store.Flags
)

func main() {
	config.Init()

	var err error
	container, err = appdi.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}

	table = container.Get("conversion.table").(*conversion.Table)
	calculator = container.Get("listing.calculator").(listing.Calculator)
	flags = container.Get("flags").(*store.Flags)

	app := &cli.App{
		Name:  "checkout",
		Usage: "Quote, sign and execute primary sale orders",
		Commands: []*cli.Command{
			{
				Name:   "rates",
				Usage:  "Show fiat conversion rates for token symbols",
				Action: showRates,
			},
			{
				Name:   "quote",
				Usage:  "Price an order of product:quantity items",
				Action: quoteOrder,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "wallet", Value: "", Usage: "Wallet address to quote for"},
					&cli.StringFlag{Name: "currency", Value: "", Usage: "Preferred settlement currency"},
				},
			},
			{
				Name:   "buy",
				Usage:  "Quote, sign and execute an order of product:quantity items",
				Action: buyOrder,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "recipient", Value: "", Usage: "Recipient address, defaults to the wallet address"},
					&cli.StringFlag{Name: "currency", Value: "", Usage: "Preferred settlement currency"},
					&cli.BoolFlag{Name: "stepwise", Usage: "Pause between transactions"},
				},
			},
			{
				Name:   "listing",
				Usage:  "Show buyer cost and seller proceeds for a listing price",
				Action: showListing,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to start CLI")
	}
}

func showRates(c *cli.Context) error {
	symbols := c.Args().Slice()
	if len(symbols) == 0 {
		symbols = config.Get().Rates.NativeSymbols
	}

	rates := table.Convert(context.Background(), symbols, "")
	if len(rates) == 0 {
		zap.L().Error("No rates available")
		return nil
	}

	for _, symbol := range symbols {
		if rate, ok := table.Rate(symbol); ok {
			fmt.Printf("%-8s %s\n", strings.ToUpper(symbol), fees.ApproxPrefix+"USD $"+strconv.FormatFloat(rate, 'f', -1, 64))
		} else {
			fmt.Printf("%-8s %s\n", strings.ToUpper(symbol), format.Unavailable)
		}
	}

	return nil
}

func quoteOrder(c *cli.Context) error {
	items, err := parseItems(c.Args().Slice())
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Invalid items")
		return nil
	}

	orch := newOrchestrator()
	quote, err := orch.FetchQuote(context.Background(), items, c.String("wallet"))
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Quote failed")
		return nil
	}

	currency := orch.SelectDefaultCurrency(quote, c.String("currency"))
	if currency == nil {
		zap.L().Error("Quote offers no settlement currencies")
		return nil
	}

	fmt.Printf("Settlement currency: %s\n", currency.Name)
	for id, product := range quote.Products {
		if pricing, ok := product.Pricing[currency.Name]; ok {
			fmt.Printf("  %s x%d  %s %s\n", id, product.Quantity, strconv.FormatFloat(pricing.Amount, 'f', -1, 64), pricing.Currency)
		}
	}
	if total, ok := quote.TotalAmount[currency.Name]; ok {
		fmt.Printf("Total: %s %s\n", strconv.FormatFloat(total.Amount, 'f', -1, 64), total.Currency)
	}

	return nil
}

func buyOrder(c *cli.Context) error {
	showOnboarding()

	items, err := parseItems(c.Args().Slice())
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Invalid items")
		return nil
	}

	provider := container.Get("wallet").(*wallet.EthProvider)
	recipient := c.String("recipient")
	if recipient == "" {
		recipient = provider.Address()
	}

	orch := orchestratorFromContainer()
	ctx := context.Background()

	quote, err := orch.FetchQuote(ctx, items, provider.Address())
	if err != nil {
		return err
	}

	currency := orch.SelectDefaultCurrency(quote, c.String("currency"))
	if currency == nil {
		zap.L().Error("Quote offers no settlement currencies")
		return nil
	}

	order, err := orch.Sign(ctx, sales.SignRequest{
		RecipientAddress: recipient,
		PaymentType:      entity.PaymentCrypto,
		CurrencyFilter:   "contracts",
		CurrencyValue:    currency.Address,
		Items:            items,
	})
	if err != nil {
		return err
	}

	printFeeBreakdown(ctx, order, provider)

	hooks := checkout.ExecutionHooks{
		BeforeTransaction: func(method string) {
			zap.S().Infof("Submitting %s", method)
		},
		AfterTransaction: func(method, hash string) {
			zap.S().Infof("Submitted %s: %s", method, hash)
		},
		OnError: func(method string, cerr *entity.CheckoutError) {
			zap.S().With(zap.Error(cerr)).Errorf("Failed %s", method)
		},
	}

	if c.Bool("stepwise") {
		for {
			done, err := orch.ExecuteNextTransaction(ctx, order, hooks)
			if err != nil {
				return err
			}
			if done {
				break
			}
		}
	} else {
		if _, err := orch.ExecuteAll(ctx, order, hooks); err != nil {
			return err
		}
	}

	state := orch.ExecutionState()
	fmt.Printf("Order %s complete, %d transactions\n", order.TransactionID, len(state.Transactions))

	return nil
}

func showListing(c *cli.Context) error {
	price := c.Args().First()
	if price == "" {
		zap.L().Error("No listing price provided")
		return nil
	}

	buyer, err := calculator.BuyerTotalCost(price)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Invalid listing price")
		return nil
	}
	seller, err := calculator.SellerProceeds(price)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Invalid listing price")
		return nil
	}

	fmt.Printf("Buyer pays:      %s\n", buyer)
	fmt.Printf("Seller receives: %s\n", seller)

	return nil
}

// printFeeBreakdown prices the order's gas against the live rate table. The
// display is advisory, execution uses the wallet's own fee data.
func printFeeBreakdown(ctx context.Context, order *entity.SignedOrder, provider *wallet.EthProvider) {
	feeData, err := provider.GetFeeData(ctx)
	if err != nil || feeData.GasPrice == nil {
		return
	}

	var totalGas uint64
	for _, txn := range order.Transactions {
		totalGas += txn.GasEstimate
	}

	gasWei := new(big.Int).Mul(feeData.GasPrice, new(big.Int).SetUint64(totalGas))
	estimate := entity.FeeEstimate{
		GasFee: entity.NewTokenAmount(gasWei, entity.TokenInfo{Symbol: "ETH", Decimals: 18}),
	}

	table.Track(ctx, []string{"eth"})
	for _, fee := range fees.Aggregate(ctx, estimate, table) {
		fmt.Printf("%-14s %s %s  %s\n", fee.Label, fee.Amount, fee.Token.Symbol, fee.FiatAmount)
	}
}

func showOnboarding() {
	if flags.Seen(store.OnboardingSeenKey) {
		return
	}

	fmt.Println("First purchase: transactions are submitted one at a time and")
	fmt.Println("the order halts if any of them fails.")

	if err := flags.MarkSeen(store.OnboardingSeenKey); err != nil {
		zap.L().With(zap.Error(err)).Warn("Failed to persist onboarding flag")
	}
}

// newOrchestrator builds a quote-only orchestrator without touching the
// wallet definition, quoting must work with no key configured.
func newOrchestrator() *checkout.Orchestrator {
	client := container.Get("sales.client").(*sales.Client)
	events := container.Get("events").(*event.Manager)
	return checkout.NewOrchestrator(client, nil, events, false)
}

func orchestratorFromContainer() *checkout.Orchestrator {
	if orchestrator == nil {
		orchestrator = container.Get("orchestrator").(*checkout.Orchestrator)
	}
	return orchestrator
}

func parseItems(args []string) ([]entity.OrderItem, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no items provided, expected product:quantity")
	}

	items := make([]entity.OrderItem, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 2)
		qty := 1
		if len(parts) == 2 {
			parsed, err := strconv.Atoi(parts[1])
			if err != nil || parsed < 1 {
				return nil, fmt.Errorf("invalid quantity in %q", arg)
			}
			qty = parsed
		}
		items = append(items, entity.OrderItem{ProductID: parts[0], Quantity: qty})
	}

	return items, nil
}
