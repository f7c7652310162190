package di

import (
	"github.com/immutable/checkout-go/internal/checkout"
	"github.com/immutable/checkout-go/internal/config"
	"github.com/immutable/checkout-go/internal/conversion"
	"github.com/immutable/checkout-go/internal/event"
	"github.com/immutable/checkout-go/internal/listing"
	"github.com/immutable/checkout-go/internal/sales"
	"github.com/immutable/checkout-go/internal/store"
	"github.com/immutable/checkout-go/internal/wallet"
	"github.com/sarulabs/di/v2"
	"go.uber.org/zap"
)

var Definitions = []di.Def{
	{
		Name: "events",
		Build: func(ctn di.Container) (interface{}, error) {
			return event.NewManager(), nil
		},
	},
	{
		Name: "rates.client",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get().Rates
			api, err := conversion.NewRatesClient(cfg.Url, cfg.Timeout)
			return api, err
		},
	},
	{
		Name: "conversion.table",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get().Rates
			api := ctn.Get("rates.client").(conversion.RatesAPI)
			return conversion.NewTable(api, cfg.Fiat, cfg.NativeSymbols, cfg.RefreshInterval), nil
		},
		Close: func(obj interface{}) error {
			obj.(*conversion.Table).StopRefresh()
			return nil
		},
	},
	{
		Name: "sales.client",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get().Sales
			client, err := sales.NewClient(cfg.Url, cfg.EnvironmentID, cfg.Timeout)
			return client, err
		},
	},
	{
		Name: "wallet",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get().Wallet
			provider, err := wallet.NewEthProvider(cfg.RpcUrl, cfg.PrivateKey, cfg.ChainID)
			if err != nil {
				zap.L().With(zap.Error(err)).Fatal("Failed to connect wallet")
			}
			return provider, nil
		},
		Close: func(obj interface{}) error {
			obj.(*wallet.EthProvider).Close()
			return nil
		},
	},
	{
		Name: "orchestrator",
		Build: func(ctn di.Container) (interface{}, error) {
			return checkout.NewOrchestrator(
				ctn.Get("sales.client").(*sales.Client),
				ctn.Get("wallet").(*wallet.EthProvider),
				ctn.Get("events").(*event.Manager),
				config.Get().ConfirmTransactions,
			), nil
		},
	},
	{
		Name: "listing.calculator",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get().Fees
			calculator, err := listing.NewCalculator(cfg.MarketplaceFeePct, cfg.RoyaltyPct, cfg.GasEstimate)
			return calculator, err
		},
	},
	{
		Name: "flags",
		Build: func(ctn di.Container) (interface{}, error) {
			flags, err := store.NewFlags(config.Get().FlagsPath)
			return flags, err
		},
	},
}

// NewContainer builds the application container. Definitions that cannot
// build, a bad wallet key for instance, surface here rather than mid-checkout.
func NewContainer() (di.Container, error) {
	builder, err := di.NewBuilder()
	if err != nil {
		return nil, err
	}
	if err := builder.Add(Definitions...); err != nil {
		return nil, err
	}
	return builder.Build(), nil
}
