package config

import (
	"strings"
	"time"

	"github.com/immutable/checkout-go/internal/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env     string
	Debug   bool
	LogPath string

	Sales  SalesConfig
	Rates  RatesConfig
	Wallet WalletConfig
	Fees   FeesConfig

	PreferredCurrency   string
	ConfirmTransactions bool
	FlagsPath           string
}

type SalesConfig struct {
	Url           string
	EnvironmentID string
	Timeout       time.Duration
}

type RatesConfig struct {
	Url             string
	Fiat            string
	NativeSymbols   []string
	RefreshInterval time.Duration
	Timeout         time.Duration
}

type WalletConfig struct {
	RpcUrl     string
	PrivateKey string
	ChainID    int64
}

type FeesConfig struct {
	MarketplaceFeePct string
	RoyaltyPct        string
	GasEstimate       string
}

// Init loads .env when present, binds CHECKOUT_ environment variables and
// installs the global logger. Call once at process start.
func Init() {
	_ = godotenv.Load(".env")

	viper.SetEnvPrefix("CHECKOUT")
	viper.AutomaticEnv()

	viper.SetDefault("env", "sandbox")
	viper.SetDefault("debug", false)
	viper.SetDefault("log_path", "")
	viper.SetDefault("sales_url", "https://api.sandbox.immutable.com/v1/primary-sales")
	viper.SetDefault("sales_timeout", 30)
	viper.SetDefault("rates_url", "https://checkout-api.immutable.com")
	viper.SetDefault("rates_fiat", "usd")
	viper.SetDefault("rates_native_symbols", "eth,imx")
	viper.SetDefault("rates_refresh_interval", 60)
	viper.SetDefault("rates_timeout", 15)
	viper.SetDefault("wallet_chain_id", 13473)
	viper.SetDefault("fees_marketplace_pct", "2.5")
	viper.SetDefault("fees_royalty_pct", "0")
	viper.SetDefault("fees_gas_estimate", "0.001")
	viper.SetDefault("confirm_transactions", false)

	initLogger()
}

func initLogger() {
	log.NewLogger(Get().LogPath, Get().Debug)
}

func Get() *Config {
	return &Config{
		Env:     viper.GetString("env"),
		Debug:   viper.GetBool("debug"),
		LogPath: viper.GetString("log_path"),
		Sales: SalesConfig{
			Url:           viper.GetString("sales_url"),
			EnvironmentID: viper.GetString("environment_id"),
			Timeout:       time.Duration(viper.GetInt("sales_timeout")) * time.Second,
		},
		Rates: RatesConfig{
			Url:             viper.GetString("rates_url"),
			Fiat:            viper.GetString("rates_fiat"),
			NativeSymbols:   splitList(viper.GetString("rates_native_symbols")),
			RefreshInterval: time.Duration(viper.GetInt("rates_refresh_interval")) * time.Second,
			Timeout:         time.Duration(viper.GetInt("rates_timeout")) * time.Second,
		},
		Wallet: WalletConfig{
			RpcUrl:     viper.GetString("wallet_rpc_url"),
			PrivateKey: viper.GetString("wallet_private_key"),
			ChainID:    viper.GetInt64("wallet_chain_id"),
		},
		Fees: FeesConfig{
			MarketplaceFeePct: viper.GetString("fees_marketplace_pct"),
			RoyaltyPct:        viper.GetString("fees_royalty_pct"),
			GasEstimate:       viper.GetString("fees_gas_estimate"),
		},
		PreferredCurrency:   viper.GetString("preferred_currency"),
		ConfirmTransactions: viper.GetBool("confirm_transactions"),
		FlagsPath:           viper.GetString("flags_path"),
	}
}

// splitList parses a comma separated value, viper only splits on whitespace.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
