package fees

import (
	"context"

	"github.com/immutable/checkout-go/internal/conversion"
	"github.com/immutable/checkout-go/internal/entity"
	"github.com/immutable/checkout-go/internal/format"
	"github.com/shopspring/decimal"
)

// ApproxPrefix marks fiat amounts as estimates.
const ApproxPrefix = "≈ "

const (
	gasFeeLabel      = "Gas fee"
	approvalFeeLabel = "Approval fee"
	serviceFeeLabel  = "Service fee"
)

// Aggregate turns a fee estimate into display-ready line items in fixed
// order: gas, approval, service, then each secondary fee as supplied by the
// quote. A fee with a zero amount or a missing token is omitted rather than
// shown as zero.
func Aggregate(ctx context.Context, est entity.FeeEstimate, table *conversion.Table) []entity.FormattedFee {
	table.Convert(ctx, estimateSymbols(est), "")

	out := make([]entity.FormattedFee, 0, 3+len(est.SecondaryFees))
	if fee, ok := formatFee(gasFeeLabel, est.GasFee, table); ok {
		out = append(out, fee)
	}
	if fee, ok := formatFee(approvalFeeLabel, est.ApprovalFee, table); ok {
		out = append(out, fee)
	}
	if fee, ok := formatFee(serviceFeeLabel, est.ServiceFee, table); ok {
		out = append(out, fee)
	}
	for _, secondary := range est.SecondaryFees {
		if fee, ok := formatFee(secondary.Label, secondary.Amount, table); ok {
			out = append(out, fee)
		}
	}

	return out
}

// SwapFeeEstimate is the fiat value of the gas fee for a swap, or the
// unavailable sentinel when there is no conversion for the gas token.
func SwapFeeEstimate(gasFee entity.TokenAmount, table *conversion.Table) string {
	fiat, ok := fiatValue(gasFee, table)
	if !ok {
		return format.Unavailable
	}
	return format.FiatDecimals(fiat)
}

// BridgeFeeEstimate is the fiat value of bridge fee plus gas fee. A zero
// bridge fee does not make the total unavailable: the upstream estimator
// reports zero bridge fees while still charging gas, so the total falls back
// to the gas fee alone. A missing gas conversion makes the whole total
// unavailable.
func BridgeFeeEstimate(bridgeFee, gasFee entity.TokenAmount, table *conversion.Table) string {
	gasFiat, ok := fiatValue(gasFee, table)
	if !ok {
		return format.Unavailable
	}

	total := gasFiat
	if !bridgeFee.IsZero() {
		if bridgeFiat, ok := fiatValue(bridgeFee, table); ok {
			total += bridgeFiat
		}
	}

	return format.FiatDecimals(total)
}

// TotalFeeEstimate sums the fiat value of every fee in the estimate. When
// the primary gas conversion is unavailable the whole total is unavailable,
// regardless of how the other fees converted.
func TotalFeeEstimate(est entity.FeeEstimate, table *conversion.Table) string {
	gasFiat, ok := fiatValue(est.GasFee, table)
	if !ok {
		return format.Unavailable
	}

	total := gasFiat
	for _, amount := range append([]entity.TokenAmount{est.ApprovalFee, est.ServiceFee}, secondaryAmounts(est)...) {
		if fiat, ok := fiatValue(amount, table); ok {
			total += fiat
		}
	}

	return format.FiatDecimals(total)
}

func formatFee(label string, amount entity.TokenAmount, table *conversion.Table) (entity.FormattedFee, bool) {
	if amount.IsZero() || amount.Token.Symbol == "" {
		return entity.FormattedFee{}, false
	}

	display := format.TokenAmount(amount.Value.String(), amount.Token.Decimals, format.DefaultTokenDecimals)
	fiat := table.CryptoToFiat(decimalString(amount), amount.Token.Symbol)

	return entity.FormattedFee{
		Label:      label,
		Amount:     display,
		FiatAmount: ApproxPrefix + "USD $" + format.FiatDecimals(fiat),
		Token:      amount.Token,
		Prefix:     ApproxPrefix,
	}, true
}

// fiatValue reports the fiat value of a fee, and whether a conversion was
// possible at all. Zero amounts convert to zero successfully; a missing rate
// does not.
func fiatValue(amount entity.TokenAmount, table *conversion.Table) (float64, bool) {
	if amount.IsZero() || amount.Token.Symbol == "" {
		return 0, false
	}
	if _, known := table.Rate(amount.Token.Symbol); !known {
		return 0, false
	}
	return table.CryptoToFiat(decimalString(amount), amount.Token.Symbol), true
}

func decimalString(amount entity.TokenAmount) string {
	return decimal.NewFromBigInt(amount.Value, -amount.Token.Decimals).String()
}

func estimateSymbols(est entity.FeeEstimate) []string {
	symbols := make([]string, 0, 3+len(est.SecondaryFees))
	for _, amount := range append([]entity.TokenAmount{est.GasFee, est.ApprovalFee, est.ServiceFee}, secondaryAmounts(est)...) {
		if amount.Token.Symbol != "" {
			symbols = append(symbols, amount.Token.Symbol)
		}
	}
	return symbols
}

func secondaryAmounts(est entity.FeeEstimate) []entity.TokenAmount {
	amounts := make([]entity.TokenAmount, 0, len(est.SecondaryFees))
	for _, secondary := range est.SecondaryFees {
		amounts = append(amounts, secondary.Amount)
	}
	return amounts
}
