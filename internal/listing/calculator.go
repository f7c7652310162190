package listing

import (
	"errors"

	"github.com/shopspring/decimal"
)

const renderedDecimals = 6

var hundred = decimal.NewFromInt(100)

// Calculator computes buyer cost and seller proceeds for a listing from
// fixed marketplace and royalty percentages plus a flat gas estimate. Pure
// and stateless; all arithmetic is decimal-exact and rendered to 6 places.
type Calculator struct {
	MarketplaceFeePct decimal.Decimal
	RoyaltyPct        decimal.Decimal
	GasEstimate       decimal.Decimal
}

func NewCalculator(marketplaceFeePct, royaltyPct, gasEstimate string) (Calculator, error) {
	marketplace, err := decimal.NewFromString(marketplaceFeePct)
	if err != nil {
		return Calculator{}, err
	}
	royalty, err := decimal.NewFromString(royaltyPct)
	if err != nil {
		return Calculator{}, err
	}
	gas, err := decimal.NewFromString(gasEstimate)
	if err != nil {
		return Calculator{}, err
	}

	return Calculator{MarketplaceFeePct: marketplace, RoyaltyPct: royalty, GasEstimate: gas}, nil
}

// BuyerTotalCost is price plus marketplace fee, royalty and the flat gas
// estimate.
func (c Calculator) BuyerTotalCost(price string) (string, error) {
	p, err := parsePrice(price)
	if err != nil {
		return "", err
	}

	total := p.
		Add(p.Mul(c.MarketplaceFeePct).Div(hundred)).
		Add(p.Mul(c.RoyaltyPct).Div(hundred)).
		Add(c.GasEstimate)

	return total.StringFixed(renderedDecimals), nil
}

// SellerProceeds is price minus marketplace fee and royalty.
func (c Calculator) SellerProceeds(price string) (string, error) {
	p, err := parsePrice(price)
	if err != nil {
		return "", err
	}

	proceeds := p.
		Sub(p.Mul(c.MarketplaceFeePct).Div(hundred)).
		Sub(p.Mul(c.RoyaltyPct).Div(hundred))

	return proceeds.StringFixed(renderedDecimals), nil
}

func parsePrice(price string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if p.IsNegative() {
		return decimal.Decimal{}, errors.New("price must not be negative")
	}
	return p, nil
}
