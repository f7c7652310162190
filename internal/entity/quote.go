package entity

// OrderItem is a purchasable product and the quantity requested.
type OrderItem struct {
	ProductID string
	Quantity  int
}

type QuoteConfig struct {
	ContractID string
}

type QuoteCurrency struct {
	Name       string
	Decimals   int32
	Address    string
	ExchangeID string
	Base       bool
}

type QuotePricing struct {
	Amount   float64
	Currency string
	Type     string
}

type QuoteProduct struct {
	ProductID string
	Quantity  int
	Pricing   map[string]QuotePricing
}

// OrderQuote is a read-only snapshot of the pricing for a prospective
// purchase. It is superseded by the next fetch, never mutated.
type OrderQuote struct {
	Config      QuoteConfig
	Currencies  []QuoteCurrency
	Products    map[string]QuoteProduct
	TotalAmount map[string]QuotePricing
}
