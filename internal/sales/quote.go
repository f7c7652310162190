package sales

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/immutable/checkout-go/internal/entity"
	"go.uber.org/zap"
)

type quoteItem struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

type quoteCurrencyResponse struct {
	Name       string `json:"name"`
	Decimals   int32  `json:"decimals"`
	Erc20      string `json:"erc20_address"`
	ExchangeID string `json:"exchange_id"`
	Base       bool   `json:"base"`
}

type quotePricingResponse struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Type     string  `json:"type"`
}

type quoteProductResponse struct {
	ProductID string                          `json:"product_id"`
	Quantity  int                             `json:"quantity"`
	Pricing   map[string]quotePricingResponse `json:"pricing"`
}

type quoteResponse struct {
	Config struct {
		ContractID string `json:"contract_id"`
	} `json:"config"`
	Currencies  []quoteCurrencyResponse         `json:"currencies"`
	Products    map[string]quoteProductResponse `json:"products"`
	TotalAmount map[string]quotePricingResponse `json:"total_amount"`
}

// FetchQuote prices the requested items for a wallet. Any failure surfaces
// as SERVICE_BREAKDOWN carrying the underlying cause; there is no automatic
// retry beyond the transport's own.
func (c *Client) FetchQuote(ctx context.Context, items []entity.OrderItem, walletAddress string) (*entity.OrderQuote, error) {
	encoded, err := encodeProducts(items)
	if err != nil {
		return nil, entity.NewCheckoutError(entity.InvalidParameters, "unable to encode products", err)
	}

	params := url.Values{}
	params.Set("products", encoded)
	params.Set("wallet_address", walletAddress)

	req, err := retryablehttp.NewRequest("GET", fmt.Sprintf("%s/%s/order/quote?%s", c.baseURL, c.environmentID, params.Encode()), nil)
	if err != nil {
		return nil, entity.NewCheckoutError(entity.ServiceBreakdown, "unable to build quote request", err)
	}
	req = req.WithContext(ctx)
	req.Header.Add("Accept", "application/json")

	zap.L().With(zap.String("walletAddress", walletAddress), zap.Int("products", len(items))).Debug("Sales: quote request")

	resp, err := c.doTimeoutRequest(time.NewTimer(c.timeout), req)
	if err != nil {
		return nil, entity.NewCheckoutError(entity.ServiceBreakdown, "quote request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cerr := entity.NewCheckoutError(entity.ServiceBreakdown, "quote endpoint returned an error", nil).
			WithData("status", resp.StatusCode).
			WithData("statusText", resp.Status)
		return nil, cerr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, entity.NewCheckoutError(entity.ServiceBreakdown, "unable to read quote response", err)
	}

	var body quoteResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, entity.NewCheckoutError(entity.ServiceBreakdown, "malformed quote response", err)
	}

	return quoteFromResponse(body), nil
}

func encodeProducts(items []entity.OrderItem) (string, error) {
	encoded := make([]quoteItem, 0, len(items))
	for _, item := range items {
		encoded = append(encoded, quoteItem{ID: item.ProductID, Qty: item.Quantity})
	}

	data, err := json.Marshal(encoded)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// quoteFromResponse is the single translation point from the wire shape to
// the domain snapshot.
func quoteFromResponse(body quoteResponse) *entity.OrderQuote {
	quote := &entity.OrderQuote{
		Config:      entity.QuoteConfig{ContractID: body.Config.ContractID},
		Currencies:  make([]entity.QuoteCurrency, 0, len(body.Currencies)),
		Products:    make(map[string]entity.QuoteProduct, len(body.Products)),
		TotalAmount: make(map[string]entity.QuotePricing, len(body.TotalAmount)),
	}

	for _, currency := range body.Currencies {
		quote.Currencies = append(quote.Currencies, entity.QuoteCurrency{
			Name:       currency.Name,
			Decimals:   currency.Decimals,
			Address:    currency.Erc20,
			ExchangeID: currency.ExchangeID,
			Base:       currency.Base,
		})
	}

	for id, product := range body.Products {
		pricing := make(map[string]entity.QuotePricing, len(product.Pricing))
		for currency, price := range product.Pricing {
			pricing[currency] = entity.QuotePricing{Amount: price.Amount, Currency: price.Currency, Type: price.Type}
		}
		quote.Products[id] = entity.QuoteProduct{ProductID: product.ProductID, Quantity: product.Quantity, Pricing: pricing}
	}

	for currency, total := range body.TotalAmount {
		quote.TotalAmount[currency] = entity.QuotePricing{Amount: total.Amount, Currency: total.Currency, Type: total.Type}
	}

	return quote
}
