package sales

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/immutable/checkout-go/internal/entity"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "env-123", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	// The transport retries 429/5xx with backoff; keep the failure tests fast.
	client.httpClient.RetryMax = 0
	return client, server
}

func TestFetchQuoteEncodesRequest(t *testing.T) {
	var gotPath, gotWallet string
	var gotProducts []map[string]interface{}

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotWallet = r.URL.Query().Get("wallet_address")

		decoded, err := base64.StdEncoding.DecodeString(r.URL.Query().Get("products"))
		if err != nil {
			t.Errorf("products param is not base64: %v", err)
		}
		if err := json.Unmarshal(decoded, &gotProducts); err != nil {
			t.Errorf("products param is not json: %v", err)
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"config": map[string]string{"contract_id": "contract-1"},
			"currencies": []map[string]interface{}{
				{"name": "USDC", "decimals": 6, "erc20_address": "0xusdc", "exchange_id": "usd-coin", "base": true},
			},
			"products": map[string]interface{}{
				"prod-1": map[string]interface{}{
					"product_id": "prod-1",
					"quantity":   2,
					"pricing":    map[string]interface{}{"USDC": map[string]interface{}{"amount": 10.5, "currency": "USDC", "type": "crypto"}},
				},
			},
			"total_amount": map[string]interface{}{
				"USDC": map[string]interface{}{"amount": 21.0, "currency": "USDC", "type": "crypto"},
			},
		})
	})

	quote, err := client.FetchQuote(context.Background(), []entity.OrderItem{{ProductID: "prod-1", Quantity: 2}}, "0xwallet")
	if err != nil {
		t.Fatal(err)
	}

	if gotPath != "/env-123/order/quote" {
		t.Errorf("request path = %q, want %q", gotPath, "/env-123/order/quote")
	}
	if gotWallet != "0xwallet" {
		t.Errorf("wallet_address = %q, want %q", gotWallet, "0xwallet")
	}
	if len(gotProducts) != 1 || gotProducts[0]["id"] != "prod-1" || gotProducts[0]["qty"] != float64(2) {
		t.Errorf("decoded products = %v", gotProducts)
	}

	if quote.Config.ContractID != "contract-1" {
		t.Errorf("contract id = %q, want %q", quote.Config.ContractID, "contract-1")
	}
	if len(quote.Currencies) != 1 || !quote.Currencies[0].Base || quote.Currencies[0].Address != "0xusdc" {
		t.Errorf("currencies = %+v", quote.Currencies)
	}
	if quote.TotalAmount["USDC"].Amount != 21.0 {
		t.Errorf("total amount = %+v", quote.TotalAmount)
	}
}

func TestFetchQuoteFailureIsServiceBreakdown(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	_, err := client.FetchQuote(context.Background(), nil, "0xwallet")
	var cerr *entity.CheckoutError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want CheckoutError", err)
	}
	if cerr.Type != entity.ServiceBreakdown {
		t.Errorf("error type = %s, want %s", cerr.Type, entity.ServiceBreakdown)
	}
	if cerr.Data["status"] != http.StatusBadGateway {
		t.Errorf("error data status = %v, want %d", cerr.Data["status"], http.StatusBadGateway)
	}
}

func signSuccessBody() map[string]interface{} {
	return map[string]interface{}{
		"order": map[string]interface{}{
			"currency":        map[string]interface{}{"name": "USDC", "decimals": 6, "erc20_address": "0xusdc"},
			"currency_symbol": "$",
			"total_amount":    21.0,
			"products": []map[string]interface{}{
				{
					"product_id":         "Cool Cat",
					"collection_address": "0xcollection",
					"contract_type":      "ERC721",
					"detail":             []map[string]interface{}{{"amount": 1, "token_id": 7}},
				},
				{
					"product_id":         "Cool Cat",
					"collection_address": "0xcollection",
					"contract_type":      "ERC721",
					"detail":             []map[string]interface{}{{"amount": 1, "token_id": 8}},
				},
				{
					"product_id":         "Other Cat",
					"collection_address": "0xcollection",
					"contract_type":      "ERC721",
					"detail":             []map[string]interface{}{{"amount": 1, "token_id": 9}},
				},
			},
		},
		"transactions": []map[string]interface{}{
			{
				"contract_address": "0xusdc",
				"gas_estimate":     60000,
				"method_call":      "approve(address,uint256)",
				"params":           map[string]interface{}{"amount": 21000000, "spender": "0xspender"},
				"raw_data":         "0xdead",
			},
			{
				"contract_address": "0xcontract",
				"gas_estimate":     200000,
				"method_call":      "execute(address,uint256,bytes)",
				"params":           map[string]interface{}{"reference": "0x6f726465722d31"},
				"raw_data":         "0xbeef",
			},
		},
	}
}

func TestSignNormalizesResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/env-123/order/sign" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["recipient_address"] != "0xrecipient" {
			t.Errorf("recipient_address = %v", body["recipient_address"])
		}
		_ = json.NewEncoder(w).Encode(signSuccessBody())
	})

	order, err := client.Sign(context.Background(), SignRequest{
		RecipientAddress: "0xrecipient",
		PaymentType:      entity.PaymentCrypto,
		CurrencyFilter:   "contracts",
		CurrencyValue:    "0xusdc",
		Items:            []entity.OrderItem{{ProductID: "prod-1", Quantity: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Duplicate product names merge their detail arrays.
	if len(order.Order.Products) != 2 {
		t.Fatalf("products = %d, want 2 after grouping", len(order.Order.Products))
	}
	coolCat := order.Order.Products[0]
	if coolCat.Name != "Cool Cat" {
		t.Errorf("first product name = %q", coolCat.Name)
	}
	if len(coolCat.TokenIDs) != 2 || coolCat.TokenIDs[0] != "7" || coolCat.TokenIDs[1] != "8" {
		t.Errorf("merged token ids = %v", coolCat.TokenIDs)
	}
	if len(coolCat.Amounts) != 2 {
		t.Errorf("merged amounts = %v", coolCat.Amounts)
	}

	if len(order.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(order.Transactions))
	}
	if order.Transactions[0].MethodCall != "approve(address,uint256)" || order.Transactions[0].GasEstimate != 60000 {
		t.Errorf("first transaction = %+v", order.Transactions[0])
	}

	// "0x6f726465722d31" is hex for "order-1".
	if order.TransactionID != "order-1" {
		t.Errorf("transaction id = %q, want %q", order.TransactionID, "order-1")
	}
}

func TestSignErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		wantType entity.ErrorType
	}{
		{"bad request", 400, "", entity.ServiceBreakdown},
		{"out of stock", 404, "insufficient_stock", entity.InsufficientStock},
		{"unknown product", 404, "", entity.ProductNotFound},
		{"rate limited", 429, "", entity.DefaultError},
		{"server error", 500, "", entity.DefaultError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"code": tt.code, "message": "nope", "trace_id": "trace-1"})
			})

			_, err := client.Sign(context.Background(), SignRequest{RecipientAddress: "0xr", PaymentType: entity.PaymentCrypto})
			var cerr *entity.CheckoutError
			if !errors.As(err, &cerr) {
				t.Fatalf("error type = %T, want CheckoutError", err)
			}
			if cerr.Type != tt.wantType {
				t.Errorf("mapped type = %s, want %s", cerr.Type, tt.wantType)
			}
		})
	}
}

func TestSignUnmappedStatusIsUnclassified(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "teapot"})
	})

	_, err := client.Sign(context.Background(), SignRequest{RecipientAddress: "0xr", PaymentType: entity.PaymentCrypto})
	if err == nil {
		t.Fatal("expected an error")
	}
	var cerr *entity.CheckoutError
	if errors.As(err, &cerr) {
		t.Errorf("status 418 should not map to the taxonomy, got %s", cerr.Type)
	}
}
