package mocksales

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	uuid "github.com/nu7hatch/gouuid"
	"go.uber.org/zap"
)

// Product is one purchasable item in the mock catalog.
type Product struct {
	ID                string
	Name              string
	CollectionAddress string
	ContractType      string
	Prices            map[string]float64
	Stock             int
}

// Server is a stand-in for the sales API, close enough on the wire for
// development against it: quote and sign endpoints, stock tracking and the
// documented error bodies.
type Server struct {
	environmentID string

	mu          sync.Mutex
	catalog     map[string]Product
	nextTokenID int
}

func NewServer(environmentID string, catalog []Product) *Server {
	indexed := make(map[string]Product, len(catalog))
	for _, product := range catalog {
		indexed[product.ID] = product
	}

	return &Server{environmentID: environmentID, catalog: indexed, nextTokenID: 1}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleHomepage).Methods("GET")
	r.HandleFunc("/{env}/order/quote", s.handleQuote).Methods("GET")
	r.HandleFunc("/{env}/order/sign", s.handleSign).Methods("POST")
	r.NotFoundHandler = notFoundHandler()

	return r
}

func (s *Server) handleHomepage(w http.ResponseWriter, r *http.Request) {
	_, _ = fmt.Fprintf(w, "Mock Sales API")
}

type quoteItem struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if !s.checkEnvironment(w, r) {
		return
	}

	items, err := decodeItems(r.URL.Query().Get("products"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_products", "products parameter is not base64 json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	products := make(map[string]interface{}, len(items))
	totals := make(map[string]float64)
	for _, item := range items {
		product, exists := s.catalog[item.ID]
		if !exists {
			writeError(w, http.StatusNotFound, "product_not_found", fmt.Sprintf("product %s not found", item.ID))
			return
		}

		pricing := make(map[string]interface{}, len(product.Prices))
		for currency, price := range product.Prices {
			pricing[currency] = map[string]interface{}{"amount": price, "currency": currency, "type": "crypto"}
			totals[currency] += price * float64(item.Qty)
		}

		products[item.ID] = map[string]interface{}{
			"product_id": item.ID,
			"quantity":   item.Qty,
			"pricing":    pricing,
		}
	}

	totalAmount := make(map[string]interface{}, len(totals))
	for currency, amount := range totals {
		totalAmount[currency] = map[string]interface{}{"amount": amount, "currency": currency, "type": "crypto"}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"config": map[string]string{"contract_id": "mock-contract-1"},
		"currencies": []map[string]interface{}{
			{"name": "USDC", "decimals": 6, "erc20_address": "0x3b2d8a1931736fc321c24864bceee981b11c3c57", "exchange_id": "usd-coin", "base": true},
			{"name": "ETH", "decimals": 18, "erc20_address": "0xe9e96d1aad82562b7588f03f49ad34186f996478", "exchange_id": "ethereum", "base": false},
		},
		"products":     products,
		"total_amount": totalAmount,
	})
}

type signRequest struct {
	RecipientAddress string `json:"recipient_address"`
	PaymentType      string `json:"payment_type"`
	CurrencyValue    string `json:"currency_value"`
	Products         []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"products"`
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	if !s.checkEnvironment(w, r) {
		return
	}

	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "sign request is not valid json")
		return
	}
	if req.RecipientAddress == "" {
		writeError(w, http.StatusBadRequest, "missing_recipient", "recipient_address is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	var products []map[string]interface{}
	for _, item := range req.Products {
		product, exists := s.catalog[item.ProductID]
		if !exists {
			writeError(w, http.StatusNotFound, "product_not_found", fmt.Sprintf("product %s not found", item.ProductID))
			return
		}
		if product.Stock < item.Quantity {
			writeError(w, http.StatusNotFound, "insufficient_stock", fmt.Sprintf("product %s has %d left", item.ProductID, product.Stock))
			return
		}

		product.Stock -= item.Quantity
		s.catalog[item.ProductID] = product
		total += product.Prices["USDC"] * float64(item.Quantity)

		detail := make([]map[string]interface{}, 0, item.Quantity)
		for i := 0; i < item.Quantity; i++ {
			detail = append(detail, map[string]interface{}{"amount": 1, "token_id": s.nextTokenID})
			s.nextTokenID++
		}

		products = append(products, map[string]interface{}{
			"product_id":         product.Name,
			"collection_address": product.CollectionAddress,
			"contract_type":      product.ContractType,
			"detail":             detail,
		})
	}

	orderID := newOrderID()
	zap.L().With(zap.String("orderId", orderID), zap.String("recipient", req.RecipientAddress)).Info("MockSales: order signed")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order": map[string]interface{}{
			"currency":        map[string]interface{}{"name": "USDC", "decimals": 6, "erc20_address": "0x3b2d8a1931736fc321c24864bceee981b11c3c57"},
			"currency_symbol": "$",
			"total_amount":    total,
			"products":        products,
		},
		"transactions": []map[string]interface{}{
			{
				"contract_address": "0x3b2d8a1931736fc321c24864bceee981b11c3c57",
				"gas_estimate":     60000,
				"method_call":      "approve(address,uint256)",
				"params":           map[string]interface{}{"amount": int64(total * 1e6), "spender": "0x2bcf5c0c2b0e1c0e54b1a9b1a9c4f6a3a1b2c3d4"},
				"raw_data":         "0x095ea7b3",
			},
			{
				"contract_address": "0x2bcf5c0c2b0e1c0e54b1a9b1a9c4f6a3a1b2c3d4",
				"gas_estimate":     200000,
				"method_call":      "execute(address,uint256,bytes)",
				"params":           map[string]interface{}{"reference": "0x" + hex.EncodeToString([]byte(orderID))},
				"raw_data":         "0x0e2286d3",
			},
		},
	})
}

func (s *Server) checkEnvironment(w http.ResponseWriter, r *http.Request) bool {
	if env := mux.Vars(r)["env"]; env != s.environmentID {
		writeError(w, http.StatusNotFound, "environment_not_found", fmt.Sprintf("environment %s not found", env))
		return false
	}
	return true
}

func decodeItems(encoded string) ([]quoteItem, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	var items []quoteItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	return items, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	traceID := ""
	if u, err := uuid.NewV4(); err == nil {
		traceID = u.String()
	}

	writeJSON(w, status, map[string]string{
		"code":     code,
		"message":  message,
		"trace_id": traceID,
	})
}

func newOrderID() string {
	u, err := uuid.NewV4()
	if err != nil {
		return "order-unknown"
	}
	return "order-" + u.String()[:8]
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "page not found")
	})
}
