package sales

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/immutable/checkout-go/internal/entity"
	"go.uber.org/zap"
)

// SignRequest is the input to the sign endpoint.
type SignRequest struct {
	RecipientAddress string
	SpenderAddress   string
	PaymentType      entity.PaymentType
	CurrencyFilter   string
	CurrencyValue    string
	Items            []entity.OrderItem
	CustomData       map[string]interface{}
}

type signRequestBody struct {
	RecipientAddress string                 `json:"recipient_address"`
	SpenderAddress   string                 `json:"spender_address,omitempty"`
	PaymentType      string                 `json:"payment_type"`
	CurrencyFilter   string                 `json:"currency_filter"`
	CurrencyValue    string                 `json:"currency_value"`
	Products         []signProduct          `json:"products"`
	CustomData       map[string]interface{} `json:"custom_data,omitempty"`
}

type signProduct struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type signDetail struct {
	Amount  json.Number `json:"amount"`
	TokenID json.Number `json:"token_id"`
}

type signProductResponse struct {
	ProductID         string       `json:"product_id"`
	CollectionAddress string       `json:"collection_address"`
	ContractType      string       `json:"contract_type"`
	Detail            []signDetail `json:"detail"`
}

type signTransactionResponse struct {
	ContractAddress string `json:"contract_address"`
	GasEstimate     uint64 `json:"gas_estimate"`
	MethodCall      string `json:"method_call"`
	Params          struct {
		Amount    json.Number `json:"amount"`
		Spender   string      `json:"spender"`
		Reference string      `json:"reference"`
	} `json:"params"`
	RawData string `json:"raw_data"`
}

type signResponse struct {
	Order struct {
		Currency struct {
			Name     string `json:"name"`
			Decimals int32  `json:"decimals"`
			Erc20    string `json:"erc20_address"`
		} `json:"currency"`
		CurrencySymbol string                `json:"currency_symbol"`
		Products       []signProductResponse `json:"products"`
		TotalAmount    float64               `json:"total_amount"`
	} `json:"order"`
	Transactions []signTransactionResponse `json:"transactions"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Details string `json:"details"`
	Link    string `json:"link"`
	Message string `json:"message"`
	TraceID string `json:"trace_id"`
}

// Sign requests the transaction set for an order. Non-2xx responses map onto
// the error taxonomy by HTTP status and API error code; a status outside the
// mapped set is returned as a plain unclassified error.
func (c *Client) Sign(ctx context.Context, signReq SignRequest) (*entity.SignedOrder, error) {
	body := signRequestBody{
		RecipientAddress: signReq.RecipientAddress,
		SpenderAddress:   signReq.SpenderAddress,
		PaymentType:      string(signReq.PaymentType),
		CurrencyFilter:   signReq.CurrencyFilter,
		CurrencyValue:    signReq.CurrencyValue,
		Products:         make([]signProduct, 0, len(signReq.Items)),
		CustomData:       signReq.CustomData,
	}
	for _, item := range signReq.Items {
		body.Products = append(body.Products, signProduct{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, entity.NewCheckoutError(entity.InvalidParameters, "unable to encode sign request", err)
	}

	req, err := retryablehttp.NewRequest("POST", fmt.Sprintf("%s/%s/order/sign", c.baseURL, c.environmentID), bytes.NewReader(payload))
	if err != nil {
		return nil, entity.NewCheckoutError(entity.ServiceBreakdown, "unable to build sign request", err)
	}
	req = req.WithContext(ctx)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	zap.L().With(
		zap.String("recipient", signReq.RecipientAddress),
		zap.String("paymentType", string(signReq.PaymentType)),
	).Debug("Sales: sign request")

	resp, err := c.doTimeoutRequest(time.NewTimer(c.timeout), req)
	if err != nil {
		return nil, entity.NewCheckoutError(entity.ServiceBreakdown, "sign request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, entity.NewCheckoutError(entity.ServiceBreakdown, "unable to read sign response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapSignError(resp.StatusCode, data)
	}

	var parsed signResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, entity.NewCheckoutError(entity.ServiceBreakdown, "malformed sign response", err)
	}

	return orderFromResponse(parsed), nil
}

// orderFromResponse normalizes the wire shape: detail records merge into one
// product per name, transactions take a uniform shape, and the transaction
// id is decoded from the execute call's reference.
func orderFromResponse(parsed signResponse) *entity.SignedOrder {
	order := &entity.SignedOrder{
		Order: entity.OrderSummary{
			Currency: entity.QuoteCurrency{
				Name:     parsed.Order.Currency.Name,
				Decimals: parsed.Order.Currency.Decimals,
				Address:  parsed.Order.Currency.Erc20,
			},
			CurrencySymbol: parsed.Order.CurrencySymbol,
			TotalAmount:    parsed.Order.TotalAmount,
		},
	}

	grouped := make(map[string]int)
	for _, product := range parsed.Order.Products {
		key := slug.Make(product.ProductID)

		index, seen := grouped[key]
		if !seen {
			order.Order.Products = append(order.Order.Products, entity.OrderProduct{
				Name:              product.ProductID,
				CollectionAddress: product.CollectionAddress,
				ContractType:      product.ContractType,
			})
			index = len(order.Order.Products) - 1
			grouped[key] = index
		}

		for _, detail := range product.Detail {
			order.Order.Products[index].Amounts = append(order.Order.Products[index].Amounts, detail.Amount.String())
			order.Order.Products[index].TokenIDs = append(order.Order.Products[index].TokenIDs, detail.TokenID.String())
		}
	}

	for _, txn := range parsed.Transactions {
		order.Transactions = append(order.Transactions, entity.PreparedTransaction{
			ContractAddress: txn.ContractAddress,
			GasEstimate:     txn.GasEstimate,
			MethodCall:      txn.MethodCall,
			Params: entity.TxParams{
				Amount:    txn.Params.Amount.String(),
				Spender:   txn.Params.Spender,
				Reference: txn.Params.Reference,
			},
			RawData: txn.RawData,
		})

		if strings.HasPrefix(strings.ToLower(txn.MethodCall), "execute") {
			order.TransactionID = decodeReference(txn.Params.Reference)
		}
	}

	return order
}

// decodeReference turns a hex-encoded reference field into the transaction
// id. An undecodable reference is kept verbatim.
func decodeReference(reference string) string {
	trimmed := strings.TrimPrefix(reference, "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return reference
	}
	return string(bytes.TrimLeft(decoded, "\x00"))
}

func mapSignError(status int, body []byte) error {
	var apiErr apiErrorBody
	_ = json.Unmarshal(body, &apiErr)

	withDetails := func(cerr *entity.CheckoutError) error {
		return cerr.
			WithData("status", status).
			WithData("code", apiErr.Code).
			WithData("traceId", apiErr.TraceID)
	}

	switch {
	case status == 400:
		return withDetails(entity.NewCheckoutError(entity.ServiceBreakdown, apiErr.Message, nil))
	case status == 404 && apiErr.Code == "insufficient_stock":
		return withDetails(entity.NewCheckoutError(entity.InsufficientStock, apiErr.Message, nil))
	case status == 404:
		return withDetails(entity.NewCheckoutError(entity.ProductNotFound, apiErr.Message, nil))
	case status == 429 || status == 500:
		// Rate limiting and server faults collapse into one type; the raw
		// status stays in the data for a future retry policy.
		return withDetails(entity.NewCheckoutError(entity.DefaultError, apiErr.Message, nil))
	default:
		return fmt.Errorf("sign endpoint returned unexpected status %s: %s", strconv.Itoa(status), apiErr.Message)
	}
}
