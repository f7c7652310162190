package entity

type PaymentType string

const (
	PaymentCrypto PaymentType = "crypto"
	PaymentFiat   PaymentType = "fiat"
)

type TxParams struct {
	Amount    string
	Spender   string
	Reference string
}

// PreparedTransaction is an unsigned transaction returned by the sign
// endpoint. Transactions must be submitted in the order they were returned.
type PreparedTransaction struct {
	ContractAddress string
	GasEstimate     uint64
	MethodCall      string
	Params          TxParams
	RawData         string
}

type OrderProduct struct {
	Name              string
	CollectionAddress string
	ContractType      string
	Amounts           []string
	TokenIDs          []string
}

type OrderSummary struct {
	Currency         QuoteCurrency
	CurrencySymbol   string
	Products         []OrderProduct
	TotalAmount      float64
	RecipientAddress string
}

// SignedOrder is the result of one sign call: the order summary plus the
// ordered transaction set. Discarded after success or terminal failure.
type SignedOrder struct {
	Order         OrderSummary
	Transactions  []PreparedTransaction
	TransactionID string
}

type ExecutedTransaction struct {
	Method string
	Hash   string
}

// ExecutionState tracks progress through a signed transaction set. Done only
// becomes true once every transaction has produced a hash.
type ExecutionState struct {
	Done         bool
	Transactions []ExecutedTransaction
}
