package entity

import "fmt"

type ErrorType string

const (
	DefaultError             ErrorType = "DEFAULT_ERROR"
	InvalidParameters        ErrorType = "INVALID_PARAMETERS"
	TransactionFailed        ErrorType = "TRANSACTION_FAILED"
	ServiceBreakdown         ErrorType = "SERVICE_BREAKDOWN"
	ProductNotFound          ErrorType = "PRODUCT_NOT_FOUND"
	InsufficientStock        ErrorType = "INSUFFICIENT_STOCK"
	WalletFailed             ErrorType = "WALLET_FAILED"
	WalletRejected           ErrorType = "WALLET_REJECTED"
	WalletRejectedNoFunds    ErrorType = "WALLET_REJECTED_NO_FUNDS"
	WalletPopupBlocked       ErrorType = "WALLET_POPUP_BLOCKED"
	FundingRouteExecuteError ErrorType = "FUNDING_ROUTE_EXECUTE_ERROR"
)

// CheckoutError is the typed error stored in checkout state. API and wallet
// failures are converted into one of these at the boundary and never
// propagated as untyped errors.
type CheckoutError struct {
	Type    ErrorType
	Message string
	Data    map[string]interface{}
	cause   error
}

func NewCheckoutError(errType ErrorType, message string, cause error) *CheckoutError {
	return &CheckoutError{Type: errType, Message: message, cause: cause}
}

func (e *CheckoutError) WithData(key string, value interface{}) *CheckoutError {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

func (e *CheckoutError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *CheckoutError) Unwrap() error {
	return e.cause
}

// AsCheckoutError returns err as a CheckoutError, wrapping it with the given
// fallback type when it is not one already.
func AsCheckoutError(err error, fallback ErrorType) *CheckoutError {
	if cerr, ok := err.(*CheckoutError); ok {
		return cerr
	}
	return NewCheckoutError(fallback, "unexpected failure", err)
}
