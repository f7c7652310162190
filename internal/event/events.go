package event

type Type string

const (
	QuoteFetched         Type = "quote.fetched"
	SignRequested        Type = "sign.requested"
	TransactionSubmitted Type = "transaction.submitted"
	TransactionConfirmed Type = "transaction.confirmed"
	CheckoutFailed       Type = "checkout.failed"
)
