package entity

type SecondaryFee struct {
	Label  string
	Amount TokenAmount
}

// FeeEstimate carries the fees quoted for a swap or bridge. GasFee is the
// primary fee; ServiceFee doubles as the bridge fee on bridge estimates.
type FeeEstimate struct {
	GasFee        TokenAmount
	ApprovalFee   TokenAmount
	ServiceFee    TokenAmount
	SecondaryFees []SecondaryFee
}

// FormattedFee is a display-ready fee line item. Amount and FiatAmount are
// already truncated and prefixed; derived per quote refresh, never persisted.
type FormattedFee struct {
	Label      string
	Amount     string
	FiatAmount string
	Token      TokenInfo
	Prefix     string
}
