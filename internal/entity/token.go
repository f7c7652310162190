package entity

import "math/big"

type TokenInfo struct {
	Symbol   string
	Decimals int32
	Address  string
}

// TokenAmount is a raw on-chain integer amount plus the token it is
// denominated in. Amounts are never negative.
type TokenAmount struct {
	Value *big.Int
	Token TokenInfo
}

func NewTokenAmount(value *big.Int, token TokenInfo) TokenAmount {
	return TokenAmount{Value: value, Token: token}
}

func (t TokenAmount) IsZero() bool {
	return t.Value == nil || t.Value.Sign() == 0
}
