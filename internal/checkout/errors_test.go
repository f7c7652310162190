package checkout

import (
	"errors"
	"testing"

	"github.com/immutable/checkout-go/internal/entity"
)

func TestClassifyWalletError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want entity.ErrorType
	}{
		{"popup blocked", "Failed to open confirmation screen", entity.WalletPopupBlocked},
		{"user rejection", "MetaMask Tx Signature: User rejected transaction", entity.WalletRejected},
		{"insufficient funds", "failed to submit transaction: exceeds highest gas limit for sender balance", entity.WalletRejectedNoFunds},
		{"reverted with status", "execution finished with status failed", entity.TransactionFailed},
		{"reverted plain", "transaction failed: 0xabc", entity.TransactionFailed},
		{"unknown", "something exploded", entity.WalletFailed},
		{"rejected without user", "node rejected the payload", entity.WalletFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyWalletError(errors.New(tt.msg)); got != tt.want {
				t.Errorf("ClassifyWalletError(%q) = %s, want %s", tt.msg, got, tt.want)
			}
		})
	}
}

func TestClassifyWalletErrorIsCaseInsensitive(t *testing.T) {
	if got := ClassifyWalletError(errors.New("USER REJECTED THE REQUEST")); got != entity.WalletRejected {
		t.Errorf("uppercase message classified as %s", got)
	}
}

func TestNewDiagnosticCarriesSlug(t *testing.T) {
	d := newDiagnostic("execute", string(entity.WalletRejected), errors.New("user rejected transaction"))

	if d.Component != "execute" || d.Name != string(entity.WalletRejected) {
		t.Errorf("diagnostic = %+v", d)
	}
	if d.Slug == "" {
		t.Error("diagnostic slug is empty")
	}
	if d.Time.IsZero() {
		t.Error("diagnostic time is zero")
	}
}
