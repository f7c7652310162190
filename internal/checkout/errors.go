package checkout

import (
	"strings"
	"time"

	"github.com/immutable/checkout-go/internal/entity"
	uuid "github.com/nu7hatch/gouuid"
)

// ClassifyWalletError maps free-text wallet failures onto the error
// taxonomy by substring. Wallets expose no structured codes for these, so
// this is best-effort, never authoritative; anything unrecognized is
// WALLET_FAILED.
func ClassifyWalletError(err error) entity.ErrorType {
	if err == nil {
		return entity.DefaultError
	}

	msg := strings.ToLower(err.Error())
	has := func(substrings ...string) bool {
		for _, s := range substrings {
			if !strings.Contains(msg, s) {
				return false
			}
		}
		return true
	}

	switch {
	case has("failed", "open confirmation"):
		return entity.WalletPopupBlocked
	case has("rejected", "user"):
		return entity.WalletRejected
	case has("failed to submit", "highest gas limit"):
		return entity.WalletRejectedNoFunds
	case has("status failed") || has("transaction failed"):
		return entity.TransactionFailed
	default:
		return entity.WalletFailed
	}
}

// Diagnostic is a record attached to failed checkout attempts for support
// lookups.
type Diagnostic struct {
	Time      time.Time `json:"time"`
	Component string    `json:"component"`
	Name      string    `json:"name"`
	Error     string    `json:"error"`
	Slug      string    `json:"slug"`
}

func newDiagnostic(component, name string, err error) Diagnostic {
	slug := ""
	if u, uerr := uuid.NewV4(); uerr == nil {
		slug = u.String()
	}

	return Diagnostic{
		Time:      time.Now(),
		Component: component,
		Name:      name,
		Error:     err.Error(),
		Slug:      slug,
	}
}
