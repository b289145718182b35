package store

import (
	"fmt"
	"strings"

	"pos-sync/internal/syncerr"
)

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentCredit   = "credit"
)

var paymentAliases = map[string]string{
	"cash":     PaymentCash,
	"efectivo": PaymentCash,
	"contado":  PaymentCash,

	"card":        PaymentCard,
	"tarjeta":     PaymentCard,
	"debit":       PaymentCard,
	"debito":      PaymentCard,
	"débito":      PaymentCard,
	"credit_card": PaymentCard,

	"transfer":      PaymentTransfer,
	"transferencia": PaymentTransfer,
	"bank":          PaymentTransfer,

	"credit":  PaymentCredit,
	"credito": PaymentCredit,
	"crédito": PaymentCredit,
	"fiado":   PaymentCredit,
	"debt":    PaymentCredit,
}

// NormalizePaymentMethod maps the spellings the POS has stored over time to
// one of cash, card, transfer or credit.
func NormalizePaymentMethod(method string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(method))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	if normalized, ok := paymentAliases[key]; ok {
		return normalized, nil
	}
	return "", syncerr.Invalid(fmt.Sprintf("unknown payment method %q", method))
}
