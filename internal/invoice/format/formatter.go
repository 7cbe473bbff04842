// Package format renders invoice values for presentation surfaces.
package format

import (
	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	"github.com/shopspring/decimal"
)

var statusLabels = map[invoicedomain.InvoiceStatus]string{
	invoicedomain.InvoiceStatusDraft:     "Draft",
	invoicedomain.InvoiceStatusPending:   "Pending",
	invoicedomain.InvoiceStatusPartial:   "Partially paid",
	invoicedomain.InvoiceStatusPaid:      "Paid",
	invoicedomain.InvoiceStatusOverdue:   "Overdue",
	invoicedomain.InvoiceStatusCancelled: "Cancelled",
}

// StatusLabel returns the human-readable status name.
func StatusLabel(status invoicedomain.InvoiceStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// Amount renders a money value with two fixed decimals.
func Amount(value decimal.Decimal) string {
	return value.StringFixed(2)
}

// Hours renders an hour quantity with two fixed decimals.
func Hours(value decimal.Decimal) string {
	return value.StringFixed(2)
}
