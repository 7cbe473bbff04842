package format

import (
	"testing"

	invoicedomain "github.com/clearhour/clearhour/internal/invoice/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Partially paid", StatusLabel(invoicedomain.InvoiceStatusPartial))
	assert.Equal(t, "Overdue", StatusLabel(invoicedomain.InvoiceStatusOverdue))
	// Unknown statuses fall through unchanged.
	assert.Equal(t, "WEIRD", StatusLabel(invoicedomain.InvoiceStatus("WEIRD")))
}

func TestAmount(t *testing.T) {
	assert.Equal(t, "450.00", Amount(decimal.NewFromInt(450)))
	assert.Equal(t, "12.50", Amount(decimal.NewFromFloat(12.5)))
	assert.Equal(t, "0.00", Amount(decimal.Zero))
}

func TestHours(t *testing.T) {
	assert.Equal(t, "4.50", Hours(decimal.NewFromFloat(4.5)))
}
