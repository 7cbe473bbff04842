package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBillingConfig(t *testing.T) {
	holder, err := NewStaticBillingConfigHolder(DefaultBillingConfig())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 15, cfg.PaymentTermsDays)
	assert.Equal(t, 7, cfg.DueSoonDays)
	assert.Equal(t, LateFeeFixed, cfg.LateFee.Kind)
	assert.Equal(t, 25.00, cfg.LateFee.Amount)
	assert.Equal(t, "BBB", cfg.Prefixes.Invoice)
	assert.Equal(t, "RR", cfg.Prefixes.Report)
	assert.Equal(t, "SR", cfg.Prefixes.ServiceRequest)
}

func TestBillingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BillingConfig)
	}{
		{"zero payment terms", func(cfg *BillingConfig) { cfg.PaymentTermsDays = 0 }},
		{"negative due soon window", func(cfg *BillingConfig) { cfg.DueSoonDays = -1 }},
		{"fixed fee without amount", func(cfg *BillingConfig) { cfg.LateFee = LateFeeConfig{Kind: LateFeeFixed} }},
		{"percent fee without percent", func(cfg *BillingConfig) { cfg.LateFee = LateFeeConfig{Kind: LateFeePercent} }},
		{"unknown fee kind", func(cfg *BillingConfig) { cfg.LateFee.Kind = "hourly" }},
		{"blank invoice prefix", func(cfg *BillingConfig) { cfg.Prefixes.Invoice = " " }},
		{"blank report prefix", func(cfg *BillingConfig) { cfg.Prefixes.Report = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBillingConfig()
			tt.mutate(&cfg)
			_, err := NewStaticBillingConfigHolder(cfg)
			assert.Error(t, err)
		})
	}
}

func TestPercentLateFeeConfigValid(t *testing.T) {
	cfg := DefaultBillingConfig()
	cfg.LateFee = LateFeeConfig{Kind: LateFeePercent, Percent: 2.5}

	holder, err := NewStaticBillingConfigHolder(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2.5, holder.Get().LateFee.Percent)
}
