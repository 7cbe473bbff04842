package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LateFeeKind selects how the late fee is computed.
type LateFeeKind string

const (
	LateFeeFixed   LateFeeKind = "fixed"
	LateFeePercent LateFeeKind = "percent"
)

// LateFeeConfig describes the charge appended to overdue invoices.
type LateFeeConfig struct {
	Kind    LateFeeKind `mapstructure:"kind"`
	Amount  float64     `mapstructure:"amount"`
	Percent float64     `mapstructure:"percent"`
}

// ReferencePrefixes maps numbered entity types to their reference prefix.
type ReferencePrefixes struct {
	Invoice        string `mapstructure:"invoice"`
	Report         string `mapstructure:"report"`
	ServiceRequest string `mapstructure:"serviceRequest"`
}

// BillingConfig carries the billing policy knobs. Values are
// hot-reloadable; read them through the holder on every use.
type BillingConfig struct {
	PaymentTermsDays int               `mapstructure:"paymentTermsDays"`
	DueSoonDays      int               `mapstructure:"dueSoonDays"`
	LateFee          LateFeeConfig     `mapstructure:"lateFee"`
	Prefixes         ReferencePrefixes `mapstructure:"prefixes"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		PaymentTermsDays: 15,
		DueSoonDays:      7,
		LateFee: LateFeeConfig{
			Kind:   LateFeeFixed,
			Amount: 25.00,
		},
		Prefixes: ReferencePrefixes{
			Invoice:        "BBB",
			Report:         "RR",
			ServiceRequest: "SR",
		},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed config, used by tests and
// callers that do not want file watching.
func NewStaticBillingConfigHolder(cfg BillingConfig) (*BillingConfigHolder, error) {
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/clearhour/config")
	v.AddConfigPath("/etc/clearhour")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLEARHOUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.paymentTermsDays", defaults.PaymentTermsDays)
	v.SetDefault("billing.dueSoonDays", defaults.DueSoonDays)
	v.SetDefault("billing.lateFee", defaults.LateFee)
	v.SetDefault("billing.prefixes", defaults.Prefixes)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.PaymentTermsDays <= 0 {
		return errors.New("billing.paymentTermsDays must be positive")
	}
	if cfg.DueSoonDays <= 0 {
		return errors.New("billing.dueSoonDays must be positive")
	}
	switch cfg.LateFee.Kind {
	case LateFeeFixed:
		if cfg.LateFee.Amount <= 0 {
			return errors.New("billing.lateFee.amount must be positive")
		}
	case LateFeePercent:
		if cfg.LateFee.Percent <= 0 {
			return errors.New("billing.lateFee.percent must be positive")
		}
	default:
		return errors.New("billing.lateFee.kind must be fixed or percent")
	}
	if strings.TrimSpace(cfg.Prefixes.Invoice) == "" ||
		strings.TrimSpace(cfg.Prefixes.Report) == "" ||
		strings.TrimSpace(cfg.Prefixes.ServiceRequest) == "" {
		return errors.New("billing.prefixes must all be set")
	}
	return nil
}
