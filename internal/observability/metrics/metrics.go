package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	invoicesGenerated metric.Int64Counter
	paymentsRecorded  metric.Int64Counter
	lateFeesApplied   metric.Int64Counter
	alertsComputed    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "clearhour"
	}
	meter := provider.Meter(name)

	invoicesGenerated, err := meter.Int64Counter("clearhour_invoices_generated_total")
	if err != nil {
		return nil, err
	}
	paymentsRecorded, err := meter.Int64Counter("clearhour_payments_recorded_total")
	if err != nil {
		return nil, err
	}
	lateFeesApplied, err := meter.Int64Counter("clearhour_late_fees_applied_total")
	if err != nil {
		return nil, err
	}
	alertsComputed, err := meter.Int64Counter("clearhour_alerts_computed_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invoicesGenerated: invoicesGenerated,
		paymentsRecorded:  paymentsRecorded,
		lateFeesApplied:   lateFeesApplied,
		alertsComputed:    alertsComputed,
	}, nil
}

// RecordInvoiceGenerated increments invoice generation counts.
func (m *Metrics) RecordInvoiceGenerated(ctx context.Context, sourceKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source_kind", strings.TrimSpace(sourceKind)))
	m.invoicesGenerated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentRecorded increments payment ledger counts.
func (m *Metrics) RecordPaymentRecorded(ctx context.Context, method string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("method", strings.TrimSpace(method)))
	m.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLateFeeApplied increments late fee application counts.
func (m *Metrics) RecordLateFeeApplied(ctx context.Context, feeKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("fee_kind", strings.TrimSpace(feeKind)))
	m.lateFeesApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAlertsComputed increments alert aggregation counts.
func (m *Metrics) RecordAlertsComputed(ctx context.Context, alertType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("alert_type", strings.TrimSpace(alertType)))
	m.alertsComputed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source_kind": {},
	"method":      {},
	"fee_kind":    {},
	"alert_type":  {},
	"job":         {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
