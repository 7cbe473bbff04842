package notify

import (
	"context"

	"go.uber.org/zap"
)

type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) Notifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) {
	n.log.Info("billing event",
		zap.String("kind", string(event.Kind)),
		zap.Int64("org_id", event.OrgID.Int64()),
		zap.Int64("invoice_id", event.InvoiceID.Int64()),
		zap.String("number", event.Number),
		zap.String("amount", event.Amount.StringFixed(2)),
	)
}
