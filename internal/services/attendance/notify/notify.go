// Package notify fans admissions out to live dashboards over websockets and
// to a Kafka topic for downstream consumers.
package notify

import (
	"context"

	"github.com/louisbranch/rollcall/internal/services/attendance/ledger"
)

// Multi forwards each admission to every non-nil notifier in order.
func Multi(notifiers ...ledger.Notifier) ledger.Notifier {
	kept := make([]ledger.Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return multi(kept)
}

type multi []ledger.Notifier

func (m multi) Admitted(ctx context.Context, result ledger.Result) {
	for _, n := range m {
		n.Admitted(ctx, result)
	}
}
