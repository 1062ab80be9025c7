package ledgertest

import (
	"context"
	"sync"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditRecorder keeps audit logs in memory.
type AuditRecorder struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

// Record stores the log.
func (a *AuditRecorder) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

// Actions lists the recorded actions in order.
func (a *AuditRecorder) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, log := range a.logs {
		out = append(out, log.Action)
	}
	return out
}
