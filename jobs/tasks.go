package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries period close work.
	QueueCritical = "critical"

	// TaskLedgerIntegrity verifies the ledger hash chain and posting balance.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskLedgerTranslate posts the closing rate translation of a period.
	TaskLedgerTranslate = "ledger:translate"
	// TaskLedgerClose closes a period and carries its balances forward.
	TaskLedgerClose = "ledger:close"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Ledger is the part of the ledger service the jobs drive.
type Ledger interface {
	ListEntities(ctx context.Context) ([]accounting.Entity, error)
	VerifyLedgerIntegrity(ctx context.Context, scope accounting.Scope) (accounting.IntegrityReport, error)
	Period(ctx context.Context, scope accounting.Scope, year int) (accounting.ReportingPeriod, error)
	PrepareBalancesTranslation(ctx context.Context, scope accounting.Scope, periodID, forexAccountID int64) ([]accounting.Transaction, error)
	ClosePeriod(ctx context.Context, scope accounting.Scope, periodID int64, retainedEarningsAccountID *int64) (accounting.ReportingPeriod, error)
}

// IntegrityPayload scopes an integrity run. A zero EntityID checks every entity.
type IntegrityPayload struct {
	EntityID int64 `json:"entity_id,omitempty"`
}

// TranslatePayload names the period to translate and its forex account.
type TranslatePayload struct {
	EntityID       int64 `json:"entity_id"`
	Year           int   `json:"year"`
	ForexAccountID int64 `json:"forex_account_id"`
}

// ClosePayload names the period to close.
type ClosePayload struct {
	EntityID                  int64  `json:"entity_id"`
	Year                      int    `json:"year"`
	RetainedEarningsAccountID *int64 `json:"retained_earnings_account_id,omitempty"`
}

// NewIntegrityTask constructs an Asynq task for the integrity check.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	return newTask(TaskLedgerIntegrity, payload, asynq.Queue(QueueDefault))
}

// NewTranslateTask constructs an Asynq task for balance translation.
func NewTranslateTask(payload TranslatePayload) (*asynq.Task, error) {
	if payload.EntityID == 0 || payload.Year == 0 || payload.ForexAccountID == 0 {
		return nil, fmt.Errorf("jobs: translate: entity, year and forex account are required")
	}
	return newTask(TaskLedgerTranslate, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(3))
}

// NewCloseTask constructs an Asynq task for closing a period.
func NewCloseTask(payload ClosePayload) (*asynq.Task, error) {
	if payload.EntityID == 0 || payload.Year == 0 {
		return nil, fmt.Errorf("jobs: close: entity and year are required")
	}
	return newTask(TaskLedgerClose, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(3))
}

func newTask(kind string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(kind, data, opts...), nil
}
