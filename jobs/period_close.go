package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PeriodJob runs the year end steps of a reporting period. When Locker is set,
// runs for the same period are serialised across workers.
type PeriodJob struct {
	Ledger  Ledger
	Locker  accounting.Locker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPeriodJob constructs the translation and close handlers.
func NewPeriodJob(ledger Ledger, logger *slog.Logger, metrics *jobmetrics.Metrics) *PeriodJob {
	return &PeriodJob{Ledger: ledger, Logger: logger, Metrics: metrics}
}

// HandleTranslate posts the closing rate translation of a period.
func (j *PeriodJob) HandleTranslate(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger translate: handler not configured")
	}
	var payload TranslatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskLedgerTranslate)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	_, err := j.Translate(ctx, payload)
	return permanent(err)
}

// Translate runs a balance translation inline and returns the posted journals.
func (j *PeriodJob) Translate(ctx context.Context, payload TranslatePayload) ([]accounting.Transaction, error) {
	scope := accounting.ForEntity(payload.EntityID)
	logger := j.logger(TaskLedgerTranslate).With(slog.Int64("entity_id", payload.EntityID), slog.Int("year", payload.Year))
	period, err := j.Ledger.Period(ctx, scope, payload.Year)
	if err != nil {
		return nil, err
	}
	release, err := j.lock(ctx, payload.EntityID, period.ID)
	if err != nil {
		return nil, err
	}
	defer release()
	posted, err := j.Ledger.PrepareBalancesTranslation(ctx, scope, period.ID, payload.ForexAccountID)
	if err != nil {
		logger.Error("translation failed", slog.Any("error", err))
		return nil, err
	}
	logger.Info("balances translated", slog.Int("transactions", len(posted)))
	return posted, nil
}

// HandleClose closes a period and carries its balances into the next one.
func (j *PeriodJob) HandleClose(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger close: handler not configured")
	}
	var payload ClosePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskLedgerClose)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	_, err := j.Close(ctx, payload)
	return permanent(err)
}

// Close closes a period inline. A period that is already closed is returned
// unchanged.
func (j *PeriodJob) Close(ctx context.Context, payload ClosePayload) (accounting.ReportingPeriod, error) {
	scope := accounting.ForEntity(payload.EntityID)
	logger := j.logger(TaskLedgerClose).With(slog.Int64("entity_id", payload.EntityID), slog.Int("year", payload.Year))
	period, err := j.Ledger.Period(ctx, scope, payload.Year)
	if err != nil {
		return accounting.ReportingPeriod{}, err
	}
	release, err := j.lock(ctx, payload.EntityID, period.ID)
	if err != nil {
		return accounting.ReportingPeriod{}, err
	}
	defer release()
	if period.Status == accounting.PeriodStatusClosed {
		logger.Info("period already closed")
		return period, nil
	}
	closed, err := j.Ledger.ClosePeriod(ctx, scope, period.ID, payload.RetainedEarningsAccountID)
	if err != nil {
		logger.Error("close failed", slog.Any("error", err))
		return accounting.ReportingPeriod{}, err
	}
	logger.Info("period closed", slog.Int64("period_id", closed.ID))
	return closed, nil
}

func (j *PeriodJob) lock(ctx context.Context, entityID, periodID int64) (func(), error) {
	if j.Locker == nil {
		return func() {}, nil
	}
	return j.Locker.Lock(ctx, shared.PeriodLockKey(entityID, periodID))
}

// permanent stops retries for ledger rule violations, which a retry cannot fix.
func permanent(err error) error {
	if err == nil {
		return nil
	}
	if accounting.KindOf(err) != "" ||
		errors.Is(err, accounting.ErrNotFound) ||
		errors.Is(err, accounting.ErrInvalidPeriodTransition) ||
		errors.Is(err, accounting.ErrPeriodClosed) {
		return errors.Join(err, asynq.SkipRetry)
	}
	return err
}

func (j *PeriodJob) logger(task string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", task))
	}
	return slog.Default().With(slog.String("job", task))
}

func (j *PeriodJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
