package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// IntegrityJob walks the ledger of one or all entities and reports broken hash
// chains or unbalanced transactions.
type IntegrityJob struct {
	Ledger      Ledger
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
}

// NewIntegrityJob constructs the integrity check handler.
func NewIntegrityJob(ledger Ledger, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Ledger: ledger, Logger: logger, Metrics: metrics, Concurrency: 4}
}

// Handle executes the integrity check. A failed check is not retried.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload IntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	reports, err := j.Run(ctx, payload.EntityID)
	if err != nil {
		j.logger().Error("integrity check failed", slog.Any("error", err))
		return err
	}
	var failed []error
	for entityID, report := range reports {
		if report.OK() {
			continue
		}
		j.metrics().AddFindings("integrity", entityID, len(report.Unbalanced)+boolCount(report.BrokenAt != nil))
		failed = append(failed, fmt.Errorf("entity %d: %w", entityID, report.Err()))
	}
	j.logger().Info("completed integrity check",
		slog.Int("entities", len(reports)),
		slog.Int("failed", len(failed)),
		slog.Duration("duration", time.Since(start)),
	)
	if len(failed) > 0 {
		return errors.Join(append(failed, asynq.SkipRetry)...)
	}
	return nil
}

// Run verifies the requested entities concurrently and returns one report per entity.
func (j *IntegrityJob) Run(ctx context.Context, entityID int64) (map[int64]accounting.IntegrityReport, error) {
	ids := []int64{entityID}
	if entityID == 0 {
		entities, err := j.Ledger.ListEntities(ctx)
		if err != nil {
			return nil, err
		}
		ids = ids[:0]
		for _, e := range entities {
			ids = append(ids, e.ID)
		}
	}

	var (
		mu  sync.Mutex
		out = make(map[int64]accounting.IntegrityReport, len(ids))
	)
	g, ctx := errgroup.WithContext(ctx)
	if j.Concurrency > 0 {
		g.SetLimit(j.Concurrency)
	}
	for _, id := range ids {
		id := id
		g.Go(func() error {
			report, err := j.Ledger.VerifyLedgerIntegrity(ctx, accounting.ForEntity(id))
			if err != nil {
				return fmt.Errorf("entity %d: %w", id, err)
			}
			if !report.OK() {
				j.logger().Warn("ledger integrity violation",
					slog.Int64("entity_id", id),
					slog.Int("rows", report.Rows),
					slog.Any("error", report.Err()),
				)
			}
			mu.Lock()
			out[id] = report
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func boolCount(v bool) int {
	if v {
		return 1
	}
	return 0
}
