package cli

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// Connect opens Postgres, Redis and the task queue for a command run.
func Connect(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*Session, error) {
	rt, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		rt.Close()
		return nil, err
	}
	inspector := asynq.NewInspector(redisOpts)
	return &Session{
		Ledger:   rt.Ledger,
		Locker:   rt.Locker,
		Enqueuer: client,
		Queues:   inspector,
		Close: func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
			if err := client.Close(); err != nil {
				logger.Warn("queue client close", slog.Any("error", err))
			}
			rt.Close()
		},
	}, nil
}
