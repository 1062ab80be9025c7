// Package cli implements the ledger operations command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// ErrFindings marks a run that completed but found ledger problems.
var ErrFindings = errors.New("ledger: checks reported findings")

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrFindings):
		return 10
	default:
		return 1
	}
}

// Ledger is the ledger surface the commands drive.
type Ledger interface {
	jobs.Ledger
	reports.Ledger
}

// Enqueuer submits ledger tasks to the worker queues.
type Enqueuer interface {
	EnqueueIntegrity(ctx context.Context, payload jobs.IntegrityPayload) (*asynq.TaskInfo, error)
	EnqueueTranslate(ctx context.Context, payload jobs.TranslatePayload) (*asynq.TaskInfo, error)
	EnqueueClose(ctx context.Context, payload jobs.ClosePayload) (*asynq.TaskInfo, error)
}

// QueueInspector reads queue statistics.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Session holds the connections of one command run.
type Session struct {
	Ledger   Ledger
	Locker   accounting.Locker
	Enqueuer Enqueuer
	Queues   QueueInspector
	Close    func()
}

// Connector opens a Session for the loaded configuration.
type Connector func(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*Session, error)

type env struct {
	connect Connector
	envFile string
	jsonOut bool
	stdout  io.Writer
	stderr  io.Writer
	now     func() time.Time

	cfg     *app.Config
	logger  *slog.Logger
	current *Session
}

// NewRootCommand builds the ledger command tree. connect is called lazily by
// the commands that need Postgres or Redis.
func NewRootCommand(connect Connector) *cobra.Command {
	e := &env{connect: connect, now: time.Now}
	root := &cobra.Command{
		Use:   "ledger",
		Short: "Operate the double-entry ledger",
		Long: `ledger runs and schedules the ledger's maintenance tasks.

Example:
  ledger integrity --entity 1
  ledger close --entity 1 --year 2025 --retained-account 42 --enqueue
  ledger report trial-balance --entity 1 --end 2025-12-31`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.stdout = cmd.OutOrStdout()
			e.stderr = cmd.ErrOrStderr()
			var files []string
			if e.envFile != "" {
				files = append(files, e.envFile)
			}
			cfg, err := app.LoadConfig(files...)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = app.NewLoggerTo(cfg, e.stderr)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.current != nil && e.current.Close != nil {
				e.current.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&e.envFile, "env-file", "", "load variables from this .env file")
	root.PersistentFlags().BoolVar(&e.jsonOut, "json", false, "print JSON output")

	root.AddCommand(
		newIntegrityCommand(e),
		newTranslateCommand(e),
		newCloseCommand(e),
		newQueueCommand(e),
		newReportCommand(e),
		newSettingsCommand(e),
	)
	return root
}

func (e *env) session(ctx context.Context) (*Session, error) {
	if e.current != nil {
		return e.current, nil
	}
	if e.connect == nil {
		return nil, errors.New("ledger: no connector configured")
	}
	s, err := e.connect(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	e.current = s
	return s, nil
}

// print writes v as JSON when --json is set and through human otherwise.
func (e *env) print(v any, human func(io.Writer)) error {
	if e.jsonOut || human == nil {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
	human(e.stdout)
	return nil
}

type enqueued struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Queue string `json:"queue"`
}

func (e *env) printEnqueued(info *asynq.TaskInfo) error {
	if info == nil {
		return errors.New("ledger: enqueue returned no task")
	}
	out := enqueued{ID: info.ID, Type: info.Type, Queue: info.Queue}
	return e.print(out, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "enqueued %s on %s (%s)\n", out.Type, out.Queue, out.ID)
	})
}

func requireFlag(name string, value int64) error {
	if value <= 0 {
		return fmt.Errorf("--%s is required and must be positive", name)
	}
	return nil
}
