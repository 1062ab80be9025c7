package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// QueueStats summarises the state of one queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
}

func inspectQueues(inspector QueueInspector) ([]QueueStats, error) {
	out := make([]QueueStats, 0, 2)
	for _, queue := range []string{jobs.QueueCritical, jobs.QueueDefault} {
		stats := QueueStats{Queue: queue}
		info, err := inspector.GetQueueInfo(queue)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("inspect %s: %w", queue, err)
		}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Failed = info.Failed
		}
		out = append(out, stats)
	}
	return out, nil
}

func newQueueCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show ledger queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.session(cmd.Context())
			if err != nil {
				return err
			}
			if s.Queues == nil {
				return errors.New("queue: inspector not configured")
			}
			stats, err := inspectQueues(s.Queues)
			if err != nil {
				return err
			}
			return e.print(stats, func(w io.Writer) {
				for _, q := range stats {
					_, _ = fmt.Fprintf(w, "%-8s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
						q.Queue, q.Pending, q.Active, q.Scheduled, q.Retry, q.Failed)
				}
			})
		},
	}
}
