package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/simdev/taskhub/pkg/messaging/outbox"
	"github.com/spf13/cobra"
)

func newListCmd(flags *globalFlags) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox events, oldest first",
		Example: `  outboxctl list --status FAILED --limit 20
  outboxctl list -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := outbox.ListFilter{Status: outbox.Status(status), Limit: limit}
			if err := validateStatus(filter.Status); err != nil {
				return err
			}
			return withStore(cmd.Context(), flags, func(ctx context.Context, store outbox.Store) error {
				events, err := store.List(ctx, filter)
				if err != nil {
					return err
				}
				return printEvents(cmd.OutOrStdout(), flags.output, events)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only events in this status (PENDING, PROCESSING, PUBLISHED, FAILED)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events")
	return cmd
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count outbox events by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), flags, func(ctx context.Context, store outbox.Store) error {
				counts, err := store.CountByStatus(ctx)
				if err != nil {
					return err
				}
				return printStats(cmd.OutOrStdout(), flags.output, counts)
			})
		},
	}
}

func newSweepCmd(flags *globalFlags) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete PUBLISHED events processed before the cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			return withStore(cmd.Context(), flags, func(ctx context.Context, store outbox.Store) error {
				n, err := store.DeletePublishedBefore(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d published events older than %s\n", n, olderThan)
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Age of the oldest PUBLISHED event to keep")
	return cmd
}

func newRequeueCmd(flags *globalFlags) *cobra.Command {
	var ids []int64
	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Move FAILED events back to PENDING with a fresh retry budget",
		Example: `  outboxctl requeue --id 42
  outboxctl requeue --id 42,43,44`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), flags, func(ctx context.Context, store outbox.Store) error {
				var errs []error
				for _, id := range lo.Uniq(ids) {
					if err := store.Requeue(ctx, id); err != nil {
						errs = append(errs, fmt.Errorf("event %d: %w", id, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "requeued event %d\n", id)
				}
				return errors.Join(errs...)
			})
		},
	}
	cmd.Flags().Int64SliceVar(&ids, "id", nil, "Event ids to requeue (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func validateStatus(s outbox.Status) error {
	switch s {
	case "", outbox.StatusPending, outbox.StatusProcessing, outbox.StatusPublished, outbox.StatusFailed:
		return nil
	}
	return fmt.Errorf("unknown status %q", s)
}

type eventView struct {
	ID          int64         `json:"id"`
	EventType   string        `json:"eventType"`
	Topic       string        `json:"topic"`
	Key         string        `json:"key"`
	Status      outbox.Status `json:"status"`
	RetryCount  int           `json:"retryCount"`
	CreatedAt   time.Time     `json:"createdAt"`
	ProcessedAt *time.Time    `json:"processedAt,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func toView(e *outbox.Event) eventView {
	return eventView{
		ID:          e.ID,
		EventType:   e.EventType,
		Topic:       e.Topic,
		Key:         e.Key(),
		Status:      e.Status,
		RetryCount:  e.RetryCount,
		CreatedAt:   e.CreatedAt,
		ProcessedAt: e.ProcessedAt,
		Error:       lo.FromPtr(e.ErrorMessage),
	}
}

func printEvents(w io.Writer, format string, events []*outbox.Event) error {
	views := lo.Map(events, func(e *outbox.Event, _ int) eventView { return toView(e) })
	if format == "json" {
		return json.NewEncoder(w).Encode(views)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTOPIC\tKEY\tSTATUS\tRETRIES\tCREATED\tERROR")
	for _, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			v.ID, v.EventType, v.Topic, v.Key, v.Status, v.RetryCount,
			v.CreatedAt.Format(time.RFC3339), truncate(v.Error, 60))
	}
	return tw.Flush()
}

var statusOrder = []outbox.Status{
	outbox.StatusPending,
	outbox.StatusProcessing,
	outbox.StatusPublished,
	outbox.StatusFailed,
}

func printStats(w io.Writer, format string, counts map[outbox.Status]int64) error {
	if format == "json" {
		full := lo.SliceToMap(statusOrder, func(s outbox.Status) (outbox.Status, int64) { return s, counts[s] })
		return json.NewEncoder(w).Encode(full)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCOUNT")
	for _, s := range statusOrder {
		fmt.Fprintf(tw, "%s\t%d\n", s, counts[s])
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
