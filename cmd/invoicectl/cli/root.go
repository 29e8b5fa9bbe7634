// Package cli implements the invoicectl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/invoice-insights/internal/app"
	"github.com/odyssey-erp/invoice-insights/internal/invoices"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/export"
	"github.com/odyssey-erp/invoice-insights/internal/platform/cache"
	"github.com/odyssey-erp/invoice-insights/jobs"
)

// Options supplies the collaborators commands open lazily, so that help and
// flag errors never touch Redis or the invoice source.
type Options struct {
	Out       io.Writer
	OpenStats func(ctx context.Context) (jobs.StatsComputer, func(), error)
	OpenJobs  func() (*JobsCLI, error)
}

// DefaultOptions wires commands to the environment configuration.
func DefaultOptions() Options {
	return Options{
		Out: os.Stdout,
		OpenStats: func(ctx context.Context) (jobs.StatsComputer, func(), error) {
			cfg, err := app.LoadConfig()
			if err != nil {
				return nil, nil, err
			}
			logger := app.NewLogger(cfg)
			redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
			if err != nil {
				return nil, nil, err
			}
			backend, err := app.NewBackend(ctx, cfg, redisClient, nil, logger)
			if err != nil {
				_ = redisClient.Close()
				return nil, nil, err
			}
			return backend.Service, func() {
				backend.Close()
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}, nil
		},
		OpenJobs: func() (*JobsCLI, error) {
			cfg, err := app.LoadConfig()
			if err != nil {
				return nil, err
			}
			return NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}), nil
		},
	}
}

// NewRootCommand builds the invoicectl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	root := &cobra.Command{
		Use:          "invoicectl",
		Short:        "Operate the invoice insights service",
		SilenceUsage: true,
	}
	root.SetOut(opts.Out)
	root.AddCommand(newStatsCommand(opts), newJobsCommand(opts))
	return root
}

func newStatsCommand(opts Options) *cobra.Command {
	var from, to, format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute invoice stats for a date range",
		Example: `  invoicectl stats --from 2024-03-01 --to 2024-03-31
  invoicectl stats --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "json" && format != "csv" {
				return fmt.Errorf("unsupported format %q", format)
			}
			rng, err := parseRange(from, to)
			if err != nil {
				return err
			}
			if opts.OpenStats == nil {
				return fmt.Errorf("stats source not configured")
			}
			svc, closeFn, err := opts.OpenStats(cmd.Context())
			if err != nil {
				return err
			}
			if closeFn != nil {
				defer closeFn()
			}
			summary, err := svc.Stats(cmd.Context(), rng)
			if err != nil {
				return fmt.Errorf("compute stats: %w", err)
			}
			if format == "csv" {
				return export.WriteStatsCSV(cmd.OutOrStdout(), summary)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first issued date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last issued date, YYYY-MM-DD")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or csv")
	return cmd
}

func newJobsCommand(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	open := func() (*JobsCLI, error) {
		if opts.OpenJobs == nil {
			return nil, fmt.Errorf("jobs queue not configured")
		}
		return opts.OpenJobs()
	}

	trigger := &cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a job with its default payload",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskStatsWarmup, jobs.TaskCacheBump},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			info, err := c.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Print default queue statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			stats, err := c.InspectQueue()
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		},
	}

	cmd.AddCommand(trigger, inspect)
	return cmd
}

func parseRange(from, to string) (*invoices.DateRange, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("--from and --to must be given together")
	}
	start, err := invoices.ParseCivilDate(from)
	if err != nil {
		return nil, err
	}
	end, err := invoices.ParseCivilDate(to)
	if err != nil {
		return nil, err
	}
	rng := invoices.NewDateRange(start, end)
	if !rng.Ordered() {
		return nil, fmt.Errorf("--from %s is after --to %s", from, to)
	}
	return rng, nil
}
