// Command leaguectl runs league books and contract batches from the shell.
//
// Usage:
//
//	leaguectl migrate
//	leaguectl books year-start --year 2026
//	leaguectl books week --year 2026 --week 3
//	leaguectl books season --year 2026
//	leaguectl season end --year 2026
//	leaguectl summary --year 2026 --org 4
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/alexfall862/simBaseball-API-sub000/internal/app"
	"github.com/alexfall862/simBaseball-API-sub000/internal/config"
)

// Logs go to stderr so JSON output on stdout stays machine-readable.
var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	_ = godotenv.Load(".env")
	decimal.MarshalJSONWithoutQuotes = true

	root := &cobra.Command{
		Use:           "leaguectl",
		Short:         "League finance and contract batch CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(booksCmd())
	root.AddCommand(seasonCmd())
	root.AddCommand(summaryCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// run loads config, builds the engines and runs fn under a signal-aware
// context.
func run(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --------------------------------------------------------------------------
// migrate
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				if a.Postgres == nil {
					return errors.New("DATABASE_URL is required")
				}
				if err := a.Postgres.Migrate(ctx); err != nil {
					return err
				}
				logger.Info("schema applied")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// books
// --------------------------------------------------------------------------

func booksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Run budget engine phases",
	}
	cmd.AddCommand(booksYearStartCmd())
	cmd.AddCommand(booksWeekCmd())
	cmd.AddCommand(booksYearEndCmd())
	cmd.AddCommand(booksSeasonCmd())
	return cmd
}

func booksYearStartCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "year-start",
		Short: "Post media payouts and signing bonuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				res, err := a.Books.RunYearStart(ctx, year)
				if err != nil {
					return err
				}
				fmt.Println(res.Summary())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "League year")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func booksWeekCmd() *cobra.Command {
	var year, week int
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Post salaries and performance revenue for one week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				res, err := a.Books.RunWeek(ctx, year, week)
				if err != nil {
					return err
				}
				fmt.Println(res.Summary())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "League year")
	cmd.Flags().IntVar(&week, "week", 0, "Week index (1-based)")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("week")
	return cmd
}

func booksYearEndCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "year-end",
		Short: "Post year-end interest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				res, err := a.Books.RunYearEndInterest(ctx, year)
				if err != nil {
					return err
				}
				fmt.Println(res.Summary())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "League year")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func booksSeasonCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "season",
		Short: "Run year start, every week and year-end interest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				start := time.Now()
				res, err := a.Books.RunFullSeason(ctx, year)
				if err != nil {
					return err
				}
				logger.Info("season books finished", "duration", time.Since(start).Round(time.Millisecond))
				fmt.Println(res.Summary())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "League year")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

// --------------------------------------------------------------------------
// season
// --------------------------------------------------------------------------

func seasonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "season",
		Short: "Contract lifecycle batches",
	}
	cmd.AddCommand(seasonEndCmd())
	return cmd
}

func seasonEndCmd() *cobra.Command {
	var year int
	var verbose bool
	cmd := &cobra.Command{
		Use:   "end",
		Short: "Credit service time, advance and resolve expiring contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				res, err := a.Lifecycle.ProcessEndOfSeason(ctx, year)
				if err != nil {
					return err
				}
				if verbose {
					return printJSON(res)
				}
				fmt.Println(res.Summary())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "League year that just ended")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Print every contract resolution as JSON")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

// --------------------------------------------------------------------------
// summary
// --------------------------------------------------------------------------

func summaryCmd() *cobra.Command {
	var year int
	var org int64
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print reconstructed financial summaries as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, a *app.App) error {
				if org != 0 {
					sum, err := a.Summaries.OrgSummary(ctx, org, year)
					if err != nil {
						return err
					}
					return printJSON(sum)
				}
				sum, err := a.Summaries.LeagueSummary(ctx, year)
				if err != nil {
					return err
				}
				return printJSON(sum)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "League year")
	cmd.Flags().Int64Var(&org, "org", 0, "Organization ID (default: every org)")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}
