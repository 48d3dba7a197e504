// trialctl drives the trial pipeline from the command line: ingest records
// from the registry and run quality reports, against the same wiring the
// server uses.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"trialstore/internal/platform/config"
	"trialstore/internal/platform/logger"
	"trialstore/internal/quality"
	"trialstore/internal/registry"
	"trialstore/internal/trial/service"
	"trialstore/internal/trial/store"
)

func main() {
	root := &cobra.Command{
		Use:           "trialctl",
		Short:         "Operate the clinical trials store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(ingestCmd(), qualityCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore connects to postgres and ensures the schema once per invocation.
func openStore(ctx context.Context) (*sql.DB, *store.PostgresStore, error) {
	cfg := config.FromEnv()
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, store.NewPostgres(db), nil
}

func ingestCmd() *cobra.Command {
	var (
		query string
		max   int
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Search the registry and persist matching trials",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromEnv()
			log := logger.New()

			db, pg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := service.New(registry.NewClient(cfg.RegistryBaseURL), pg, pg,
				store.NewPostgresTxRunner(db), nil, log, cfg.IngestParallel)
			result, err := svc.SearchAndIngest(ctx, query, max)
			if err != nil {
				return err
			}

			fmt.Printf("ingested %d trials, %d failures\n",
				len(result.Trials), len(result.Failures))
			for _, f := range result.Failures {
				fmt.Printf("  failed %s: %s\n", f.NCTID, f.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "registry search term")
	cmd.Flags().IntVar(&max, "max", 10, "maximum records to ingest (1-100)")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func qualityCmd() *cobra.Command {
	var asText bool
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Run the quality checks and print the scored report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.New()

			db, pg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := quality.NewService(quality.NewEngine(pg, log), nil, nil, log)
			report, err := svc.Report(ctx, true)
			if err != nil {
				return err
			}

			if asText {
				fmt.Print(quality.RenderText(report))
				return nil
			}
			fmt.Printf("overall %.2f (%s), %d trials, %d issues\n",
				report.OverallScore, report.QualityLevel,
				report.TotalTrials, report.TotalIssues)
			for _, issue := range report.Issues {
				fmt.Println(" -", issue)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asText, "text", false, "print the full text report")
	return cmd
}
