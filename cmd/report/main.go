// Package main renders a session report from persisted copy trading data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/reporting"
	"solana-copy-trader/internal/stats"
	"solana-copy-trader/internal/storage/migrations"
	pgstore "solana-copy-trader/internal/storage/postgres"
)

// foldLimit bounds how many stored results the lifetime summary reads.
const foldLimit = 10_000

func main() {
	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")
	startFlag := flag.String("start", "", "Window start (RFC3339), default 24h ago")
	endFlag := flag.String("end", "", "Window end (RFC3339), default now")
	outputDir := flag.String("output-dir", "", "Output directory, overrides report.output_dir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Driver != "postgres" {
		fmt.Fprintln(os.Stderr, "Error: reports need the postgres storage driver; the memory driver keeps nothing between runs")
		os.Exit(1)
	}

	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)
	if *startFlag != "" {
		if start, err = time.Parse(time.RFC3339, *startFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -start: %v\n", err)
			os.Exit(1)
		}
	}
	if *endFlag != "" {
		if end, err = time.Parse(time.RFC3339, *endFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -end: %v\n", err)
			os.Exit(1)
		}
	}

	dir := cfg.Report.OutputDir
	if *outputDir != "" {
		dir = *outputDir
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Storage.RunMigrations {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			fmt.Fprintf(os.Stderr, "Error running migrations: %v\n", err)
			os.Exit(1)
		}
	}

	intents := pgstore.NewIntentStore(pool)
	orders := pgstore.NewOrderStore(pool)
	results := pgstore.NewResultStore(pool)

	gen := reporting.NewGenerator(intents, orders, results, cfg.Source.Account)

	report, err := gen.Generate(ctx, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := reporting.WriteFiles(report, dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Report for %s to %s:\n", start.Format(time.RFC3339), end.Format(time.RFC3339))
	fmt.Printf("  Trades: %d (%d confirmed, %d failed, %d timed out)\n",
		len(report.Trades), report.Stats.Successes, report.Stats.Failures, report.Stats.Timeouts)

	lifetime, err := stats.Fold(ctx, results, intents, orders, foldLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error folding lifetime stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Lifetime: %d executed, avg latency %.0f ms, %d within budget\n",
		lifetime.Attempts, lifetime.AvgLatencyMs, lifetime.WithinBudget)

	fmt.Printf("  - %s/report.md\n", dir)
	fmt.Printf("  - %s/trades.csv\n", dir)
}
