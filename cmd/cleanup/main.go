// cleanup purges keyword-marked test data for one organization and prints a
// per-table removal summary. Markers like "qa", "sim" or "sample" are matched
// case-insensitively against each table's text fields.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"makerflow/backend/internal/cleanup"
	"makerflow/backend/internal/config"
	"makerflow/backend/internal/db"
	"makerflow/backend/internal/platform/actor"
	"makerflow/backend/internal/registry"
	"makerflow/backend/internal/store"
	"makerflow/backend/internal/telemetry/otel"
)

func main() {
	orgID := flag.Int64("org-id", 0, "Organization ID to clean (required)")
	keywords := flag.String("keywords", "qa,sim,sample", "Comma-separated keywords to purge")
	dryRun := flag.Bool("dry-run", false, "Report what would be removed without changing anything")
	flag.Parse()

	if *orgID == 0 {
		log.Fatal("cleanup: --org-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "makerflow-cleanup", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	runner := store.NewSQLRunner(conn, registry.DefaultAllowList(), cfg.LedgerSource, cfg.LedgerSummaryLimit)
	svc := cleanup.NewService(runner)

	totals := make(map[string]int64)
	for _, keyword := range strings.Split(*keywords, ",") {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		counts, err := svc.PurgeByKeyword(ctx, *orgID, actor.System(), keyword, *dryRun)
		if err != nil {
			log.Fatalf("cleanup: keyword %q: %v", keyword, err)
		}
		for table, n := range counts {
			totals[table] += n
		}
	}

	if *dryRun {
		fmt.Printf("TEST_DATA_CLEANUP (dry run) %s\n", cleanup.Summarize(totals))
		return
	}
	fmt.Printf("TEST_DATA_CLEANUP %s\n", cleanup.Summarize(totals))
}
