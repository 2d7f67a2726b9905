// Dry run: fetch one saved search and print the merged result set as a
// table. No email is sent.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/samdaily/internal/config"
	"github.com/david/samdaily/internal/logging"
	"github.com/david/samdaily/internal/pipeline"
	"github.com/david/samdaily/internal/sam"
)

func main() {
	searchID := flag.String("search", "voice-daily", "saved search id to preview")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if cfg.SAMAPIKey == "" {
		slog.Error("sam_api_key is required")
		os.Exit(1)
	}

	registry, err := pipeline.LoadRegistry(cfg.SearchesFile)
	if err != nil {
		slog.Error("failed to load searches", slog.Any("error", err))
		os.Exit(1)
	}
	search, err := registry.Find(*searchID)
	if err != nil {
		slog.Error("unknown search", slog.Any("error", err))
		os.Exit(1)
	}

	contract, err := sam.ContractFor(cfg.APIVersion)
	if err != nil {
		slog.Error("bad api version", slog.Any("error", err))
		os.Exit(1)
	}
	client := sam.NewClient(contract, cfg.SAMAPIKey,
		sam.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		sam.WithMaxRetries(cfg.MaxRetries),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	runner := &pipeline.Runner{Fetcher: client, Registry: registry}
	results, stats, err := runner.Preview(ctx, search.ID)
	if err != nil {
		slog.Error("preview fetch failed", slog.Any("error", err))
		os.Exit(1)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"NoticeId", "Title", "Department", "Type", "Posted", "Deadline"})

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := results[id]
		t.AppendRow(table.Row{n.NoticeID, truncateTitle(n.Title, 60), n.Department, n.Type, n.PostedDate, n.ResponseDeadline})
	}
	t.Render()

	slog.Info("preview complete",
		slog.String("search", search.ID),
		slog.Int("found", stats.ItemsFound),
		slog.Int("unique", stats.ItemsDeduped),
		slog.Int("keywords_failed", stats.KeywordsFailed))
}

// truncateTitle cuts on rune boundaries so multi-byte titles never render
// as a broken sequence in the table.
func truncateTitle(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
