// Package pipeline wires fetch, export and mail into one run per saved
// search. All state lives for the duration of a run; nothing is persisted
// except the optional run-history row.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/david/samdaily/internal/db"
	"github.com/david/samdaily/internal/export"
	"github.com/david/samdaily/internal/mail"
	"github.com/david/samdaily/internal/sam"
)

// Fetcher issues one search request. *sam.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, q sam.Query, keyword string) ([]sam.Notice, error)
}

// RunStats summarizes one saved-search run.
type RunStats struct {
	SearchID       string        `json:"search_id"`
	ItemsFound     int           `json:"items_found"`   // rows before dedup
	ItemsDeduped   int           `json:"items_deduped"` // unique notice IDs
	KeywordsFailed int           `json:"keywords_failed"`
	EmailSent      bool          `json:"email_sent"`
	Duration       time.Duration `json:"duration"`
}

// Runner executes saved searches. Store may be nil; run history is then
// skipped.
type Runner struct {
	Fetcher    Fetcher
	Mailer     mail.Mailer
	Store      *db.Store
	Registry   *Registry
	From       string
	Recipients []string
	Format     string // "csv" or "xlsx"

	// Now is swappable for deterministic filenames in tests.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// RunAll executes every registered search sequentially. A failed search is
// recorded and does not stop the others; the aggregate error reports how
// many failed.
func (r *Runner) RunAll(ctx context.Context) (map[string]RunStats, error) {
	results := make(map[string]RunStats, len(r.Registry.Searches))
	failed := 0

	for _, search := range r.Registry.Searches {
		stats, err := r.RunSearch(ctx, search.ID)
		results[search.ID] = stats
		if err != nil {
			failed++
			slog.Error("search run failed",
				slog.String("search", search.ID), slog.Any("error", err))
		}
	}

	if failed > 0 {
		return results, fmt.Errorf("%d of %d searches failed", failed, len(r.Registry.Searches))
	}
	return results, nil
}

// RunSearch executes one saved search: fetch, dedupe, export, email.
// Named returns: the deferred bookkeeping below writes the final duration
// and run record into the values the caller actually receives.
func (r *Runner) RunSearch(ctx context.Context, searchID string) (stats RunStats, err error) {
	start := r.now()
	stats.SearchID = searchID

	search, err := r.Registry.Find(searchID)
	if err != nil {
		return stats, err
	}

	runID := uuid.New()
	if r.Store != nil {
		if err := r.Store.StartRun(ctx, runID, searchID); err != nil {
			slog.Warn("failed to record run start", slog.Any("error", err))
		}
	}

	defer func() {
		stats.Duration = r.now().Sub(start)
		if r.Store == nil {
			return
		}
		record := db.ReportRun{
			RunID:          runID,
			SearchID:       searchID,
			Status:         "completed",
			ItemsFound:     stats.ItemsFound,
			ItemsDeduped:   stats.ItemsDeduped,
			KeywordsFailed: stats.KeywordsFailed,
			EmailSent:      stats.EmailSent,
		}
		if err != nil {
			record.Status = "failed"
			record.Error = err.Error()
		}
		if storeErr := r.Store.FinishRun(ctx, record); storeErr != nil {
			slog.Warn("failed to record run completion", slog.Any("error", storeErr))
		}
	}()

	results, err := r.fetch(ctx, search, &stats)
	if err != nil {
		return stats, err
	}
	stats.ItemsDeduped = len(results)

	msg, err := r.buildMessage(search, results)
	if err != nil {
		return stats, err
	}

	if err = r.Mailer.Send(ctx, msg); err != nil {
		return stats, err
	}
	stats.EmailSent = true

	slog.Info("search run complete",
		slog.String("search", searchID),
		slog.Int("found", stats.ItemsFound),
		slog.Int("unique", stats.ItemsDeduped),
		slog.Int("keywords_failed", stats.KeywordsFailed))
	return stats, nil
}

// Preview fetches and merges a search without mailing or recording
// anything. Used by the dry-run tool.
func (r *Runner) Preview(ctx context.Context, searchID string) (sam.ResultSet, RunStats, error) {
	stats := RunStats{SearchID: searchID}
	search, err := r.Registry.Find(searchID)
	if err != nil {
		return nil, stats, err
	}
	results, err := r.fetch(ctx, search, &stats)
	if err != nil {
		return nil, stats, err
	}
	stats.ItemsDeduped = len(results)
	return results, stats, nil
}

// fetch collects the deduplicated result set per the search's mode.
func (r *Runner) fetch(ctx context.Context, search *SavedSearch, stats *RunStats) (sam.ResultSet, error) {
	query := r.buildQuery(search)
	results := make(sam.ResultSet)

	if search.Mode == ModeComposite {
		notices, err := r.Fetcher.Fetch(ctx, query, "")
		if err != nil {
			return nil, fmt.Errorf("composite query for %q: %w", search.ID, err)
		}
		stats.ItemsFound = len(notices)
		results.Merge(notices)
		return results, nil
	}

	// Per-keyword mode: a broken keyword is skipped so the rest of the
	// report still goes out. Merge order is keyword order, so on duplicate
	// IDs the last keyword's copy wins.
	for _, keyword := range search.Keywords {
		notices, err := r.Fetcher.Fetch(ctx, query, keyword)
		if err != nil {
			stats.KeywordsFailed++
			slog.Warn("keyword fetch failed, skipping",
				slog.String("search", search.ID),
				slog.String("keyword", keyword),
				slog.Any("error", err))
			continue
		}
		stats.ItemsFound += len(notices)
		results.Merge(notices)
	}

	// Every keyword down means the endpoint is broken, not a zero-match
	// day; emailing a placeholder CSV here would be misleading.
	if stats.KeywordsFailed == len(search.Keywords) {
		return nil, &sam.FetchError{
			Err: errors.New("all keywords failed: " + search.ID),
		}
	}
	return results, nil
}

func (r *Runner) buildQuery(search *SavedSearch) sam.Query {
	today := r.now()
	q := sam.Query{
		Expression:    search.Expression,
		SavedSearchID: search.SavedSearchID,
	}
	if search.PostedWindowDays > 0 {
		q.PostedFrom = today
		q.PostedTo = today.AddDate(0, 0, search.PostedWindowDays)
	}
	if search.DeadlineWindowDays > 0 {
		q.DeadlineFrom = today
		q.DeadlineTo = today.AddDate(0, 0, search.DeadlineWindowDays)
	}
	return q
}

func (r *Runner) buildMessage(search *SavedSearch, results sam.ResultSet) (mail.Message, error) {
	today := r.now()

	var content []byte
	var ext, mimeType string
	var err error
	switch r.Format {
	case "xlsx":
		content, err = export.WriteXLSX(export.Rows(results))
		ext = "xlsx"
		mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		content, err = export.WriteCSV(results)
		ext = "csv"
		mimeType = "text/csv"
	}
	if err != nil {
		return mail.Message{}, fmt.Errorf("exporting results for %q: %w", search.ID, err)
	}

	recipients := r.Recipients
	if len(search.Recipients) > 0 {
		recipients = search.Recipients
	}

	keywords := search.Keywords
	if search.Mode == ModeComposite {
		keywords = []string{search.Expression}
	}

	return mail.Message{
		From:    r.From,
		To:      recipients,
		Subject: fmt.Sprintf("SAM daily %s %s", search.Name, today.Format("2006-01-02")),
		Body:    export.Summary(search.Name, keywords, results),
		Attachment: mail.Attachment{
			Filename: export.Filename(search.Prefix, ext, today),
			MIMEType: mimeType,
			Content:  content,
		},
	}, nil
}
