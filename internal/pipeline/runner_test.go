package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/david/samdaily/internal/mail"
	"github.com/david/samdaily/internal/sam"
)

// fakeFetcher returns canned notices (or an error) per keyword. The empty
// keyword key serves composite queries.
type fakeFetcher struct {
	byKeyword map[string][]sam.Notice
	errors    map[string]error
	calls     []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, q sam.Query, keyword string) ([]sam.Notice, error) {
	f.calls = append(f.calls, keyword)
	if err, ok := f.errors[keyword]; ok {
		return nil, err
	}
	return f.byKeyword[keyword], nil
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, 8, 25, 6, 0, 0, 0, time.UTC)
}

func testRunner(fetcher Fetcher, mailer mail.Mailer, searches ...SavedSearch) *Runner {
	return &Runner{
		Fetcher:    fetcher,
		Mailer:     mailer,
		Registry:   &Registry{Searches: searches},
		From:       "reports@example.com",
		Recipients: []string{"team@example.com"},
		Format:     "csv",
		Now:        fixedNow,
	}
}

func perKeywordSearch(keywords ...string) SavedSearch {
	return SavedSearch{
		ID:                 "test",
		Name:               "Test filter",
		Prefix:             "sam_test",
		Mode:               ModePerKeyword,
		Keywords:           keywords,
		PostedWindowDays:   90,
		DeadlineWindowDays: 90,
	}
}

func attachmentLines(t *testing.T, msg mail.Message) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(msg.Attachment.Content)).ReadAll()
	if err != nil {
		t.Fatalf("attachment must be valid CSV: %v", err)
	}
	return records
}

func TestRunSearchTwoKeywordsDistinctIDs(t *testing.T) {
	fetcher := &fakeFetcher{byKeyword: map[string][]sam.Notice{
		"voice": {{NoticeID: "n1", Title: "Voice"}},
		"voip":  {{NoticeID: "n2", Title: "VoIP"}},
	}}
	mailer := &fakeMailer{}
	r := testRunner(fetcher, mailer, perKeywordSearch("voice", "voip"))

	stats, err := r.RunSearch(context.Background(), "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ItemsDeduped != 2 {
		t.Errorf("unique = %d, want 2", stats.ItemsDeduped)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected exactly one email, got %d", len(mailer.sent))
	}
	if lines := attachmentLines(t, mailer.sent[0]); len(lines) != 3 {
		t.Errorf("attachment has %d lines, want 3 (header + 2 rows)", len(lines))
	}
}

func TestRunSearchDuplicateIDLastKeywordWins(t *testing.T) {
	fetcher := &fakeFetcher{byKeyword: map[string][]sam.Notice{
		"voice": {{NoticeID: "n1", Title: "From voice"}},
		"voip":  {{NoticeID: "n1", Title: "From voip"}},
	}}
	mailer := &fakeMailer{}
	r := testRunner(fetcher, mailer, perKeywordSearch("voice", "voip"))

	stats, err := r.RunSearch(context.Background(), "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ItemsFound != 2 || stats.ItemsDeduped != 1 {
		t.Errorf("found/unique = %d/%d, want 2/1", stats.ItemsFound, stats.ItemsDeduped)
	}

	lines := attachmentLines(t, mailer.sent[0])
	if len(lines) != 2 {
		t.Fatalf("attachment has %d lines, want 2", len(lines))
	}
	if lines[1][1] != "From voip" {
		t.Errorf("merged title = %q, want the last keyword's version", lines[1][1])
	}
}

func TestRunSearchSkipsFailedKeyword(t *testing.T) {
	fetcher := &fakeFetcher{
		byKeyword: map[string][]sam.Notice{
			"voip": {{NoticeID: "n2", Title: "Survivor"}},
		},
		errors: map[string]error{
			"voice": &sam.FetchError{StatusCode: 500, Err: errors.New("boom")},
		},
	}
	mailer := &fakeMailer{}
	r := testRunner(fetcher, mailer, perKeywordSearch("voice", "voip"))

	stats, err := r.RunSearch(context.Background(), "test")
	if err != nil {
		t.Fatalf("one bad keyword must not fail the run: %v", err)
	}
	if stats.KeywordsFailed != 1 {
		t.Errorf("keywords_failed = %d, want 1", stats.KeywordsFailed)
	}
	if !stats.EmailSent {
		t.Error("email must still go out")
	}

	lines := attachmentLines(t, mailer.sent[0])
	if len(lines) != 2 || lines[1][0] != "n2" {
		t.Errorf("surviving keyword's records must appear, got %v", lines)
	}
}

func TestRunSearchAllKeywordsFailedAborts(t *testing.T) {
	fetcher := &fakeFetcher{errors: map[string]error{
		"voice": errors.New("down"),
		"voip":  errors.New("down"),
	}}
	mailer := &fakeMailer{}
	r := testRunner(fetcher, mailer, perKeywordSearch("voice", "voip"))

	_, err := r.RunSearch(context.Background(), "test")
	var fetchErr *sam.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *sam.FetchError when every keyword fails, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Error("no email on a fully failed fetch; that is not a zero-match day")
	}
}

func TestRunSearchCompositeFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{errors: map[string]error{
		"": &sam.FetchError{StatusCode: 502, Err: errors.New("bad gateway")},
	}}
	mailer := &fakeMailer{}
	r := testRunner(fetcher, mailer, SavedSearch{
		ID:         "comp",
		Name:       "Composite",
		Prefix:     "sam_comp",
		Mode:       ModeComposite,
		Expression: "(voice OR voip)",
	})

	_, err := r.RunSearch(context.Background(), "comp")
	if err == nil {
		t.Fatal("composite-query failure must abort the run")
	}
	if len(mailer.sent) != 0 {
		t.Error("no email after an aborted composite fetch")
	}
}

func TestRunSearchEmptyDaySendsPlaceholder(t *testing.T) {
	fetcher := &fakeFetcher{byKeyword: map[string][]sam.Notice{}}
	mailer := &fakeMailer{}
	r := testRunner(fetcher, mailer, perKeywordSearch("voice"))

	stats, err := r.RunSearch(context.Background(), "test")
	if err != nil {
		t.Fatalf("a zero-match day is a successful run: %v", err)
	}
	if !stats.EmailSent {
		t.Fatal("placeholder email must be sent")
	}

	lines := attachmentLines(t, mailer.sent[0])
	if len(lines) != 2 {
		t.Fatalf("placeholder attachment has %d lines, want 2", len(lines))
	}
	if lines[1][0] != "none" {
		t.Errorf("placeholder identifier = %q, want none", lines[1][0])
	}
}

func TestRunSearchFilenameAndRecipients(t *testing.T) {
	fetcher := &fakeFetcher{byKeyword: map[string][]sam.Notice{
		"voice": {{NoticeID: "n1"}},
	}}
	mailer := &fakeMailer{}
	search := perKeywordSearch("voice")
	search.Recipients = []string{"override@example.com"}
	r := testRunner(fetcher, mailer, search)

	if _, err := r.RunSearch(context.Background(), "test"); err != nil {
		t.Fatal(err)
	}

	msg := mailer.sent[0]
	if msg.Attachment.Filename != "sam_test_20250825.csv" {
		t.Errorf("filename = %q", msg.Attachment.Filename)
	}
	if len(msg.To) != 1 || msg.To[0] != "override@example.com" {
		t.Errorf("per-search recipients must override global ones, got %v", msg.To)
	}
	if msg.Attachment.MIMEType != "text/csv" {
		t.Errorf("mime type = %q", msg.Attachment.MIMEType)
	}
}

func TestRunSearchReportsDuration(t *testing.T) {
	fetcher := &fakeFetcher{byKeyword: map[string][]sam.Notice{
		"voice": {{NoticeID: "n1"}},
	}}
	mailer := &fakeMailer{}
	r := testRunner(fetcher, mailer, perKeywordSearch("voice"))

	// Clock advances one second per reading, so the run must observe a
	// positive elapsed time in the stats it hands back.
	tick := 0
	r.Now = func() time.Time {
		tick++
		return fixedNow().Add(time.Duration(tick) * time.Second)
	}

	stats, err := r.RunSearch(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0 (returned stats must include the final timing)", stats.Duration)
	}
}

func TestRunSearchSendErrorSurfaces(t *testing.T) {
	fetcher := &fakeFetcher{byKeyword: map[string][]sam.Notice{
		"voice": {{NoticeID: "n1"}},
	}}
	mailer := &fakeMailer{err: &mail.SendError{Transport: "smtp", Err: errors.New("auth rejected")}}
	r := testRunner(fetcher, mailer, perKeywordSearch("voice"))

	stats, err := r.RunSearch(context.Background(), "test")
	var sendErr *mail.SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected *mail.SendError, got %v", err)
	}
	if stats.EmailSent {
		t.Error("stats must not report a sent email")
	}
}

func TestRunAllContinuesPastFailedSearch(t *testing.T) {
	fetcher := &fakeFetcher{
		byKeyword: map[string][]sam.Notice{
			"voip": {{NoticeID: "n2"}},
		},
		errors: map[string]error{"": errors.New("endpoint down")},
	}
	mailer := &fakeMailer{}

	bad := SavedSearch{ID: "bad", Name: "Bad", Prefix: "bad", Mode: ModeComposite, Expression: "(x)"}
	good := perKeywordSearch("voip")
	good.ID = "good"

	r := testRunner(fetcher, mailer, bad, good)

	results, err := r.RunAll(context.Background())
	if err == nil {
		t.Fatal("aggregate error expected when a search fails")
	}
	if len(results) != 2 {
		t.Fatalf("expected stats for both searches, got %d", len(results))
	}
	if !results["good"].EmailSent {
		t.Error("the healthy search must still send its email")
	}
}
