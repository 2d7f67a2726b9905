package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/david/samdaily/internal/sam"
)

func sampleSet() sam.ResultSet {
	return sam.ResultSet{
		"n1": {
			NoticeID:         "n1",
			Title:            "Voice services",
			Department:       "DOD",
			SubTier:          "Army",
			Type:             "Solicitation",
			PostedDate:       "07/01/2025",
			ResponseDeadline: "08/15/2025",
			UILink:           "https://sam.gov/opp/n1/view",
		},
		"n2": {
			NoticeID: "n2",
			Title:    "VoIP, upgrade \"phase 2\"",
		},
	}
}

func parseCSV(t *testing.T, doc []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(doc)).ReadAll()
	if err != nil {
		t.Fatalf("produced CSV must parse back: %v", err)
	}
	return records
}

func TestWriteCSVLineCount(t *testing.T) {
	doc, err := WriteCSV(sampleSet())
	if err != nil {
		t.Fatal(err)
	}
	records := parseCSV(t, doc)
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(records))
	}
}

func TestWriteCSVEmptySetGetsPlaceholder(t *testing.T) {
	doc, err := WriteCSV(sam.ResultSet{})
	if err != nil {
		t.Fatal(err)
	}
	records := parseCSV(t, doc)
	if len(records) != 2 {
		t.Fatalf("empty set must produce header + 1 placeholder, got %d lines", len(records))
	}
	row := records[1]
	if row[0] != PlaceholderID {
		t.Errorf("placeholder identifier = %q, want %q", row[0], PlaceholderID)
	}
	if row[1] == "" {
		t.Error("placeholder must carry a human-readable message in the title column")
	}
	if len(row) != len(Columns) {
		t.Errorf("placeholder row has %d cells, want %d", len(row), len(Columns))
	}
}

func TestWriteCSVMissingFieldsAreEmptyCells(t *testing.T) {
	doc, err := WriteCSV(sampleSet())
	if err != nil {
		t.Fatal(err)
	}
	records := parseCSV(t, doc)

	// n1 sorts before n2.
	n2 := records[2]
	if len(n2) != len(Columns) {
		t.Fatalf("row has %d cells, want %d (columns are never omitted)", len(n2), len(Columns))
	}
	for i, cell := range n2[2:] {
		if cell != "" {
			t.Errorf("unpopulated column %q = %q, want empty", Columns[i+2], cell)
		}
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	set := sampleSet()
	doc, err := WriteCSV(set)
	if err != nil {
		t.Fatal(err)
	}
	records := parseCSV(t, doc)

	if got, want := records[0], Columns; strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("header = %v, want %v", got, want)
	}

	n1 := records[1]
	want := []string{"n1", "Voice services", "DOD", "Army", "Solicitation", "07/01/2025", "08/15/2025", "https://sam.gov/opp/n1/view"}
	for i := range want {
		if n1[i] != want[i] {
			t.Errorf("cell %s = %q, want %q", Columns[i], n1[i], want[i])
		}
	}

	// Quoted field with comma and quotes survives.
	if records[2][1] != `VoIP, upgrade "phase 2"` {
		t.Errorf("quoted title mangled: %q", records[2][1])
	}
}

func TestRowsAreDeterministic(t *testing.T) {
	set := sampleSet()
	a := Rows(set)
	b := Rows(set)
	for i := range a {
		if strings.Join(a[i], "|") != strings.Join(b[i], "|") {
			t.Fatalf("row order not deterministic at %d", i)
		}
	}
	if a[0][0] != "n1" || a[1][0] != "n2" {
		t.Errorf("rows must sort by notice ID, got %q then %q", a[0][0], a[1][0])
	}
}

func TestFilename(t *testing.T) {
	day := time.Date(2025, 8, 25, 10, 30, 0, 0, time.UTC)
	if got := Filename("sam_voice_filter", "csv", day); got != "sam_voice_filter_20250825.csv" {
		t.Errorf("Filename = %q", got)
	}
	if got := Filename("daily", "xlsx", day); got != "daily_20250825.xlsx" {
		t.Errorf("Filename = %q", got)
	}
}
