package sam

import "testing"

func TestMergeDeduplicatesByNoticeID(t *testing.T) {
	rs := make(ResultSet)
	rs.Merge([]Notice{
		{NoticeID: "n1", Title: "First version"},
		{NoticeID: "n2", Title: "Other"},
	})
	rs.Merge([]Notice{
		{NoticeID: "n1", Title: "Second version"},
	})

	if len(rs) != 2 {
		t.Fatalf("expected 2 unique notices, got %d", len(rs))
	}
	if rs["n1"].Title != "Second version" {
		t.Errorf("duplicate ID must resolve last-write-wins, got %q", rs["n1"].Title)
	}
}

func TestMergeDropsRecordsWithoutID(t *testing.T) {
	rs := make(ResultSet)
	rs.Merge([]Notice{
		{Title: "anonymous"},
		{NoticeID: "n1", Title: "keeper"},
	})

	if len(rs) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(rs))
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Voice services RFP", "Voice services RFP"},
		{"tags stripped", "<b>Voice</b> services", "Voice services"},
		{"entities decoded", "R&amp;D support", "R&D support"},
		{"whitespace collapsed", "  Voice \n services ", "Voice services"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
