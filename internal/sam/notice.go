package sam

// Notice is one contract opportunity as returned by the SAM.gov search API.
// Fields the response did not populate stay empty strings.
type Notice struct {
	NoticeID         string
	Title            string
	Department       string
	SubTier          string
	Type             string
	PostedDate       string
	ResponseDeadline string
	UILink           string
}

// ResultSet maps notice ID to notice. Keys are unique; that is the
// deduplication invariant the exporter relies on.
type ResultSet map[string]Notice

// Merge folds notices into the set, last write wins on duplicate IDs.
// Notices without an ID are dropped (they cannot be deduplicated).
func (rs ResultSet) Merge(notices []Notice) {
	for _, n := range notices {
		if n.NoticeID == "" {
			continue
		}
		rs[n.NoticeID] = n
	}
}
