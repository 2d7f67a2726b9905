// Package export renders a result set into the email attachment. The column
// schema is fixed and declared once; it does not depend on which fields the
// API actually populated.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"time"

	"github.com/david/samdaily/internal/sam"
)

// Columns is the attachment schema, in order. Header names keep the API's
// own casing so the attachment matches what recipients see on sam.gov.
var Columns = []string{
	"NoticeId", "Title", "Department", "SubTier", "Type",
	"PostedDate", "ResponseDeadLine", "uiLink",
}

const (
	// PlaceholderID marks the synthetic row emitted on a zero-match day so
	// the attachment is always well-formed and parseable.
	PlaceholderID      = "none"
	placeholderMessage = "No matching opportunities"
)

// Rows flattens the result set into schema-ordered rows, sorted by notice
// ID so repeated runs over the same data produce identical documents. An
// empty set yields exactly one placeholder row.
func Rows(rs sam.ResultSet) [][]string {
	if len(rs) == 0 {
		return [][]string{{PlaceholderID, placeholderMessage, "", "", "", "", "", ""}}
	}

	ids := make([]string, 0, len(rs))
	for id := range rs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		n := rs[id]
		rows = append(rows, []string{
			n.NoticeID, n.Title, n.Department, n.SubTier, n.Type,
			n.PostedDate, n.ResponseDeadline, n.UILink,
		})
	}
	return rows
}

// WriteCSV renders header plus data rows with standard CSV quoting.
func WriteCSV(rs sam.ResultSet) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for _, row := range Rows(rs) {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename builds the attachment name: {prefix}_{YYYYMMDD}.{ext}.
func Filename(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format("20060102"), ext)
}
