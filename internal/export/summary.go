package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/david/samdaily/internal/sam"
)

// Summary builds the plain-text email body: a short digest so the message
// is useful even before the attachment is opened.
func Summary(searchName string, keywords []string, rs sam.ResultSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Daily SAM.gov filter %q (%s)\n", searchName, strings.Join(keywords, " / "))
	if len(rs) == 0 {
		b.WriteString("\nNo matching opportunities today. The attachment holds a single placeholder row.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "\n%d matching opportunities. Full list attached.\n\n", len(rs))

	ids := make([]string, 0, len(rs))
	for id := range rs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	shown := 0
	for _, id := range ids {
		if shown == 10 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(rs)-shown)
			break
		}
		n := rs[id]
		line := n.Title
		if n.ResponseDeadline != "" {
			line += " (due " + n.ResponseDeadline + ")"
		}
		fmt.Fprintf(&b, "  - %s\n", line)
		shown++
	}
	return b.String()
}
