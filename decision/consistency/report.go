package consistency

import (
	"fmt"
	"io"
	"strings"
)

// IssueKind classifies a broken catalog reference
type IssueKind string

const (
	IssueUnknownDish  IssueKind = "unknown_dish"
	IssueUnknownRule  IssueKind = "unknown_discount_rule"
	IssueUnknownAddon IssueKind = "unknown_addon"
)

// CatalogIssue is a course reference that does not resolve
type CatalogIssue struct {
	CourseID string    `json:"course_id"`
	Kind     IssueKind `json:"kind"`
	Ref      string    `json:"ref"`
}

// MissingEntry is an ingredient used by a dish that has no price
type MissingEntry struct {
	Name        string   `json:"name"`
	Suggestions []string `json:"suggestions"`
}

// Report is the structured checker output
type Report struct {
	Missing []MissingEntry `json:"missing"`
	Unused  []string       `json:"unused"`
	Catalog []CatalogIssue `json:"catalog_issues"`
}

// Clean reports whether nothing blocks cost computation. Unused prices are
// informational and do not count
func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Catalog) == 0
}

// MissingNames returns the names of the missing ingredients
func (r *Report) MissingNames() []string {
	names := make([]string, 0, len(r.Missing))
	for _, m := range r.Missing {
		names = append(names, m.Name)
	}
	return names
}

// Render writes a human-readable summary
func (r *Report) Render(w io.Writer) error {
	var b strings.Builder

	b.WriteString("--- consistency check ---\n")

	if len(r.Missing) > 0 {
		b.WriteString("[warning] ingredients used by dishes but missing a price:\n")
		for _, m := range r.Missing {
			if len(m.Suggestions) > 0 {
				fmt.Fprintf(&b, "  - %s (did you mean: %s?)\n", m.Name, strings.Join(m.Suggestions, ", "))
			} else {
				fmt.Fprintf(&b, "  - %s\n", m.Name)
			}
		}
		b.WriteString("\nsuggested fix: add these entries to the price file and set real prices\n{\n")
		for i, m := range r.Missing {
			sep := ","
			if i == len(r.Missing)-1 {
				sep = ""
			}
			fmt.Fprintf(&b, "  %q: 0.0%s\n", m.Name, sep)
		}
		b.WriteString("}\n")
	} else {
		b.WriteString("ok: every ingredient has a price\n")
	}

	if len(r.Unused) > 0 {
		fmt.Fprintf(&b, "[info] priced ingredients no dish uses: %s\n", strings.Join(r.Unused, ", "))
	} else {
		b.WriteString("ok: no unused price entries\n")
	}

	for _, issue := range r.Catalog {
		fmt.Fprintf(&b, "[warning] course %s: %s %q\n", issue.CourseID, issue.Kind, issue.Ref)
	}

	if r.Clean() {
		b.WriteString("\nverdict: clean\n")
	} else {
		b.WriteString("\nverdict: issues found\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
