// Package consistency cross-checks the menu catalog against the price table
// It never mutates either side
package consistency

import (
	"sort"

	"github.com/xrash/smetrics"

	"menu-cost/decision/catalog"
)

const (
	// DefaultMaxSuggestions caps near-match proposals per missing ingredient
	DefaultMaxSuggestions = 3
	// DefaultCutoff is the minimum Jaro-Winkler similarity for a proposal
	DefaultCutoff = 0.8
)

// FindMissingAndUnused splits the two name sets into ingredients used by
// dishes but absent from the price table, and priced names no dish uses
// Both results are sorted
func FindMissingAndUnused(used, priced []string) (missing, unused []string) {
	usedSet := toSet(used)
	pricedSet := toSet(priced)

	missing = make([]string, 0)
	for name := range usedSet {
		if _, ok := pricedSet[name]; !ok {
			missing = append(missing, name)
		}
	}
	unused = make([]string, 0)
	for name := range pricedSet {
		if _, ok := usedSet[name]; !ok {
			unused = append(unused, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(unused)
	return missing, unused
}

// SuggestSimilar proposes up to limit candidates resembling name, best first
// Candidates scoring below cutoff are dropped; an empty slice means nothing
// came close
func SuggestSimilar(name string, candidates []string, limit int, cutoff float64) []string {
	if limit <= 0 {
		return []string{}
	}

	type scored struct {
		name  string
		score float64
	}
	var matches []scored
	for _, cand := range candidates {
		if cand == name {
			continue
		}
		s := similarity(name, cand)
		if s >= cutoff {
			matches = append(matches, scored{cand, s})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].name < matches[j].name
	})

	out := make([]string, 0, limit)
	for i := 0; i < len(matches) && i < limit; i++ {
		out = append(out, matches[i].name)
	}
	return out
}

func similarity(a, b string) float64 {
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// Options tunes Check
type Options struct {
	MaxSuggestions int
	Cutoff         float64
}

// DefaultOptions returns the checker defaults
func DefaultOptions() Options {
	return Options{MaxSuggestions: DefaultMaxSuggestions, Cutoff: DefaultCutoff}
}

// Check audits the catalog against the price table keys
func Check(c *catalog.Catalog, priceKeys []string, opts Options) *Report {
	missing, unused := FindMissingAndUnused(c.Ingredients(), priceKeys)

	report := &Report{
		Missing: make([]MissingEntry, 0, len(missing)),
		Unused:  unused,
		Catalog: checkCatalog(c),
	}
	for _, name := range missing {
		report.Missing = append(report.Missing, MissingEntry{
			Name:        name,
			Suggestions: SuggestSimilar(name, priceKeys, opts.MaxSuggestions, opts.Cutoff),
		})
	}
	return report
}

// checkCatalog reports course references that do not resolve
func checkCatalog(c *catalog.Catalog) []CatalogIssue {
	issues := make([]CatalogIssue, 0)
	for _, id := range c.CourseIDs() {
		course, _ := c.Course(id)
		for _, dishID := range course.Dishes {
			if _, ok := c.Dish(dishID); !ok {
				issues = append(issues, CatalogIssue{CourseID: id, Kind: IssueUnknownDish, Ref: dishID})
			}
		}
		if !c.HasRule(course.DiscountRule) {
			issues = append(issues, CatalogIssue{CourseID: id, Kind: IssueUnknownRule, Ref: course.DiscountRule})
		}
		for _, addonID := range course.Addons {
			if _, ok := c.Addon(addonID); !ok {
				issues = append(issues, CatalogIssue{CourseID: id, Kind: IssueUnknownAddon, Ref: addonID})
			}
		}
	}
	return issues
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
