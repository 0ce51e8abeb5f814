package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"menu-cost/db/clickhouse"
	"menu-cost/db/pricestore"
	"menu-cost/decision/costing"
	"menu-cost/pkg/diag"
	"menu-cost/pkg/money"
)

type displayMode int

const (
	modeNormal displayMode = iota
	modeVerbose
	modeQuiet
)

const (
	formatTable    = "table"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

func validFormat(f string) bool {
	return f == formatTable || f == formatJSON || f == formatMarkdown
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func quantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func ingredientLine(line costing.IngredientLine) string {
	price := "unknown"
	if line.UnitPrice != nil {
		price = money.Fixed(*line.UnitPrice, 2)
	}
	return fmt.Sprintf("- %s (%s) @%s = %s JPY", line.Name, quantity(line.Quantity), price, money.Fixed(line.Cost, 2))
}

// writeCourseTable prints one course. Quiet omits the dish list, verbose
// expands each dish into its ingredients
func writeCourseTable(w io.Writer, res costing.CourseResult, mode displayMode) {
	course := res.Course
	if course == nil {
		return
	}

	fmt.Fprintf(w, "\n===== %s =====\n", course.CourseID)
	fmt.Fprintf(w, "description: %s\n", course.Description)

	switch mode {
	case modeNormal:
		for _, dish := range course.Dishes {
			fmt.Fprintf(w, "  dish: %s - cost: %s\n", dish.Name, money.Fixed(dish.Total, 2))
		}
	case modeVerbose:
		for _, dish := range course.Dishes {
			fmt.Fprintf(w, "\n  --- dish: %s (cost: %s) ---\n", dish.Name, money.Fixed(dish.Total, 2))
			for _, line := range dish.Ingredients {
				fmt.Fprintf(w, "    %s\n", ingredientLine(line))
			}
		}
	}

	fmt.Fprintln(w, strings.Repeat("-", 20))
	fmt.Fprintf(w, "subtotal: %s\n", money.Fixed(course.Subtotal, 2))
	if course.Discount.Applied {
		fmt.Fprintf(w, "discount (%s): %s\n", course.Discount.Condition, money.Negated(course.Discount.Amount))
	}
	if len(course.Addons) > 0 {
		fmt.Fprintf(w, "food total: %s\n", money.Fixed(course.FoodTotal, 2))
		for _, a := range course.Addons {
			fmt.Fprintf(w, "add-on: %s (%s) %s\n", a.Name, a.ID, money.Fixed(a.Price, 2))
		}
	}
	fmt.Fprintf(w, "total cost: %s\n", money.Fixed(course.GrandTotal, 2))
	fmt.Fprintln(w, strings.Repeat("=", len(course.CourseID)+12))
}

func writeDishTable(w io.Writer, res costing.DishResult, verbose bool) {
	dish := res.Dish
	fmt.Fprintf(w, "\n--- dish '%s' cost ---\n", dish.Name)
	fmt.Fprintf(w, "total cost: %s JPY\n", money.Fixed(dish.Total, 2))
	if verbose {
		fmt.Fprintln(w, "  --- ingredients ---")
		for _, line := range dish.Ingredients {
			fmt.Fprintf(w, "    %s\n", ingredientLine(line))
		}
	}
	fmt.Fprintln(w, strings.Repeat("-", len(dish.Name)+16))
}

func writeCourseMarkdown(w io.Writer, results []costing.CourseResult, verbose bool) {
	fmt.Fprintln(w, "## Course cost report")
	for _, res := range results {
		course := res.Course
		if course == nil {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "### %s\n\n", course.CourseID)
		fmt.Fprintf(w, "%s\n\n", course.Description)
		fmt.Fprintln(w, "| Dish | Cost |")
		fmt.Fprintln(w, "|------|------|")
		for _, dish := range course.Dishes {
			fmt.Fprintf(w, "| %s | %s |\n", dish.Name, money.Fixed(dish.Total, 2))
			if verbose {
				for _, line := range dish.Ingredients {
					fmt.Fprintf(w, "| &nbsp;&nbsp;%s | |\n", ingredientLine(line))
				}
			}
		}
		fmt.Fprintf(w, "| **Subtotal** | %s |\n", money.Fixed(course.Subtotal, 2))
		if course.Discount.Applied {
			fmt.Fprintf(w, "| **Discount** (%s) | %s |\n", course.Discount.Condition, money.Negated(course.Discount.Amount))
		}
		for _, a := range course.Addons {
			fmt.Fprintf(w, "| %s | %s |\n", a.Name, money.Fixed(a.Price, 2))
		}
		fmt.Fprintf(w, "| **Total** | %s |\n", money.Fixed(course.GrandTotal, 2))
	}
}

func writeDishMarkdown(w io.Writer, res costing.DishResult) {
	fmt.Fprintf(w, "## %s\n\n", res.Dish.Name)
	fmt.Fprintln(w, "| Ingredient | Quantity | Unit price | Cost |")
	fmt.Fprintln(w, "|------------|----------|------------|------|")
	for _, line := range res.Dish.Ingredients {
		price := "unknown"
		if line.UnitPrice != nil {
			price = money.Fixed(*line.UnitPrice, 2)
		}
		fmt.Fprintf(w, "| %s | %s | %s | %s |\n", line.Name, quantity(line.Quantity), price, money.Fixed(line.Cost, 2))
	}
	fmt.Fprintf(w, "| **Total** | | | %s |\n", money.Fixed(res.Dish.Total, 2))
}

// writeDiagnostics prints findings; quiet drops informational ones
func writeDiagnostics(w io.Writer, list diag.List, quiet bool) {
	for _, d := range list {
		if quiet && d.Severity == diag.SeverityInfo {
			continue
		}
		fmt.Fprintln(w, d.String())
	}
}

func writePriceTable(w io.Writer, snap pricestore.Snapshot) {
	keys := snap.Keys()
	width := 0
	for _, k := range keys {
		if len(k) > width {
			width = len(k)
		}
	}
	for _, k := range keys {
		p, _ := snap.Price(k)
		fmt.Fprintf(w, "%-*s  %10s\n", width, k, money.Fixed(p, 2))
	}
	fmt.Fprintf(w, "%d ingredients\n", len(keys))
}

func writeHistory(w io.Writer, entries []pricestore.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no price history")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s  %-7s", e.Timestamp.Format(time.RFC3339), e.ID, e.Reason)

		names := make([]string, 0, len(e.ArchivedPrices))
		for name := range e.ArchivedPrices {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, money.Fixed(e.ArchivedPrices[name], 2)))
		}
		if len(parts) > 0 {
			fmt.Fprintf(w, "  archived: %s", strings.Join(parts, ", "))
		}
		if len(e.Introduced) > 0 {
			fmt.Fprintf(w, "  introduced: %s", strings.Join(e.Introduced, ", "))
		}
		fmt.Fprintln(w)
	}
}

// writeIngredientHistory prints mirror rows, newest first
func writeIngredientHistory(w io.Writer, ingredient string, rows []clickhouse.HistoryRow) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "no archived prices for %s\n", ingredient)
		return
	}
	for _, r := range rows {
		price := "-"
		if r.Price != nil {
			price = r.Price.StringFixed(2)
		}
		fmt.Fprintf(w, "%s  %s  %-7s  %s  %s\n", r.RecordedAt.UTC().Format(time.RFC3339), r.EntryID, r.Reason, r.Ingredient, price)
	}
}

func writeBackups(w io.Writer, backups []pricestore.BackupInfo) {
	if len(backups) == 0 {
		fmt.Fprintln(w, "no backups")
		return
	}
	for _, b := range backups {
		fmt.Fprintf(w, "%-40s  %8s  %s\n", b.ID, humanize.Bytes(uint64(b.Size)), humanize.Time(b.ModTime))
	}
}
