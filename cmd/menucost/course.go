package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"menu-cost/decision/consistency"
	"menu-cost/decision/costing"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   formatTable,
		Usage:   "Output format (table, json, markdown)",
	}
}

// =============================================================================
// COURSE COMMAND
// =============================================================================

func courseCommand() *cli.Command {
	return &cli.Command{
		Name:      "course",
		Usage:     "Compute course costs (every course when no id is given)",
		ArgsUsage: "[course-id...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "addon",
				Aliases: []string{"a"},
				Usage:   "Add-on id to include (repeatable)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show ingredient details per dish",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Show totals only",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Refuse to compute when ingredients are missing a price",
			},
			formatFlag(),
		},
		Action: runCourse,
	}
}

func runCourse(c *cli.Context) error {
	if c.Bool("verbose") && c.Bool("quiet") {
		return cli.Exit("--verbose and --quiet are mutually exclusive", 2)
	}
	format := c.String("format")
	if !validFormat(format) {
		return cli.Exit(fmt.Sprintf("unknown format %q", format), 2)
	}
	mode := modeNormal
	if c.Bool("verbose") {
		mode = modeVerbose
	} else if c.Bool("quiet") {
		mode = modeQuiet
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	out, errOut := c.App.Writer, c.App.ErrWriter
	prices := rt.store.Prices()
	writeDiagnostics(errOut, rt.store.Diagnostics(), mode == modeQuiet)

	if c.Bool("strict") {
		report := consistency.Check(rt.catalog, prices.Keys(), consistency.DefaultOptions())
		if len(report.Missing) > 0 {
			if err := report.Render(errOut); err != nil {
				rt.log.Warn().Err(err).Msg("failed to render consistency report")
			}
			return cli.Exit(fmt.Sprintf("refusing to compute: no price for %s",
				strings.Join(report.MissingNames(), ", ")), 1)
		}
	}

	ids := c.Args().Slice()
	if len(ids) == 0 {
		ids = rt.catalog.CourseIDs()
		if format == formatTable {
			fmt.Fprintln(out, "=== cost summary for every course ===")
		}
	}

	addons := c.StringSlice("addon")
	results := make([]costing.CourseResult, 0, len(ids))
	var unknown []string
	for _, id := range ids {
		res := rt.engine.CourseCost(id, prices, addons...)
		if !res.Found {
			unknown = append(unknown, id)
			continue
		}
		results = append(results, res)
		writeDiagnostics(errOut, res.Diagnostics, mode == modeQuiet)
	}

	switch format {
	case formatJSON:
		if len(c.Args().Slice()) == 1 && len(results) == 1 {
			err = writeJSON(out, results[0])
		} else {
			err = writeJSON(out, results)
		}
		if err != nil {
			return err
		}
	case formatMarkdown:
		writeCourseMarkdown(out, results, mode == modeVerbose)
	default:
		for _, res := range results {
			writeCourseTable(out, res, mode)
		}
	}

	if len(unknown) > 0 {
		for _, id := range unknown {
			fmt.Fprintf(errOut, "error: course %q not found\n", id)
		}
		fmt.Fprintf(errOut, "available courses: %s\n", strings.Join(rt.catalog.CourseIDs(), ", "))
		return cli.Exit("", 1)
	}
	return nil
}

// =============================================================================
// DISH COMMAND
// =============================================================================

func dishCommand() *cli.Command {
	return &cli.Command{
		Name:      "dish",
		Usage:     "Compute the cost of a single dish",
		ArgsUsage: "<dish-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show ingredient details",
			},
			formatFlag(),
		},
		Action: runDish,
	}
}

func runDish(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one dish id", 2)
	}
	format := c.String("format")
	if !validFormat(format) {
		return cli.Exit(fmt.Sprintf("unknown format %q", format), 2)
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	out, errOut := c.App.Writer, c.App.ErrWriter
	id := c.Args().First()
	writeDiagnostics(errOut, rt.store.Diagnostics(), false)

	res := rt.engine.DishCost(id, rt.store.Prices())
	if !res.Found {
		fmt.Fprintf(errOut, "error: dish %q not found\n", id)
		fmt.Fprintf(errOut, "available dishes: %s\n", strings.Join(rt.catalog.DishIDs(), ", "))
		return cli.Exit("", 1)
	}
	writeDiagnostics(errOut, res.Diagnostics, false)

	switch format {
	case formatJSON:
		return writeJSON(out, res)
	case formatMarkdown:
		writeDishMarkdown(out, res)
	default:
		writeDishTable(out, res, c.Bool("verbose"))
	}
	return nil
}

// =============================================================================
// CHECK COMMAND
// =============================================================================

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Cross-check the catalog against the price file",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "suggestions",
				Value: consistency.DefaultMaxSuggestions,
				Usage: "Maximum near-match suggestions per missing ingredient",
			},
			&cli.Float64Flag{
				Name:  "cutoff",
				Value: consistency.DefaultCutoff,
				Usage: "Minimum similarity (0-1) for a suggestion",
			},
			formatFlag(),
		},
		Action: runCheck,
	}
}

func runCheck(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := c.App.Writer
	writeDiagnostics(c.App.ErrWriter, rt.store.Diagnostics(), false)
	report := consistency.Check(rt.catalog, rt.store.Prices().Keys(), consistency.Options{
		MaxSuggestions: c.Int("suggestions"),
		Cutoff:         c.Float64("cutoff"),
	})

	if c.String("format") == formatJSON {
		if err := writeJSON(out, struct {
			Clean bool `json:"clean"`
			*consistency.Report
		}{report.Clean(), report}); err != nil {
			return err
		}
	} else if err := report.Render(out); err != nil {
		return err
	}

	if !report.Clean() {
		return cli.Exit("", 1)
	}
	return nil
}
