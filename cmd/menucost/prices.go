package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"menu-cost/db/pricestore"
	"menu-cost/pkg/money"
)

// =============================================================================
// PRICES COMMAND
// =============================================================================

func pricesCommand() *cli.Command {
	return &cli.Command{
		Name:  "prices",
		Usage: "Manage ingredient prices",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "List current ingredient prices",
				Flags:  []cli.Flag{formatFlag()},
				Action: runPricesShow,
			},
			{
				Name:  "update",
				Usage: "Validate and merge new prices; displaced values are archived",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "JSON object of ingredient prices to merge",
					},
					&cli.StringSliceFlag{
						Name:  "set",
						Usage: "Single price as name=value (repeatable)",
					},
				},
				Action: runPricesUpdate,
			},
			{
				Name:  "backup",
				Usage: "Copy the price file into the backup directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "tag",
						Usage: "Backup tag (defaults to a UTC timestamp)",
					},
				},
				Action: runPricesBackup,
			},
			{
				Name:  "restore",
				Usage: "Restore prices from a backup (the newest when no id is given)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Backup tag or file name",
					},
				},
				Action: runPricesRestore,
			},
			{
				Name:  "history",
				Usage: "Show archived price changes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "ingredient",
						Usage: "Only changes that touched this ingredient",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Newest entries to show (0 shows all, mirror queries default to 20)",
					},
					&cli.BoolFlag{
						Name:  "mirror",
						Usage: "Read from the history mirror: ClickHouse with --ingredient, PostgreSQL otherwise",
					},
					formatFlag(),
				},
				Action: runPricesHistory,
			},
			{
				Name:   "backups",
				Usage:  "List available backups, newest first",
				Flags:  []cli.Flag{formatFlag()},
				Action: runPricesBackups,
			},
		},
	}
}

func runPricesShow(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	writeDiagnostics(c.App.ErrWriter, rt.store.Diagnostics(), false)
	snap := rt.store.Prices()
	if c.String("format") == formatJSON {
		return writeJSON(c.App.Writer, snap.Map())
	}
	writePriceTable(c.App.Writer, snap)
	return nil
}

// buildCandidate merges --file then --set into one candidate mapping
// Values that do not parse as numbers are kept verbatim so validation
// reports them
func buildCandidate(file string, sets []string) (map[string]any, error) {
	candidate := make(map[string]any)

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var fromFile map[string]any
		if err := dec.Decode(&fromFile); err != nil || fromFile == nil {
			return nil, fmt.Errorf("%s must contain a JSON object of ingredient prices", file)
		}
		for k, v := range fromFile {
			candidate[k] = v
		}
	}

	for _, kv := range sets {
		name, raw, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, expected name=value", kv)
		}
		raw = strings.TrimSpace(raw)
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			candidate[name] = v
		} else {
			candidate[name] = raw
		}
	}

	if len(candidate) == 0 {
		return nil, errors.New("nothing to update: pass --file or --set")
	}
	return candidate, nil
}

func runPricesUpdate(c *cli.Context) error {
	candidate, err := buildCandidate(c.String("file"), c.StringSlice("set"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	out, errOut := c.App.Writer, c.App.ErrWriter
	res, err := rt.store.Update(c.Context, candidate)
	if err != nil {
		var ve *pricestore.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintln(errOut, "update rejected, nothing was changed:")
			for _, v := range ve.Violations {
				fmt.Fprintf(errOut, "  - %s\n", v)
			}
			return cli.Exit("", 1)
		}
		return err
	}

	if !res.Changed {
		fmt.Fprintf(out, "no changes: %d prices already up to date\n", res.Applied)
		return nil
	}
	fmt.Fprintf(out, "updated %d prices (history entry %s)\n", res.Applied, res.Entry.ID)
	names := make([]string, 0, len(res.Entry.ArchivedPrices))
	for name := range res.Entry.ArchivedPrices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  archived %s = %s\n", name, money.Fixed(res.Entry.ArchivedPrices[name], 2))
	}
	for _, name := range res.Entry.Introduced {
		fmt.Fprintf(out, "  added %s\n", name)
	}
	return nil
}

func runPricesBackup(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	info, err := rt.store.Backup(c.Context, c.String("tag"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "backed up prices to %s\n", info.Path)
	if info.Uploaded {
		fmt.Fprintf(c.App.Writer, "uploaded %s off-site\n", info.Name)
	}
	return nil
}

func runPricesRestore(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.store.Restore(c.Context, c.String("id"))
	if errors.Is(err, pricestore.ErrNoBackupAvailable) {
		return cli.Exit(fmt.Sprintf("no backup found in %s", rt.cfg.Store.BackupDir), 1)
	}
	if err != nil {
		return err
	}
	if res.Entry == nil {
		fmt.Fprintf(c.App.Writer, "restored prices from %s (no price changes)\n", res.Backup.Name)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "restored prices from %s (history entry %s)\n", res.Backup.Name, res.Entry.ID)
	return nil
}

func runPricesHistory(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ingredient, limit := c.String("ingredient"), c.Int("limit")
	if limit < 0 {
		return cli.Exit("--limit must not be negative", 2)
	}
	if c.Bool("mirror") {
		return runMirrorHistory(c, rt, ingredient, limit)
	}

	entries, err := rt.store.History()
	if err != nil {
		return err
	}
	entries = selectHistory(entries, ingredient, limit)
	if c.String("format") == formatJSON {
		return writeJSON(c.App.Writer, entries)
	}
	writeHistory(c.App.Writer, entries)
	return nil
}

// selectHistory keeps entries touching ingredient (all when empty), then the
// newest limit of them (all when zero). Order stays oldest first
func selectHistory(entries []pricestore.HistoryEntry, ingredient string, limit int) []pricestore.HistoryEntry {
	out := make([]pricestore.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if ingredient == "" || e.Touches(ingredient) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

const defaultMirrorLimit = 20

func runMirrorHistory(c *cli.Context, rt *runtime, ingredient string, limit int) error {
	if limit == 0 {
		limit = defaultMirrorLimit
	}
	out := c.App.Writer

	if ingredient != "" {
		if rt.clickhouse == nil {
			return cli.Exit("no ClickHouse mirror connected (see --clickhouse)", 2)
		}
		rows, err := rt.clickhouse.IngredientHistory(c.Context, ingredient, limit)
		if err != nil {
			return err
		}
		if c.String("format") == formatJSON {
			return writeJSON(out, rows)
		}
		writeIngredientHistory(out, ingredient, rows)
		return nil
	}

	if rt.postgres == nil {
		return cli.Exit("no PostgreSQL mirror connected (see --postgres-dsn)", 2)
	}
	entries, err := rt.postgres.Recent(c.Context, limit)
	if err != nil {
		return err
	}
	if c.String("format") == formatJSON {
		return writeJSON(out, entries)
	}
	writeHistory(out, entries)
	return nil
}

func runPricesBackups(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	backups, err := rt.store.Backups()
	if err != nil {
		return err
	}
	if c.String("format") == formatJSON {
		return writeJSON(c.App.Writer, backups)
	}
	writeBackups(c.App.Writer, backups)
	return nil
}
