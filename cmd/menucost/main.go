// Menu Cost CLI - ingredient cost accounting for restaurant courses
//
// Usage:
//
//	menucost course [course-id...] [--addon WINE_RED] [--verbose|--quiet]
//	menucost dish <dish-id> [--verbose]
//	menucost check
//	menucost prices update --set butter=2.4
//	menucost serve --port 8080
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "menucost",
		Usage:   "Restaurant menu cost calculator",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a menucost.yaml config file",
				EnvVars: []string{"MENUCOST_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"MENUCOST_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (console, json)",
				EnvVars: []string{"MENUCOST_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "prices",
				Usage:   "Path to the ingredient price file",
				EnvVars: []string{"MENUCOST_STORE_PRICES"},
			},
			&cli.StringFlag{
				Name:    "history",
				Usage:   "Path to the price history journal",
				EnvVars: []string{"MENUCOST_STORE_HISTORY"},
			},
			&cli.StringFlag{
				Name:    "backup-dir",
				Usage:   "Directory holding price backups",
				EnvVars: []string{"MENUCOST_STORE_BACKUP_DIR"},
			},
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "Path to a YAML menu catalog (defaults to the built-in menu)",
				EnvVars: []string{"MENUCOST_CATALOG"},
			},
			&cli.BoolFlag{
				Name:    "clickhouse",
				Usage:   "Mirror price history into ClickHouse",
				EnvVars: []string{"MENUCOST_CLICKHOUSE_ENABLED"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "Mirror price history into PostgreSQL at this DSN",
				EnvVars: []string{"MENUCOST_POSTGRES_DSN"},
			},
			&cli.StringFlag{
				Name:    "s3-bucket",
				Usage:   "Copy backups to this S3 bucket",
				EnvVars: []string{"MENUCOST_OBJECTSTORE_BUCKET"},
			},
			&cli.StringFlag{
				Name:    "s3-endpoint",
				Usage:   "S3-compatible endpoint URL",
				EnvVars: []string{"MENUCOST_OBJECTSTORE_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "s3-prefix",
				Usage:   "Key prefix for uploaded backups",
				EnvVars: []string{"MENUCOST_OBJECTSTORE_PREFIX"},
			},
		},

		Commands: []*cli.Command{
			courseCommand(),
			dishCommand(),
			checkCommand(),
			pricesCommand(),
			serveCommand(),
		},
	}
}
