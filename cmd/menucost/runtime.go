package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"menu-cost/db/clickhouse"
	"menu-cost/db/objectstore"
	"menu-cost/db/postgres"
	"menu-cost/db/pricestore"
	"menu-cost/decision/catalog"
	"menu-cost/decision/costing"
	"menu-cost/pkg/platform"
)

// runtime is everything a command needs, built from config plus flags
type runtime struct {
	cfg     *platform.Config
	log     zerolog.Logger
	catalog *catalog.Catalog
	engine  *costing.Engine
	store   *pricestore.Store
	closers []func() error

	// mirrors that connected, nil otherwise
	clickhouse *clickhouse.Store
	postgres   *postgres.Store
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.log.Warn().Err(err).Msg("failed to close resource")
		}
	}
}

// applyFlags lets explicitly set global flags override file and env config
func applyFlags(c *cli.Context, cfg *platform.Config) {
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("prices") {
		cfg.Store.Prices = c.String("prices")
	}
	if c.IsSet("history") {
		cfg.Store.History = c.String("history")
	}
	if c.IsSet("backup-dir") {
		cfg.Store.BackupDir = c.String("backup-dir")
	}
	if c.IsSet("catalog") {
		cfg.Catalog = c.String("catalog")
	}
	if c.IsSet("clickhouse") {
		cfg.ClickHouse.Enabled = c.Bool("clickhouse")
	}
	if c.IsSet("clickhouse-host") {
		cfg.ClickHouse.Host = c.String("clickhouse-host")
	}
	if c.IsSet("clickhouse-port") {
		cfg.ClickHouse.Port = c.Int("clickhouse-port")
	}
	if c.IsSet("clickhouse-database") {
		cfg.ClickHouse.Database = c.String("clickhouse-database")
	}
	if c.IsSet("clickhouse-user") {
		cfg.ClickHouse.User = c.String("clickhouse-user")
	}
	if c.IsSet("clickhouse-password") {
		cfg.ClickHouse.Password = c.String("clickhouse-password")
	}
	if c.IsSet("postgres-dsn") {
		cfg.Postgres.DSN = c.String("postgres-dsn")
	}
	if c.IsSet("s3-bucket") {
		cfg.ObjectStore.Bucket = c.String("s3-bucket")
	}
	if c.IsSet("s3-endpoint") {
		cfg.ObjectStore.Endpoint = c.String("s3-endpoint")
	}
	if c.IsSet("s3-prefix") {
		cfg.ObjectStore.Prefix = c.String("s3-prefix")
	}
}

// setup loads config, logging, the catalog and the price store. Optional
// mirrors that cannot be reached are logged and skipped
func setup(c *cli.Context) (*runtime, error) {
	cfg, err := platform.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	applyFlags(c, cfg)

	logger := platform.InitLogger(c.App.ErrWriter, cfg.Log.Level, cfg.Log.Format)
	rt := &runtime{cfg: cfg, log: logger}

	if cfg.Catalog != "" {
		rt.catalog, err = catalog.LoadFile(cfg.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	} else {
		rt.catalog = catalog.Default()
	}
	rt.engine = costing.NewEngine(rt.catalog)

	rt.store = pricestore.New(pricestore.Config{
		PricesPath:      cfg.Store.Prices,
		HistoryPath:     cfg.Store.History,
		BackupDir:       cfg.Store.BackupDir,
		RequireExisting: cfg.Store.RequireExisting,
	}).WithLogger(logger)

	rt.attachMirrors(c)

	if err := rt.store.Load(); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) attachMirrors(c *cli.Context) {
	ctx := c.Context
	cfg := rt.cfg

	if cfg.ClickHouse.Enabled {
		ch, err := clickhouse.NewStore(&clickhouse.Config{
			Host:     cfg.ClickHouse.Host,
			Port:     cfg.ClickHouse.Port,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.User,
			Password: cfg.ClickHouse.Password,
		})
		if err == nil {
			err = ch.EnsureSchema(ctx)
			if err != nil {
				ch.Close()
			}
		}
		if err != nil {
			rt.log.Warn().Err(err).Msg("ClickHouse history mirror disabled")
		} else {
			rt.store.WithMirror(ch)
			rt.clickhouse = ch
			rt.closers = append(rt.closers, ch.Close)
		}
	}

	if cfg.Postgres.DSN != "" {
		pg, err := postgres.NewStore(cfg.Postgres.DSN)
		if err == nil {
			err = pg.EnsureSchema(ctx)
			if err != nil {
				pg.Close()
			}
		}
		if err != nil {
			rt.log.Warn().Err(err).Msg("PostgreSQL history mirror disabled")
		} else {
			rt.store.WithMirror(pg)
			rt.postgres = pg
			rt.closers = append(rt.closers, pg.Close)
		}
	}

	if cfg.ObjectStore.Bucket != "" {
		up, err := objectstore.NewUploader(ctx, objectstore.Config{
			Endpoint:  cfg.ObjectStore.Endpoint,
			Region:    cfg.ObjectStore.Region,
			Bucket:    cfg.ObjectStore.Bucket,
			Prefix:    cfg.ObjectStore.Prefix,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
		})
		if err != nil {
			rt.log.Warn().Err(err).Msg("off-site backups disabled")
		} else {
			rt.store.WithUploader(up)
		}
	}
}
