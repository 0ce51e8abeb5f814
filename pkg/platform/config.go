// Package platform provides logging and configuration shared by the binaries
package platform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MENUCOST_STORE_PRICES
const EnvPrefix = "MENUCOST"

// Config holds all runtime configuration
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Store       StoreConfig       `mapstructure:"store"`
	Catalog     string            `mapstructure:"catalog"`
	Server      ServerConfig      `mapstructure:"server"`
	ClickHouse  ClickHouseConfig  `mapstructure:"clickhouse"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	ObjectStore ObjectStoreConfig `mapstructure:"objectstore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig locates the price store files
type StoreConfig struct {
	Prices          string `mapstructure:"prices"`
	History         string `mapstructure:"history"`
	BackupDir       string `mapstructure:"backup_dir"`
	RequireExisting bool   `mapstructure:"require_existing"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ClickHouseConfig enables the ClickHouse history mirror
type ClickHouseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// PostgresConfig enables the PostgreSQL history mirror when DSN is set
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ObjectStoreConfig enables off-site backups when Bucket is set
type ObjectStoreConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("store.prices", "data/ingredient_prices.json")
	v.SetDefault("store.history", "data/price_history.json")
	v.SetDefault("store.backup_dir", "data/backups")
	v.SetDefault("store.require_existing", false)

	v.SetDefault("catalog", "")
	v.SetDefault("server.port", 8080)

	v.SetDefault("clickhouse.enabled", false)
	v.SetDefault("clickhouse.host", "localhost")
	v.SetDefault("clickhouse.port", 9000)
	v.SetDefault("clickhouse.database", "menucost")
	v.SetDefault("clickhouse.user", "default")
	v.SetDefault("clickhouse.password", "")

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("objectstore.endpoint", "")
	v.SetDefault("objectstore.region", "auto")
	v.SetDefault("objectstore.bucket", "")
	v.SetDefault("objectstore.prefix", "menu-cost/backups")
	v.SetDefault("objectstore.access_key", "")
	v.SetDefault("objectstore.secret_key", "")
}

// LoadConfig reads defaults, then an optional menucost.yaml from the working
// directory (or the explicit path), then MENUCOST_* environment variables
// An explicit path that cannot be read is an error; a missing implicit file
// is not
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("menucost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
