// Package clickhouse provides a ClickHouse mirror of the price history journal
// Each archived or introduced ingredient becomes one row, queryable over time
package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"menu-cost/db/pricestore"
)

// Change kinds stored per row
const (
	ChangeArchived   = "archived"
	ChangeIntroduced = "introduced"
)

// HistoryRow is one ingredient of one history entry
type HistoryRow struct {
	ID         uuid.UUID        `ch:"id"`
	EntryID    string           `ch:"entry_id"`
	RecordedAt time.Time        `ch:"recorded_at"`
	Reason     string           `ch:"reason"`
	Ingredient string           `ch:"ingredient"`
	Change     string           `ch:"change"`
	Price      *decimal.Decimal `ch:"price"`
}

// Config holds ClickHouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "menucost",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store writes history rows to ClickHouse
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore creates a new ClickHouse history store
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the history table when absent
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS price_history (
			id UUID,
			entry_id String,
			recorded_at DateTime64(3, 'UTC'),
			reason LowCardinality(String),
			ingredient String,
			change LowCardinality(String),
			price Nullable(Decimal(18, 6))
		) ENGINE = MergeTree
		ORDER BY (ingredient, recorded_at)
	`
	if err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create price_history: %w", err)
	}
	return nil
}

// RecordHistory implements pricestore.HistoryMirror using a batch insert
func (s *Store) RecordHistory(ctx context.Context, entry pricestore.HistoryEntry) error {
	rows := HistoryRows(entry)
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_history (
			id, entry_id, recorded_at, reason, ingredient, change, price
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, row := range rows {
		if err := batch.Append(
			row.ID, row.EntryID, row.RecordedAt, row.Reason,
			row.Ingredient, row.Change, row.Price,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// IngredientHistory returns the archived prices of one ingredient, newest first
func (s *Store) IngredientHistory(ctx context.Context, ingredient string, limit int) ([]HistoryRow, error) {
	query := `
		SELECT id, entry_id, recorded_at, reason, ingredient, change, price
		FROM price_history
		WHERE ingredient = ? AND change = ?
		ORDER BY recorded_at DESC
		LIMIT ?
	`
	rows, err := s.conn.Query(ctx, query, ingredient, ChangeArchived, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var row HistoryRow
		if err := rows.Scan(
			&row.ID, &row.EntryID, &row.RecordedAt, &row.Reason,
			&row.Ingredient, &row.Change, &row.Price,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// HistoryRows flattens an entry into rows, archived first, each group
// sorted by ingredient. Introduced rows carry no price
func HistoryRows(entry pricestore.HistoryEntry) []HistoryRow {
	names := make([]string, 0, len(entry.ArchivedPrices))
	for name := range entry.ArchivedPrices {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]HistoryRow, 0, len(names)+len(entry.Introduced))
	for _, name := range names {
		price := decimal.NewFromFloat(entry.ArchivedPrices[name])
		rows = append(rows, HistoryRow{
			ID:         uuid.New(),
			EntryID:    entry.ID,
			RecordedAt: entry.Timestamp,
			Reason:     entry.Reason,
			Ingredient: name,
			Change:     ChangeArchived,
			Price:      &price,
		})
	}

	introduced := append([]string(nil), entry.Introduced...)
	sort.Strings(introduced)
	for _, name := range introduced {
		rows = append(rows, HistoryRow{
			ID:         uuid.New(),
			EntryID:    entry.ID,
			RecordedAt: entry.Timestamp,
			Reason:     entry.Reason,
			Ingredient: name,
			Change:     ChangeIntroduced,
		})
	}
	return rows
}
