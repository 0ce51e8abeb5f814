// Package pricestore provides the file-backed ingredient price store
// Updates are validated as a whole, displaced values are journaled before the
// price file is rewritten, and backups can be taken and restored
package pricestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"menu-cost/pkg/diag"
)

// Config locates the store's files
type Config struct {
	PricesPath      string
	HistoryPath     string
	BackupDir       string
	RequireExisting bool
}

// DefaultConfig returns the layout used by the CLI
func DefaultConfig() Config {
	return Config{
		PricesPath:  filepath.Join("data", "ingredient_prices.json"),
		HistoryPath: filepath.Join("data", "price_history.json"),
		BackupDir:   filepath.Join("data", "backups"),
	}
}

func (c Config) withDefaults() Config {
	dir := filepath.Dir(c.PricesPath)
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(dir, "price_history.json")
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(dir, "backups")
	}
	return c
}

// HistoryMirror receives every journaled entry after the price file is
// persisted. Mirror failures are logged and never undo a change
type HistoryMirror interface {
	RecordHistory(ctx context.Context, entry HistoryEntry) error
}

// BackupUploader copies a finished backup off-site
type BackupUploader interface {
	UploadBackup(ctx context.Context, name string, body []byte) error
}

// Store is the price store. A single writer is assumed; the lock only
// guards the in-memory table against concurrent readers
type Store struct {
	mu          sync.RWMutex
	cfg         Config
	header      string
	prices      map[string]float64
	diagnostics diag.List

	journal  historyJournal
	mirrors  []HistoryMirror
	uploader BackupUploader
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// New creates an empty store. Call Load to read the backing file
func New(cfg Config) *Store {
	cfg = cfg.withDefaults()
	return &Store{
		cfg:         cfg,
		header:      DefaultHeader,
		prices:      make(map[string]float64),
		diagnostics: diag.List{},
		journal:     historyJournal{path: cfg.HistoryPath},
		log:         zerolog.Nop(),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// Open creates a store and loads the backing file
func Open(cfg Config) (*Store, error) {
	s := New(cfg)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// WithLogger sets the logger used for store warnings
func (s *Store) WithLogger(l zerolog.Logger) *Store {
	s.log = l.With().Str("component", "pricestore").Logger()
	return s
}

// WithMirror adds a history mirror
func (s *Store) WithMirror(m HistoryMirror) *Store {
	s.mirrors = append(s.mirrors, m)
	return s
}

// WithUploader sets the off-site backup uploader
func (s *Store) WithUploader(u BackupUploader) *Store {
	s.uploader = u
	return s
}

// WithClock overrides the time source used for history and backup tags
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Config returns the resolved configuration
func (s *Store) Config() Config {
	return s.cfg
}

// Load reads the backing file into memory, replacing the current table
// A missing file yields an empty store with a warning unless
// RequireExisting is set
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.cfg.PricesPath)
	if errors.Is(err, fs.ErrNotExist) {
		if s.cfg.RequireExisting {
			return fmt.Errorf("%w: %s", ErrStoreNotFound, s.cfg.PricesPath)
		}
		s.header = DefaultHeader
		s.prices = make(map[string]float64)
		s.diagnostics = diag.List{}
		s.diagnostics.Add(diag.CodeStoreFileMissing, diag.SeverityWarning, s.cfg.PricesPath,
			"price file %s not found, starting with an empty store", s.cfg.PricesPath)
		s.log.Warn().Str("path", s.cfg.PricesPath).Msg("price file not found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read price file: %w", err)
	}

	pf, err := parsePriceFile(s.cfg.PricesPath, data)
	if err != nil {
		return err
	}
	for _, d := range pf.diagnostics {
		s.log.Warn().Str("ingredient", d.Subject).Msg(d.Message)
	}

	s.header = pf.header
	s.prices = pf.prices
	s.diagnostics = pf.diagnostics
	s.log.Debug().Int("entries", len(pf.prices)).Str("path", s.cfg.PricesPath).Msg("price file loaded")
	return nil
}

// Diagnostics returns the warnings produced by the last load
func (s *Store) Diagnostics() diag.List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(diag.List{}, s.diagnostics...)
}

// Prices returns an immutable snapshot of the current table
func (s *Store) Prices() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewSnapshot(s.prices)
}

// History returns every journaled entry, oldest first
func (s *Store) History() ([]HistoryEntry, error) {
	return s.journal.read()
}

// UpdateResult summarizes an accepted update
type UpdateResult struct {
	Entry   *HistoryEntry `json:"entry"`
	Applied int           `json:"applied"`
	Changed bool          `json:"changed"`
}

// Update merges a candidate mapping into the store. Any violation rejects
// the whole candidate with a *ValidationError and leaves state unchanged
// Displaced values are journaled before the price file is written; memory is
// swapped only after the write succeeds
func (s *Store) Update(ctx context.Context, candidate map[string]any) (*UpdateResult, error) {
	accepted, violations := Validate(candidate)
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	archived, introduced := diffPrices(s.prices, accepted, false)
	result := &UpdateResult{Applied: len(accepted)}
	entry := HistoryEntry{
		Reason:         ReasonUpdate,
		ArchivedPrices: archived,
		Introduced:     introduced,
	}
	if entry.Empty() {
		s.mu.Unlock()
		return result, nil
	}

	entry.ID = s.newID()
	entry.Timestamp = s.now().UTC()
	if err := s.journal.append(entry); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to archive prices: %w", err)
	}

	merged := copyPrices(s.prices)
	for k, v := range accepted {
		merged[k] = v
	}
	if err := s.persist(merged); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.prices = merged
	s.mu.Unlock()

	s.notify(ctx, entry)

	result.Entry = &entry
	result.Changed = true
	s.log.Info().
		Str("entry", entry.ID).
		Int("archived", len(archived)).
		Int("introduced", len(introduced)).
		Msg("prices updated")
	return result, nil
}

// persist writes the table to the backing file. Caller holds the lock
func (s *Store) persist(prices map[string]float64) error {
	data, err := encodePriceFile(s.header, prices)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.cfg.PricesPath, data); err != nil {
		return fmt.Errorf("failed to persist prices: %w", err)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, entry HistoryEntry) {
	for _, m := range s.mirrors {
		if err := m.RecordHistory(ctx, entry); err != nil {
			s.log.Warn().Err(err).Str("entry", entry.ID).Msg("history mirror failed")
		}
	}
}
