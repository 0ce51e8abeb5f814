package pricestore

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menu-cost/pkg/diag"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		PricesPath:  filepath.Join(dir, "ingredient_prices.json"),
		HistoryPath: filepath.Join(dir, "price_history.json"),
		BackupDir:   filepath.Join(dir, "backups"),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fixedClock() func() time.Time {
	ts := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
}

func openStore(t *testing.T, cfg Config, content string) *Store {
	t.Helper()
	if content != "" {
		writeFile(t, cfg.PricesPath, content)
	}
	s := New(cfg).WithClock(fixedClock())
	require.NoError(t, s.Load())
	return s
}

type recordingMirror struct {
	entries []HistoryEntry
	err     error
}

func (m *recordingMirror) RecordHistory(_ context.Context, entry HistoryEntry) error {
	m.entries = append(m.entries, entry)
	return m.err
}

type recordingUploader struct {
	names []string
	err   error
}

func (u *recordingUploader) UploadBackup(_ context.Context, name string, _ []byte) error {
	u.names = append(u.names, name)
	return u.err
}

func TestLoadDropsReservedKey(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"ingredient_master": "JPY per gram", "butter": 2.0, "duck": 30}`)

	snap := s.Prices()
	assert.Equal(t, []string{"butter", "duck"}, snap.Keys())
	_, ok := snap.Price(ReservedKey)
	assert.False(t, ok)
	assert.Empty(t, s.Diagnostics())
}

func TestLoadMissingFile(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, "")

	assert.Zero(t, s.Prices().Len())
	assert.Len(t, s.Diagnostics().WithCode(diag.CodeStoreFileMissing), 1)

	cfg.RequireExisting = true
	_, err := Open(cfg)
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestLoadMalformedFile(t *testing.T) {
	for name, content := range map[string]string{
		"syntax":   `{"butter": 2.0,`,
		"array":    `[1, 2, 3]`,
		"null":     `null`,
		"trailing": `{"butter": 2.0} {}`,
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			writeFile(t, cfg.PricesPath, content)

			_, err := Open(cfg)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedStore)
			var mse *MalformedStoreError
			require.True(t, errors.As(err, &mse))
			assert.Equal(t, cfg.PricesPath, mse.Path)
		})
	}
}

func TestLoadDropsInvalidEntries(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"butter": 2.0, "salt": "cheap", "sugar": -1, "duck": 30}`)

	assert.Equal(t, []string{"butter", "duck"}, s.Prices().Keys())
	invalid := s.Diagnostics().WithCode(diag.CodeInvalidPrice)
	require.Len(t, invalid, 2)
	assert.Equal(t, "salt", invalid[0].Subject)
	assert.Equal(t, "sugar", invalid[1].Subject)
}

func TestSnapshotIsACopy(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"butter": 2.0}`)

	m := s.Prices().Map()
	m["butter"] = 99
	m["caviar"] = 50

	p, _ := s.Prices().Price("butter")
	assert.Equal(t, 2.0, p)
	assert.Equal(t, 1, s.Prices().Len())
}

func TestValidate(t *testing.T) {
	accepted, violations := Validate(map[string]any{
		ReservedKey: "header",
		"butter":    2,
		"duck":      json.Number("30.5"),
		"sugar":     float32(0.5),
		"free":      0.0,
	})
	require.Empty(t, violations)
	assert.Equal(t, map[string]float64{"butter": 2, "duck": 30.5, "sugar": 0.5, "free": 0}, accepted)

	accepted, violations = Validate(map[string]any{
		"butter": 2.0,
		"a":      "12",
		"b":      -0.1,
		"c":      math.NaN(),
		"d":      math.Inf(1),
		"e":      true,
		"f":      nil,
		"g":      json.Number("1e400"),
	})
	assert.Nil(t, accepted)
	require.Len(t, violations, 7)
	assert.Equal(t, "a", violations[0].Key)
	assert.Equal(t, reasonNotNumber, violations[0].Reason)
	assert.Equal(t, reasonNegative, violations[1].Reason)
	assert.Equal(t, reasonNotFinite, violations[2].Reason)
	assert.Equal(t, reasonNotFinite, violations[3].Reason)
	assert.Equal(t, reasonNotNumber, violations[4].Reason)
	assert.Equal(t, reasonNotNumber, violations[5].Reason)
	assert.Equal(t, reasonNotFinite, violations[6].Reason)
}

func TestUpdateRejectsInvalidWithoutChange(t *testing.T) {
	cfg := testConfig(t)
	original := `{"ingredient_master": "JPY", "butter": 2.0}`
	s := openStore(t, cfg, original)

	_, err := s.Update(context.Background(), map[string]any{"butter": 3.0, "duck": -5})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Violations, 1)
	assert.Equal(t, "duck", ve.Violations[0].Key)

	p, _ := s.Prices().Price("butter")
	assert.Equal(t, 2.0, p)
	data, err := os.ReadFile(cfg.PricesPath)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
	_, err = os.Stat(cfg.HistoryPath)
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateArchivesDisplacedValues(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"X": 5}`)
	ctx := context.Background()

	_, err := s.Update(ctx, map[string]any{"X": 10.0})
	require.NoError(t, err)
	res, err := s.Update(ctx, map[string]any{"X": 20.0, "Y": 1.0})
	require.NoError(t, err)

	require.True(t, res.Changed)
	require.NotNil(t, res.Entry)
	assert.Equal(t, map[string]float64{"X": 10}, res.Entry.ArchivedPrices)
	assert.Equal(t, []string{"Y"}, res.Entry.Introduced)

	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, map[string]float64{"X": 5}, history[0].ArchivedPrices)
	assert.Equal(t, map[string]float64{"X": 10}, history[1].ArchivedPrices)
	assert.Equal(t, ReasonUpdate, history[1].Reason)
	assert.NotEqual(t, history[0].ID, history[1].ID)
	assert.True(t, history[1].Timestamp.After(history[0].Timestamp))

	reloaded, err := Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"X": 20, "Y": 1}, reloaded.Prices().Map())
}

func TestUpdateUnchangedValuesSkipHistory(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"X": 5}`)

	res, err := s.Update(context.Background(), map[string]any{"X": 5})

	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Nil(t, res.Entry)
	history, err := s.History()
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUpdatePersistsHeaderFirst(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"ingredient_master": "JPY per gram", "b": 1}`)

	_, err := s.Update(context.Background(), map[string]any{"a": 2.5})
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.PricesPath)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"ingredient_master\": \"JPY per gram\",\n  \"a\": 2.5,\n  \"b\": 1\n}\n", string(data))
}

func TestUpdateMalformedHistoryAborts(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"X": 5}`)
	writeFile(t, cfg.HistoryPath, `{not json`)

	_, err := s.Update(context.Background(), map[string]any{"X": 6})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedHistory)
	p, _ := s.Prices().Price("X")
	assert.Equal(t, 5.0, p)
	data, err := os.ReadFile(cfg.HistoryPath)
	require.NoError(t, err)
	assert.Equal(t, `{not json`, string(data))
}

func TestUpdateNotifiesMirrors(t *testing.T) {
	cfg := testConfig(t)
	failing := &recordingMirror{err: errors.New("unreachable")}
	ok := &recordingMirror{}
	writeFile(t, cfg.PricesPath, `{"X": 5}`)
	s := New(cfg).WithMirror(failing).WithMirror(ok)
	require.NoError(t, s.Load())

	_, err := s.Update(context.Background(), map[string]any{"X": 6})

	require.NoError(t, err)
	require.Len(t, ok.entries, 1)
	assert.Equal(t, map[string]float64{"X": 5}, ok.entries[0].ArchivedPrices)
	assert.Len(t, failing.entries, 1)
	p, _ := s.Prices().Price("X")
	assert.Equal(t, 6.0, p)
}

func TestRestoreWithoutBackup(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"X": 5}`)

	_, err := s.Restore(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoBackupAvailable)

	_, err = s.Restore(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrBackupNotFound)
}

func TestBackupMutateRestore(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"butter": 2.0, "duck": 30}`)
	ctx := context.Background()
	before := s.Prices().Map()

	info, err := s.Backup(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "prices-20261018T090001.000000000Z.json", info.Name)

	_, err = s.Update(ctx, map[string]any{"butter": 4.0, "caviar": 50})
	require.NoError(t, err)

	res, err := s.Restore(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, info.Name, res.Backup.Name)
	assert.Equal(t, before, s.Prices().Map())

	assert.Equal(t, ReasonRestore, res.Entry.Reason)
	assert.Equal(t, map[string]float64{"butter": 4, "caviar": 50}, res.Entry.ArchivedPrices)
	assert.Empty(t, res.Entry.Introduced)

	reloaded, err := Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, before, reloaded.Prices().Map())
}

func TestBackupTags(t *testing.T) {
	cfg := testConfig(t)
	up := &recordingUploader{}
	writeFile(t, cfg.PricesPath, `{"X": 1}`)
	s := New(cfg).WithUploader(up)
	require.NoError(t, s.Load())
	ctx := context.Background()

	info, err := s.Backup(ctx, "before-sale")
	require.NoError(t, err)
	assert.Equal(t, "before-sale", info.ID)
	assert.True(t, info.Uploaded)
	assert.Equal(t, []string{"prices-before-sale.json"}, up.names)

	_, err = s.Backup(ctx, "before-sale")
	assert.ErrorIs(t, err, ErrBackupExists)

	_, err = s.Backup(ctx, "../escape")
	assert.ErrorIs(t, err, ErrInvalidTag)
}

func TestRestoreSelectsNewestOrNamed(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"X": 1}`)
	writeFile(t, filepath.Join(cfg.BackupDir, "prices-old.json"), `{"X": 2}`)
	writeFile(t, filepath.Join(cfg.BackupDir, "prices-new.json"), `{"X": 3}`)
	writeFile(t, filepath.Join(cfg.BackupDir, "notes.txt"), `ignored`)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(cfg.BackupDir, "prices-old.json"), base, base))
	require.NoError(t, os.Chtimes(filepath.Join(cfg.BackupDir, "prices-new.json"), base.Add(time.Hour), base.Add(time.Hour)))

	backups, err := s.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "new", backups[0].ID)

	_, err = s.Restore(context.Background(), "")
	require.NoError(t, err)
	p, _ := s.Prices().Price("X")
	assert.Equal(t, 3.0, p)

	_, err = s.Restore(context.Background(), "old")
	require.NoError(t, err)
	p, _ = s.Prices().Price("X")
	assert.Equal(t, 2.0, p)
}

func TestRestoreMalformedBackupLeavesState(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"X": 1}`)
	writeFile(t, filepath.Join(cfg.BackupDir, "prices-broken.json"), `[`)

	_, err := s.Restore(context.Background(), "broken")

	assert.ErrorIs(t, err, ErrMalformedStore)
	p, _ := s.Prices().Price("X")
	assert.Equal(t, 1.0, p)
	data, err := os.ReadFile(cfg.PricesPath)
	require.NoError(t, err)
	assert.Equal(t, `{"X": 1}`, string(data))
	_, err = os.Stat(cfg.HistoryPath)
	assert.True(t, os.IsNotExist(err))
}

func TestHistoryReconstructsPriorState(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg, `{"a": 1, "b": 2}`)
	ctx := context.Background()
	states := []map[string]float64{s.Prices().Map()}

	for _, update := range []map[string]any{
		{"a": 3.0},
		{"b": 4.0, "c": 5.0},
		{"a": 6.0, "c": 7.0},
	} {
		_, err := s.Update(ctx, update)
		require.NoError(t, err)
		states = append(states, s.Prices().Map())
	}

	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, 3)

	current := s.Prices().Map()
	for i := len(history) - 1; i >= 0; i-- {
		for k, v := range history[i].ArchivedPrices {
			current[k] = v
		}
		for _, k := range history[i].Introduced {
			delete(current, k)
		}
		assert.Equal(t, states[i], current, "state before entry %d", i)
	}
}

func TestRestoreUnchangedAppendsNoHistory(t *testing.T) {
	cfg := testConfig(t)
	mirror := &recordingMirror{}
	s := openStore(t, cfg, `{"X": 1}`).WithMirror(mirror)
	ctx := context.Background()

	_, err := s.Backup(ctx, "same")
	require.NoError(t, err)

	res, err := s.Restore(ctx, "same")

	require.NoError(t, err)
	assert.Nil(t, res.Entry)
	assert.Empty(t, mirror.entries)
	_, err = os.Stat(cfg.HistoryPath)
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateJournalsBeforePersisting(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(filepath.Dir(cfg.HistoryPath), "blocker")
	writeFile(t, blocker, "not a directory")
	cfg.PricesPath = filepath.Join(blocker, "ingredient_prices.json")
	s := New(cfg).WithClock(fixedClock())
	ctx := context.Background()

	_, err := s.Update(ctx, map[string]any{"saffron": 120.0})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist prices")
	assert.Zero(t, s.Prices().Len())
	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{"saffron"}, history[0].Introduced)

	require.NoError(t, os.Remove(blocker))
	res, err := s.Update(ctx, map[string]any{"saffron": 120.0})

	require.NoError(t, err)
	assert.True(t, res.Changed)
	reloaded, err := Open(cfg)
	require.NoError(t, err)
	p, ok := reloaded.Prices().Price("saffron")
	require.True(t, ok)
	assert.Equal(t, 120.0, p)

	history, err = s.History()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, history[0].ArchivedPrices, history[1].ArchivedPrices)
	assert.Equal(t, history[0].Introduced, history[1].Introduced)
	assert.NotEqual(t, history[0].ID, history[1].ID)
}

func TestHistoryEntryTouches(t *testing.T) {
	entry := HistoryEntry{ArchivedPrices: map[string]float64{"duck": 30}, Introduced: []string{"saffron"}}

	assert.True(t, entry.Touches("duck"))
	assert.True(t, entry.Touches("saffron"))
	assert.False(t, entry.Touches("lamb"))
	assert.False(t, entry.Empty())
	assert.True(t, HistoryEntry{}.Empty())
}
