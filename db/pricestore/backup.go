package pricestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupPrefix = "prices-"
	backupSuffix = ".json"
	tagLayout    = "20060102T150405.000000000Z"
)

// BackupInfo describes one backup artifact
type BackupInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	ModTime  time.Time `json:"mod_time"`
	Size     int64     `json:"size"`
	Uploaded bool      `json:"uploaded"`
}

// RestoreResult summarizes a restore. Entry is nil when the backup matched
// the live prices
type RestoreResult struct {
	Backup BackupInfo    `json:"backup"`
	Entry  *HistoryEntry `json:"entry"`
}

func backupName(tag string) string {
	return backupPrefix + tag + backupSuffix
}

func validTag(tag string) bool {
	if tag == "" || tag == "." || tag == ".." {
		return false
	}
	return !strings.ContainsAny(tag, `/\`+string(os.PathSeparator))
}

// Backup copies the backing file into the backup directory. An empty tag
// uses the current UTC time. When the store was never persisted, the
// in-memory table is written instead
func (s *Store) Backup(ctx context.Context, tag string) (*BackupInfo, error) {
	if tag == "" {
		tag = s.now().UTC().Format(tagLayout)
	}
	if !validTag(tag) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.cfg.PricesPath)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = encodePriceFile(s.header, s.prices)
	}
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to read price file: %w", err)
	}

	name := backupName(tag)
	path := filepath.Join(s.cfg.BackupDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupExists, name)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	info := &BackupInfo{ID: tag, Name: name, Path: path, ModTime: fi.ModTime(), Size: fi.Size()}

	if s.uploader != nil {
		if err := s.uploader.UploadBackup(ctx, name, data); err != nil {
			s.log.Warn().Err(err).Str("backup", name).Msg("backup upload failed")
		} else {
			info.Uploaded = true
		}
	}

	s.log.Info().Str("backup", path).Msg("prices backed up")
	return info, nil
}

// Backups lists backups, newest first. Ties on modification time are
// broken by name, descending
func (s *Store) Backups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.cfg.BackupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			ID:      strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix),
			Name:    name,
			Path:    filepath.Join(s.cfg.BackupDir, name),
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].ModTime.After(backups[j].ModTime)
		}
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// Restore replaces the live table with a backup. An empty id selects the
// newest backup. The backup is parsed before anything is touched; the live
// values it displaces are journaled with reason "restore"
func (s *Store) Restore(ctx context.Context, id string) (*RestoreResult, error) {
	backup, err := s.findBackup(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(backup.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	pf, err := parsePriceFile(backup.Path, data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	archived, introduced := diffPrices(s.prices, pf.prices, true)
	entry := HistoryEntry{
		Reason:         ReasonRestore,
		ArchivedPrices: archived,
		Introduced:     introduced,
	}
	changed := !entry.Empty()
	if changed {
		entry.ID = s.newID()
		entry.Timestamp = s.now().UTC()
		if err := s.journal.append(entry); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to archive prices: %w", err)
		}
	}
	if err := writeFileAtomic(s.cfg.PricesPath, data); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to restore prices: %w", err)
	}
	s.header = pf.header
	s.prices = pf.prices
	s.diagnostics = pf.diagnostics
	s.mu.Unlock()

	res := &RestoreResult{Backup: backup}
	if changed {
		s.notify(ctx, entry)
		res.Entry = &entry
	}
	s.log.Info().Str("backup", backup.Name).Bool("changed", changed).Msg("prices restored")
	return res, nil
}

func (s *Store) findBackup(id string) (BackupInfo, error) {
	backups, err := s.Backups()
	if err != nil {
		return BackupInfo{}, err
	}
	if id == "" {
		if len(backups) == 0 {
			return BackupInfo{}, ErrNoBackupAvailable
		}
		return backups[0], nil
	}
	for _, b := range backups {
		if b.ID == id || b.Name == id {
			return b, nil
		}
	}
	return BackupInfo{}, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
}
