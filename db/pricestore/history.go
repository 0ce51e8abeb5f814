package pricestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"
)

// History reasons
const (
	ReasonUpdate  = "update"
	ReasonRestore = "restore"
)

// HistoryEntry records the values a change displaced
// ArchivedPrices holds only keys whose value changed; Introduced lists keys
// that had no prior value
type HistoryEntry struct {
	ID             string             `json:"id"`
	Timestamp      time.Time          `json:"timestamp"`
	Reason         string             `json:"reason"`
	ArchivedPrices map[string]float64 `json:"archived_prices"`
	Introduced     []string           `json:"introduced"`
}

// Empty reports whether the entry records no change
func (e HistoryEntry) Empty() bool {
	return len(e.ArchivedPrices) == 0 && len(e.Introduced) == 0
}

// Touches reports whether the entry archived or introduced the ingredient
func (e HistoryEntry) Touches(ingredient string) bool {
	if _, ok := e.ArchivedPrices[ingredient]; ok {
		return true
	}
	for _, name := range e.Introduced {
		if name == ingredient {
			return true
		}
	}
	return false
}

// diffPrices computes what replacing the keys of next in prev would displace
// When replaceAll is set, keys of prev absent from next count as changed
func diffPrices(prev, next map[string]float64, replaceAll bool) (archived map[string]float64, introduced []string) {
	archived = make(map[string]float64)
	introduced = make([]string, 0)

	for k, v := range next {
		old, ok := prev[k]
		switch {
		case !ok:
			introduced = append(introduced, k)
		case old != v:
			archived[k] = old
		}
	}
	if replaceAll {
		for k, old := range prev {
			if _, ok := next[k]; !ok {
				archived[k] = old
			}
		}
	}
	sort.Strings(introduced)
	return archived, introduced
}

// historyJournal is the append-only JSON array on disk
type historyJournal struct {
	path string
}

func (j historyJournal) read() ([]HistoryEntry, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history %s: %w", j.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []HistoryEntry{}, nil
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedHistory, j.path, err)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

// append adds an entry. An unreadable journal aborts without rewriting it
func (j historyJournal) append(entry HistoryEntry) error {
	entries, err := j.read()
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return writeFileAtomic(j.path, append(data, '\n'))
}
