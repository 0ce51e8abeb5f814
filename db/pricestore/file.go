package pricestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"menu-cost/pkg/diag"
)

// priceFile is the decoded content of a price file
type priceFile struct {
	header      string
	prices      map[string]float64
	diagnostics diag.List
}

// parsePriceFile decodes a price file. Anything other than a JSON object is
// malformed. Entries that are not valid prices are dropped with a warning
func parsePriceFile(path string, data []byte) (*priceFile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &MalformedStoreError{Path: path, Err: err}
	}
	if raw == nil {
		return nil, &MalformedStoreError{Path: path, Err: errors.New("top-level value is not an object")}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &MalformedStoreError{Path: path, Err: errors.New("trailing data after object")}
	}

	pf := &priceFile{
		header:      DefaultHeader,
		prices:      make(map[string]float64, len(raw)),
		diagnostics: diag.List{},
	}
	if h, ok := raw[ReservedKey].(string); ok && h != "" {
		pf.header = h
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == ReservedKey {
			continue
		}
		price, reason := toPrice(raw[key])
		if reason != "" {
			pf.diagnostics.Add(diag.CodeInvalidPrice, diag.SeverityWarning, key,
				"dropped %q from %s: %s", key, path, reason)
			continue
		}
		pf.prices[key] = price
	}
	return pf, nil
}

// encodePriceFile renders the header first, then ingredients sorted by name
func encodePriceFile(header string, prices map[string]float64) ([]byte, error) {
	if header == "" {
		header = DefaultHeader
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")

	h, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}
	fmt.Fprintf(&buf, "  %q: %s", ReservedKey, h)

	keys := make([]string, 0, len(prices))
	for k := range prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %q: %w", k, err)
		}
		value, err := json.Marshal(prices[k])
		if err != nil {
			return nil, fmt.Errorf("failed to encode price of %q: %w", k, err)
		}
		fmt.Fprintf(&buf, ",\n  %s: %s", name, value)
	}
	buf.WriteString("\n}\n")
	return buf.Bytes(), nil
}

// writeFileAtomic replaces path with data via a synced temp file and rename
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
