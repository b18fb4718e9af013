// Package ledger is the durable store of discoveries: a pretty-printed JSON
// array rewritten in full on every save. Saves are read-merge-write so runs
// made at different times converge to one deduplicated ledger, and each
// write goes to a temp file renamed over the target so a crash never leaves
// a truncated ledger.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/hazyhaar/infcraft/craft"
)

// Store reads and merges the ledger file at one path.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open returns a Store for path. The file need not exist yet.
func Open(path string, opts ...Option) *Store {
	s := &Store{path: path, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the ledger file path.
func (s *Store) Path() string { return s.path }

// Load reads the ledger. A missing or empty file is an empty ledger.
func (s *Store) Load() (craft.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, _, err := s.read()
	return l, err
}

// Merge adds the discoveries of ds not already in the ledger, by semantic
// identity, and rewrites the file. It returns the saved ledger and the
// number of entries added. Duplicates already present in the file are
// collapsed on the same write. Entries missing any of the three names are
// dropped.
func (s *Store) Merge(ds []craft.Discovery) (craft.Ledger, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists, err := s.read()
	if err != nil {
		return nil, 0, err
	}

	merged := existing.Dedup()
	changed := len(merged) != len(existing)

	seen := make(map[craft.Identity]struct{}, len(merged)+len(ds))
	for _, d := range merged {
		seen[d.Identity()] = struct{}{}
	}

	added := 0
	for _, d := range ds {
		d = d.Normalized()
		id := d.Identity()
		if id.A == "" || id.B == "" || id.Result == "" {
			s.logger.Warn("ledger: dropping incomplete discovery",
				"a", id.A, "b", id.B, "result", id.Result)
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, d)
		added++
	}

	if added == 0 && !changed && exists {
		return merged, 0, nil
	}

	if err := s.write(merged); err != nil {
		return nil, 0, err
	}
	s.logger.Debug("ledger: saved", "path", s.path, "entries", len(merged), "added", added)
	return merged, added, nil
}

// read returns the ledger and whether the file exists.
func (s *Store) read() (craft.Ledger, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return craft.Ledger{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledger: read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return craft.Ledger{}, true, nil
	}

	var l craft.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, true, fmt.Errorf("ledger: parse %s: %w", s.path, err)
	}
	if l == nil {
		l = craft.Ledger{}
	}
	return l, true, nil
}

func (s *Store) write(l craft.Ledger) error {
	if l == nil {
		l = craft.Ledger{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	return writeAtomic(s.path, buf.Bytes())
}

// writeAtomic replaces path with data through a synced temp file in the
// same directory.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ledger: mkdir: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ledger: write %s: %w", path, err)
	}
	return nil
}
