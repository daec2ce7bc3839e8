// Package ledger persists the set of symbols already alerted on, so a name
// surfaced in one digest is suppressed in later runs.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// AlertedSet is the durable suppression set of ticker symbols.
type AlertedSet map[string]struct{}

// Contains reports whether symbol is already in the set.
func (s AlertedSet) Contains(symbol string) bool {
	_, ok := s[symbol]
	return ok
}

// Symbols returns the set contents sorted ascending, for stable serialization.
func (s AlertedSet) Symbols() []string {
	out := make([]string, 0, len(s))
	for sym := range s {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// MarkAlerted returns a new set containing the union of set and symbols.
// The input set is not mutated.
func MarkAlerted(set AlertedSet, symbols []string) AlertedSet {
	out := make(AlertedSet, len(set)+len(symbols))
	for sym := range set {
		out[sym] = struct{}{}
	}
	for _, sym := range symbols {
		out[sym] = struct{}{}
	}
	return out
}

// Ledger reads and writes the suppression set as a JSON array of symbol
// strings, the same on-disk shape as the original alerted.json state file.
type Ledger struct {
	path string
}

// New creates a ledger backed by the file at path.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Load reads the persisted set. A missing file yields an empty set with no
// error; an unreadable or corrupt file also yields an empty usable set, with
// the underlying error returned so the caller can log it.
func (l *Ledger) Load() (AlertedSet, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return AlertedSet{}, nil
		}
		return AlertedSet{}, fmt.Errorf("failed to read ledger file: %w", err)
	}

	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return AlertedSet{}, fmt.Errorf("corrupt ledger file: %w", err)
	}

	set := make(AlertedSet, len(symbols))
	for _, sym := range symbols {
		set[sym] = struct{}{}
	}
	return set, nil
}

// Save writes the set atomically: a temp file in the same directory is
// renamed over the target so a crashed run never leaves a half-written file.
func (l *Ledger) Save(set AlertedSet) error {
	data, err := json.Marshal(set.Symbols())
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".alerted-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp ledger file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}
