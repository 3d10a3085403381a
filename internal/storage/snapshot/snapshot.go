// Package snapshot provides the durable whole-store persistence layer:
// one versioned YAML document holding the three player-state maps,
// atomically replaced on every save.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the current on-disk schema version, stamped into
// every saved snapshot.
const SchemaVersion = 1

// ErrNotFound indicates no snapshot file exists at the store's path.
var ErrNotFound = errors.New("snapshot not found")

// Player is the on-disk shape of one player record.
type Player struct {
	HP     int `yaml:"hp"`
	Energy int `yaml:"energy"`
	EXP    int `yaml:"exp"`
	Level  int `yaml:"level"`
	Coins  int `yaml:"coins"`
}

// Snapshot is the full durable state: three top-level maps keyed by
// player ID, plus save metadata.
type Snapshot struct {
	Version     int                         `yaml:"version"`
	SaveID      string                      `yaml:"save_id"`
	SavedAt     time.Time                   `yaml:"saved_at"`
	Players     map[string]Player           `yaml:"players"`
	Inventories map[string]map[string]int   `yaml:"inventories"`
	Cooldowns   map[string]map[string]int64 `yaml:"cooldowns"`
}

// New returns an empty snapshot with initialised maps.
func New() *Snapshot {
	return &Snapshot{
		Players:     make(map[string]Player),
		Inventories: make(map[string]map[string]int),
		Cooldowns:   make(map[string]map[string]int64),
	}
}

// Store reads and writes snapshots at a fixed file path.
type Store struct {
	path string
}

// NewStore returns a Store bound to path. The file need not exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot from disk.
//
// Postcondition: returns ErrNotFound when no file exists at the path; a
// wrapped error for unreadable, unparseable, or newer-versioned files;
// otherwise a snapshot whose three maps are non-nil.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", s.path, err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", s.path, err)
	}
	if snap.Version > SchemaVersion {
		return nil, fmt.Errorf("snapshot %s has version %d, newer than supported %d", s.path, snap.Version, SchemaVersion)
	}
	if snap.Players == nil {
		snap.Players = make(map[string]Player)
	}
	if snap.Inventories == nil {
		snap.Inventories = make(map[string]map[string]int)
	}
	if snap.Cooldowns == nil {
		snap.Cooldowns = make(map[string]map[string]int64)
	}
	return &snap, nil
}

// Save stamps snap with the schema version, a fresh save UUID and the
// save time, then atomically replaces the store file.
//
// Postcondition: on success the file at Path holds the complete
// document; on failure the previous file, if any, is untouched.
func (s *Store) Save(snap *Snapshot) error {
	snap.Version = SchemaVersion
	snap.SaveID = uuid.NewString()
	snap.SavedAt = time.Now().UTC()

	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	return WriteAtomic(s.path, data)
}

// WriteAtomic writes data to path via a same-directory temp file, fsync
// and rename, creating parent directories as needed. A crash mid-write
// leaves either the old file or the new one, never a partial document.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
