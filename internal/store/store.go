// Package store owns the durable formats under the flat data directory.
//
// Flatness is a contract: the only project partition is the projectId field
// inside each record. Different editors can disagree about a project's
// identifier, and a flat directory plus the alias registry guarantees they
// still share one file set. Every write goes through fsio.AtomicWrite;
// every mutation happens inside fsio.WithLock at the caller.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AVIDS2/memorix/internal/fsio"
	"github.com/AVIDS2/memorix/internal/memerr"
	"github.com/AVIDS2/memorix/internal/models"
)

// File names inside the data directory.
const (
	ObservationsFile = "observations.json"
	CounterFile      = "counter.json"
	GraphFile        = "graph.jsonl"
	SessionsFile     = "sessions.json"
	ArchiveFile      = "observations.archived.json"
	AliasesFile      = ".project-aliases.json"
	EmbeddingFile    = ".embedding-cache.json"
	MigratedDir      = ".migrated-subdirs"
)

// Store reads and writes the durable files of one data directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory, which is also the lock scope.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// WithLock runs fn under the directory's advisory lock.
func (s *Store) WithLock(fn func() error) error {
	return fsio.WithLock(s.dir, fn)
}

// --- Observations ---

// LoadObservations reads observations.json. Missing file means empty;
// an unparsable file is an IntegrityError and is never auto-repaired.
func (s *Store) LoadObservations() ([]models.Observation, error) {
	var obs []models.Observation
	if err := s.readJSON(ObservationsFile, &obs); err != nil {
		return nil, err
	}
	return obs, nil
}

// SaveObservations writes the full observation array atomically.
func (s *Store) SaveObservations(obs []models.Observation) error {
	return s.writeJSON(ObservationsFile, obs)
}

// --- Counter ---

type counterFile struct {
	NextID int64 `json:"nextId"`
}

// LoadNextID reads counter.json; a missing counter starts at 1.
func (s *Store) LoadNextID() (int64, error) {
	var c counterFile
	if err := s.readJSON(CounterFile, &c); err != nil {
		return 0, err
	}
	if c.NextID < 1 {
		return 1, nil
	}
	return c.NextID, nil
}

// SaveNextID writes counter.json atomically.
func (s *Store) SaveNextID(nextID int64) error {
	return s.writeJSON(CounterFile, counterFile{NextID: nextID})
}

// --- Sessions ---

func (s *Store) LoadSessions() ([]models.Session, error) {
	var sessions []models.Session
	if err := s.readJSON(SessionsFile, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) SaveSessions(sessions []models.Session) error {
	return s.writeJSON(SessionsFile, sessions)
}

// --- Archive ---

// LoadArchive reads the archived observation array.
func (s *Store) LoadArchive() ([]models.Observation, error) {
	var obs []models.Observation
	if err := s.readJSON(ArchiveFile, &obs); err != nil {
		return nil, err
	}
	return obs, nil
}

// AppendArchive appends records to the archive file. The archive is
// append-only from the engine's point of view; nothing moves back out.
func (s *Store) AppendArchive(records []models.Observation) error {
	if len(records) == 0 {
		return nil
	}
	existing, err := s.LoadArchive()
	if err != nil {
		return err
	}
	return s.writeJSON(ArchiveFile, append(existing, records...))
}

// --- Alias registry ---

// LoadAliases reads .project-aliases.json. An unknown version is rejected
// without damaging the file.
func (s *Store) LoadAliases() ([]models.AliasGroup, error) {
	var file models.AliasRegistryFile
	data, err := os.ReadFile(s.path(AliasesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", AliasesFile, err)
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, memerr.WrapFS(memerr.KindIntegrityError, "parse", s.path(AliasesFile), err)
	}
	if file.Version != models.AliasRegistryVersion {
		return nil, memerr.Newf(memerr.KindIntegrityError,
			"alias registry version %d not supported (want %d)", file.Version, models.AliasRegistryVersion)
	}
	return file.Groups, nil
}

// SaveAliases writes the registry with the current version tag.
func (s *Store) SaveAliases(groups []models.AliasGroup) error {
	return s.writeJSON(AliasesFile, models.AliasRegistryFile{
		Version: models.AliasRegistryVersion,
		Groups:  groups,
	})
}

// --- helpers ---

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return memerr.WrapFS(memerr.KindIntegrityError, "parse", s.path(name), err)
	}
	return nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := fsio.AtomicWrite(s.path(name), data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
