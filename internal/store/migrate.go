package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/AVIDS2/memorix/internal/models"
)

// MigrateSubdirs flattens any legacy per-project subdirectory layout into
// the base directory. It runs once: after the merged output is written and
// the subdirectories are moved into .migrated-subdirs/, no subdirectory
// contains an observations file and the scan finds nothing.
//
// Merge rules: observations dedup by (title, createdAt), re-sorted by
// createdAt and re-numbered from 1; entities union by name with their
// observation lines unioned; relations union by (from, to, relationType);
// sessions concatenate.
func (s *Store) MigrateSubdirs(logger *slog.Logger) error {
	subdirs, err := s.legacySubdirs()
	if err != nil {
		return err
	}
	if len(subdirs) == 0 {
		return nil
	}

	return s.WithLock(func() error {
		// Re-check under the lock: another process may have migrated first.
		subdirs, err := s.legacySubdirs()
		if err != nil {
			return err
		}
		if len(subdirs) == 0 {
			return nil
		}
		logger.Info("flattening legacy subdirectories", "count", len(subdirs))

		merged, err := s.LoadObservations()
		if err != nil {
			return err
		}
		graph, err := s.LoadGraph()
		if err != nil {
			return err
		}
		sessions, err := s.LoadSessions()
		if err != nil {
			return err
		}

		for _, dir := range subdirs {
			sub, err := New(filepath.Join(s.dir, dir))
			if err != nil {
				return err
			}
			subObs, err := sub.LoadObservations()
			if err != nil {
				return err
			}
			merged = append(merged, subObs...)

			subGraph, err := sub.LoadGraph()
			if err != nil {
				return err
			}
			graph = mergeGraphs(graph, subGraph)

			subSessions, err := sub.LoadSessions()
			if err != nil {
				return err
			}
			sessions = append(sessions, subSessions...)
		}

		merged = dedupObservations(merged)
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].CreatedAt < merged[j].CreatedAt
		})
		for i := range merged {
			merged[i].ID = int64(i + 1)
		}

		if err := s.SaveObservations(merged); err != nil {
			return err
		}
		if err := s.SaveGraph(graph); err != nil {
			return err
		}
		if err := s.SaveSessions(sessions); err != nil {
			return err
		}
		if err := s.SaveNextID(int64(len(merged) + 1)); err != nil {
			return err
		}

		// Keep the pre-flat layouts as a backup rather than deleting them.
		backup := s.path(MigratedDir)
		if err := os.MkdirAll(backup, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", MigratedDir, err)
		}
		for _, dir := range subdirs {
			src := filepath.Join(s.dir, dir)
			dst := filepath.Join(backup, dir)
			if err := os.Rename(src, dst); err != nil {
				return fmt.Errorf("move %s to backup: %w", dir, err)
			}
		}
		logger.Info("flattening migration complete", "observations", len(merged))
		return nil
	})
}

// legacySubdirs lists base subdirectories that hold an observations file.
func (s *Store) legacySubdirs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == MigratedDir {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, e.Name(), ObservationsFile)); err == nil {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// dedupObservations drops records that repeat a (title, createdAt) pair,
// keeping the first occurrence.
func dedupObservations(obs []models.Observation) []models.Observation {
	type key struct{ title, created string }
	seen := make(map[key]bool, len(obs))
	out := make([]models.Observation, 0, len(obs))
	for _, o := range obs {
		k := key{o.Title, o.CreatedAt}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, o)
	}
	return out
}

func mergeGraphs(a, b models.Graph) models.Graph {
	byName := make(map[string]int, len(a.Entities))
	for i, e := range a.Entities {
		byName[e.Name] = i
	}
	for _, e := range b.Entities {
		if i, ok := byName[e.Name]; ok {
			a.Entities[i].Observations = unionLines(a.Entities[i].Observations, e.Observations)
			continue
		}
		byName[e.Name] = len(a.Entities)
		a.Entities = append(a.Entities, e)
	}

	type relKey struct{ from, to, rel string }
	seen := make(map[relKey]bool, len(a.Relations))
	for _, r := range a.Relations {
		seen[relKey{r.From, r.To, r.RelationType}] = true
	}
	for _, r := range b.Relations {
		k := relKey{r.From, r.To, r.RelationType}
		if !seen[k] {
			seen[k] = true
			a.Relations = append(a.Relations, r)
		}
	}
	return a
}

func unionLines(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, line := range a {
		seen[line] = true
	}
	for _, line := range b {
		if !seen[line] {
			seen[line] = true
			a = append(a, line)
		}
	}
	return a
}
