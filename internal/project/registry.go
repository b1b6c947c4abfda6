package project

import (
	"sort"

	"github.com/AVIDS2/memorix/internal/models"
	"github.com/AVIDS2/memorix/internal/store"
)

// Registry holds the alias groups in memory and persists them through the
// store. Each project id appears in at most one group; the canonical member
// is the highest-priority id in its group.
type Registry struct {
	st     *store.Store
	groups []models.AliasGroup
}

// LoadRegistry reads the alias registry from disk.
func LoadRegistry(st *store.Store) (*Registry, error) {
	groups, err := st.LoadAliases()
	if err != nil {
		return nil, err
	}
	return &Registry{st: st, groups: groups}, nil
}

// Groups returns the current alias groups.
func (r *Registry) Groups() []models.AliasGroup { return r.groups }

// Register folds a detection result into the registry. A group matches when
// it already lists the id, the normalized root path, or the git remote.
// Matching unions the new facts in and recomputes the canonical member;
// no match creates a fresh group. Persisted under the directory lock.
func (r *Registry) Register(info models.ProjectInfo) (models.AliasGroup, error) {
	if info.ID == models.InvalidProjectID {
		return models.AliasGroup{}, nil
	}
	rootPath := ""
	if info.RootPath != "" {
		rootPath = NormalizePath(info.RootPath)
	}

	idx := r.findGroup(info.ID, rootPath, info.GitRemote)
	if idx < 0 {
		group := models.AliasGroup{
			Canonical: info.ID,
			Aliases:   []string{info.ID},
			GitRemote: info.GitRemote,
		}
		if rootPath != "" {
			group.RootPaths = []string{rootPath}
		}
		r.groups = append(r.groups, group)
		idx = len(r.groups) - 1
	} else {
		g := &r.groups[idx]
		g.Aliases = appendUnique(g.Aliases, info.ID)
		if rootPath != "" {
			g.RootPaths = appendUnique(g.RootPaths, rootPath)
		}
		if g.GitRemote == "" {
			g.GitRemote = info.GitRemote
		}
		g.Canonical = pickCanonical(g.Aliases)
	}

	if err := r.persist(); err != nil {
		return models.AliasGroup{}, err
	}
	return r.groups[idx], nil
}

// MergeByBasename merges groups (and loose observed ids) whose ids differ
// only in prefix, e.g. placeholder/foo, local/foo and acme/foo. observedIDs
// lets ids that exist only in stored observations join their group.
func (r *Registry) MergeByBasename(observedIDs []string) error {
	for _, id := range observedIDs {
		if id == "" || id == models.InvalidProjectID {
			continue
		}
		if r.groupOf(id) >= 0 {
			continue
		}
		// Attach to an existing group sharing the basename, if any.
		attached := false
		for i := range r.groups {
			if Basename(r.groups[i].Canonical) == Basename(id) {
				r.groups[i].Aliases = appendUnique(r.groups[i].Aliases, id)
				r.groups[i].Canonical = pickCanonical(r.groups[i].Aliases)
				attached = true
				break
			}
		}
		if !attached {
			r.groups = append(r.groups, models.AliasGroup{
				Canonical: id,
				Aliases:   []string{id},
			})
		}
	}

	// Merge any groups that now share a basename.
	merged := make([]models.AliasGroup, 0, len(r.groups))
	byBase := make(map[string]int)
	for _, g := range r.groups {
		base := Basename(g.Canonical)
		if i, ok := byBase[base]; ok {
			dst := &merged[i]
			for _, a := range g.Aliases {
				dst.Aliases = appendUnique(dst.Aliases, a)
			}
			for _, p := range g.RootPaths {
				dst.RootPaths = appendUnique(dst.RootPaths, p)
			}
			if dst.GitRemote == "" {
				dst.GitRemote = g.GitRemote
			}
			dst.Canonical = pickCanonical(dst.Aliases)
			continue
		}
		byBase[base] = len(merged)
		merged = append(merged, g)
	}
	r.groups = merged
	return r.persist()
}

// ResolveAliases returns every id in the group containing id, or [id] when
// no group knows it. Search expands filters through this so records written
// before canonicalization are never lost.
func (r *Registry) ResolveAliases(id string) []string {
	if i := r.groupOf(id); i >= 0 {
		out := make([]string, len(r.groups[i].Aliases))
		copy(out, r.groups[i].Aliases)
		return out
	}
	return []string{id}
}

// Canonical returns the canonical id for id, or id itself when ungrouped.
func (r *Registry) Canonical(id string) string {
	if i := r.groupOf(id); i >= 0 {
		return r.groups[i].Canonical
	}
	return id
}

func (r *Registry) groupOf(id string) int {
	for i, g := range r.groups {
		for _, a := range g.Aliases {
			if a == id {
				return i
			}
		}
	}
	return -1
}

func (r *Registry) findGroup(id, rootPath, gitRemote string) int {
	if i := r.groupOf(id); i >= 0 {
		return i
	}
	for i, g := range r.groups {
		if rootPath != "" {
			for _, p := range g.RootPaths {
				if p == rootPath {
					return i
				}
			}
		}
		if gitRemote != "" && g.GitRemote == gitRemote {
			return i
		}
	}
	return -1
}

func (r *Registry) persist() error {
	return r.st.WithLock(func() error {
		return r.st.SaveAliases(r.groups)
	})
}

// pickCanonical chooses the highest-priority alias, ties broken
// alphabetically so the choice is stable across processes.
func pickCanonical(aliases []string) string {
	sorted := make([]string, len(aliases))
	copy(sorted, aliases)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := Priority(sorted[i]), Priority(sorted[j])
		if pi != pj {
			return pi > pj
		}
		return sorted[i] < sorted[j]
	})
	if len(sorted) == 0 {
		return ""
	}
	return sorted[0]
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
