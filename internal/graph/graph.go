// Package graph is the knowledge graph over entities and relations,
// persisted as JSONL in a format other memory tools also read and write.
package graph

import (
	"strings"
	"sync"

	"github.com/AVIDS2/memorix/internal/memerr"
	"github.com/AVIDS2/memorix/internal/models"
	"github.com/AVIDS2/memorix/internal/store"
)

// Manager holds the graph in memory and persists every mutation under the
// directory lock, reloading from disk first so concurrent writers merge.
type Manager struct {
	st *store.Store

	mu sync.RWMutex
	g  models.Graph
}

func NewManager(st *store.Store) (*Manager, error) {
	g, err := st.LoadGraph()
	if err != nil {
		return nil, err
	}
	return &Manager{st: st, g: g}, nil
}

// CreateEntities adds entities, skipping names that already exist. Returns
// the entities actually created.
func (m *Manager) CreateEntities(entities []models.Entity) ([]models.Entity, error) {
	var created []models.Entity
	err := m.withGraph(func(g *models.Graph) bool {
		names := make(map[string]bool, len(g.Entities))
		for _, e := range g.Entities {
			names[e.Name] = true
		}
		for _, e := range entities {
			if e.Name == "" || names[e.Name] {
				continue
			}
			names[e.Name] = true
			g.Entities = append(g.Entities, e)
			created = append(created, e)
		}
		return len(created) > 0
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateRelations adds relations, skipping tuples that already exist. Both
// endpoints must name existing entities.
func (m *Manager) CreateRelations(relations []models.Relation) ([]models.Relation, error) {
	var created []models.Relation
	err := m.withGraph(func(g *models.Graph) bool {
		names := make(map[string]bool, len(g.Entities))
		for _, e := range g.Entities {
			names[e.Name] = true
		}
		existing := make(map[models.Relation]bool, len(g.Relations))
		for _, r := range g.Relations {
			existing[r] = true
		}
		for _, r := range relations {
			if existing[r] {
				continue
			}
			if !names[r.From] || !names[r.To] {
				continue
			}
			existing[r] = true
			g.Relations = append(g.Relations, r)
			created = append(created, r)
		}
		return len(created) > 0
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AddObservations appends lines to an entity's observation set,
// deduplicating by exact string equality. Returns the lines added.
func (m *Manager) AddObservations(entityName string, lines []string) ([]string, error) {
	var added []string
	found := false
	err := m.withGraph(func(g *models.Graph) bool {
		for i := range g.Entities {
			if g.Entities[i].Name != entityName {
				continue
			}
			found = true
			seen := make(map[string]bool, len(g.Entities[i].Observations))
			for _, o := range g.Entities[i].Observations {
				seen[o] = true
			}
			for _, line := range lines {
				if line == "" || seen[line] {
					continue
				}
				seen[line] = true
				g.Entities[i].Observations = append(g.Entities[i].Observations, line)
				added = append(added, line)
			}
			break
		}
		return len(added) > 0
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, memerr.Newf(memerr.KindNotFound, "entity %q not found", entityName)
	}
	return added, nil
}

// SearchNodes matches entity name or any observation line, case-insensitively.
func (m *Manager) SearchNodes(query string) []models.Entity {
	q := strings.ToLower(query)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Entity
	for _, e := range m.g.Entities {
		if strings.Contains(strings.ToLower(e.Name), q) {
			out = append(out, e)
			continue
		}
		for _, o := range e.Observations {
			if strings.Contains(strings.ToLower(o), q) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// OpenNodes returns full entity records for names, skipping unknown names.
func (m *Manager) OpenNodes(names []string) []models.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byName := make(map[string]models.Entity, len(m.g.Entities))
	for _, e := range m.g.Entities {
		byName[e.Name] = e
	}
	out := make([]models.Entity, 0, len(names))
	for _, n := range names {
		if e, ok := byName[n]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ReadGraph returns a copy of the whole graph.
func (m *Manager) ReadGraph() models.Graph {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := models.Graph{
		Entities:  make([]models.Entity, len(m.g.Entities)),
		Relations: make([]models.Relation, len(m.g.Relations)),
	}
	copy(out.Entities, m.g.Entities)
	copy(out.Relations, m.g.Relations)
	return out
}

// withGraph runs a mutation under the directory lock against the freshly
// reloaded graph, persisting only when fn reports a change.
func (m *Manager) withGraph(fn func(g *models.Graph) bool) error {
	return m.st.WithLock(func() error {
		g, err := m.st.LoadGraph()
		if err != nil {
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		changed := fn(&g)
		if changed {
			if err := m.st.SaveGraph(g); err != nil {
				return err
			}
		}
		m.g = g
		return nil
	})
}
