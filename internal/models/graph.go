package models

// Entity is a knowledge-graph node, unique by Name. Observations is an
// append-only set of free-text lines deduplicated by exact equality.
type Entity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`
}

// Relation is a directed edge, unique by (From, To, RelationType). Both
// endpoints must name existing entities.
type Relation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

// Graph is the full knowledge graph as returned by read_graph.
type Graph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}
