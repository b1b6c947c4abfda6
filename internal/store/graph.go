package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/AVIDS2/memorix/internal/fsio"
	"github.com/AVIDS2/memorix/internal/memerr"
	"github.com/AVIDS2/memorix/internal/models"
)

// graphLine is one JSONL record, tagged entity or relation. The line shape
// is interchangeable with the official memory server's graph file, so other
// tools reading or writing graph.jsonl must be tolerated.
type graphLine struct {
	Type         string   `json:"type"`
	Name         string   `json:"name,omitempty"`
	EntityType   string   `json:"entityType,omitempty"`
	Observations []string `json:"observations,omitempty"`
	From         string   `json:"from,omitempty"`
	To           string   `json:"to,omitempty"`
	RelationType string   `json:"relationType,omitempty"`
}

// LoadGraph reads graph.jsonl line by line. Unknown line types are skipped
// rather than rejected — another tool may extend the format. A line that is
// not valid JSON makes the whole file an IntegrityError.
func (s *Store) LoadGraph() (models.Graph, error) {
	var g models.Graph

	f, err := os.Open(s.path(GraphFile))
	if err != nil {
		if os.IsNotExist(err) {
			return g, nil
		}
		return g, fmt.Errorf("open %s: %w", GraphFile, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var gl graphLine
		if err := json.Unmarshal([]byte(line), &gl); err != nil {
			return models.Graph{}, memerr.WrapFS(memerr.KindIntegrityError, "parse",
				fmt.Sprintf("%s:%d", s.path(GraphFile), lineNo), err)
		}
		switch gl.Type {
		case "entity":
			g.Entities = append(g.Entities, models.Entity{
				Name:         gl.Name,
				EntityType:   gl.EntityType,
				Observations: gl.Observations,
			})
		case "relation":
			g.Relations = append(g.Relations, models.Relation{
				From:         gl.From,
				To:           gl.To,
				RelationType: gl.RelationType,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return models.Graph{}, fmt.Errorf("scan %s: %w", GraphFile, err)
	}
	return g, nil
}

// SaveGraph writes the whole graph as JSONL, entities first. The format is
// line-additive so future writers can append single lines.
func (s *Store) SaveGraph(g models.Graph) error {
	var b strings.Builder
	for _, e := range g.Entities {
		line, err := json.Marshal(graphLine{
			Type:         "entity",
			Name:         e.Name,
			EntityType:   e.EntityType,
			Observations: e.Observations,
		})
		if err != nil {
			return fmt.Errorf("marshal entity %s: %w", e.Name, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	for _, r := range g.Relations {
		line, err := json.Marshal(graphLine{
			Type:         "relation",
			From:         r.From,
			To:           r.To,
			RelationType: r.RelationType,
		})
		if err != nil {
			return fmt.Errorf("marshal relation: %w", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	if err := fsio.AtomicWrite(s.path(GraphFile), []byte(b.String())); err != nil {
		return fmt.Errorf("write %s: %w", GraphFile, err)
	}
	return nil
}
