package models

// StoreObservationInput is what a client supplies to memory_store. The
// manager enriches it (extracted files, concepts, causal flag, tokens)
// before anything touches disk.
type StoreObservationInput struct {
	EntityName    string          `json:"entityName"`
	Type          ObservationType `json:"type"`
	Title         string          `json:"title"`
	Narrative     string          `json:"narrative"`
	Facts         []string        `json:"facts,omitempty"`
	FilesModified []string        `json:"filesModified,omitempty"`
	Concepts      []string        `json:"concepts,omitempty"`
	TopicKey      string          `json:"topicKey,omitempty"`
	SessionID     string          `json:"sessionId,omitempty"`
	ProjectID     string          `json:"projectId,omitempty"`
}

// StoreObservationResult reports what store did: a fresh insert or a
// topic-key upsert of an existing record.
type StoreObservationResult struct {
	ID            int64 `json:"id"`
	Upserted      bool  `json:"upserted"`
	RevisionCount int   `json:"revisionCount"`
	Tokens        int   `json:"tokens"`
}

// Search modes. Default is automatic: lexical, upgraded to hybrid when a
// vector provider is active. "vector" demands vector ranking and fails
// with EmbeddingUnavailable when no provider is active.
const (
	SearchModeAuto   = ""
	SearchModeVector = "vector"
)

// SearchRequest is the Layer 1 query. Since/Until are ISO-8601 bounds
// applied against createdAt after lexical matching.
type SearchRequest struct {
	Query     string          `json:"query"`
	ProjectID string          `json:"projectId,omitempty"`
	Type      ObservationType `json:"type,omitempty"`
	Since     string          `json:"since,omitempty"`
	Until     string          `json:"until,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	MaxTokens int             `json:"maxTokens,omitempty"`
	Mode      string          `json:"mode,omitempty"`
}

// SearchHit is a compact Layer 1 entry, sized to cost 50–100 tokens.
// MatchedFields lists the fields whose content contains a query token;
// a hit ranked purely by edit distance or vector similarity says "fuzzy".
type SearchHit struct {
	ID            int64           `json:"id"`
	Time          string          `json:"time"`
	Type          ObservationType `json:"type"`
	Icon          string          `json:"icon"`
	Title         string          `json:"title"`
	Tokens        int             `json:"tokens"`
	MatchedFields []string        `json:"matchedFields,omitempty"`
}

// SearchResponse is the Layer 1 result set.
type SearchResponse struct {
	Hits  []SearchHit `json:"hits"`
	Total int         `json:"total"`
}

// TimelineRequest asks for chronological context around an anchor (Layer 2).
type TimelineRequest struct {
	AnchorID    int64 `json:"anchorId"`
	DepthBefore int   `json:"depthBefore,omitempty"`
	DepthAfter  int   `json:"depthAfter,omitempty"`
}

// TimelineResponse returns the anchor plus adjacent observations in
// createdAt order.
type TimelineResponse struct {
	Anchor *Observation  `json:"anchor"`
	Before []Observation `json:"before"`
	After  []Observation `json:"after"`
}

// SessionContext is the bundle returned by session_start: the previous
// session's summary plus the highest-retention observations worth
// rehydrating into a fresh context window.
type SessionContext struct {
	Session         Session       `json:"session"`
	PreviousSummary string        `json:"previousSummary,omitempty"`
	Highlights      []Observation `json:"highlights,omitempty"`
}

// RetentionEntry is one row of a retention report.
type RetentionEntry struct {
	ID     int64           `json:"id"`
	Type   ObservationType `json:"type"`
	Title  string          `json:"title"`
	Score  float64         `json:"score"`
	Class  string          `json:"class"`
	Immune bool            `json:"immune"`
}

// ArchiveResult reports what a retention archive pass moved.
type ArchiveResult struct {
	Archived []int64 `json:"archived"`
	Kept     int     `json:"kept"`
}

// Stats summarizes a project's memory, for the dashboard and memory_stats.
type Stats struct {
	ProjectID     string         `json:"projectId"`
	Aliases       []string       `json:"aliases"`
	Observations  int            `json:"observations"`
	Archived      int            `json:"archived"`
	TotalTokens   int            `json:"totalTokens"`
	ByType        map[string]int `json:"byType"`
	Entities      int            `json:"entities"`
	Relations     int            `json:"relations"`
	Sessions      int            `json:"sessions"`
	EmbeddingName string         `json:"embeddingProvider,omitempty"`
}
