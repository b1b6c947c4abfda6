package models

import "time"

// Observation is the primary memory record. Ids are integers allocated from
// a shared counter, unique and strictly increasing within an installation.
// Timestamps are ISO-8601 strings in UTC; LastAccessedAt is empty until the
// record is first returned by search.
type Observation struct {
	ID                int64           `json:"id"`
	EntityName        string          `json:"entityName"`
	Type              ObservationType `json:"type"`
	Title             string          `json:"title"`
	Narrative         string          `json:"narrative"`
	Facts             []string        `json:"facts"`
	FilesModified     []string        `json:"filesModified"`
	Concepts          []string        `json:"concepts"`
	Tokens            int             `json:"tokens"`
	CreatedAt         string          `json:"createdAt"`
	UpdatedAt         string          `json:"updatedAt,omitempty"`
	ProjectID         string          `json:"projectId"`
	HasCausalLanguage bool            `json:"hasCausalLanguage"`
	TopicKey          string          `json:"topicKey,omitempty"`
	RevisionCount     int             `json:"revisionCount"`
	SessionID         string          `json:"sessionId,omitempty"`
	AccessCount       int             `json:"accessCount"`
	LastAccessedAt    string          `json:"lastAccessedAt,omitempty"`
}

// CreatedTime parses CreatedAt. Records written by this process are always
// RFC3339; a zero time is returned for anything else.
func (o *Observation) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339, o.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SearchableText is the text the embedding provider sees: title, narrative
// and facts joined. Kept in one place so store and reindex agree.
func (o *Observation) SearchableText() string {
	text := o.Title + "\n" + o.Narrative
	for _, f := range o.Facts {
		text += "\n" + f
	}
	return text
}

// Now returns the current UTC time in the on-disk timestamp format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
