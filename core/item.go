package core

import (
	"strings"
	"time"
)

// ItemType identifies what kind of material a RetrievedItem carries.
// Connector items use the form "connector:<kind>", e.g. "connector:calendar".
type ItemType string

const (
	ItemMessage ItemType = "message"
	ItemFile    ItemType = "file"
	ItemMemory  ItemType = "memory"

	connectorPrefix = "connector:"
)

// Provenance values for items that do not come from a connector.
// Connector items use the connector kind as their provenance.
const (
	ProvenanceLocal  = "local"
	ProvenanceMemory = "memory"
)

// ConnectorType returns the item type for a connector kind.
func ConnectorType(kind string) ItemType {
	return ItemType(connectorPrefix + kind)
}

// ConnectorKind returns the connector kind for connector item types.
func (t ItemType) ConnectorKind() (string, bool) {
	s := string(t)
	if !strings.HasPrefix(s, connectorPrefix) {
		return "", false
	}
	return s[len(connectorPrefix):], true
}

// IsConnector reports whether t was produced by a connector source.
func (t ItemType) IsConnector() bool {
	_, ok := t.ConnectorKind()
	return ok
}

// ItemMetadata describes where a RetrievedItem came from.
type ItemMetadata struct {
	ContainerID    string    `json:"container_id,omitempty"`
	ContainerTitle string    `json:"container_title,omitempty"`
	ScopeID        string    `json:"scope_id,omitempty"`
	ScopeName      string    `json:"scope_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Provenance     string    `json:"provenance"`
}

// RetrievedItem is one ranked piece of context. Items are passed by value
// and are not modified once a source has returned them.
type RetrievedItem struct {
	Type       ItemType     `json:"type"`
	ID         string       `json:"id"`
	Content    string       `json:"content"`
	Summary    string       `json:"summary,omitempty"`
	Similarity float64      `json:"similarity"`
	Metadata   ItemMetadata `json:"metadata"`
}

// Label returns the text used when rendering the item: the summary when
// present, otherwise the content.
func (i RetrievedItem) Label() string {
	if i.Summary != "" {
		return i.Summary
	}
	return i.Content
}

// ClampSimilarity forces s into [0,1].
func ClampSimilarity(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
