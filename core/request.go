package core

// ContextRequest asks for context relevant to QueryText on behalf of OwnerID.
type ContextRequest struct {
	OwnerID   string
	QueryText string

	// ScopeID narrows content search to one scope (e.g. a project). Optional.
	ScopeID string

	// ExcludeContainerID keeps the container currently being composed
	// (usually the in-flight conversation) out of its own results.
	ExcludeContainerID string

	// IncludeConnectors enables the external connector sources.
	IncludeConnectors bool

	// MaxResults bounds len(RetrievalResult.Items). Zero or less returns
	// an empty result without touching any source.
	MaxResults int
}

// RetrievalResult is the ranked, formatted output of a retrieval.
type RetrievalResult struct {
	Query string `json:"query"`

	// Items are sorted by descending similarity, len(Items) <= MaxResults.
	Items []RetrievedItem `json:"items"`

	FormattedText   string  `json:"formatted_text"`
	EstimatedTokens int     `json:"estimated_tokens"`
	CostUnits       float64 `json:"cost_units"`
}

// VectorQuery is a similarity query against a vector content index.
type VectorQuery struct {
	OwnerID            string
	Vector             []float32
	ScopeID            string
	ExcludeContainerID string
	Threshold          float64
	Limit              int
}
