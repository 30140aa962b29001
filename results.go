package odatax

// Result represents a single search result.
type Result struct {
	// ID is the unique identifier of the result.
	ID string `json:"id"`

	// Score represents the relevance score of this result.
	Score float64 `json:"score"`

	// Fields contains the selected document fields keyed by their external names.
	Fields map[string]any `json:"fields"`
}

// Results represents a collection of search results with metadata.
type Results struct {
	// Items contains the individual search results.
	Items []Result `json:"items"`

	// Total is the total number of matching documents, set when the count was requested.
	Total *int64 `json:"total,omitempty"`

	// Took is the time taken to execute the search in milliseconds.
	Took int64 `json:"took_ms"`

	// MaxScore is the maximum relevance score across all results.
	MaxScore float64 `json:"max_score"`

	// Query is the original query string for reference.
	Query string `json:"query"`

	// NextSkip can be used for pagination.
	NextSkip *int `json:"next_skip,omitempty"`

	// Facets holds value counts per requested facet field, most frequent first.
	Facets map[string][]FacetCount `json:"facets,omitempty"`
}

// FacetCount is the number of matching documents holding a facet value.
type FacetCount struct {
	Value any   `json:"value"`
	Count int64 `json:"count"`
}
