package odatax

// SearchOption represents a search configuration option.
type SearchOption interface {
	Apply(*SearchConfig)
}

// SearchConfig holds all search configuration parameters as uncompiled expressions.
type SearchConfig struct {
	// Filters contains predicates that must all hold. They are combined with "and".
	Filters []Node

	// OrderBy lists ordering terms in priority order.
	OrderBy []OrderTerm

	// Select lists the fields to return.
	Select []Node

	// SearchFields restricts full text search to these fields.
	SearchFields []Node

	// Facets lists the fields to compute facets for.
	Facets []Node

	// HighlightFields lists the fields to highlight hits in.
	HighlightFields []Node

	// HighlightPreTag is prepended to hit highlights.
	HighlightPreTag string

	// HighlightPostTag is appended to hit highlights.
	HighlightPostTag string

	// MinimumCoverage is the percentage of the index that must be covered, nil for the engine default.
	MinimumCoverage *float64

	// Top specifies the maximum number of results to return, 0 for the engine default.
	Top int

	// Skip specifies the number of results to skip for pagination.
	Skip int

	// IncludeTotalCount requests the total number of matches.
	IncludeTotalCount bool

	// ScoringProfile names the scoring profile to rank with.
	ScoringProfile string

	// ScoringParameters are "name-value1,value2" scoring function parameters.
	ScoringParameters []string

	// SearchMode controls whether any or all terms must match.
	SearchMode SearchMode

	// UseFuzzyMatching enables fuzzy matching for suggestions.
	UseFuzzyMatching bool
}

// OrderTerm represents a field to sort by.
type OrderTerm struct {
	// Field selects the field to sort by.
	Field Node
	// Desc indicates whether to sort in descending order (true) or ascending order (false).
	Desc bool
}

// NewSearchConfig applies opts to an empty configuration.
func NewSearchConfig(opts ...SearchOption) *SearchConfig {
	cfg := &SearchConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(cfg)
		}
	}
	return cfg
}

// optionFunc is a function that implements SearchOption.
type optionFunc func(*SearchConfig)

// Apply implements the SearchOption interface for optionFunc.
func (f optionFunc) Apply(cfg *SearchConfig) {
	f(cfg)
}

// Where adds a predicate to the filter.
func Where(predicate Node) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.Filters = append(cfg.Filters, predicate)
	})
}

// WithOrderBy appends an ordering term. Terms are never deduplicated or
// reordered; earlier calls take priority.
func WithOrderBy(field Node, desc bool) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.OrderBy = append(cfg.OrderBy, OrderTerm{Field: field, Desc: desc})
	})
}

// WithSelect adds a field to return.
func WithSelect(field Node) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.Select = append(cfg.Select, field)
	})
}

// WithSearchField adds a field to search in.
func WithSearchField(field Node) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.SearchFields = append(cfg.SearchFields, field)
	})
}

// WithFacet adds a facet field.
func WithFacet(field Node) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.Facets = append(cfg.Facets, field)
	})
}

// WithHighlightField adds a field to highlight.
func WithHighlightField(field Node) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.HighlightFields = append(cfg.HighlightFields, field)
	})
}

// WithHighlightTags sets the tags wrapped around hit highlights.
func WithHighlightTags(pre, post string) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.HighlightPreTag = pre
		cfg.HighlightPostTag = post
	})
}

// WithMinimumCoverage sets the minimum index coverage percentage.
func WithMinimumCoverage(percent float64) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.MinimumCoverage = &percent
	})
}

// WithTop sets the maximum number of results to return.
func WithTop(n int) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.Top = n
	})
}

// WithSkip sets the number of results to skip for pagination.
func WithSkip(n int) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.Skip = n
	})
}

// WithIncludeTotalCount requests the total match count.
func WithIncludeTotalCount(include bool) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.IncludeTotalCount = include
	})
}

// WithScoringProfile sets the scoring profile.
func WithScoringProfile(name string) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.ScoringProfile = name
	})
}

// WithScoringParameter adds a scoring parameter.
func WithScoringParameter(param string) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.ScoringParameters = append(cfg.ScoringParameters, param)
	})
}

// WithSearchMode sets the search mode.
func WithSearchMode(mode SearchMode) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.SearchMode = mode
	})
}

// WithFuzzyMatching enables or disables fuzzy matching.
func WithFuzzyMatching(enabled bool) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.UseFuzzyMatching = enabled
	})
}
