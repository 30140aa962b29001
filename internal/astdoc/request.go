package astdoc

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/odatax"
	"gopkg.in/yaml.v3"
)

// Request is a search request document.
type Request struct {
	// Search is the full text query. It is not part of the compiled parameters.
	Search string `yaml:"search,omitempty"`

	// Filter predicates are combined with "and".
	Filter  Exprs       `yaml:"filter,omitempty"`
	OrderBy []OrderTerm `yaml:"orderBy,omitempty"`
	Select  Exprs       `yaml:"select,omitempty"`

	SearchFields     Exprs  `yaml:"searchFields,omitempty"`
	Facets           Exprs  `yaml:"facets,omitempty"`
	Highlight        Exprs  `yaml:"highlight,omitempty"`
	HighlightPreTag  string `yaml:"highlightPreTag,omitempty"`
	HighlightPostTag string `yaml:"highlightPostTag,omitempty"`

	MinimumCoverage   *float64 `yaml:"minimumCoverage,omitempty"`
	Top               int      `yaml:"top,omitempty"`
	Skip              int      `yaml:"skip,omitempty"`
	Count             bool     `yaml:"count,omitempty"`
	ScoringProfile    string   `yaml:"scoringProfile,omitempty"`
	ScoringParameters []string `yaml:"scoringParameters,omitempty"`
	SearchMode        string   `yaml:"searchMode,omitempty"`
	Fuzzy             bool     `yaml:"fuzzy,omitempty"`
}

// OrderTerm is one ordering term of a request.
type OrderTerm struct {
	Field Expr `yaml:"field"`
	Desc  bool `yaml:"desc,omitempty"`
}

// ParseRequest decodes a request document. Unknown keys are rejected.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("request document is empty")
		}
		return nil, errors.Wrap(err, "failed to parse request")
	}
	for i, o := range req.OrderBy {
		if o.Field.Node == nil {
			return nil, errors.Newf("orderBy term %d has no field", i)
		}
	}
	return &req, nil
}

// LoadRequest reads and decodes a request file.
func LoadRequest(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read request file")
	}
	return ParseRequest(data)
}

// Options converts the request into search options, in document order.
func (r *Request) Options() []odatax.SearchOption {
	var opts []odatax.SearchOption
	for _, f := range r.Filter {
		opts = append(opts, odatax.Where(f.Node))
	}
	for _, o := range r.OrderBy {
		opts = append(opts, odatax.WithOrderBy(o.Field.Node, o.Desc))
	}
	for _, s := range r.Select {
		opts = append(opts, odatax.WithSelect(s.Node))
	}
	for _, s := range r.SearchFields {
		opts = append(opts, odatax.WithSearchField(s.Node))
	}
	for _, f := range r.Facets {
		opts = append(opts, odatax.WithFacet(f.Node))
	}
	for _, h := range r.Highlight {
		opts = append(opts, odatax.WithHighlightField(h.Node))
	}
	if r.HighlightPreTag != "" || r.HighlightPostTag != "" {
		opts = append(opts, odatax.WithHighlightTags(r.HighlightPreTag, r.HighlightPostTag))
	}
	if r.MinimumCoverage != nil {
		opts = append(opts, odatax.WithMinimumCoverage(*r.MinimumCoverage))
	}
	if r.Top != 0 {
		opts = append(opts, odatax.WithTop(r.Top))
	}
	if r.Skip != 0 {
		opts = append(opts, odatax.WithSkip(r.Skip))
	}
	if r.Count {
		opts = append(opts, odatax.WithIncludeTotalCount(true))
	}
	if r.ScoringProfile != "" {
		opts = append(opts, odatax.WithScoringProfile(r.ScoringProfile))
	}
	for _, p := range r.ScoringParameters {
		opts = append(opts, odatax.WithScoringParameter(p))
	}
	if r.SearchMode != "" {
		opts = append(opts, odatax.WithSearchMode(odatax.SearchMode(r.SearchMode)))
	}
	if r.Fuzzy {
		opts = append(opts, odatax.WithFuzzyMatching(true))
	}
	return opts
}
