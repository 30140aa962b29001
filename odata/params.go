package odata

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/odatax"
)

// Parameters is a compiled search request.
type Parameters struct {
	Filter            string   `json:"filter,omitempty"`
	OrderBy           []string `json:"orderBy,omitempty"`
	Select            []string `json:"select,omitempty"`
	SearchFields      []string `json:"searchFields,omitempty"`
	Facets            []string `json:"facets,omitempty"`
	HighlightFields   []string `json:"highlightFields,omitempty"`
	HighlightPreTag   string   `json:"highlightPreTag,omitempty"`
	HighlightPostTag  string   `json:"highlightPostTag,omitempty"`
	MinimumCoverage   *float64 `json:"minimumCoverage,omitempty"`
	Top               *int     `json:"top,omitempty"`
	Skip              *int     `json:"skip,omitempty"`
	IncludeTotalCount bool     `json:"includeTotalCount,omitempty"`
	ScoringProfile    string   `json:"scoringProfile,omitempty"`
	ScoringParameters []string `json:"scoringParameters,omitempty"`
	SearchMode        string   `json:"searchMode,omitempty"`
	UseFuzzyMatching  bool     `json:"useFuzzyMatching,omitempty"`
}

// Build compiles the options into search parameters.
func (c *Compiler) Build(opts ...odatax.SearchOption) (*Parameters, error) {
	return c.BuildConfig(odatax.NewSearchConfig(opts...))
}

// BuildConfig compiles cfg into search parameters. Filters are combined
// left to right with "and".
func (c *Compiler) BuildConfig(cfg *odatax.SearchConfig) (*Parameters, error) {
	if cfg == nil {
		return nil, errors.Wrap(odatax.ErrInvalidArgument, "search config is nil")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	p := &Parameters{
		HighlightPreTag:   cfg.HighlightPreTag,
		HighlightPostTag:  cfg.HighlightPostTag,
		MinimumCoverage:   cfg.MinimumCoverage,
		IncludeTotalCount: cfg.IncludeTotalCount,
		ScoringProfile:    cfg.ScoringProfile,
		ScoringParameters: cfg.ScoringParameters,
		SearchMode:        string(cfg.SearchMode),
		UseFuzzyMatching:  cfg.UseFuzzyMatching,
	}
	if cfg.Top > 0 {
		top := cfg.Top
		p.Top = &top
	}
	if cfg.Skip > 0 {
		skip := cfg.Skip
		p.Skip = &skip
	}

	if filter := CombineFilters(cfg.Filters); filter != nil {
		text, err := c.CompilePredicate(filter)
		if err != nil {
			return nil, errors.Wrap(err, "failed to compile filter")
		}
		p.Filter = text
	}

	for _, term := range cfg.OrderBy {
		text, err := c.CompileOrderingTerm(term.Field, term.Desc)
		if err != nil {
			return nil, errors.Wrap(err, "failed to compile ordering")
		}
		p.OrderBy = append(p.OrderBy, text)
	}

	var err error
	if p.Select, err = c.fieldPaths(cfg.Select, "select"); err != nil {
		return nil, err
	}
	for _, f := range cfg.SearchFields {
		if _, ok := f.(odatax.Score); ok {
			return nil, errors.Wrap(unsupported(f, "relevance score is not a searchable field"), "failed to compile search field")
		}
	}
	if p.SearchFields, err = c.fieldPaths(cfg.SearchFields, "search field"); err != nil {
		return nil, err
	}
	if p.Facets, err = c.fieldPaths(cfg.Facets, "facet"); err != nil {
		return nil, err
	}
	if p.HighlightFields, err = c.fieldPaths(cfg.HighlightFields, "highlight field"); err != nil {
		return nil, err
	}
	return p, nil
}

// CombineFilters folds filters into a single conjunction, or nil when there are none.
func CombineFilters(filters []odatax.Node) odatax.Node {
	var combined odatax.Node
	for _, f := range filters {
		if combined == nil {
			combined = f
			continue
		}
		combined = odatax.And(combined, f)
	}
	return combined
}

func (c *Compiler) fieldPaths(nodes []odatax.Node, what string) ([]string, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		text, err := c.CompileFieldPath(n)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to compile %s", what)
		}
		out = append(out, text)
	}
	return out, nil
}

func validateConfig(cfg *odatax.SearchConfig) error {
	if cfg.Top < 0 {
		return errors.Wrapf(odatax.ErrInvalidOption, "top must be non-negative, got %d", cfg.Top)
	}
	if cfg.Skip < 0 {
		return errors.Wrapf(odatax.ErrInvalidOption, "skip must be non-negative, got %d", cfg.Skip)
	}
	if cov := cfg.MinimumCoverage; cov != nil && (*cov < 0 || *cov > 100) {
		return errors.Wrapf(odatax.ErrInvalidOption, "minimum coverage must be within 0..100, got %g", *cov)
	}
	switch cfg.SearchMode {
	case "", odatax.SearchModeAny, odatax.SearchModeAll:
	default:
		return errors.Wrapf(odatax.ErrInvalidOption, "unknown search mode %q", cfg.SearchMode)
	}
	if (cfg.HighlightPreTag == "") != (cfg.HighlightPostTag == "") {
		return errors.Wrap(odatax.ErrInvalidOption, "highlight tags must be set together")
	}
	for i, f := range cfg.Filters {
		if f == nil {
			return errors.Wrapf(odatax.ErrInvalidArgument, "filter %d is nil", i)
		}
	}
	for i, o := range cfg.OrderBy {
		if o.Field == nil {
			return errors.Wrapf(odatax.ErrInvalidArgument, "ordering term %d has no field", i)
		}
	}
	return nil
}

// Query renders p as URL query parameters.
func (p *Parameters) Query() url.Values {
	q := url.Values{}
	setString := func(key, val string) {
		if val != "" {
			q.Set(key, val)
		}
	}
	setList := func(key string, vals []string) {
		if len(vals) > 0 {
			q.Set(key, strings.Join(vals, ","))
		}
	}

	setString("$filter", p.Filter)
	setList("$orderby", p.OrderBy)
	setList("$select", p.Select)
	setList("searchFields", p.SearchFields)
	for _, f := range p.Facets {
		q.Add("facet", f)
	}
	setList("highlight", p.HighlightFields)
	setString("highlightPreTag", p.HighlightPreTag)
	setString("highlightPostTag", p.HighlightPostTag)
	if p.MinimumCoverage != nil {
		q.Set("minimumCoverage", strconv.FormatFloat(*p.MinimumCoverage, 'f', -1, 64))
	}
	if p.Top != nil {
		q.Set("$top", strconv.Itoa(*p.Top))
	}
	if p.Skip != nil {
		q.Set("$skip", strconv.Itoa(*p.Skip))
	}
	if p.IncludeTotalCount {
		q.Set("$count", "true")
	}
	setString("scoringProfile", p.ScoringProfile)
	for _, sp := range p.ScoringParameters {
		q.Add("scoringParameter", sp)
	}
	setString("searchMode", p.SearchMode)
	if p.UseFuzzyMatching {
		q.Set("fuzzy", "true")
	}
	return q
}
