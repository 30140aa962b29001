// Package inmemory executes odatax expression trees directly against
// documents held in memory. It resolves field names with the same naming
// policy as the odata compiler, so a predicate selects the same documents
// here as its compiled filter does on the index.
package inmemory

import (
	"context"
	"encoding/json"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/odatax"
	"github.com/letmevibethatforyou/odatax/odata"
)

// DefaultTop is the page size used when a search does not set one.
const DefaultTop = 50

// Document represents a JSON document in the in-memory database.
type Document struct {
	// ID is the unique identifier for the document.
	ID string
	// Fields contains the document's data keyed by index field names.
	Fields map[string]any
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithNaming sets the naming policy mapping source fields to document keys.
func WithNaming(r odata.FieldNameResolver) Option {
	return func(s *Searcher) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithEnv sets the variables visible to closed sub-expressions.
func WithEnv(env odata.Env) Option {
	return func(s *Searcher) {
		s.evaluator = odata.NewEvaluator(env)
	}
}

// WithDefaultTop sets the page size used when a search does not set one.
func WithDefaultTop(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.defaultTop = n
		}
	}
}

// Searcher implements the odatax.Searcher interface using an in-memory store.
type Searcher struct {
	mu        sync.RWMutex
	documents []Document
	idIndex   map[string]int // maps document ID to index in documents slice

	resolver   odata.FieldNameResolver
	evaluator  odata.Evaluator
	defaultTop int
}

// New creates a new in-memory searcher.
// The searcher is ready to use and is safe for concurrent operations.
func New(opts ...Option) *Searcher {
	s := &Searcher{
		documents:  make([]Document, 0),
		idIndex:    make(map[string]int),
		resolver:   odata.DefaultNaming,
		evaluator:  odata.NewEvaluator(nil),
		defaultTop: DefaultTop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddDocument adds a document to the in-memory store.
// If a document with the same ID already exists, it will be updated.
// This method is safe for concurrent use.
func (s *Searcher) AddDocument(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, exists := s.idIndex[doc.ID]; exists {
		s.documents[idx] = doc
	} else {
		s.idIndex[doc.ID] = len(s.documents)
		s.documents = append(s.documents, doc)
	}
}

// AddJSON adds a JSON document to the in-memory store by parsing the provided JSON data.
// If a document with the same ID already exists, it will be updated.
// This method is safe for concurrent use.
func (s *Searcher) AddJSON(id string, jsonData []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return errors.Wrap(err, "failed to unmarshal JSON")
	}

	s.AddDocument(Document{
		ID:     id,
		Fields: fields,
	})
	return nil
}

// RemoveDocument removes a document by ID from the in-memory store.
// Returns true if the document was found and removed, false if the document was not found.
// This method is safe for concurrent use.
func (s *Searcher) RemoveDocument(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.idIndex[id]
	if !exists {
		return false
	}

	s.documents = append(s.documents[:idx], s.documents[idx+1:]...)

	delete(s.idIndex, id)
	for i := idx; i < len(s.documents); i++ {
		s.idIndex[s.documents[i].ID] = i
	}

	return true
}

// Clear removes all documents from the store.
// This method is safe for concurrent use.
func (s *Searcher) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents = make([]Document, 0)
	s.idIndex = make(map[string]int)
}

// Size returns the number of documents currently stored in the in-memory store.
// This method is safe for concurrent use.
func (s *Searcher) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Search implements the odatax.Searcher interface. Options are compiled
// first, so a request the odata compiler rejects fails here with the same error.
func (s *Searcher) Search(ctx context.Context, query string, opts ...odatax.SearchOption) (*odatax.Results, error) {
	startTime := time.Now()

	if ctx.Err() != nil {
		return nil, odatax.ErrCanceled
	}

	cfg := odatax.NewSearchConfig(opts...)
	compiler := odata.NewCompiler(odata.WithResolver(s.resolver), odata.WithEvaluator(s.evaluator))
	params, err := compiler.BuildConfig(cfg)
	if err != nil {
		return nil, err
	}

	m := &matcher{resolver: s.resolver, evaluator: s.evaluator}
	filter := odata.CombineFilters(cfg.Filters)
	terms := queryTerms(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []scoredDocument
	for _, doc := range s.documents {
		if ctx.Err() != nil {
			return nil, odatax.ErrCanceled
		}

		ok, err := m.matches(doc.Fields, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		score, err := s.scoreDocument(m, doc, terms, cfg)
		if err != nil {
			return nil, err
		}
		if score <= 0 {
			continue
		}

		keys, err := sortKeys(m, doc, score, cfg.OrderBy)
		if err != nil {
			return nil, err
		}
		matches = append(matches, scoredDocument{document: doc, score: score, keys: keys})
	}

	sortMatches(matches, cfg.OrderBy)

	top := cfg.Top
	if top == 0 {
		top = s.defaultTop
	}
	start := min(cfg.Skip, len(matches))
	end := min(start+top, len(matches))

	results := &odatax.Results{
		Items: make([]odatax.Result, 0, end-start),
		Query: query,
	}
	if cfg.IncludeTotalCount {
		total := int64(len(matches))
		results.Total = &total
	}

	for _, match := range matches[start:end] {
		if match.score > results.MaxScore {
			results.MaxScore = match.score
		}
		fields, err := selectFields(m, match, cfg.Select, params.Select)
		if err != nil {
			return nil, err
		}
		results.Items = append(results.Items, odatax.Result{
			ID:     match.document.ID,
			Score:  match.score,
			Fields: fields,
		})
	}

	if end < len(matches) {
		nextSkip := end
		results.NextSkip = &nextSkip
	}

	if len(cfg.Facets) > 0 {
		results.Facets, err = facetCounts(m, matches, cfg.Facets, params.Facets)
		if err != nil {
			return nil, err
		}
	}

	results.Took = time.Since(startTime).Milliseconds()
	return results, nil
}

// queryTerms splits a full text query into lowercase terms.
func queryTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

type scoredDocument struct {
	document Document
	score    float64
	keys     []any
}

// scoreDocument calculates the relevance score for a document based on the
// query terms. Terms are matched against the search fields when set, and
// against every field otherwise.
func (s *Searcher) scoreDocument(m *matcher, doc Document, terms []string, cfg *odatax.SearchConfig) (float64, error) {
	if len(terms) == 0 {
		return 1.0, nil // All documents match empty query
	}

	var values []any
	if len(cfg.SearchFields) == 0 {
		for _, v := range doc.Fields {
			values = append(values, v)
		}
	} else {
		for _, f := range cfg.SearchFields {
			v, found, err := m.selectValue(f, binding{value: doc.Fields})
			if err != nil {
				return 0, err
			}
			if found {
				values = append(values, v)
			}
		}
	}

	score := 0.0
	matchedTerms := 0
	for _, term := range terms {
		termMatched := false
		for _, value := range values {
			if valueContainsTerm(value, term) {
				termMatched = true
				score += 1.0
			}
		}
		if termMatched {
			matchedTerms++
		}
	}

	if matchedTerms == 0 {
		return 0, nil
	}
	if matchedTerms == len(terms) {
		score *= 1.5
	} else if cfg.SearchMode == odatax.SearchModeAll {
		return 0, nil
	}
	return score, nil
}

// valueContainsTerm checks if a value contains the search term.
func valueContainsTerm(value any, term string) bool {
	switch v := value.(type) {
	case string:
		return strings.Contains(strings.ToLower(v), term)
	case []any:
		for _, item := range v {
			if valueContainsTerm(item, term) {
				return true
			}
		}
	case map[string]any:
		for _, item := range v {
			if valueContainsTerm(item, term) {
				return true
			}
		}
	default:
		return strings.Contains(strings.ToLower(toString(v)), term)
	}
	return false
}

// documentValue resolves a selected field of a matched document. The
// relevance score resolves to the document's match score.
func documentValue(m *matcher, doc Document, score float64, n odatax.Node) (any, bool, error) {
	if _, ok := n.(odatax.Score); ok {
		return score, true, nil
	}
	return m.selectValue(n, binding{value: doc.Fields})
}

// sortKeys computes the value of every ordering term for a document.
func sortKeys(m *matcher, doc Document, score float64, terms []odatax.OrderTerm) ([]any, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	keys := make([]any, len(terms))
	for i, term := range terms {
		v, found, err := documentValue(m, doc, score, term.Field)
		if err != nil {
			return nil, err
		}
		if found {
			keys[i] = v
		}
	}
	return keys, nil
}

// sortMatches sorts the matched documents by the ordering terms, in priority
// order. Without terms documents are sorted by score, highest first.
func sortMatches(matches []scoredDocument, terms []odatax.OrderTerm) {
	if len(terms) == 0 {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].score > matches[j].score
		})
		return
	}

	sort.SliceStable(matches, func(i, j int) bool {
		for k, term := range terms {
			c := compareValues(matches[i].keys[k], matches[j].keys[k])
			if c != 0 {
				if term.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return false
	})
}

// selectFields projects a document onto the selected fields, keyed by their
// compiled $select paths. Without a selection all fields are returned.
func selectFields(m *matcher, match scoredDocument, selection []odatax.Node, names []string) (map[string]any, error) {
	if len(selection) == 0 {
		return maps.Clone(match.document.Fields), nil
	}
	fields := make(map[string]any, len(selection))
	for i, n := range selection {
		v, found, err := documentValue(m, match.document, match.score, n)
		if err != nil {
			return nil, err
		}
		if found {
			fields[names[i]] = v
		}
	}
	return fields, nil
}

// facetCounts counts the values of each facet field over all matches.
// Collection fields count each element.
func facetCounts(m *matcher, matches []scoredDocument, facets []odatax.Node, names []string) (map[string][]odatax.FacetCount, error) {
	out := make(map[string][]odatax.FacetCount, len(facets))
	for i, f := range facets {
		counts := make(map[string]*odatax.FacetCount)
		for _, match := range matches {
			v, found, err := documentValue(m, match.document, match.score, f)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			values := asSlice(v)
			if values == nil {
				values = []any{v}
			}
			for _, val := range values {
				key := toString(val)
				if c, ok := counts[key]; ok {
					c.Count++
				} else {
					counts[key] = &odatax.FacetCount{Value: val, Count: 1}
				}
			}
		}

		buckets := make([]odatax.FacetCount, 0, len(counts))
		for _, c := range counts {
			buckets = append(buckets, *c)
		}
		sort.Slice(buckets, func(a, b int) bool {
			if buckets[a].Count != buckets[b].Count {
				return buckets[a].Count > buckets[b].Count
			}
			return toString(buckets[a].Value) < toString(buckets[b].Value)
		})
		out[names[i]] = buckets
	}
	return out, nil
}
