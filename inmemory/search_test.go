package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/letmevibethatforyou/odatax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreDocument(t *testing.T) {
	searcher := New()
	m := &matcher{resolver: searcher.resolver, evaluator: searcher.evaluator}
	doc := Document{
		ID: "1",
		Fields: map[string]any{
			"title":   "Go Programming Language",
			"summary": "Learn go fast",
			"tags":    []any{"golang", "systems"},
			"meta":    map[string]any{"publisher": "Acme"},
		},
	}

	tests := map[string]struct {
		query    string
		cfg      odatax.SearchConfig
		expected float64
	}{
		"empty_query": {
			query:    "",
			expected: 1.0,
		},
		"single_term_two_fields": {
			query:    "go",
			expected: 4.5, // title, summary and tags each match, all terms matched
		},
		"nested_map": {
			query:    "acme",
			expected: 1.5,
		},
		"partial_match_any": {
			query:    "go rust",
			expected: 3.0,
		},
		"partial_match_all": {
			query:    "go rust",
			cfg:      odatax.SearchConfig{SearchMode: odatax.SearchModeAll},
			expected: 0,
		},
		"no_match": {
			query:    "python",
			expected: 0,
		},
		"search_fields": {
			query:    "go",
			cfg:      odatax.SearchConfig{SearchFields: []odatax.Node{field("Summary", odatax.KindString)}},
			expected: 1.5,
		},
		"search_fields_miss": {
			query:    "acme",
			cfg:      odatax.SearchConfig{SearchFields: []odatax.Node{field("Title", odatax.KindString)}},
			expected: 0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			terms := queryTerms(tt.query)
			got, err := searcher.scoreDocument(m, doc, terms, &tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSortMatches(t *testing.T) {
	searcher := New()
	searcher.AddDocument(Document{ID: "a", Fields: map[string]any{"rank": 2, "name": "beta", "title": "x"}})
	searcher.AddDocument(Document{ID: "b", Fields: map[string]any{"rank": 1, "name": "alpha", "title": "x x"}})
	searcher.AddDocument(Document{ID: "c", Fields: map[string]any{"rank": 2, "name": "alpha", "title": "x"}})
	searcher.AddDocument(Document{ID: "d", Fields: map[string]any{"name": "gamma", "title": "x"}})

	rank := field("Rank", odatax.KindInt)
	name := field("Name", odatax.KindString)

	tests := map[string]struct {
		opts     []odatax.SearchOption
		expected []string
	}{
		"default_keeps_insertion_order_for_ties": {
			expected: []string{"a", "b", "c", "d"},
		},
		"ascending_missing_first": {
			opts:     []odatax.SearchOption{odatax.WithOrderBy(rank, false), odatax.WithOrderBy(name, false)},
			expected: []string{"d", "b", "c", "a"},
		},
		"descending_then_ascending": {
			opts:     []odatax.SearchOption{odatax.WithOrderBy(rank, true), odatax.WithOrderBy(name, false)},
			expected: []string{"c", "a", "b", "d"},
		},
		"call_order_sets_priority": {
			opts:     []odatax.SearchOption{odatax.WithOrderBy(name, false), odatax.WithOrderBy(rank, true)},
			expected: []string{"c", "b", "a", "d"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			results, err := searcher.Search(context.Background(), "", tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids(results))
		})
	}
}

func TestSortByScore(t *testing.T) {
	searcher := New()
	searcher.AddDocument(Document{ID: "low", Fields: map[string]any{"text": "go"}})
	searcher.AddDocument(Document{ID: "high", Fields: map[string]any{"text": "go", "title": "go"}})

	results, err := searcher.Search(context.Background(), "go", odatax.WithOrderBy(odatax.Score{}, false))
	require.NoError(t, err)
	assert.Equal(t, []string{"low", "high"}, ids(results))

	results, err = searcher.Search(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "low"}, ids(results), "highest score first by default")
	assert.Equal(t, 3.0, results.MaxScore)
}

func TestSearchContextCancellation(t *testing.T) {
	searcher := New()
	for i := 0; i < 1000; i++ {
		searcher.AddDocument(Document{
			ID: fmt.Sprintf("%d", i),
			Fields: map[string]any{
				"content": fmt.Sprintf("Document content %d with some text", i),
			},
		})
	}

	tests := map[string]struct {
		setupContext func() (context.Context, context.CancelFunc)
		expectError  error
	}{
		"immediate_cancellation": {
			setupContext: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx, cancel
			},
			expectError: odatax.ErrCanceled,
		},
		"timeout_context": {
			setupContext: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
				time.Sleep(10 * time.Millisecond)
				return ctx, cancel
			},
			expectError: odatax.ErrCanceled,
		},
		"normal_context": {
			setupContext: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 1*time.Second)
			},
			expectError: nil,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := tc.setupContext()
			defer cancel()

			_, err := searcher.Search(ctx, "content")
			assert.Equal(t, tc.expectError, err)
		})
	}
}

func TestSearchPagination(t *testing.T) {
	searcher := New(WithDefaultTop(4))
	for i := 1; i <= 15; i++ {
		searcher.AddDocument(Document{
			ID:     fmt.Sprintf("%02d", i),
			Fields: map[string]any{"n": i},
		})
	}
	n := field("N", odatax.KindInt)

	tests := map[string]struct {
		opts     []odatax.SearchOption
		expected []string
		nextSkip *int
	}{
		"default_top": {
			opts:     []odatax.SearchOption{odatax.WithOrderBy(n, false)},
			expected: []string{"01", "02", "03", "04"},
			nextSkip: intPtr(4),
		},
		"top_and_skip": {
			opts:     []odatax.SearchOption{odatax.WithOrderBy(n, false), odatax.WithTop(3), odatax.WithSkip(6)},
			expected: []string{"07", "08", "09"},
			nextSkip: intPtr(9),
		},
		"last_page": {
			opts:     []odatax.SearchOption{odatax.WithOrderBy(n, true), odatax.WithTop(10), odatax.WithSkip(10)},
			expected: []string{"05", "04", "03", "02", "01"},
		},
		"skip_past_end": {
			opts:     []odatax.SearchOption{odatax.WithSkip(100)},
			expected: []string{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			results, err := searcher.Search(context.Background(), "", tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids(results))
			assert.Equal(t, tt.nextSkip, results.NextSkip)
			assert.Nil(t, results.Total, "no total without a count request")
		})
	}
}

func TestSearchSelection(t *testing.T) {
	searcher := New()
	searcher.AddDocument(Document{
		ID: "1",
		Fields: map[string]any{
			"title":  "Go",
			"author": map[string]any{"name": "Rob", "country": "CA"},
			"orders": []any{
				map[string]any{"sku": "A-1"},
				map[string]any{"qty": 3},
				map[string]any{"sku": "B-2"},
			},
		},
	})
	orders := field("Orders", odatax.KindCollection)

	results, err := searcher.Search(context.Background(), "",
		odatax.WithSelect(field("Title", odatax.KindString)),
		odatax.WithSelect(odatax.Path(x, odatax.KindString, "Author", "Name")),
		odatax.WithSelect(odatax.Project(orders, "c", odatax.Field(c, "Sku", odatax.KindString))),
		odatax.WithSelect(field("Missing", odatax.KindString)),
	)
	require.NoError(t, err)
	require.Len(t, results.Items, 1)

	assert.Equal(t, map[string]any{
		"title":       "Go",
		"author/name": "Rob",
		"orders/sku":  []any{"A-1", "B-2"},
	}, results.Items[0].Fields)
}

func TestSearchScoreField(t *testing.T) {
	searcher := New()
	searcher.AddDocument(Document{ID: "low", Fields: map[string]any{"text": "go"}})
	searcher.AddDocument(Document{ID: "high", Fields: map[string]any{"text": "go", "title": "go"}})

	results, err := searcher.Search(context.Background(), "go",
		odatax.WithSelect(odatax.Score{}),
		odatax.WithSelect(field("Title", odatax.KindString)),
		odatax.WithFacet(odatax.Score{}),
	)
	require.NoError(t, err)

	require.Equal(t, []string{"high", "low"}, ids(results))
	assert.Equal(t, map[string]any{"search.score()": 3.0, "title": "go"}, results.Items[0].Fields)
	assert.Equal(t, map[string]any{"search.score()": 1.5}, results.Items[1].Fields)

	assert.Equal(t, map[string][]odatax.FacetCount{
		"search.score()": {
			{Value: 1.5, Count: 1},
			{Value: 3.0, Count: 1},
		},
	}, results.Facets)
}

func TestSearchFacets(t *testing.T) {
	searcher := newBookSearcher(t)

	results, err := searcher.Search(context.Background(), "",
		odatax.WithFacet(field("Category", odatax.KindString)),
		odatax.WithFacet(field("Tags", odatax.KindCollection)),
		odatax.WithTop(1),
	)
	require.NoError(t, err)

	assert.Equal(t, map[string][]odatax.FacetCount{
		"category": {
			{Value: "programming", Count: 3},
			{Value: "data", Count: 2},
		},
		"tags": {
			{Value: "go", Count: 2},
			{Value: "python", Count: 2},
			{Value: "backend", Count: 1},
			{Value: "data", Count: 1},
			{Value: "web", Count: 1},
		},
	}, results.Facets)
}

func TestSearchMetadata(t *testing.T) {
	searcher := newBookSearcher(t)

	results, err := searcher.Search(context.Background(), "data science")
	require.NoError(t, err)
	assert.Equal(t, "data science", results.Query)
	assert.GreaterOrEqual(t, results.Took, int64(0))
	require.NotEmpty(t, results.Items)
	assert.Equal(t, "3", results.Items[0].ID)
}

func TestConcurrentOperations(t *testing.T) {
	searcher := New()
	ctx := context.Background()
	index := field("Index", odatax.KindInt)

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			searcher.AddDocument(Document{
				ID:     fmt.Sprintf("doc%d", i),
				Fields: map[string]any{"index": i, "text": fmt.Sprintf("Document number %d", i)},
			})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, err := searcher.Search(ctx, "document", odatax.Where(odatax.Ge(index, odatax.Value(10))))
			assert.NoError(t, err)
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			searcher.AddDocument(Document{
				ID:     fmt.Sprintf("doc%d", i),
				Fields: map[string]any{"index": i, "text": fmt.Sprintf("Updated document %d", i), "updated": true},
			})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 25; i++ {
			searcher.RemoveDocument(fmt.Sprintf("doc%d", i))
		}
	}()

	wg.Wait()

	size := searcher.Size()
	assert.GreaterOrEqual(t, size, 75)
	assert.LessOrEqual(t, size, 100)
}

func intPtr(i int) *int {
	return &i
}
