package repository

// query is an Elasticsearch bool query made only of filter clauses.
// A query without clauses matches every document.
type query struct {
	Size           int                 `json:"size"`
	TrackTotalHits bool                `json:"track_total_hits"`
	Query          boolQuery           `json:"query"`
	Sort           []map[string]string `json:"sort,omitempty"`
	SearchAfter    []any               `json:"search_after,omitempty"`
}

type boolQuery struct {
	Bool boolClauses `json:"bool"`
}

type boolClauses struct {
	Filter []map[string]any `json:"filter"`
}

func (r *SearchRepository) newQuery() *query {
	return &query{
		Size:           r.maxResults,
		TrackTotalHits: true,
		Query:          boolQuery{Bool: boolClauses{Filter: []map[string]any{}}},
	}
}

// term adds an exact match clause; empty values are ignored
func (q *query) term(field, value string) *query {
	if value == "" {
		return q
	}
	q.Query.Bool.Filter = append(q.Query.Bool.Filter, map[string]any{
		"term": map[string]string{field: value},
	})
	return q
}

// terms adds a match-any clause; empty slices are ignored
func (q *query) terms(field string, values []string) *query {
	if len(values) == 0 {
		return q
	}
	q.Query.Bool.Filter = append(q.Query.Bool.Filter, map[string]any{
		"terms": map[string][]string{field: values},
	})
	return q
}

// sortBy orders hits ascending on fields, which together must identify a
// document for search_after paging to be exact
func (q *query) sortBy(fields ...string) *query {
	for _, f := range fields {
		q.Sort = append(q.Sort, map[string]string{f: "asc"})
	}
	return q
}
