package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/encode-dcc/serverless-rnaget/internal/models"
	"github.com/encode-dcc/serverless-rnaget/internal/search"
)

var (
	// ErrNotFound is returned when a requested document does not exist
	ErrNotFound = errors.New("not found")
	// ErrTooManyResults is returned when a query matches more documents
	// than one response may carry
	ErrTooManyResults = errors.New("too many results")
)

// Catalog reads project, study and expression metadata. It is served
// from a public source so handlers outside the internal network can use it.
type Catalog interface {
	ListProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListStudies(ctx context.Context, filter StudyFilter) ([]models.Study, error)
	GetStudy(ctx context.Context, id string) (*models.Study, error)
	ListExpressions(ctx context.Context, filter ExpressionFilter) ([]models.Expression, error)
	GetExpression(ctx context.Context, id string) (*models.Expression, error)
}

// Repository reads expression matrices from the search domain. Only
// handlers placed in the internal network may use it.
type Repository interface {
	ListExpressions(ctx context.Context, filter ExpressionFilter) ([]models.Expression, error)
	ExpressionValues(ctx context.Context, filter ValueFilter) ([]models.ExpressionValue, error)
}

// Searcher is the part of search.Client the repository uses
type Searcher interface {
	Search(ctx context.Context, index string, query any) (*search.SearchResponse, error)
}

// ProjectFilter narrows a project listing
type ProjectFilter struct {
	Version string
	Name    string
}

// StudyFilter narrows a study listing
type StudyFilter struct {
	Version   string
	Name      string
	ProjectID string
}

// ExpressionFilter narrows an expression listing
type ExpressionFilter struct {
	Version       string
	StudyID       string
	ProjectID     string
	ExpressionIDs []string
	SampleIDs     []string
}

// ValueFilter selects feature values across expressions
type ValueFilter struct {
	ExpressionIDs []string
	FeatureIDs    []string
	FeatureNames  []string
	SampleIDs     []string
}

// Indexes names the search index holding each document type
type Indexes struct {
	Expressions      string
	ExpressionValues string
}

// SearchRepository implements Repository on an Elasticsearch domain
type SearchRepository struct {
	client     Searcher
	indexes    Indexes
	maxResults int
	maxValues  int
}

// NewSearchRepository creates a new search backed repository. maxResults
// is the page size of every query; maxValues caps the values one
// ExpressionValues call collects across pages.
func NewSearchRepository(client Searcher, indexes Indexes, maxResults, maxValues int) *SearchRepository {
	return &SearchRepository{
		client:     client,
		indexes:    indexes,
		maxResults: maxResults,
		maxValues:  maxValues,
	}
}

// ListExpressions returns expression matrices matching the filter
func (r *SearchRepository) ListExpressions(ctx context.Context, filter ExpressionFilter) ([]models.Expression, error) {
	q := r.newQuery().
		term("version", filter.Version).
		term("studyID", filter.StudyID).
		term("projectID", filter.ProjectID).
		terms("id", filter.ExpressionIDs).
		terms("sampleID", filter.SampleIDs)

	resp, err := r.client.Search(ctx, r.indexes.Expressions, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list expressions: %w", err)
	}
	if total := resp.Hits.Total.Value; total > len(resp.Hits.Hits) {
		return nil, fmt.Errorf("failed to list expressions: %d match, limit is %d: %w", total, r.maxResults, ErrTooManyResults)
	}

	var expressions []models.Expression
	if err := decodeHits(resp.Hits.Hits, &expressions); err != nil {
		return nil, fmt.Errorf("failed to list expressions: %w", err)
	}
	return expressions, nil
}

// ExpressionValues returns feature quantifications matching the filter.
// Results are read page by page in (expressionID, featureID) order so no
// value is dropped at the page size.
func (r *SearchRepository) ExpressionValues(ctx context.Context, filter ValueFilter) ([]models.ExpressionValue, error) {
	q := r.newQuery().
		terms("expressionID", filter.ExpressionIDs).
		terms("featureID", filter.FeatureIDs).
		terms("featureName", filter.FeatureNames).
		terms("sampleID", filter.SampleIDs).
		sortBy("expressionID", "featureID")

	var values []models.ExpressionValue
	for {
		resp, err := r.client.Search(ctx, r.indexes.ExpressionValues, q)
		if err != nil {
			return nil, fmt.Errorf("failed to list expression values: %w", err)
		}
		hits := resp.Hits.Hits

		var page []models.ExpressionValue
		if err := decodeHits(hits, &page); err != nil {
			return nil, fmt.Errorf("failed to list expression values: %w", err)
		}
		values = append(values, page...)
		if r.maxValues > 0 && len(values) > r.maxValues {
			return nil, fmt.Errorf("more than %d expression values match: %w", r.maxValues, ErrTooManyResults)
		}

		if len(hits) < q.Size {
			return values, nil
		}
		last := hits[len(hits)-1].Sort
		if len(last) == 0 {
			return nil, errors.New("failed to list expression values: hits carry no sort values")
		}
		q.SearchAfter = last
	}
}

// decodeHits re-decodes the hit sources as one array so out can be any slice type
func decodeHits(hits []search.Hit, out any) error {
	sources := make([]json.RawMessage, 0, len(hits))
	for _, hit := range hits {
		sources = append(sources, hit.Source)
	}

	data, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal hits: %w", err)
	}
	return nil
}
