package repository

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/encode-dcc/serverless-rnaget/internal/models"
	"github.com/encode-dcc/serverless-rnaget/internal/portal"
)

// rnaSeqAssays are the assays whose gene quantifications are served as
// expression matrices
var rnaSeqAssays = []string{"total RNA-seq", "polyA plus RNA-seq"}

const projectFacet = "award.project"

// PortalSearcher is the part of portal.Client the catalog uses
type PortalSearcher interface {
	Search(ctx context.Context, params url.Values) (*portal.SearchResult, error)
}

// PortalCatalog implements Catalog on the ENCODE portal. Projects are award
// projects, studies are released RNA-seq experiments and expressions are
// their gene quantification files.
type PortalCatalog struct {
	client  PortalSearcher
	version string
}

// NewPortalCatalog creates a catalog that reports every object at version
func NewPortalCatalog(client PortalSearcher, version string) *PortalCatalog {
	return &PortalCatalog{client: client, version: version}
}

type portalExperiment struct {
	Accession        string   `json:"accession"`
	Description      string   `json:"description"`
	BiosampleSummary string   `json:"biosample_summary"`
	AssayTitle       string   `json:"assay_title"`
	Assembly         []string `json:"assembly"`
	Award            struct {
		Project string `json:"project"`
	} `json:"award"`
}

type portalFile struct {
	Accession  string `json:"accession"`
	Dataset    string `json:"dataset"`
	AssayTitle string `json:"assay_title"`
	Award      struct {
		Project string `json:"project"`
	} `json:"award"`
	BiosampleOntology struct {
		TermName string `json:"term_name"`
	} `json:"biosample_ontology"`
	Replicate struct {
		Library struct {
			Biosample struct {
				Accession string `json:"accession"`
			} `json:"biosample"`
		} `json:"library"`
	} `json:"replicate"`
}

func experimentParams() url.Values {
	return url.Values{
		"type":        {"Experiment"},
		"status":      {"released"},
		"assay_title": rnaSeqAssays,
	}
}

func fileParams() url.Values {
	return url.Values{
		"type":        {"File"},
		"status":      {"released"},
		"output_type": {"gene quantifications"},
		"assay_title": rnaSeqAssays,
		"field": {
			"accession", "dataset", "assay_title", "award.project",
			"biosample_ontology.term_name", "replicate.library.biosample.accession",
		},
	}
}

// ListProjects returns the award projects that have released RNA-seq studies
func (c *PortalCatalog) ListProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, error) {
	projects := []models.Project{}
	if filter.Version != "" && filter.Version != c.version {
		return projects, nil
	}

	params := experimentParams()
	params.Set("limit", "0")
	result, err := c.client.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	for _, facet := range result.Facets {
		if facet.Field != projectFacet {
			continue
		}
		for _, term := range facet.Terms {
			if term.DocCount == 0 || (filter.Name != "" && term.Key != filter.Name) {
				continue
			}
			projects = append(projects, models.Project{
				ID:          term.Key,
				Version:     c.version,
				Name:        term.Key,
				Description: fmt.Sprintf("%d released RNA-seq studies", term.DocCount),
			})
		}
	}
	return projects, nil
}

// GetProject retrieves a project by ID
func (c *PortalCatalog) GetProject(ctx context.Context, id string) (*models.Project, error) {
	projects, err := c.ListProjects(ctx, ProjectFilter{Name: id})
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return &projects[0], nil
}

// ListStudies returns studies matching the filter
func (c *PortalCatalog) ListStudies(ctx context.Context, filter StudyFilter) ([]models.Study, error) {
	params := experimentParams()
	setParam(params, "biosample_summary", filter.Name)
	setParam(params, projectFacet, filter.ProjectID)
	return c.studies(ctx, filter.Version, params)
}

// GetStudy retrieves a study by accession
func (c *PortalCatalog) GetStudy(ctx context.Context, id string) (*models.Study, error) {
	params := experimentParams()
	params.Set("accession", id)
	studies, err := c.studies(ctx, "", params)
	if err != nil {
		return nil, err
	}
	for i := range studies {
		if studies[i].ID == id {
			return &studies[i], nil
		}
	}
	return nil, fmt.Errorf("study %s: %w", id, ErrNotFound)
}

func (c *PortalCatalog) studies(ctx context.Context, version string, params url.Values) ([]models.Study, error) {
	studies := []models.Study{}
	if version != "" && version != c.version {
		return studies, nil
	}

	params["field"] = []string{"accession", "description", "biosample_summary", "assay_title", "assembly", "award.project"}
	result, err := c.client.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list studies: %w", err)
	}
	var experiments []portalExperiment
	if err := result.Decode(&experiments); err != nil {
		return nil, fmt.Errorf("failed to list studies: %w", err)
	}

	for _, e := range experiments {
		study := models.Study{
			ID:              e.Accession,
			Version:         c.version,
			Name:            e.BiosampleSummary,
			Description:     e.Description,
			ParentProjectID: e.Award.Project,
		}
		if e.AssayTitle != "" {
			study.Tags = []string{e.AssayTitle}
		}
		if len(e.Assembly) > 0 {
			study.Genome = e.Assembly[0]
		}
		studies = append(studies, study)
	}
	return studies, nil
}

// ListExpressions returns gene quantification files matching the filter
func (c *PortalCatalog) ListExpressions(ctx context.Context, filter ExpressionFilter) ([]models.Expression, error) {
	params := fileParams()
	if filter.StudyID != "" {
		params.Set("dataset", "/experiments/"+filter.StudyID+"/")
	}
	setParam(params, projectFacet, filter.ProjectID)
	for _, id := range filter.ExpressionIDs {
		params.Add("accession", id)
	}
	for _, id := range filter.SampleIDs {
		params.Add("replicate.library.biosample.accession", id)
	}
	return c.expressions(ctx, filter.Version, params)
}

// GetExpression retrieves a gene quantification file by accession
func (c *PortalCatalog) GetExpression(ctx context.Context, id string) (*models.Expression, error) {
	params := fileParams()
	params.Set("accession", id)
	expressions, err := c.expressions(ctx, "", params)
	if err != nil {
		return nil, err
	}
	for i := range expressions {
		if expressions[i].ID == id {
			return &expressions[i], nil
		}
	}
	return nil, fmt.Errorf("expression %s: %w", id, ErrNotFound)
}

func (c *PortalCatalog) expressions(ctx context.Context, version string, params url.Values) ([]models.Expression, error) {
	expressions := []models.Expression{}
	if version != "" && version != c.version {
		return expressions, nil
	}

	result, err := c.client.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list expressions: %w", err)
	}
	var files []portalFile
	if err := result.Decode(&files); err != nil {
		return nil, fmt.Errorf("failed to list expressions: %w", err)
	}

	for _, f := range files {
		expressions = append(expressions, models.Expression{
			ID:        f.Accession,
			Version:   c.version,
			StudyID:   path.Base(strings.Trim(f.Dataset, "/")),
			ProjectID: f.Award.Project,
			SampleID:  f.Replicate.Library.Biosample.Accession,
			Assay:     f.AssayTitle,
			Biosample: f.BiosampleOntology.TermName,
		})
	}
	return expressions, nil
}

func setParam(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
