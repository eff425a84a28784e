package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"github.com/encode-dcc/serverless-rnaget/internal/models"
	"github.com/encode-dcc/serverless-rnaget/internal/portal"
)

const (
	experimentsPage = `{"total":2,"@graph":[
		{"accession":"ENCSR000AAA","description":"RNA-seq of K562","biosample_summary":"K562","assay_title":"total RNA-seq","assembly":["GRCh38"],"award":{"project":"ENCODE"}},
		{"accession":"ENCSR000BBB","biosample_summary":"HepG2","assay_title":"polyA plus RNA-seq","award":{"project":"Roadmap"}}
	],"facets":[
		{"field":"assay_title","terms":[{"key":"total RNA-seq","doc_count":1}]},
		{"field":"award.project","terms":[{"key":"ENCODE","doc_count":12},{"key":"Roadmap","doc_count":3},{"key":"GGR","doc_count":0}]}
	]}`
	filesPage = `{"total":1,"@graph":[
		{"accession":"ENCFF001AAA","dataset":"/experiments/ENCSR000AAA/","assay_title":"total RNA-seq","award":{"project":"ENCODE"},
		 "biosample_ontology":{"term_name":"K562"},"replicate":{"library":{"biosample":{"accession":"ENCBS001AAA"}}}}
	]}`
	emptyPage = `{"total":0,"@graph":[],"notification":"No results found"}`
)

// newTestCatalog serves canned portal pages by object type and records the
// query of the last search
func newTestCatalog(t *testing.T) (*PortalCatalog, *url.Values) {
	t.Helper()

	var last url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = r.URL.Query()
		accession := last.Get("accession")
		switch {
		case accession != "" && accession != "ENCSR000AAA" && accession != "ENCFF001AAA":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(emptyPage))
		case last.Get("type") == "Experiment":
			w.Write([]byte(experimentsPage))
		case last.Get("type") == "File":
			w.Write([]byte(filesPage))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(server.Close)

	client, err := portal.NewClient(portal.ClientConfig{BaseURL: server.URL, MaxRetries: 1})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return NewPortalCatalog(client, "1.0"), &last
}

func TestPortalCatalog_Interface(t *testing.T) {
	var _ Catalog = (*PortalCatalog)(nil)
	var _ PortalSearcher = (*portal.Client)(nil)
}

func TestPortalCatalog_ListProjects(t *testing.T) {
	catalog, last := newTestCatalog(t)
	ctx := context.Background()

	projects, err := catalog.ListProjects(ctx, ProjectFilter{})
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	want := []models.Project{
		{ID: "ENCODE", Version: "1.0", Name: "ENCODE", Description: "12 released RNA-seq studies"},
		{ID: "Roadmap", Version: "1.0", Name: "Roadmap", Description: "3 released RNA-seq studies"},
	}
	if !reflect.DeepEqual(projects, want) {
		t.Errorf("ListProjects() = %+v, want %+v", projects, want)
	}
	if last.Get("limit") != "0" {
		t.Errorf("limit = %q, want 0 (facets only)", last.Get("limit"))
	}
	if got := (*last)["assay_title"]; !reflect.DeepEqual(got, rnaSeqAssays) {
		t.Errorf("assay_title = %v, want %v", got, rnaSeqAssays)
	}

	project, err := catalog.GetProject(ctx, "Roadmap")
	if err != nil || project.ID != "Roadmap" {
		t.Errorf("GetProject(Roadmap) = %+v, %v", project, err)
	}
	if _, err := catalog.GetProject(ctx, "GGR"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProject(GGR) error = %v, want ErrNotFound", err)
	}

	other, err := catalog.ListProjects(ctx, ProjectFilter{Version: "2.0"})
	if err != nil || len(other) != 0 || other == nil {
		t.Errorf("ListProjects(version 2.0) = %v, %v, want empty list", other, err)
	}
}

func TestPortalCatalog_Studies(t *testing.T) {
	catalog, last := newTestCatalog(t)
	ctx := context.Background()

	studies, err := catalog.ListStudies(ctx, StudyFilter{ProjectID: "ENCODE"})
	if err != nil {
		t.Fatalf("ListStudies() error = %v", err)
	}
	if last.Get("award.project") != "ENCODE" {
		t.Errorf("award.project = %q, want ENCODE", last.Get("award.project"))
	}
	if len(studies) != 2 {
		t.Fatalf("ListStudies() returned %d studies, want 2", len(studies))
	}
	want := models.Study{
		ID:              "ENCSR000AAA",
		Version:         "1.0",
		Name:            "K562",
		Description:     "RNA-seq of K562",
		ParentProjectID: "ENCODE",
		Tags:            []string{"total RNA-seq"},
		Genome:          "GRCh38",
	}
	if !reflect.DeepEqual(studies[0], want) {
		t.Errorf("study = %+v, want %+v", studies[0], want)
	}

	study, err := catalog.GetStudy(ctx, "ENCSR000AAA")
	if err != nil || study.ID != "ENCSR000AAA" {
		t.Errorf("GetStudy() = %+v, %v", study, err)
	}
	if _, err := catalog.GetStudy(ctx, "ENCSR999ZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetStudy(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPortalCatalog_Expressions(t *testing.T) {
	catalog, last := newTestCatalog(t)
	ctx := context.Background()

	expressions, err := catalog.ListExpressions(ctx, ExpressionFilter{
		StudyID:   "ENCSR000AAA",
		SampleIDs: []string{"ENCBS001AAA", "ENCBS002AAA"},
	})
	if err != nil {
		t.Fatalf("ListExpressions() error = %v", err)
	}
	if last.Get("dataset") != "/experiments/ENCSR000AAA/" {
		t.Errorf("dataset = %q", last.Get("dataset"))
	}
	if got := (*last)["replicate.library.biosample.accession"]; len(got) != 2 {
		t.Errorf("sample params = %v, want 2", got)
	}
	if last.Get("output_type") != "gene quantifications" {
		t.Errorf("output_type = %q", last.Get("output_type"))
	}

	want := []models.Expression{{
		ID:        "ENCFF001AAA",
		Version:   "1.0",
		StudyID:   "ENCSR000AAA",
		ProjectID: "ENCODE",
		SampleID:  "ENCBS001AAA",
		Assay:     "total RNA-seq",
		Biosample: "K562",
	}}
	if !reflect.DeepEqual(expressions, want) {
		t.Errorf("ListExpressions() = %+v, want %+v", expressions, want)
	}

	if _, err := catalog.GetExpression(ctx, "ENCFF001AAA"); err != nil {
		t.Errorf("GetExpression() error = %v", err)
	}
	if _, err := catalog.GetExpression(ctx, "ENCFF999ZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetExpression(missing) error = %v, want ErrNotFound", err)
	}
}
