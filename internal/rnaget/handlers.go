package rnaget

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/encode-dcc/serverless-rnaget/internal/models"
	"github.com/encode-dcc/serverless-rnaget/internal/repository"
)

var projectFilters = []models.Filter{
	{Filter: "version", FieldType: "string", Description: "Version to return"},
	{Filter: "name", FieldType: "string", Description: "Project name"},
}

var studyFilters = []models.Filter{
	{Filter: "version", FieldType: "string", Description: "Version to return"},
	{Filter: "name", FieldType: "string", Description: "Study name"},
	{Filter: "projectID", FieldType: "string", Description: "Parent project"},
}

var expressionFilters = []models.Filter{
	{Filter: "version", FieldType: "string", Description: "Version to return"},
	{Filter: "studyID", FieldType: "string", Description: "Study the matrix belongs to"},
	{Filter: "projectID", FieldType: "string", Description: "Project the matrix belongs to"},
	{Filter: "expressionIDList", FieldType: "string", Description: "Comma separated expression identifiers"},
	{Filter: "sampleIDList", FieldType: "string", Description: "Comma separated sample identifiers"},
	{Filter: "featureIDList", FieldType: "string", Description: "Comma separated feature identifiers"},
	{Filter: "featureNameList", FieldType: "string", Description: "Comma separated feature names"},
}

// handleDefault answers requests to the API root
func (s *Service) handleDefault(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return errorResponse(http.StatusNotFound, "endpoint not found"), nil
}

func (s *Service) handleProjects(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	projects, err := s.catalog.ListProjects(ctx, repository.ProjectFilter{
		Version: request.QueryStringParameters["version"],
		Name:    request.QueryStringParameters["name"],
	})
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "failed to retrieve projects"), err
	}
	return jsonResponse(http.StatusOK, nonNil(projects))
}

func (s *Service) handleProjectID(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := request.PathParameters["project_id"]
	project, err := s.catalog.GetProject(ctx, id)
	if err != nil {
		return lookupResponse(err, "project", id)
	}
	return jsonResponse(http.StatusOK, project)
}

func (s *Service) handleProjectFilters(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return jsonResponse(http.StatusOK, projectFilters)
}

func (s *Service) handleStudies(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	studies, err := s.catalog.ListStudies(ctx, repository.StudyFilter{
		Version:   request.QueryStringParameters["version"],
		Name:      request.QueryStringParameters["name"],
		ProjectID: request.QueryStringParameters["projectID"],
	})
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "failed to retrieve studies"), err
	}
	return jsonResponse(http.StatusOK, nonNil(studies))
}

func (s *Service) handleStudyID(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := request.PathParameters["studies_id"]
	study, err := s.catalog.GetStudy(ctx, id)
	if err != nil {
		return lookupResponse(err, "study", id)
	}
	return jsonResponse(http.StatusOK, study)
}

func (s *Service) handleStudyFilters(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return jsonResponse(http.StatusOK, studyFilters)
}

// handleExpressionIDs lists the ids of matrices matching the filters
func (s *Service) handleExpressionIDs(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	expressions, err := s.catalog.ListExpressions(ctx, expressionFilter(request))
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "failed to retrieve expressions"), err
	}

	ids := make([]string, 0, len(expressions))
	for _, e := range expressions {
		ids = append(ids, e.ID)
	}
	return jsonResponse(http.StatusOK, ids)
}

func (s *Service) handleExpressionFormats(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return jsonResponse(http.StatusOK, models.SupportedFormats)
}

func (s *Service) handleExpressionUnits(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return jsonResponse(http.StatusOK, models.SupportedUnits)
}

func (s *Service) handleExpressionFilters(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return jsonResponse(http.StatusOK, expressionFilters)
}

// handleExpressionsTicket issues a ticket for the matrix of every
// expression matching the filters
func (s *Service) handleExpressionsTicket(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	format, units, bad := matrixOptions(request)
	if bad != nil {
		return *bad, nil
	}

	ticket := s.newTicket(request, "/expressions/bytes", format, units)
	ticket.Version = request.QueryStringParameters["version"]
	ticket.StudyID = request.QueryStringParameters["studyID"]
	return jsonResponse(http.StatusOK, ticket)
}

// handleExpressionIDTicket issues a ticket for one matrix
func (s *Service) handleExpressionIDTicket(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	format, units, bad := matrixOptions(request)
	if bad != nil {
		return *bad, nil
	}

	id := request.PathParameters["expression_id"]
	expression, err := s.catalog.GetExpression(ctx, id)
	if err != nil {
		return lookupResponse(err, "expression", id)
	}

	ticket := s.newTicket(request, "/expressions/"+expression.ID+"/bytes", format, units)
	ticket.Version = expression.Version
	ticket.StudyID = expression.StudyID
	return jsonResponse(http.StatusOK, ticket)
}

// handleExpressionIDBytes sends the client to expressions_bytes filtered
// to one matrix. The values live in the search domain, which only the
// expressions_bytes function can reach.
func (s *Service) handleExpressionIDBytes(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	format, units, bad := matrixOptions(request)
	if bad != nil {
		return *bad, nil
	}

	id := request.PathParameters["expression_id"]
	expression, err := s.catalog.GetExpression(ctx, id)
	if err != nil {
		return lookupResponse(err, "expression", id)
	}

	params := url.Values{}
	for k, v := range request.QueryStringParameters {
		params.Set(k, v)
	}
	params.Set("expressionIDList", expression.ID)
	params.Set("format", format.String())
	params.Set("units", units.String())

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusSeeOther,
		Headers:    map[string]string{"Location": s.baseURL(request) + "/expressions/bytes?" + params.Encode()},
	}, nil
}

// handleExpressionsBytes renders the matrix of every expression matching
// the filters
func (s *Service) handleExpressionsBytes(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	_, units, bad := matrixOptions(request)
	if bad != nil {
		return *bad, nil
	}

	expressions, err := s.repository.ListExpressions(ctx, expressionFilter(request))
	if errors.Is(err, repository.ErrTooManyResults) {
		return errorResponse(http.StatusRequestEntityTooLarge, "too many expressions match, narrow the filters"), nil
	}
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "failed to retrieve expressions"), err
	}
	if len(expressions) == 0 {
		return tsvResponse(nil, units)
	}

	ids := make([]string, 0, len(expressions))
	for _, e := range expressions {
		ids = append(ids, e.ID)
	}
	return s.matrixResponse(ctx, request, ids, units)
}

func (s *Service) matrixResponse(ctx context.Context, request events.APIGatewayProxyRequest, ids []string, units models.Units) (events.APIGatewayProxyResponse, error) {
	values, err := s.repository.ExpressionValues(ctx, repository.ValueFilter{
		ExpressionIDs: ids,
		FeatureIDs:    listParam(request, "featureIDList"),
		FeatureNames:  listParam(request, "featureNameList"),
		SampleIDs:     listParam(request, "sampleIDList"),
	})
	if errors.Is(err, repository.ErrTooManyResults) {
		return errorResponse(http.StatusRequestEntityTooLarge, "too many expression values match, narrow the filters"), nil
	}
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "failed to retrieve expression values"), err
	}
	return tsvResponse(values, units)
}

func (s *Service) handleServiceInfo(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return jsonResponse(http.StatusOK, s.serviceInfo())
}

func (s *Service) serviceInfo() models.ServiceInfo {
	return models.ServiceInfo{
		ID:   "org.encodeproject.rnaget",
		Name: "ENCODE RNAget",
		Type: models.ServiceType{
			Group:    "org.ga4gh",
			Artifact: "rnaget",
			Version:  "1.0.0",
		},
		Description: "RNAget API for ENCODE expression data",
		Organization: models.Organization{
			Name: "ENCODE",
			URL:  "https://www.encodeproject.org",
		},
		ContactURL:  "mailto:encode-help@lists.stanford.edu",
		Environment: s.config.Stage.String(),
		Version:     s.config.Version,
		Supported: models.Supported{
			Projects:    true,
			Studies:     true,
			Expressions: true,
		},
	}
}

// matrixOptions validates the format and units query parameters, returning
// a 400 response when either is unsupported
func matrixOptions(request events.APIGatewayProxyRequest) (models.Format, models.Units, *events.APIGatewayProxyResponse) {
	format := models.FormatTSV
	if f := request.QueryStringParameters["format"]; f != "" {
		format = models.Format(f)
	}
	if !format.IsValid() {
		resp := errorResponse(http.StatusBadRequest, "unsupported format: "+format.String())
		return "", "", &resp
	}

	units, ok := models.ParseUnits(request.QueryStringParameters["units"])
	if !ok {
		resp := errorResponse(http.StatusBadRequest, "unsupported units: "+request.QueryStringParameters["units"])
		return "", "", &resp
	}
	return format, units, nil
}

func expressionFilter(request events.APIGatewayProxyRequest) repository.ExpressionFilter {
	return repository.ExpressionFilter{
		Version:       request.QueryStringParameters["version"],
		StudyID:       request.QueryStringParameters["studyID"],
		ProjectID:     request.QueryStringParameters["projectID"],
		ExpressionIDs: listParam(request, "expressionIDList"),
		SampleIDs:     listParam(request, "sampleIDList"),
	}
}

// nonNil keeps empty listings encoding as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
