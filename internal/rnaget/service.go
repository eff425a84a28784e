package rnaget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/encode-dcc/serverless-rnaget/internal/repository"
	"github.com/encode-dcc/serverless-rnaget/pkg/config"
)

// HandlerFunc is the Lambda entry point of one RNAget endpoint
type HandlerFunc func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

type endpoint func(s *Service, ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// handlers is the dispatch table of the shared artifact, keyed by the
// function handler name the infrastructure assigns.
var handlers = map[string]endpoint{
	"default":               (*Service).handleDefault,
	"projects":              (*Service).handleProjects,
	"project_id":            (*Service).handleProjectID,
	"project_filters":       (*Service).handleProjectFilters,
	"studies":               (*Service).handleStudies,
	"studies_id":            (*Service).handleStudyID,
	"study_filters":         (*Service).handleStudyFilters,
	"expression_ids":        (*Service).handleExpressionIDs,
	"expressions_formats":   (*Service).handleExpressionFormats,
	"expressions_units":     (*Service).handleExpressionUnits,
	"expressions_ticket":    (*Service).handleExpressionsTicket,
	"expressions_id_ticket": (*Service).handleExpressionIDTicket,
	"expressions_id_bytes":  (*Service).handleExpressionIDBytes,
	"expressions_bytes":     (*Service).handleExpressionsBytes,
	"expressions_filters":   (*Service).handleExpressionFilters,
	"service_info":          (*Service).handleServiceInfo,
}

// HandlerNames returns every name the artifact can serve, sorted
func HandlerNames() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasHandler reports whether name is in the dispatch table
func HasHandler(name string) bool {
	_, ok := handlers[name]
	return ok
}

// Service serves the RNAget endpoints. Metadata comes from the catalog;
// only expressions_bytes reads the repository, since the search domain is
// reachable from the internal network alone.
type Service struct {
	config     *config.Config
	catalog    repository.Catalog
	repository repository.Repository
	logger     *slog.Logger
}

// NewService creates a new RNAget service instance
func NewService(cfg *config.Config, catalog repository.Catalog, repo repository.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:     cfg,
		catalog:    catalog,
		repository: repo,
		logger:     logger,
	}
}

// Handler returns the entry point registered under name
func (s *Service) Handler(name string) (HandlerFunc, error) {
	fn, ok := handlers[name]
	if !ok {
		return nil, fmt.Errorf("no handler named %q", name)
	}

	return func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		s.logger.DebugContext(ctx, "received API request",
			slog.String("method", request.HTTPMethod),
			slog.String("path", request.Path),
		)

		response, err := fn(s, ctx, request)
		if err != nil {
			// A returned error surfaces as a gateway 502; answer 500 instead
			s.logger.ErrorContext(ctx, "request handler error",
				slog.String("error", err.Error()),
				slog.String("path", request.Path),
			)
			if response.StatusCode == 0 {
				response = errorResponse(http.StatusInternalServerError, "internal server error")
			}
		}

		if response.Headers == nil {
			response.Headers = map[string]string{}
		}
		if _, ok := response.Headers["Content-Type"]; !ok {
			response.Headers["Content-Type"] = "application/json"
		}
		for k, v := range corsHeaders {
			response.Headers[k] = v
		}
		return response, nil
	}, nil
}

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
}

// jsonResponse marshals v as the response body
func jsonResponse(statusCode int, v any) (events.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "failed to marshal response"), err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Body:       string(body),
	}, nil
}

// errorResponse creates a standardized error response
func errorResponse(statusCode int, message string) events.APIGatewayProxyResponse {
	errorBody := map[string]string{
		"error":  message,
		"status": strconv.Itoa(statusCode),
	}
	body, _ := json.Marshal(errorBody)

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Body:       string(body),
	}
}

// lookupResponse maps a repository lookup failure to a response
func lookupResponse(err error, kind, id string) (events.APIGatewayProxyResponse, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return errorResponse(http.StatusNotFound, fmt.Sprintf("%s %s not found", kind, id)), nil
	}
	return errorResponse(http.StatusInternalServerError, fmt.Sprintf("failed to retrieve %s", kind)), err
}

// listParam splits a comma separated query parameter
func listParam(request events.APIGatewayProxyRequest, name string) []string {
	raw := request.QueryStringParameters[name]
	if raw == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
