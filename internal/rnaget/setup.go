package rnaget

import (
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/encode-dcc/serverless-rnaget/internal/portal"
	"github.com/encode-dcc/serverless-rnaget/internal/repository"
	"github.com/encode-dcc/serverless-rnaget/internal/search"
	"github.com/encode-dcc/serverless-rnaget/internal/secrets"
	"github.com/encode-dcc/serverless-rnaget/pkg/config"
)

// NewFromConfig wires a service to the portal catalog and the configured
// search domain. Search requests use basic auth when a secret is
// configured and SigV4 otherwise. Neither client connects until a handler
// uses it.
func NewFromConfig(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*Service, error) {
	portalClient, err := portal.NewClient(portal.ClientConfig{
		BaseURL: cfg.PortalURL,
		Timeout: cfg.SearchTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create portal client: %w", err)
	}
	catalog := repository.NewPortalCatalog(portalClient, cfg.Version)

	clientCfg := search.ClientConfig{
		Endpoint: cfg.ElasticsearchEndpoint,
		Region:   cfg.AWSRegion,
		Timeout:  cfg.SearchTimeout,
		Logger:   logger,
	}
	if cfg.ElasticsearchSecretName != "" {
		secretsManager := secrets.NewManager(awsCfg, logger)
		clientCfg.BasicAuth = secrets.NewBasicAuth(secretsManager, cfg.ElasticsearchSecretName)
	} else {
		clientCfg.Credentials = awsCfg.Credentials
	}

	searchClient, err := search.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	repo := repository.NewSearchRepository(searchClient, repository.Indexes{
		Expressions:      cfg.ExpressionsIndex,
		ExpressionValues: cfg.ExpressionValuesIndex,
	}, cfg.MaxResults, cfg.MaxValues)

	return NewService(cfg, catalog, repo, logger), nil
}
