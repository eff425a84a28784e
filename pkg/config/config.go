package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/encode-dcc/serverless-rnaget/internal/models"
)

// DefaultPortalURL is the public ENCODE portal
const DefaultPortalURL = "https://www.encodeproject.org"

// Config holds the runtime configuration of the RNAget functions
type Config struct {
	// Stage is the deployment environment (dev, stage, prod)
	Stage models.Stage

	// AWS Configuration
	AWSRegion string

	// Handler is the function name this process serves, as set by the
	// Lambda runtime in _HANDLER
	Handler string

	// Elasticsearch Configuration
	ElasticsearchEndpoint   string
	ElasticsearchSecretName string // basic auth secret, SigV4 when empty
	ExpressionsIndex        string
	ExpressionValuesIndex   string
	MaxResults              int // page size of every search
	MaxValues               int // values one matrix may hold
	SearchTimeout           time.Duration

	// PortalURL is the public metadata source of projects, studies and
	// expressions
	PortalURL string

	// BaseURL is the public URL tickets point at, e.g. https://rnaget.example.org
	BaseURL string

	// Version reported by service-info
	Version string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	stage := os.Getenv("STAGE")
	if stage == "" {
		stage = "dev"
	}

	stageEnum := models.Stage(stage)
	if !stageEnum.IsValid() {
		return nil, fmt.Errorf("invalid STAGE value: %s (must be dev, stage, or prod)", stage)
	}

	awsRegion := os.Getenv("AWS_REGION")
	if awsRegion == "" {
		awsRegion = "us-west-2"
	}

	endpoint := strings.TrimSuffix(os.Getenv("ELASTICSEARCH_ENDPOINT"), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("ELASTICSEARCH_ENDPOINT environment variable is required")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	maxResults := 10000
	if v := os.Getenv("SEARCH_MAX_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid SEARCH_MAX_RESULTS value: %s", v)
		}
		maxResults = n
	}

	maxValues := 250000
	if v := os.Getenv("MATRIX_MAX_VALUES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MATRIX_MAX_VALUES value: %s", v)
		}
		maxValues = n
	}

	searchTimeout := 20 * time.Second
	if v := os.Getenv("SEARCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SEARCH_TIMEOUT value: %s: %w", v, err)
		}
		searchTimeout = d
	}

	version := os.Getenv("RNAGET_VERSION")
	if version == "" {
		version = "1.0.0"
	}

	return &Config{
		Stage:                   stageEnum,
		AWSRegion:               awsRegion,
		Handler:                 os.Getenv("_HANDLER"),
		ElasticsearchEndpoint:   endpoint,
		ElasticsearchSecretName: os.Getenv("ELASTICSEARCH_SECRET_NAME"),
		ExpressionsIndex:        envOrDefault("EXPRESSIONS_INDEX", "rnaget-expressions"),
		ExpressionValuesIndex:   envOrDefault("EXPRESSION_VALUES_INDEX", "rnaget-expression-values"),
		MaxResults:              maxResults,
		MaxValues:               maxValues,
		SearchTimeout:           searchTimeout,
		PortalURL:               strings.TrimSuffix(envOrDefault("PORTAL_URL", DefaultPortalURL), "/"),
		BaseURL:                 strings.TrimSuffix(os.Getenv("RNAGET_BASE_URL"), "/"),
		Version:                 version,
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// MustLoad loads configuration and panics if there's an error
// This is useful for Lambda handlers where configuration errors should prevent startup
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if !c.Stage.IsValid() {
		return fmt.Errorf("invalid stage: %s", c.Stage)
	}

	if c.AWSRegion == "" {
		return fmt.Errorf("AWS region is required")
	}

	if c.ElasticsearchEndpoint == "" {
		return fmt.Errorf("elasticsearch endpoint is required")
	}

	if c.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive")
	}

	if c.MaxValues <= 0 {
		return fmt.Errorf("max matrix values must be positive")
	}

	return nil
}

// IsDevelopment returns true if the stage is development
func (c *Config) IsDevelopment() bool {
	return c.Stage == models.StageDev
}

// IsProduction returns true if the stage is production
func (c *Config) IsProduction() bool {
	return c.Stage == models.StageProd
}
