package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrMissingKey is returned when a required deployment key is absent
var ErrMissingKey = errors.New("missing required configuration key")

// Deployment holds the environment specific identifiers the
// infrastructure program is built from
type Deployment struct {
	Account           string            `yaml:"account"`
	Region            string            `yaml:"region"`
	ExistingResources ExistingResources `yaml:"existing_resources"`

	// Optional settings
	ArtifactPath     string `yaml:"artifact_path,omitempty"`
	LogRetentionDays int    `yaml:"log_retention_days,omitempty"`
	MemorySize       int    `yaml:"memory_size,omitempty"`
	Timeout          int    `yaml:"timeout,omitempty"`
	EnableXRay       bool   `yaml:"enable_xray,omitempty"`
	StageName        string `yaml:"stage_name,omitempty"`
	PortalURL        string `yaml:"portal_url,omitempty"`
}

// ExistingResources identifies infrastructure owned outside this stack
type ExistingResources struct {
	VpcID                string `yaml:"vpc_id"`
	SecurityGroupID      string `yaml:"security_group_id"`
	DomainName           string `yaml:"domain_name"`
	DomainCertificateArn string `yaml:"domain_certificate_arn"`
	Elasticsearch        string `yaml:"elasticsearch"`

	// ElasticsearchSecretName holds basic auth credentials for domains
	// with an internal user database; SigV4 is used when empty
	ElasticsearchSecretName string `yaml:"elasticsearch_secret_name,omitempty"`
}

// Deployment defaults
const (
	DefaultArtifactPath     = "../build/rnaget.zip"
	DefaultLogRetentionDays = 14
	DefaultMemorySize       = 512
	DefaultTimeout          = 30
	DefaultStageName        = "prod"
)

// LoadDeployment reads and validates a deployment file
func LoadDeployment(path string) (*Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment config %s: %w", path, err)
	}

	d, err := ParseDeployment(data)
	if err != nil {
		return nil, fmt.Errorf("deployment config %s: %w", path, err)
	}
	return d, nil
}

// ParseDeployment decodes a deployment document, applies defaults and
// validates it
func ParseDeployment(data []byte) (*Deployment, error) {
	var d Deployment
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse deployment config: %w", err)
	}

	d.applyDefaults()

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Deployment) applyDefaults() {
	if d.ArtifactPath == "" {
		d.ArtifactPath = DefaultArtifactPath
	}
	if d.LogRetentionDays == 0 {
		d.LogRetentionDays = DefaultLogRetentionDays
	}
	if d.MemorySize == 0 {
		d.MemorySize = DefaultMemorySize
	}
	if d.Timeout == 0 {
		d.Timeout = DefaultTimeout
	}
	if d.StageName == "" {
		d.StageName = DefaultStageName
	}
	if d.PortalURL == "" {
		d.PortalURL = DefaultPortalURL
	}
}

// Validate checks that every required key is present
func (d *Deployment) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"account", d.Account},
		{"region", d.Region},
		{"existing_resources.vpc_id", d.ExistingResources.VpcID},
		{"existing_resources.security_group_id", d.ExistingResources.SecurityGroupID},
		{"existing_resources.domain_name", d.ExistingResources.DomainName},
		{"existing_resources.domain_certificate_arn", d.ExistingResources.DomainCertificateArn},
		{"existing_resources.elasticsearch", d.ExistingResources.Elasticsearch},
	}

	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingKey, r.key)
		}
	}

	if d.LogRetentionDays < 0 || d.MemorySize < 0 || d.Timeout < 0 {
		return fmt.Errorf("log_retention_days, memory_size and timeout must not be negative")
	}
	return nil
}
