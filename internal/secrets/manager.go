package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretValue represents a generic secret value
type SecretValue map[string]string

// API is the subset of the Secrets Manager client the Manager uses
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type cachedSecret struct {
	Value     SecretValue
	ExpiresAt time.Time
}

// Manager handles AWS Secrets Manager operations with caching
type Manager struct {
	client    API
	logger    *slog.Logger
	cache     map[string]*cachedSecret
	cacheLock sync.RWMutex
	cacheTTL  time.Duration
}

// NewManager creates a new secrets manager with caching
func NewManager(cfg aws.Config, logger *slog.Logger) *Manager {
	return NewManagerWithClient(secretsmanager.NewFromConfig(cfg), logger)
}

// NewManagerWithClient creates a manager around an existing client
func NewManagerWithClient(client API, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client:   client,
		logger:   logger,
		cache:    make(map[string]*cachedSecret),
		cacheTTL: 5 * time.Minute, // warm Lambdas re-read rotated secrets within minutes
	}
}

// GetSecret retrieves a secret from AWS Secrets Manager with caching
func (m *Manager) GetSecret(ctx context.Context, secretName string) (SecretValue, error) {
	if cached := m.getFromCache(secretName); cached != nil {
		m.logger.DebugContext(ctx, "secret cache hit", slog.String("secret_name", "[REDACTED]"))
		return cached.Value, nil
	}

	m.logger.DebugContext(ctx, "secret cache miss, fetching from AWS", slog.String("secret_name", "[REDACTED]"))

	result, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to retrieve secret",
			slog.String("error", err.Error()),
			slog.String("secret_name", "[REDACTED]"),
		)
		return nil, fmt.Errorf("failed to retrieve secret: %w", err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("secret has no string value")
	}

	var secretValue SecretValue
	if err := json.Unmarshal([]byte(*result.SecretString), &secretValue); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}

	m.putInCache(secretName, secretValue)

	return secretValue, nil
}

// BasicAuth resolves username/password pairs stored in one secret
type BasicAuth struct {
	manager    *Manager
	secretName string
}

// NewBasicAuth returns credentials read from secretName
func NewBasicAuth(manager *Manager, secretName string) *BasicAuth {
	return &BasicAuth{manager: manager, secretName: secretName}
}

// BasicAuth returns the username and password fields of the secret
func (b *BasicAuth) BasicAuth(ctx context.Context) (string, string, error) {
	value, err := b.manager.GetSecret(ctx, b.secretName)
	if err != nil {
		return "", "", err
	}

	username, password := value["username"], value["password"]
	if username == "" || password == "" {
		return "", "", fmt.Errorf("secret missing required fields (username, password)")
	}
	return username, password, nil
}

// getFromCache retrieves a secret from cache if not expired
func (m *Manager) getFromCache(secretName string) *cachedSecret {
	m.cacheLock.RLock()
	defer m.cacheLock.RUnlock()

	cached, exists := m.cache[secretName]
	if !exists {
		return nil
	}

	if time.Now().After(cached.ExpiresAt) {
		return nil
	}

	return cached
}

// putInCache stores a secret in cache with TTL
func (m *Manager) putInCache(secretName string, value SecretValue) {
	m.cacheLock.Lock()
	defer m.cacheLock.Unlock()

	m.cache[secretName] = &cachedSecret{
		Value:     value,
		ExpiresAt: time.Now().Add(m.cacheTTL),
	}
}

// ClearCache clears all cached secrets
func (m *Manager) ClearCache() {
	m.cacheLock.Lock()
	defer m.cacheLock.Unlock()

	m.cache = make(map[string]*cachedSecret)
	m.logger.Debug("secret cache cleared")
}

// GetCacheSize returns the number of cached secrets
func (m *Manager) GetCacheSize() int {
	m.cacheLock.RLock()
	defer m.cacheLock.RUnlock()

	return len(m.cache)
}
