package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type fakeSecretsAPI struct {
	values map[string]string
	err    error
	calls  int
}

func (f *fakeSecretsAPI) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(params.SecretId)]
	if !ok {
		return &secretsmanager.GetSecretValueOutput{}, nil
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestManager_GetSecret_Caches(t *testing.T) {
	api := &fakeSecretsAPI{values: map[string]string{
		"rnaget/es": `{"username":"rnaget","password":"hunter2"}`,
	}}
	m := NewManagerWithClient(api, nil)

	for i := 0; i < 3; i++ {
		v, err := m.GetSecret(context.Background(), "rnaget/es")
		if err != nil {
			t.Fatalf("GetSecret() error = %v", err)
		}
		if v["username"] != "rnaget" {
			t.Errorf("username = %v, want rnaget", v["username"])
		}
	}

	if api.calls != 1 {
		t.Errorf("API calls = %d, want 1", api.calls)
	}
	if m.GetCacheSize() != 1 {
		t.Errorf("GetCacheSize() = %d, want 1", m.GetCacheSize())
	}

	m.ClearCache()
	if m.GetCacheSize() != 0 {
		t.Errorf("GetCacheSize() after clear = %d, want 0", m.GetCacheSize())
	}
}

func TestManager_GetSecret_Errors(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeSecretsAPI
	}{
		{"api error", &fakeSecretsAPI{err: errors.New("access denied")}},
		{"binary secret", &fakeSecretsAPI{values: map[string]string{}}},
		{"not JSON", &fakeSecretsAPI{values: map[string]string{"rnaget/es": "plain"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManagerWithClient(tt.api, nil)
			if _, err := m.GetSecret(context.Background(), "rnaget/es"); err == nil {
				t.Error("GetSecret() error = nil, want error")
			}
			if m.GetCacheSize() != 0 {
				t.Error("failed lookup was cached")
			}
		})
	}
}

func TestBasicAuth(t *testing.T) {
	api := &fakeSecretsAPI{values: map[string]string{
		"complete": `{"username":"rnaget","password":"hunter2"}`,
		"partial":  `{"username":"rnaget"}`,
	}}
	m := NewManagerWithClient(api, nil)

	username, password, err := NewBasicAuth(m, "complete").BasicAuth(context.Background())
	if err != nil {
		t.Fatalf("BasicAuth() error = %v", err)
	}
	if username != "rnaget" || password != "hunter2" {
		t.Errorf("BasicAuth() = %q, %q", username, password)
	}

	if _, _, err := NewBasicAuth(m, "partial").BasicAuth(context.Background()); err == nil {
		t.Error("BasicAuth() on partial secret error = nil")
	}
}
