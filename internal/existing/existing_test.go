package existing

import (
	"errors"
	"testing"

	"github.com/encode-dcc/serverless-rnaget/internal/stacktest"
	"github.com/encode-dcc/serverless-rnaget/pkg/config"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.ExistingResources {
	return config.ExistingResources{
		VpcID:                "vpc-0abc123",
		SecurityGroupID:      "sg-0def456",
		DomainName:           "encodeproject.org",
		DomainCertificateArn: "arn:aws:acm:us-west-2:123456789012:certificate/1234abcd-12ab-34cd-56ef-1234567890ab",
		Elasticsearch:        "https://vpc-rnaget-dev-abc123xyz.us-west-2.es.amazonaws.com",
	}
}

func bind(t *testing.T, mocks *stacktest.Mocks, cfg config.ExistingResources) (*Resources, error) {
	t.Helper()
	var res *Resources
	err := stacktest.Run(mocks, func(ctx *pulumi.Context) error {
		var err error
		res, err = Bind(ctx, "existing", cfg)
		return err
	})
	return res, err
}

func TestBind(t *testing.T) {
	mocks := &stacktest.Mocks{SubnetIDs: []string{"subnet-1", "subnet-2", "subnet-3"}}

	res, err := bind(t, mocks, testConfig())
	require.NoError(t, err)

	assert.Equal(t, "vpc-0abc123", res.Network.VpcID)
	assert.Equal(t, []string{"subnet-1", "subnet-2", "subnet-3"}, res.Network.SubnetIDs)
	assert.Equal(t, "sg-0def456", res.Network.SecurityGroupID)
	assert.True(t, res.Network.Resolved())

	assert.Equal(t, "encodeproject.org", res.Domain.DomainName)
	assert.Equal(t, "Z123EXAMPLE", res.Domain.HostedZoneID)
	assert.Equal(t, testConfig().DomainCertificateArn, res.Domain.CertificateArn)

	assert.Equal(t, "rnaget-dev", res.Search.DomainName)
	assert.Equal(t, "arn:aws:es:us-west-2:123456789012:domain/rnaget-dev", res.Search.Arn)

	assert.ElementsMatch(t, []string{
		stacktest.GetVpcToken,
		stacktest.GetSubnetsToken,
		stacktest.GetSecurityGroupToken,
		stacktest.GetZoneToken,
		stacktest.GetDomainToken,
	}, mocks.Calls())

	// Binding only reads; it never creates cloud resources
	assert.Empty(t, mocks.Resources(""))
}

func TestBind_SearchSecret(t *testing.T) {
	mocks := &stacktest.Mocks{}
	cfg := testConfig()
	cfg.ElasticsearchSecretName = "rnaget/es-credentials"

	res, err := bind(t, mocks, cfg)
	require.NoError(t, err)

	assert.Equal(t, "rnaget/es-credentials", res.Search.SecretName)
	assert.Equal(t, stacktest.SecretArn("rnaget/es-credentials"), res.Search.SecretArn)
	assert.Contains(t, mocks.Calls(), stacktest.GetSecretToken)

	// Without a secret name nothing is looked up
	plain := &stacktest.Mocks{}
	res, err = bind(t, plain, testConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Search.SecretArn)
	assert.NotContains(t, plain.Calls(), stacktest.GetSecretToken)
}

func TestBind_InvalidIdentifiers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.ExistingResources)
	}{
		{"vpc", func(c *config.ExistingResources) { c.VpcID = "0abc123" }},
		{"security group", func(c *config.ExistingResources) { c.SecurityGroupID = "default" }},
		{"domain", func(c *config.ExistingResources) { c.DomainName = "localhost" }},
		{"certificate not an arn", func(c *config.ExistingResources) { c.DomainCertificateArn = "1234abcd" }},
		{"certificate wrong service", func(c *config.ExistingResources) {
			c.DomainCertificateArn = "arn:aws:iam::123456789012:server-certificate/rnaget"
		}},
		{"elasticsearch endpoint", func(c *config.ExistingResources) { c.Elasticsearch = "https://localhost:9200" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := bind(t, &stacktest.Mocks{}, cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidIdentifier), "error = %v", err)
		})
	}
}

func TestBind_LookupFailure(t *testing.T) {
	for _, token := range []string{
		stacktest.GetVpcToken,
		stacktest.GetSecurityGroupToken,
		stacktest.GetZoneToken,
		stacktest.GetDomainToken,
		stacktest.GetSecretToken,
	} {
		t.Run(token, func(t *testing.T) {
			cfg := testConfig()
			cfg.ElasticsearchSecretName = "rnaget/es-credentials"
			mocks := &stacktest.Mocks{Fail: map[string]error{token: errors.New("not found")}}
			_, err := bind(t, mocks, cfg)
			assert.Error(t, err)
		})
	}
}

func TestInternalNetwork_Resolved(t *testing.T) {
	var missing *InternalNetwork
	assert.False(t, missing.Resolved())
	assert.False(t, (&InternalNetwork{VpcID: "vpc-1", SecurityGroupID: "sg-1"}).Resolved())
	assert.True(t, (&InternalNetwork{VpcID: "vpc-1", SecurityGroupID: "sg-1", SubnetIDs: []string{"subnet-1"}}).Resolved())
}

func TestDomainNameFromEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{"https://search-rnaget-abc123.us-west-2.es.amazonaws.com", "rnaget", false},
		{"vpc-encode-rnaget-prod-x7y8z9.us-west-2.es.amazonaws.com", "encode-rnaget-prod", false},
		{"https://search-rnaget-abc123.us-west-2.es.amazonaws.com/", "rnaget", false},
		{"https://rnaget.us-west-2.es.amazonaws.com", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := DomainNameFromEndpoint(tt.endpoint)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIdentifier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCertificateArn(t *testing.T) {
	assert.NoError(t, ValidateCertificateArn(testConfig().DomainCertificateArn))
	assert.ErrorIs(t, ValidateCertificateArn("arn:aws:acm:us-west-2:123456789012:private-ca/x"), ErrInvalidIdentifier)
	assert.ErrorIs(t, ValidateCertificateArn(""), ErrInvalidIdentifier)
}
