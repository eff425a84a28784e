// Package existing binds infrastructure owned outside the stack. Nothing
// here creates cloud resources: each handle is resolved by identifier
// and grouped under a component so it shows up in the stack graph.
package existing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/encode-dcc/serverless-rnaget/pkg/config"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/elasticsearch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/route53"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/secretsmanager"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// ErrInvalidIdentifier is returned when a configured identifier is malformed
var ErrInvalidIdentifier = errors.New("invalid resource identifier")

// Component type tokens
const (
	ResourcesType       = "rnaget:existing:Resources"
	InternalNetworkType = "rnaget:existing:InternalNetwork"
	APIDomainType       = "rnaget:existing:APIDomain"
	SearchDomainType    = "rnaget:existing:SearchDomain"
)

// Resources groups every pre-existing handle the API depends on
type Resources struct {
	pulumi.ResourceState

	Network *InternalNetwork
	Domain  *APIDomain
	Search  *SearchDomain
}

// InternalNetwork is the VPC network placement handlers run in
type InternalNetwork struct {
	pulumi.ResourceState

	VpcID           string
	SubnetIDs       []string
	SecurityGroupID string
}

// Resolved reports whether the network can host a function
func (n *InternalNetwork) Resolved() bool {
	return n != nil && n.VpcID != "" && n.SecurityGroupID != "" && len(n.SubnetIDs) > 0
}

// APIDomain is the base domain, its certificate and hosted zone
type APIDomain struct {
	pulumi.ResourceState

	DomainName     string
	CertificateArn string
	HostedZoneID   string
}

// SearchDomain is the Elasticsearch domain holding the expression data.
// SecretName and SecretArn are set when the domain takes basic auth from
// an internal user database.
type SearchDomain struct {
	pulumi.ResourceState

	Endpoint   string
	DomainName string
	Arn        string
	SecretName string
	SecretArn  string
}

// Bind resolves the configured identifiers. Any lookup failure or
// malformed identifier aborts the build.
func Bind(ctx *pulumi.Context, name string, cfg config.ExistingResources, opts ...pulumi.ResourceOption) (*Resources, error) {
	res := &Resources{}
	if err := ctx.RegisterComponentResource(ResourcesType, name, res, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(res)

	network, err := bindNetwork(ctx, name+"-network", cfg.VpcID, cfg.SecurityGroupID, parent)
	if err != nil {
		return nil, err
	}
	res.Network = network

	domain, err := bindDomain(ctx, name+"-domain", cfg.DomainName, cfg.DomainCertificateArn, parent)
	if err != nil {
		return nil, err
	}
	res.Domain = domain

	searchDomain, err := bindSearch(ctx, name+"-search", cfg.Elasticsearch, cfg.ElasticsearchSecretName, parent)
	if err != nil {
		return nil, err
	}
	res.Search = searchDomain

	if err := ctx.RegisterResourceOutputs(res, pulumi.Map{
		"vpcId":            pulumi.String(network.VpcID),
		"securityGroupId":  pulumi.String(network.SecurityGroupID),
		"hostedZoneId":     pulumi.String(domain.HostedZoneID),
		"searchDomainName": pulumi.String(searchDomain.DomainName),
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func bindNetwork(ctx *pulumi.Context, name, vpcID, securityGroupID string, parent pulumi.ResourceOrInvokeOption) (*InternalNetwork, error) {
	if !strings.HasPrefix(vpcID, "vpc-") {
		return nil, fmt.Errorf("%w: vpc id %q", ErrInvalidIdentifier, vpcID)
	}
	if !strings.HasPrefix(securityGroupID, "sg-") {
		return nil, fmt.Errorf("%w: security group id %q", ErrInvalidIdentifier, securityGroupID)
	}

	network := &InternalNetwork{}
	if err := ctx.RegisterComponentResource(InternalNetworkType, name, network, parent); err != nil {
		return nil, err
	}
	child := pulumi.Parent(network)

	vpc, err := ec2.LookupVpc(ctx, &ec2.LookupVpcArgs{
		Id: pulumi.StringRef(vpcID),
	}, child)
	if err != nil {
		return nil, fmt.Errorf("failed to look up vpc %s: %w", vpcID, err)
	}

	subnets, err := ec2.GetSubnets(ctx, &ec2.GetSubnetsArgs{
		Filters: []ec2.GetSubnetsFilter{
			{Name: "vpc-id", Values: []string{vpc.Id}},
		},
	}, child)
	if err != nil {
		return nil, fmt.Errorf("failed to list subnets of vpc %s: %w", vpcID, err)
	}

	sg, err := ec2.LookupSecurityGroup(ctx, &ec2.LookupSecurityGroupArgs{
		Id: pulumi.StringRef(securityGroupID),
	}, child)
	if err != nil {
		return nil, fmt.Errorf("failed to look up security group %s: %w", securityGroupID, err)
	}

	network.VpcID = vpc.Id
	network.SubnetIDs = subnets.Ids
	network.SecurityGroupID = sg.Id

	if err := ctx.RegisterResourceOutputs(network, pulumi.Map{
		"vpcId":           pulumi.String(network.VpcID),
		"subnetIds":       pulumi.ToStringArray(network.SubnetIDs),
		"securityGroupId": pulumi.String(network.SecurityGroupID),
	}); err != nil {
		return nil, err
	}
	return network, nil
}

func bindDomain(ctx *pulumi.Context, name, domainName, certificateArn string, parent pulumi.ResourceOrInvokeOption) (*APIDomain, error) {
	if domainName == "" || !strings.Contains(domainName, ".") {
		return nil, fmt.Errorf("%w: domain name %q", ErrInvalidIdentifier, domainName)
	}
	if err := ValidateCertificateArn(certificateArn); err != nil {
		return nil, err
	}

	domain := &APIDomain{}
	if err := ctx.RegisterComponentResource(APIDomainType, name, domain, parent); err != nil {
		return nil, err
	}

	zone, err := route53.LookupZone(ctx, &route53.LookupZoneArgs{
		Name: pulumi.StringRef(domainName),
	}, pulumi.Parent(domain))
	if err != nil {
		return nil, fmt.Errorf("failed to look up hosted zone %s: %w", domainName, err)
	}

	domain.DomainName = domainName
	domain.CertificateArn = certificateArn
	domain.HostedZoneID = zone.ZoneId

	if err := ctx.RegisterResourceOutputs(domain, pulumi.Map{
		"domainName":     pulumi.String(domain.DomainName),
		"certificateArn": pulumi.String(domain.CertificateArn),
		"hostedZoneId":   pulumi.String(domain.HostedZoneID),
	}); err != nil {
		return nil, err
	}
	return domain, nil
}

func bindSearch(ctx *pulumi.Context, name, endpoint, secretName string, parent pulumi.ResourceOrInvokeOption) (*SearchDomain, error) {
	domainName, err := DomainNameFromEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	search := &SearchDomain{}
	if err := ctx.RegisterComponentResource(SearchDomainType, name, search, parent); err != nil {
		return nil, err
	}

	es, err := elasticsearch.LookupDomain(ctx, &elasticsearch.LookupDomainArgs{
		DomainName: domainName,
	}, pulumi.Parent(search))
	if err != nil {
		return nil, fmt.Errorf("failed to look up elasticsearch domain %s: %w", domainName, err)
	}

	search.Endpoint = endpoint
	search.DomainName = domainName
	search.Arn = es.Arn

	if secretName != "" {
		secret, err := secretsmanager.LookupSecret(ctx, &secretsmanager.LookupSecretArgs{
			Name: pulumi.StringRef(secretName),
		}, pulumi.Parent(search))
		if err != nil {
			return nil, fmt.Errorf("failed to look up elasticsearch secret %s: %w", secretName, err)
		}
		search.SecretName = secretName
		search.SecretArn = secret.Arn
	}

	if err := ctx.RegisterResourceOutputs(search, pulumi.Map{
		"endpoint":   pulumi.String(search.Endpoint),
		"domainName": pulumi.String(search.DomainName),
		"arn":        pulumi.String(search.Arn),
		"secretArn":  pulumi.String(search.SecretArn),
	}); err != nil {
		return nil, err
	}
	return search, nil
}

// ValidateCertificateArn checks that s names an ACM certificate
func ValidateCertificateArn(s string) error {
	a, err := arn.Parse(s)
	if err != nil {
		return fmt.Errorf("%w: certificate arn %q: %v", ErrInvalidIdentifier, s, err)
	}
	if a.Service != "acm" || !strings.HasPrefix(a.Resource, "certificate/") {
		return fmt.Errorf("%w: %q is not an ACM certificate", ErrInvalidIdentifier, s)
	}
	return nil
}

// DomainNameFromEndpoint recovers the domain name from a domain
// endpoint. Endpoint hosts look like search-<name>-<hash>.<region>.es.amazonaws.com
// (or vpc-<name>-<hash> for VPC domains).
func DomainNameFromEndpoint(endpoint string) (string, error) {
	raw := endpoint
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: elasticsearch endpoint %q", ErrInvalidIdentifier, endpoint)
	}

	label := strings.Split(u.Hostname(), ".")[0]
	parts := strings.Split(label, "-")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: elasticsearch endpoint %q", ErrInvalidIdentifier, endpoint)
	}
	return strings.Join(parts[1:len(parts)-1], "-"), nil
}
