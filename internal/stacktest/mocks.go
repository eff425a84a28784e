// Package stacktest provides Pulumi engine mocks for unit testing
// infrastructure components.
package stacktest

import (
	"fmt"
	"sync"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Account and Region the mocked provider reports
const (
	Account = "123456789012"
	Region  = "us-west-2"
)

// Lookup tokens answered by Mocks.Call
const (
	GetVpcToken           = "aws:ec2/getVpc:getVpc"
	GetSubnetsToken       = "aws:ec2/getSubnets:getSubnets"
	GetSecurityGroupToken = "aws:ec2/getSecurityGroup:getSecurityGroup"
	GetZoneToken          = "aws:route53/getZone:getZone"
	GetDomainToken        = "aws:elasticsearch/getDomain:getDomain"
	GetSecretToken        = "aws:secretsmanager/getSecret:getSecret"
)

// Mocks records every resource registration and answers lookups with
// fixed data. The zero value is ready to use.
type Mocks struct {
	// SubnetIDs returned for any VPC; defaults to two subnets
	SubnetIDs []string
	// HostedZoneID returned for any zone lookup
	HostedZoneID string
	// Fail makes the lookup with the given token return the error
	Fail map[string]error

	mu        sync.Mutex
	resources []pulumi.MockResourceArgs
	calls     []pulumi.MockCallArgs
}

// NewResource records the registration and fills in the outputs the
// provider would compute
func (m *Mocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	m.mu.Lock()
	m.resources = append(m.resources, args)
	m.mu.Unlock()

	id := args.Name + "_id"
	outputs := args.Inputs.Copy()

	switch args.TypeToken {
	case "aws:apigateway/restApi:RestApi":
		outputs["rootResourceId"] = resource.NewStringProperty(args.Name + "-root")
		outputs["executionArn"] = resource.NewStringProperty(
			fmt.Sprintf("arn:aws:execute-api:%s:%s:%s", Region, Account, id))
	case "aws:lambda/function:Function":
		arn := fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s", Region, Account, args.Name)
		outputs["arn"] = resource.NewStringProperty(arn)
		outputs["invokeArn"] = resource.NewStringProperty(
			fmt.Sprintf("arn:aws:apigateway:%s:lambda:path/2015-03-31/functions/%s/invocations", Region, arn))
		if _, ok := outputs["name"]; !ok {
			outputs["name"] = resource.NewStringProperty(args.Name)
		}
	case "aws:apigateway/domainName:DomainName":
		outputs["regionalDomainName"] = resource.NewStringProperty("d-" + id + ".execute-api." + Region + ".amazonaws.com")
		outputs["regionalZoneId"] = resource.NewStringProperty("Z2OJLYMUO9EFXC")
	case "aws:apigateway/stage:Stage":
		outputs["invokeUrl"] = resource.NewStringProperty("https://" + id + ".execute-api." + Region + ".amazonaws.com/prod")
	case "aws:iam/role:Role", "aws:cloudwatch/logGroup:LogGroup":
		outputs["arn"] = resource.NewStringProperty(fmt.Sprintf("arn:aws:iam::%s:%s", Account, id))
	}

	return id, outputs, nil
}

// Call answers the data source lookups the stack performs
func (m *Mocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	m.mu.Lock()
	m.calls = append(m.calls, args)
	m.mu.Unlock()

	if err, ok := m.Fail[args.Token]; ok {
		return nil, err
	}

	switch args.Token {
	case GetVpcToken:
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":        args.Args["id"].StringValue(),
			"cidrBlock": "10.0.0.0/16",
		}), nil
	case GetSubnetsToken:
		subnets := m.SubnetIDs
		if subnets == nil {
			subnets = []string{"subnet-aaa", "subnet-bbb"}
		}
		ids := make([]interface{}, 0, len(subnets))
		for _, s := range subnets {
			ids = append(ids, s)
		}
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":  "subnets",
			"ids": ids,
		}), nil
	case GetSecurityGroupToken:
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":   args.Args["id"].StringValue(),
			"name": "rnaget",
		}), nil
	case GetZoneToken:
		zone := m.HostedZoneID
		if zone == "" {
			zone = "Z123EXAMPLE"
		}
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":     zone,
			"zoneId": zone,
			"name":   args.Args["name"].StringValue(),
		}), nil
	case GetDomainToken:
		name := args.Args["domainName"].StringValue()
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":         name,
			"domainName": name,
			"arn":        fmt.Sprintf("arn:aws:es:%s:%s:domain/%s", Region, Account, name),
		}), nil
	case GetSecretToken:
		name := args.Args["name"].StringValue()
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id":   name,
			"name": name,
			"arn":  SecretArn(name),
		}), nil
	}

	return resource.PropertyMap{}, nil
}

// SecretArn is the ARN the mocks report for the secret called name
func SecretArn(name string) string {
	return fmt.Sprintf("arn:aws:secretsmanager:%s:%s:secret:%s-AbCdEf", Region, Account, name)
}

// Resources returns the custom resources of the given type token in
// registration order. An empty token returns every custom resource.
func (m *Mocks) Resources(typeToken string) []pulumi.MockResourceArgs {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []pulumi.MockResourceArgs
	for _, r := range m.resources {
		if !r.Custom {
			continue
		}
		if typeToken == "" || r.TypeToken == typeToken {
			out = append(out, r)
		}
	}
	return out
}

// Calls returns the tokens of every lookup performed
func (m *Mocks) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		tokens = append(tokens, c.Token)
	}
	return tokens
}

// Run executes fn against the mocks as stack rnaget/test
func Run(m *Mocks, fn pulumi.RunFunc) error {
	return pulumi.RunErr(fn, pulumi.WithMocks("rnaget", "test", m))
}
