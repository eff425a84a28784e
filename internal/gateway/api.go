// Package gateway deploys the RNAget REST API: one function per handler
// name, the resource tree routing to them, and the custom domain in front.
package gateway

import (
	"fmt"

	"github.com/encode-dcc/serverless-rnaget/internal/existing"
	"github.com/encode-dcc/serverless-rnaget/internal/routes"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/apigateway"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/route53"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// APIType is the component type token of the API
const APIType = "rnaget:gateway:API"

// CustomDomainName returns the API hostname under the base domain
func CustomDomainName(baseDomain string) string {
	return "rnaget." + baseDomain
}

// API is the deployed REST API and everything attached to it
type API struct {
	pulumi.ResourceState

	RestAPI     *apigateway.RestApi
	Role        *iam.Role
	Default     *Handler
	Root        *Route
	Registry    *Registry
	Deployment  *apigateway.Deployment
	Account     *apigateway.Account
	Stage       *apigateway.Stage
	DomainName  *apigateway.DomainName
	BasePath    *apigateway.BasePathMapping
	AliasRecord *route53.Record

	URL             pulumi.StringOutput
	CustomDomainURL string
}

// NewAPI builds the REST API for tree on the existing resources. The
// default handler answers ANY on the root; every tree node naming a
// handler gets its own function bound with GET.
func NewAPI(ctx *pulumi.Context, name string, res *existing.Resources, tree routes.Tree, opts Options, ropts ...pulumi.ResourceOption) (*API, error) {
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("invalid route tree: %w", err)
	}
	opts.applyDefaults()

	api := &API{}
	if err := ctx.RegisterComponentResource(APIType, name, api, ropts...); err != nil {
		return nil, err
	}
	child := pulumi.Parent(api)

	role, roleDeps, err := newExecutionRole(ctx, name, res, opts, child)
	if err != nil {
		return nil, err
	}
	api.Role = role

	restAPI, err := apigateway.NewRestApi(ctx, name, &apigateway.RestApiArgs{
		Name:        pulumi.Sprintf("%s-%s", name, opts.Stage),
		Description: pulumi.String("RNAget API"),
		Tags:        opts.Tags,
	}, child)
	if err != nil {
		return nil, fmt.Errorf("failed to create rest api: %w", err)
	}
	api.RestAPI = restAPI

	b := NewBuilder(ctx, BuilderArgs{
		Prefix:   name,
		API:      restAPI,
		Existing: res,
		Role:     role,
		RoleDeps: roleDeps,
		Options:  opts,
		Parent:   api,
	})

	// The default handler is not part of the registry
	def, err := b.newHandler(routes.DefaultHandler)
	if err != nil {
		return nil, fmt.Errorf("default handler: %w", err)
	}
	api.Default = def

	api.Root = b.Root()
	if err := b.bind(api.Root, def, "ANY"); err != nil {
		return nil, err
	}

	if _, err := b.AddResourcesAndHandlers(api.Root, tree, routes.DefaultAction); err != nil {
		return nil, err
	}
	api.Registry = b.Registry()

	deployment, err := apigateway.NewDeployment(ctx, name+"-deployment", &apigateway.DeploymentArgs{
		RestApi: restAPI.ID(),
		Triggers: pulumi.StringMap{
			"redeployment": pulumi.String(tree.Fingerprint()),
		},
	}, child, pulumi.DependsOn(b.deps))
	if err != nil {
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}
	api.Deployment = deployment

	accessLogs, err := cloudwatch.NewLogGroup(ctx, name+"-access-logs", &cloudwatch.LogGroupArgs{
		Name:            pulumi.Sprintf("/aws/apigateway/%s-%s", name, opts.Stage),
		RetentionInDays: pulumi.Int(opts.LogRetentionDays),
		Tags:            opts.Tags,
	}, child)
	if err != nil {
		return nil, fmt.Errorf("failed to create access log group: %w", err)
	}

	account, err := newAccountLogging(ctx, name, opts, child)
	if err != nil {
		return nil, err
	}
	api.Account = account

	stage, err := apigateway.NewStage(ctx, name+"-stage", &apigateway.StageArgs{
		RestApi:            restAPI.ID(),
		Deployment:         deployment.ID(),
		StageName:          pulumi.String(opts.StageName),
		XrayTracingEnabled: pulumi.Bool(opts.EnableXRay),
		AccessLogSettings: &apigateway.StageAccessLogSettingsArgs{
			DestinationArn: accessLogs.Arn,
			Format:         pulumi.String(accessLogFormat),
		},
		Tags: opts.Tags,
	}, child, pulumi.DependsOn([]pulumi.Resource{account}))
	if err != nil {
		return nil, fmt.Errorf("failed to create stage: %w", err)
	}
	api.Stage = stage
	api.URL = stage.InvokeUrl

	if err := api.attachCustomDomain(ctx, name, res.Domain, opts, child); err != nil {
		return nil, err
	}

	if err := ctx.RegisterResourceOutputs(api, pulumi.Map{
		"restApiId":       restAPI.ID(),
		"url":             api.URL,
		"customDomainUrl": pulumi.String(api.CustomDomainURL),
	}); err != nil {
		return nil, err
	}
	return api, nil
}

// attachCustomDomain serves the stage at rnaget.<base-domain> with the
// existing certificate and aliases that name in the existing zone
func (a *API) attachCustomDomain(ctx *pulumi.Context, name string, domain *existing.APIDomain, opts Options, child pulumi.ResourceOption) error {
	hostname := CustomDomainName(domain.DomainName)

	domainName, err := apigateway.NewDomainName(ctx, name+"-domain", &apigateway.DomainNameArgs{
		DomainName:             pulumi.String(hostname),
		RegionalCertificateArn: pulumi.String(domain.CertificateArn),
		EndpointConfiguration: &apigateway.DomainNameEndpointConfigurationArgs{
			Types: pulumi.String("REGIONAL"),
		},
		SecurityPolicy: pulumi.String("TLS_1_2"),
		Tags:           opts.Tags,
	}, child)
	if err != nil {
		return fmt.Errorf("failed to create custom domain %s: %w", hostname, err)
	}
	a.DomainName = domainName

	mapping, err := apigateway.NewBasePathMapping(ctx, name+"-base-path", &apigateway.BasePathMappingArgs{
		RestApi:    a.RestAPI.ID(),
		StageName:  a.Stage.StageName,
		DomainName: domainName.DomainName,
	}, child)
	if err != nil {
		return fmt.Errorf("failed to map %s to stage: %w", hostname, err)
	}
	a.BasePath = mapping

	record, err := route53.NewRecord(ctx, name+"-alias", &route53.RecordArgs{
		ZoneId: pulumi.String(domain.HostedZoneID),
		Name:   pulumi.String(hostname),
		Type:   pulumi.String("A"),
		Aliases: route53.RecordAliasArray{
			&route53.RecordAliasArgs{
				Name:                 domainName.RegionalDomainName,
				ZoneId:               domainName.RegionalZoneId,
				EvaluateTargetHealth: pulumi.Bool(false),
			},
		},
	}, child)
	if err != nil {
		return fmt.Errorf("failed to create alias record %s: %w", hostname, err)
	}
	a.AliasRecord = record
	a.CustomDomainURL = "https://" + hostname
	return nil
}

// newAccountLogging gives API Gateway the region-wide CloudWatch role it
// needs before any stage may write access logs
func newAccountLogging(ctx *pulumi.Context, name string, opts Options, child pulumi.ResourceOption) (*apigateway.Account, error) {
	role, err := iam.NewRole(ctx, name+"-cloudwatch-role", &iam.RoleArgs{
		Name: pulumi.Sprintf("%s-apigateway-logs-%s", name, opts.Stage),
		AssumeRolePolicy: pulumi.String(`{
			"Version": "2012-10-17",
			"Statement": [{
				"Effect": "Allow",
				"Principal": {"Service": "apigateway.amazonaws.com"},
				"Action": "sts:AssumeRole"
			}]
		}`),
		Tags: opts.Tags,
	}, child)
	if err != nil {
		return nil, fmt.Errorf("failed to create api gateway logging role: %w", err)
	}

	attachment, err := iam.NewRolePolicyAttachment(ctx, name+"-cloudwatch-logs", &iam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/service-role/AmazonAPIGatewayPushToCloudWatchLogs"),
	}, child)
	if err != nil {
		return nil, fmt.Errorf("failed to attach api gateway logging policy: %w", err)
	}

	account, err := apigateway.NewAccount(ctx, name+"-account", &apigateway.AccountArgs{
		CloudwatchRoleArn: role.Arn,
	}, child, pulumi.DependsOn([]pulumi.Resource{attachment}))
	if err != nil {
		return nil, fmt.Errorf("failed to set api gateway account logging role: %w", err)
	}
	return account, nil
}

// newExecutionRole creates the role every function assumes. It can write
// logs, attach to the VPC, read the search domain and, when the domain
// takes basic auth, read the credentials secret.
func newExecutionRole(ctx *pulumi.Context, name string, res *existing.Resources, opts Options, child pulumi.ResourceOption) (*iam.Role, []pulumi.Resource, error) {
	role, err := iam.NewRole(ctx, name+"-role", &iam.RoleArgs{
		Name: pulumi.Sprintf("%s-lambda-role-%s", name, opts.Stage),
		AssumeRolePolicy: pulumi.String(`{
			"Version": "2012-10-17",
			"Statement": [{
				"Effect": "Allow",
				"Principal": {"Service": "lambda.amazonaws.com"},
				"Action": "sts:AssumeRole"
			}]
		}`),
		Tags: opts.Tags,
	}, child)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create execution role: %w", err)
	}

	var deps []pulumi.Resource
	for _, managed := range []struct{ suffix, arn string }{
		{"basic-execution", "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"},
		{"vpc-access", "arn:aws:iam::aws:policy/service-role/AWSLambdaVPCAccessExecutionRole"},
	} {
		attachment, err := iam.NewRolePolicyAttachment(ctx, name+"-"+managed.suffix, &iam.RolePolicyAttachmentArgs{
			Role:      role.Name,
			PolicyArn: pulumi.String(managed.arn),
		}, child)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to attach %s policy: %w", managed.suffix, err)
		}
		deps = append(deps, attachment)
	}

	var secretStatement string
	if res.Search.SecretArn != "" {
		secretStatement = fmt.Sprintf(`,
				{
					"Effect": "Allow",
					"Action": "secretsmanager:GetSecretValue",
					"Resource": "%s"
				}`, res.Search.SecretArn)
	}

	policy, err := iam.NewRolePolicy(ctx, name+"-search-read", &iam.RolePolicyArgs{
		Role: role.Name,
		Policy: pulumi.String(fmt.Sprintf(`{
			"Version": "2012-10-17",
			"Statement": [
				{
					"Effect": "Allow",
					"Action": [
						"es:ESHttpGet",
						"es:ESHttpHead",
						"es:ESHttpPost"
					],
					"Resource": ["%s", "%s/*"]
				},
				{
					"Effect": "Allow",
					"Action": [
						"xray:PutTraceSegments",
						"xray:PutTelemetryRecords"
					],
					"Resource": "*"
				}%s
			]
		}`, res.Search.Arn, res.Search.Arn, secretStatement)),
	}, child)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create search read policy: %w", err)
	}
	deps = append(deps, policy)

	return role, deps, nil
}

const accessLogFormat = `{"requestId":"$context.requestId","ip":"$context.identity.sourceIp","requestTime":"$context.requestTime","httpMethod":"$context.httpMethod","resourcePath":"$context.resourcePath","status":"$context.status","responseLength":"$context.responseLength","integrationError":"$context.integrationErrorMessage"}`
