package gateway

import (
	"fmt"
	"strings"

	"github.com/encode-dcc/serverless-rnaget/internal/existing"
	"github.com/encode-dcc/serverless-rnaget/internal/rnaget"
	"github.com/encode-dcc/serverless-rnaget/internal/routes"
	"github.com/encode-dcc/serverless-rnaget/pkg/config"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/apigateway"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Options are the deployment settings shared by every function
type Options struct {
	Stage            string // STAGE of the functions, e.g. dev
	StageName        string // API Gateway stage
	ArtifactPath     string // zip holding the bootstrap binary
	Runtime          string
	MemorySize       int
	Timeout          int
	LogRetentionDays int
	LogLevel         string
	EnableXRay       bool
	PortalURL        string // public metadata source, the runtime default when empty
	Tags             pulumi.StringMap
}

func (o *Options) applyDefaults() {
	if o.Stage == "" {
		o.Stage = "dev"
	}
	if o.StageName == "" {
		o.StageName = "prod"
	}
	if o.ArtifactPath == "" {
		o.ArtifactPath = config.DefaultArtifactPath
	}
	if o.Runtime == "" {
		o.Runtime = "provided.al2023"
	}
	if o.MemorySize == 0 {
		o.MemorySize = 512
	}
	if o.Timeout == 0 {
		o.Timeout = 30
	}
	if o.LogRetentionDays == 0 {
		o.LogRetentionDays = 14
	}
	if o.LogLevel == "" {
		o.LogLevel = "INFO"
	}
}

// Route mirrors one created API Gateway resource and what is bound to it
type Route struct {
	Path        string
	PathPart    string
	Handler     string
	Resource    *apigateway.Resource
	ResourceID  pulumi.StringInput
	Method      *apigateway.Method
	Integration *apigateway.Integration
	Children    []*Route
}

// Builder materializes a route tree on one REST API
type Builder struct {
	ctx      *pulumi.Context
	prefix   string
	api      *apigateway.RestApi
	existing *existing.Resources
	role     *iam.Role
	code     pulumi.Archive
	opts     Options
	registry *Registry
	parent   pulumi.Resource
	deps     []pulumi.Resource // methods and integrations a deployment waits on
	roleDeps []pulumi.Resource // policies functions wait on
}

// BuilderArgs wires a Builder to the resources it builds on
type BuilderArgs struct {
	Prefix   string
	API      *apigateway.RestApi
	Existing *existing.Resources
	Role     *iam.Role
	RoleDeps []pulumi.Resource
	Options  Options
	Registry *Registry
	Parent   pulumi.Resource
}

// NewBuilder creates a builder. A nil Registry starts a fresh one.
func NewBuilder(ctx *pulumi.Context, args BuilderArgs) *Builder {
	args.Options.applyDefaults()
	if args.Registry == nil {
		args.Registry = NewRegistry()
	}
	if args.Prefix == "" {
		args.Prefix = "rnaget"
	}
	return &Builder{
		ctx:      ctx,
		prefix:   args.Prefix,
		api:      args.API,
		existing: args.Existing,
		role:     args.Role,
		code:     pulumi.NewFileArchive(args.Options.ArtifactPath),
		opts:     args.Options,
		registry: args.Registry,
		parent:   args.Parent,
		roleDeps: args.RoleDeps,
	}
}

// Registry returns the registry populated by the builder
func (b *Builder) Registry() *Registry {
	return b.registry
}

// Root returns the route of the API's root resource
func (b *Builder) Root() *Route {
	return &Route{Path: "/", ResourceID: b.api.RootResourceId}
}

// MakeHandler creates the function serving name and registers it.
// Functions needing the internal network are placed in the existing VPC.
func (b *Builder) MakeHandler(name string) (*Handler, error) {
	if b.registry.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
	}

	h, err := b.newHandler(name)
	if err != nil {
		return nil, err
	}
	if err := b.registry.Register(h); err != nil {
		return nil, err
	}
	return h, nil
}

// newHandler creates a function without registering it
func (b *Builder) newHandler(name string) (*Handler, error) {
	if !rnaget.HasHandler(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, name)
	}

	placement := DefaultPlacement
	if routes.RequiresVPC(name) {
		placement = NetworkPlacement
	}

	var vpcConfig *lambda.FunctionVpcConfigArgs
	if placement == NetworkPlacement {
		network := b.existing.Network
		if !network.Resolved() {
			return nil, fmt.Errorf("%w: handler %s", ErrNetworkUnresolved, name)
		}
		vpcConfig = &lambda.FunctionVpcConfigArgs{
			SubnetIds:        pulumi.ToStringArray(network.SubnetIDs),
			SecurityGroupIds: pulumi.StringArray{pulumi.String(network.SecurityGroupID)},
		}
	}

	functionName := fmt.Sprintf("%s-%s-%s", b.prefix, b.opts.Stage, hyphenate(name))

	logGroup, err := cloudwatch.NewLogGroup(b.ctx, b.resourceName("logs", name), &cloudwatch.LogGroupArgs{
		Name:            pulumi.String("/aws/lambda/" + functionName),
		RetentionInDays: pulumi.Int(b.opts.LogRetentionDays),
		Tags:            b.opts.Tags,
	}, b.childOpts()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create log group for %s: %w", name, err)
	}

	env := pulumi.StringMap{
		"STAGE":                  pulumi.String(b.opts.Stage),
		"LOG_LEVEL":              pulumi.String(b.opts.LogLevel),
		"ELASTICSEARCH_ENDPOINT": pulumi.String(b.existing.Search.Endpoint),
		"RNAGET_BASE_URL":        pulumi.String("https://" + CustomDomainName(b.existing.Domain.DomainName)),
	}
	if b.existing.Search.SecretName != "" {
		env["ELASTICSEARCH_SECRET_NAME"] = pulumi.String(b.existing.Search.SecretName)
	}
	if b.opts.PortalURL != "" {
		env["PORTAL_URL"] = pulumi.String(b.opts.PortalURL)
	}

	tracingMode := "PassThrough"
	if b.opts.EnableXRay {
		tracingMode = "Active"
	}

	deps := append([]pulumi.Resource{logGroup}, b.roleDeps...)
	fn, err := lambda.NewFunction(b.ctx, b.resourceName("function", name), &lambda.FunctionArgs{
		Name:        pulumi.String(functionName),
		Runtime:     pulumi.String(b.opts.Runtime),
		Role:        b.role.Arn,
		Handler:     pulumi.String(name),
		Code:        b.code,
		Environment: &lambda.FunctionEnvironmentArgs{Variables: env},
		MemorySize:  pulumi.Int(b.opts.MemorySize),
		Timeout:     pulumi.Int(b.opts.Timeout),
		VpcConfig:   vpcConfig,
		TracingConfig: &lambda.FunctionTracingConfigArgs{
			Mode: pulumi.String(tracingMode),
		},
		Tags: b.opts.Tags,
	}, append(b.childOpts(), pulumi.DependsOn(deps))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create function %s: %w", name, err)
	}

	return &Handler{
		Name:      name,
		Placement: placement,
		Function:  fn,
		LogGroup:  logGroup,
	}, nil
}

// AddResourcesAndHandlers creates a resource for every node of tree under
// parent, binds action to each node naming a handler and recurses into
// children. The created routes are appended to parent.Children.
func (b *Builder) AddResourcesAndHandlers(parent *Route, tree routes.Tree, action string) ([]*Route, error) {
	if action == "" {
		action = routes.DefaultAction
	}

	created := make([]*Route, 0, len(tree))
	for _, node := range tree {
		path := routes.Join(parent.Path, node.PathPart)

		res, err := apigateway.NewResource(b.ctx, b.resourceName("resource", path), &apigateway.ResourceArgs{
			RestApi:  b.api.ID(),
			ParentId: parent.ResourceID,
			PathPart: pulumi.String(node.PathPart),
		}, b.childOpts()...)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource %s: %w", path, err)
		}

		route := &Route{
			Path:       path,
			PathPart:   node.PathPart,
			Handler:    node.Handler,
			Resource:   res,
			ResourceID: res.ID().ToStringOutput(),
		}

		if node.HasHandler() {
			h, err := b.MakeHandler(node.Handler)
			if err != nil {
				return nil, fmt.Errorf("route %s: %w", path, err)
			}
			if err := b.bind(route, h, action); err != nil {
				return nil, err
			}
		}

		if len(node.Children) > 0 {
			if _, err := b.AddResourcesAndHandlers(route, node.Children, action); err != nil {
				return nil, err
			}
		}

		created = append(created, route)
	}

	parent.Children = append(parent.Children, created...)
	return created, nil
}

// bind attaches action on route to h through a proxy integration and
// lets API Gateway invoke the function for that method and path only
func (b *Builder) bind(route *Route, h *Handler, action string) error {
	method, err := apigateway.NewMethod(b.ctx, b.resourceName("method", route.Path), &apigateway.MethodArgs{
		RestApi:       b.api.ID(),
		ResourceId:    route.ResourceID,
		HttpMethod:    pulumi.String(action),
		Authorization: pulumi.String("NONE"),
	}, b.childOpts()...)
	if err != nil {
		return fmt.Errorf("failed to create method %s %s: %w", action, route.Path, err)
	}

	integration, err := apigateway.NewIntegration(b.ctx, b.resourceName("integration", route.Path), &apigateway.IntegrationArgs{
		RestApi:               b.api.ID(),
		ResourceId:            route.ResourceID,
		HttpMethod:            method.HttpMethod,
		IntegrationHttpMethod: pulumi.String("POST"),
		Type:                  pulumi.String("AWS_PROXY"),
		Uri:                   h.Function.InvokeArn,
	}, b.childOpts()...)
	if err != nil {
		return fmt.Errorf("failed to create integration %s %s: %w", action, route.Path, err)
	}

	_, err = lambda.NewPermission(b.ctx, b.resourceName("permission", route.Path), &lambda.PermissionArgs{
		Action:    pulumi.String("lambda:InvokeFunction"),
		Function:  h.Function.Name,
		Principal: pulumi.String("apigateway.amazonaws.com"),
		SourceArn: pulumi.Sprintf("%s/*/%s%s", b.api.ExecutionArn, permissionMethod(action), permissionPath(route.Path)),
	}, b.childOpts()...)
	if err != nil {
		return fmt.Errorf("failed to create permission %s %s: %w", action, route.Path, err)
	}

	route.Method = method
	route.Integration = integration
	b.deps = append(b.deps, method, integration)
	return nil
}

func (b *Builder) childOpts() []pulumi.ResourceOption {
	if b.parent == nil {
		return nil
	}
	return []pulumi.ResourceOption{pulumi.Parent(b.parent)}
}

// resourceName derives a stack-unique resource name from a handler name
// or a resource path
func (b *Builder) resourceName(kind, key string) string {
	key = strings.Trim(key, "/")
	if key == "" {
		key = "root"
	}
	return fmt.Sprintf("%s-%s-%s", b.prefix, kind, hyphenate(key))
}

// hyphenate turns handler names and paths into resource name fragments:
// expressions_id_bytes -> expressions-id-bytes,
// expressions/{expression_id}/bytes -> expressions-expression-id-bytes
func hyphenate(s string) string {
	return strings.NewReplacer("_", "-", "/", "-", "{", "", "}", "", "+", "").Replace(s)
}

// permissionMethod maps ANY to the wildcard execute-api expects
func permissionMethod(action string) string {
	if action == "ANY" {
		return "*"
	}
	return action
}

// permissionPath replaces path parameters with wildcards
func permissionPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			parts[i] = "*"
		}
	}
	return strings.Join(parts, "/")
}
