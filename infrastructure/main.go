package main

import (
	"fmt"
	"log"
	"runtime/debug"

	"github.com/encode-dcc/serverless-rnaget/internal/existing"
	"github.com/encode-dcc/serverless-rnaget/internal/gateway"
	"github.com/encode-dcc/serverless-rnaget/internal/routes"
	appconfig "github.com/encode-dcc/serverless-rnaget/pkg/config"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

func main() {
	pulumi.Run(run)
}

func run(ctx *pulumi.Context) (err error) {
	// Add panic recovery with detailed logging
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC RECOVERED: %v", r)
			log.Printf("Stack trace:\n%s", debug.Stack())
			err = fmt.Errorf("panic occurred: %v", r)
		}
	}()

	log.Printf("Starting RNAget infrastructure deployment...")
	cfg := config.New(ctx, "")

	stage := cfg.Get("stage")
	if stage == "" {
		stage = "dev"
		log.Printf("Using default stage: %s", stage)
	}

	configFile := cfg.Get("configFile")
	if configFile == "" {
		configFile = fmt.Sprintf("../config/%s.yaml", stage)
	}

	logLevel := cfg.Get("logLevel")
	if logLevel == "" {
		logLevel = "INFO"
	}

	deployment, err := appconfig.LoadDeployment(configFile)
	if err != nil {
		return err
	}
	log.Printf("Configuration loaded: stage=%s, account=%s, region=%s", stage, deployment.Account, deployment.Region)

	// Common tags
	commonTags := pulumi.StringMap{
		"Project":     pulumi.String("rnaget"),
		"Stage":       pulumi.String(stage),
		"ManagedBy":   pulumi.String("pulumi"),
		"Environment": pulumi.String(stage),
	}

	// Pin every resource and lookup to the configured account and region
	provider, err := aws.NewProvider(ctx, "aws-"+stage, &aws.ProviderArgs{
		Region:            pulumi.String(deployment.Region),
		AllowedAccountIds: pulumi.StringArray{pulumi.String(deployment.Account)},
	})
	if err != nil {
		return fmt.Errorf("failed to create aws provider: %w", err)
	}

	log.Printf("Binding existing resources...")
	res, err := existing.Bind(ctx, "existing", deployment.ExistingResources, pulumi.Provider(provider))
	if err != nil {
		return fmt.Errorf("failed to bind existing resources: %w", err)
	}

	log.Printf("Building API (%d handlers)...", len(routes.RNAGet.HandlerNames()))
	api, err := gateway.NewAPI(ctx, "rnaget", res, routes.RNAGet, gateway.Options{
		Stage:            stage,
		StageName:        deployment.StageName,
		ArtifactPath:     deployment.ArtifactPath,
		MemorySize:       deployment.MemorySize,
		Timeout:          deployment.Timeout,
		LogRetentionDays: deployment.LogRetentionDays,
		LogLevel:         logLevel,
		EnableXRay:       deployment.EnableXRay,
		PortalURL:        deployment.PortalURL,
		Tags:             commonTags,
	}, pulumi.Provider(provider))
	if err != nil {
		return fmt.Errorf("failed to build api: %w", err)
	}

	// ========================================
	// Outputs
	// ========================================
	ctx.Export("apiUrl", api.URL)
	ctx.Export("customDomainUrl", pulumi.String(api.CustomDomainURL))
	ctx.Export("restApiId", api.RestAPI.ID())

	handlerArns := pulumi.StringMap{}
	for _, h := range api.Registry.Handlers() {
		handlerArns[h.Name] = h.Function.Arn
	}
	handlerArns[api.Default.Name] = api.Default.Function.Arn
	ctx.Export("handlerArns", handlerArns)

	log.Printf("Infrastructure deployment complete: %s", api.CustomDomainURL)
	return nil
}
