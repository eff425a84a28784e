// Command debug runs RNAget handlers locally against the portal and the configured search domain.
//
// Usage:
//
//	debug invoke expressions_id_bytes --param expression_id=ENCFF001 --query units=FPKM
//	debug invoke --event docs/events/service_info.json
//	debug handlers
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/encode-dcc/serverless-rnaget/internal/logging"
	"github.com/encode-dcc/serverless-rnaget/internal/rnaget"
	"github.com/encode-dcc/serverless-rnaget/internal/routes"
	appconfig "github.com/encode-dcc/serverless-rnaget/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "debug",
		Short:         "Invoke RNAget handlers locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newInvokeCmd(),
		newHandlersCmd(),
	)
	return rootCmd
}

func newInvokeCmd() *cobra.Command {
	var (
		eventFile string
		params    map[string]string
		query     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "invoke [handler]",
		Short: "Invoke one handler with an API Gateway proxy event",
		Long: `Invoke builds an API Gateway proxy event from --event and the
--param/--query flags, then runs the handler in process.

When no handler is named it is resolved from the event's resource path.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := buildRequest(eventFile, params, query)
			if err != nil {
				return err
			}

			name := handlerForPath(request.Resource)
			if len(args) == 1 {
				name = args[0]
			}
			if !rnaget.HasHandler(name) {
				return fmt.Errorf("unknown handler %q, available: %s", name, strings.Join(rnaget.HandlerNames(), ", "))
			}
			return runInvoke(cmd.Context(), cmd.OutOrStdout(), name, request)
		},
	}

	cmd.Flags().StringVarP(&eventFile, "event", "e", "", "API Gateway proxy event JSON file")
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "path parameters as key=value")
	cmd.Flags().StringToStringVarP(&query, "query", "q", nil, "query string parameters as key=value")

	return cmd
}

func newHandlersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List handlers and the resource paths they serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			writeHandlers(cmd.OutOrStdout())
			return nil
		},
	}
}

func runInvoke(ctx context.Context, out io.Writer, name string, request events.APIGatewayProxyRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.Setup(name)

	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	service, err := rnaget.NewFromConfig(cfg, awsCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	handler, err := service.Handler(name)
	if err != nil {
		return err
	}

	response, err := handler(ctx, request)
	if err != nil {
		return fmt.Errorf("handler failed: %w", err)
	}

	fmt.Fprintf(out, "HTTP %d\n", response.StatusCode)
	for k, v := range response.Headers {
		fmt.Fprintf(out, "%s: %s\n", k, v)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, response.Body)
	return nil
}

// writeHandlers prints one "handler path" line per routed handler, sorted by path
func writeHandlers(out io.Writer) {
	paths := routes.RNAGet.Paths()
	sorted := make([]string, 0, len(paths))
	for p, h := range paths {
		if h != "" {
			sorted = append(sorted, p)
		}
	}
	sort.Strings(sorted)

	fmt.Fprintf(out, "%-24s %s\n", routes.DefaultHandler, "/")
	for _, p := range sorted {
		fmt.Fprintf(out, "%-24s %s\n", paths[p], p)
	}
}

// buildRequest loads eventFile when given and overlays the flag values
func buildRequest(eventFile string, params, query map[string]string) (events.APIGatewayProxyRequest, error) {
	request := events.APIGatewayProxyRequest{HTTPMethod: routes.DefaultAction}

	if eventFile != "" {
		data, err := os.ReadFile(eventFile)
		if err != nil {
			return request, fmt.Errorf("failed to read event file: %w", err)
		}
		if err := json.Unmarshal(data, &request); err != nil {
			return request, fmt.Errorf("failed to unmarshal event JSON: %w", err)
		}
	}

	if len(params) > 0 && request.PathParameters == nil {
		request.PathParameters = map[string]string{}
	}
	for k, v := range params {
		request.PathParameters[k] = v
	}

	if len(query) > 0 && request.QueryStringParameters == nil {
		request.QueryStringParameters = map[string]string{}
	}
	for k, v := range query {
		request.QueryStringParameters[k] = v
	}
	return request, nil
}

// handlerForPath finds the handler serving a resource path such as
// /expressions/{expression_id}/bytes
func handlerForPath(resource string) string {
	if resource == "" || resource == "/" {
		return routes.DefaultHandler
	}
	return routes.RNAGet.Paths()[resource]
}
