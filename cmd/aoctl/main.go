// aoctl drives the compute network from the command line: spawn
// processes, send messages, run dry-runs and poll results.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/permagate/aogo"
	"github.com/permagate/aogo/core"
)

type CustomHandler struct {
	slog.Handler
}

func (h *CustomHandler) Handle(ctx context.Context, r slog.Record) error {

	r.AddAttrs(slog.String("type", "app"))

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(slog.String("traceID", span.SpanContext().TraceID().String()))
		r.AddAttrs(slog.String("spanID", span.SpanContext().SpanID().String()))
	}

	return h.Handler.Handle(ctx, r)
}

var version = "unknown"

var (
	configPath string
	tagFlags   []string
	dataFlag   string
	waitFlag   bool
	baseLayer  bool

	config  Config
	engine  *aogo.AO
	cleanup func()
)

func main() {
	handler := &CustomHandler{Handler: slog.NewJSONHandler(os.Stderr, nil)}
	slog.SetDefault(slog.New(handler))

	root := &cobra.Command{
		Use:               "aoctl",
		Short:             "command-line client for the ao compute network",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cleanup != nil {
				cleanup()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default $AOCTL_CONFIG or /etc/aoctl/config.yaml)")

	spawn := &cobra.Command{
		Use:   "spawn <module-id> <scheduler-address>",
		Short: "create a process from a module",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := callOptions()
			if err != nil {
				return err
			}
			pid, err := engine.Spawn(cmd.Context(), args[0], args[1], []byte(dataFlag), opts)
			if err != nil {
				return err
			}
			fmt.Println(pid)
			return nil
		},
	}

	send := &cobra.Command{
		Use:   "send <process-id>",
		Short: "send a signed message to a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := callOptions()
			if err != nil {
				return err
			}
			mid, err := engine.Message(cmd.Context(), args[0], []byte(dataFlag), opts)
			if err != nil {
				return err
			}
			fmt.Println(mid)
			return nil
		},
	}

	dryrun := &cobra.Command{
		Use:   "dryrun <process-id>",
		Short: "evaluate a message without persisting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := callOptions()
			if err != nil {
				return err
			}
			res, err := engine.DryRun(cmd.Context(), args[0], []byte(dataFlag), opts)
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}

	result := &cobra.Command{
		Use:   "result <process-id> <message-id>",
		Short: "fetch the computed result of a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res core.Result
			var err error
			if waitFlag {
				res, err = engine.WaitResult(cmd.Context(), args[0], args[1], aogo.Options{})
			} else {
				res, err = engine.Result(cmd.Context(), args[0], args[1], aogo.Options{})
			}
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	result.Flags().BoolVar(&waitFlag, "wait", false, "poll until the result is available")

	assign := &cobra.Command{
		Use:   "assign <process-id> <tx-id>",
		Short: "schedule an existing transaction onto a process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := engine.Assign(cmd.Context(), args[0], args[1], baseLayer, aogo.Options{})
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	assign.Flags().BoolVar(&baseLayer, "base-layer", false, "the transaction lives on the base layer")

	monitor := &cobra.Command{
		Use:   "monitor <process-id>",
		Short: "subscribe a process to cron evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return engine.Monitor(cmd.Context(), args[0], aogo.Options{})
		},
	}

	unmonitor := &cobra.Command{
		Use:   "unmonitor <process-id>",
		Short: "remove a cron subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return engine.Unmonitor(cmd.Context(), args[0], aogo.Options{})
		},
	}

	for _, cmd := range []*cobra.Command{spawn, send, dryrun} {
		cmd.Flags().StringArrayVar(&tagFlags, "tag", nil, "tag in name=value form, repeatable")
		cmd.Flags().StringVar(&dataFlag, "data", "", "message payload")
	}

	root.AddCommand(spawn, send, dryrun, result, assign, monitor, unmonitor)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = os.Getenv("AOCTL_CONFIG")
	}
	if path == "" {
		path = "/etc/aoctl/config.yaml"
	}
	if _, err := os.Stat(path); err == nil || configPath != "" {
		if err := config.Load(path); err != nil {
			return fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	if config.Trace.Enable {
		var err error
		cleanup, err = setupTraceProvider(config.Trace.Endpoint, "aoctl", version)
		if err != nil {
			return err
		}
	}

	cfg, err := config.EngineConfig()
	if err != nil {
		return err
	}
	engine, err = aogo.New(cfg)
	return err
}

func callOptions() (aogo.Options, error) {
	opts := aogo.Options{}
	for _, raw := range tagFlags {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return aogo.Options{}, fmt.Errorf("malformed tag %q, want name=value", raw)
		}
		opts.Tags = append(opts.Tags, core.Tag{Name: name, Value: value})
	}
	return opts, nil
}

func printResult(res core.Result) error {
	encoded, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func setupTraceProvider(endpoint string, serviceName string, serviceVersion string) (func(), error) {

	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)

	if err != nil {
		return nil, err
	}

	resource := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(serviceVersion),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource),
	)
	otel.SetTracerProvider(tracerProvider)

	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(propagator)

	cleanup := func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			slog.Error(fmt.Sprintf("Failed to shutdown tracer provider: %v", err))
		}
	}
	return cleanup, nil
}
