// Command teectl drives the demonstration trusted applications through a
// host Context and prints what crossed the boundary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/splitworld/tee-sdk/application/schema"
	"github.com/splitworld/tee-sdk/application/validation"
	"github.com/splitworld/tee-sdk/config"
	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
	"github.com/splitworld/tee-sdk/host"
	"github.com/splitworld/tee-sdk/internal/scenario"
	"github.com/splitworld/tee-sdk/log"
	"github.com/splitworld/tee-sdk/ta"
	"github.com/splitworld/tee-sdk/wireformat"
)

func main() {
	var (
		name     string
		describe bool
		schemas  bool
		traced   bool
		records  bool
	)
	flag.StringVar(&name, "scenario", "all", "scenario to run (hello, sdp, shm, all)")
	flag.BoolVar(&describe, "describe", false, "print the command table of every trusted app and exit")
	flag.BoolVar(&schemas, "schema", false, "print the JSON schemas of the wire format and exit")
	flag.BoolVar(&traced, "trace", false, "print a span summary of every invocation")
	flag.BoolVar(&records, "records", false, "print the invocation record of every call as JSON")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout, options{
		scenario: name,
		describe: describe,
		schemas:  schemas,
		traced:   traced,
		records:  records,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if origin := errors.OriginOf(err); origin != entities.OriginUnset {
			fmt.Fprintf(os.Stderr, "  code %s, origin %s\n", errors.CodeOf(err).Name(), origin)
		}
		os.Exit(1)
	}
}

type options struct {
	scenario string
	describe bool
	schemas  bool
	traced   bool
	records  bool
}

func run(ctx context.Context, w io.Writer, opts options) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := log.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logger := log.NewLogger(log.WithLevel(level), log.WithFormat(format))

	switch {
	case opts.schemas:
		return printSchemas(w)
	case opts.describe:
		return describeApps(ctx, w, scenario.Apps(logger))
	}

	var toRun []scenario.Scenario
	if opts.scenario == "all" {
		toRun = scenario.All()
	} else {
		s, ok := scenario.Lookup(opts.scenario)
		if !ok {
			return fmt.Errorf("unknown scenario %q", opts.scenario)
		}
		toRun = []scenario.Scenario{s}
	}

	hostOpts := append(scenario.HostOptions(logger),
		host.WithConfig(cfg),
		host.WithLogger(logger),
	)
	spans := &spanLog{}
	if opts.traced {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans))
		defer func() { _ = tp.Shutdown(context.Background()) }()
		hostOpts = append(hostOpts, host.WithTracerProvider(tp))
	}
	if opts.records {
		enc := json.NewEncoder(w)
		hostOpts = append(hostOpts, host.WithInvocationObserver(func(rec wireformat.InvocationWire) {
			if err := enc.Encode(rec); err != nil {
				logger.Warn("encode invocation record", slog.Any("error", err))
			}
		}))
	}

	c, err := host.InitializeContext(ctx, hostOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if ferr := c.Finalize(context.Background()); ferr != nil {
			logger.Error("finalize context", slog.Any("error", ferr))
		}
	}()

	for _, s := range toRun {
		fmt.Fprintf(w, "== %s\n", s.Name)
		if err := s.Run(ctx, c, w); err != nil {
			return fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}

	if opts.traced {
		spans.print(w)
	}
	return nil
}

func printSchemas(w io.Writer) error {
	all, err := schema.All()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(all)
}

func describeApps(ctx context.Context, w io.Writer, apps []ta.Descriptor) error {
	v, err := validation.NewWireValidator()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, d := range apps {
		inst, err := d.New(ctx)
		if err != nil {
			return fmt.Errorf("create %s: %w", d.Name, err)
		}
		table := ta.Describe(d, inst)
		if err := v.ValidateAppValue(table); err != nil {
			return fmt.Errorf("%s command table: %w", d.Name, err)
		}
		if err := enc.Encode(table); err != nil {
			return err
		}
	}
	return nil
}
