package host

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/ta"
	"github.com/splitworld/tee-sdk/wireformat"
)

// Option defines a functional option for configuring a Context.
type Option func(*contextBuilder)

type contextBuilder struct {
	logger   *slog.Logger
	tracer   trace.TracerProvider
	observer func(wireformat.InvocationWire)
	apps     []ta.Descriptor
	config   entities.Config
	errors   []error
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg entities.Config) Option {
	return func(b *contextBuilder) {
		b.config = cfg
	}
}

// WithConfigOptions adjusts the configuration.
func WithConfigOptions(opts ...entities.ConfigOption) Option {
	return func(b *contextBuilder) {
		for _, opt := range opts {
			opt(&b.config)
		}
	}
}

// WithTrustedApp installs a trusted application. Its instance is created
// on the first session opened against it.
func WithTrustedApp(d ta.Descriptor) Option {
	return func(b *contextBuilder) {
		if err := d.Validate(); err != nil {
			b.errors = append(b.errors, err)
			return
		}
		for _, existing := range b.apps {
			if existing.UUID == d.UUID {
				b.errors = append(b.errors, fmt.Errorf("duplicate trusted app %s", d.UUID))
				return
			}
		}
		b.apps = append(b.apps, d)
	}
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(b *contextBuilder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTracerProvider sets the provider of the invocation tracer. Defaults
// to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *contextBuilder) {
		if tp != nil {
			b.tracer = tp
		}
	}
}

// WithInvocationObserver receives a record of every InvokeCommand call,
// after it completes. It runs on the invoking goroutine.
func WithInvocationObserver(fn func(wireformat.InvocationWire)) Option {
	return func(b *contextBuilder) {
		b.observer = fn
	}
}
