// Package sdp is a secure data path trusted application. It keeps a table
// of protected memory regions and decides which media devices may read or
// write each of them.
package sdp

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/infrastructure/parser"
	"github.com/splitworld/tee-sdk/ta"
)

// UUID identifies the application.
var UUID = uuid.MustParse("b9aa5f00-d229-11e4-925c-0002a5d5c51b")

// Name is the application's display name.
const Name = "sdp"

// Commands.
const (
	CmdCreateRegion  entities.CommandID = 0
	CmdDestroyRegion entities.CommandID = 1
	CmdUpdateRegion  entities.CommandID = 2
	CmdDumpStatus    entities.CommandID = 3
)

// Expected signatures.
var (
	CreateRegionSignature = entities.Sig(entities.KindValueIn, entities.KindValueIn,
		entities.KindValueOut, entities.KindNone)
	DestroyRegionSignature = entities.Sig(entities.KindValueIn, entities.KindNone,
		entities.KindNone, entities.KindNone)
	UpdateRegionSignature = entities.Sig(entities.KindValueIn, entities.KindBufferIn,
		entities.KindValueIn, entities.KindNone)
	DumpStatusSignature = entities.Sig(entities.KindBufferOut, entities.KindNone,
		entities.KindNone, entities.KindNone)
)

// maxDeviceName bounds the device name UPDATE_REGION reads.
const maxDeviceName = 63

//go:embed devices.yaml
var defaultCatalog []byte

type config struct {
	logger  *slog.Logger
	catalog []byte
}

// Option configures the application.
type Option func(*config)

// WithLogger sets the logger for the application and its dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCatalog replaces the built-in device catalog with a YAML document.
func WithCatalog(yaml []byte) Option {
	return func(c *config) {
		c.catalog = yaml
	}
}

// App is an instance of the application.
type App struct {
	dispatcher *ta.Dispatcher
	platform   *Platform
	logger     *slog.Logger
}

// Descriptor returns the descriptor installing the application on a host
// Context.
func Descriptor(opts ...Option) ta.Descriptor {
	return ta.Descriptor{
		UUID: UUID,
		Name: Name,
		New: func(context.Context) (ta.Instance, error) {
			return New(opts...)
		},
	}
}

// New creates an instance with its own platform.
func New(opts ...Option) (*App, error) {
	cfg := config{logger: slog.New(slog.DiscardHandler), catalog: defaultCatalog}
	for _, opt := range opts {
		opt(&cfg)
	}

	catalog, err := parser.NewYamlDeviceCatalogParser().Parse(cfg.catalog)
	if err != nil {
		return nil, fmt.Errorf("sdp: %w", err)
	}
	platform, err := NewPlatform(catalog)
	if err != nil {
		return nil, fmt.Errorf("sdp: %w", err)
	}

	a := &App{platform: platform, logger: cfg.logger}
	d, err := ta.NewDispatcher(
		ta.WithLogger(cfg.logger),
		ta.WithMiddleware(ta.LoggingMiddleware(cfg.logger)),
		ta.WithCommand(CmdCreateRegion, "CREATE_REGION", CreateRegionSignature, a.createRegion),
		ta.WithCommand(CmdDestroyRegion, "DESTROY_REGION", DestroyRegionSignature, a.destroyRegion),
		ta.WithCommand(CmdUpdateRegion, "UPDATE_REGION", UpdateRegionSignature, a.updateRegion),
		ta.WithCommand(CmdDumpStatus, "DUMP_STATUS", DumpStatusSignature, a.dumpStatus),
	)
	if err != nil {
		return nil, fmt.Errorf("sdp: %w", err)
	}
	a.dispatcher = d
	return a, nil
}

func (a *App) Dispatcher() *ta.Dispatcher {
	return a.dispatcher
}

// Platform returns the instance's region table.
func (a *App) Platform() *Platform {
	return a.platform
}

// Destroy frees every region.
func (a *App) Destroy(context.Context) {
	a.platform.Reset()
	a.logger.Debug("sdp platform reset")
}
