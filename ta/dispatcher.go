package ta

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
	"github.com/splitworld/tee-sdk/wireformat"
)

// Command is one entry of a dispatcher's command table.
type Command struct {
	handler   Handler
	Name      string
	ID        entities.CommandID
	Signature entities.Signature
}

// Dispatcher is an immutable command table. Once created via
// NewDispatcher, commands cannot be added or removed, so lookups need no
// locking and one Dispatcher may serve many sessions concurrently.
type Dispatcher struct {
	commands map[entities.CommandID]*Command
	logger   *slog.Logger
	ids      []entities.CommandID // sorted
	hooks    []StateHook
}

// Option configures a Dispatcher under construction.
type Option func(*dispatcherBuilder)

type dispatcherBuilder struct {
	commands   map[entities.CommandID]*Command
	names      map[string]entities.CommandID
	logger     *slog.Logger
	middleware []Middleware
	hooks      []StateHook
	errors     []error
}

// NewDispatcher creates an immutable Dispatcher with the given options.
// Returns an error if a command id or name is registered twice.
func NewDispatcher(opts ...Option) (*Dispatcher, error) {
	b := &dispatcherBuilder{
		commands: make(map[entities.CommandID]*Command),
		names:    make(map[string]entities.CommandID),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	ids := make([]entities.CommandID, 0, len(b.commands))
	for id, cmd := range b.commands {
		wrapped := cmd.handler
		for i := len(b.middleware) - 1; i >= 0; i-- {
			wrapped = b.middleware[i](wrapped)
		}
		cmd.handler = PanicRecoveryMiddleware()(wrapped)
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return &Dispatcher{
		commands: b.commands,
		logger:   b.logger,
		ids:      ids,
		hooks:    b.hooks,
	}, nil
}

func (b *dispatcherBuilder) addCommand(id entities.CommandID, name string, sig entities.Signature, h Handler) error {
	if name == "" {
		return fmt.Errorf("command %s: name cannot be empty", id)
	}
	if h == nil {
		return fmt.Errorf("command %q: handler cannot be nil", name)
	}
	if !sig.Valid() {
		return fmt.Errorf("command %q: invalid signature %s", name, sig)
	}
	if _, exists := b.commands[id]; exists {
		return fmt.Errorf("duplicate command id: %d", uint32(id))
	}
	if _, exists := b.names[name]; exists {
		return fmt.Errorf("duplicate command name: %q", name)
	}
	b.commands[id] = &Command{ID: id, Name: name, Signature: sig, handler: h}
	b.names[name] = id
	return nil
}

// WithCommand registers a handler for id with its expected signature.
func WithCommand(id entities.CommandID, name string, sig entities.Signature, h Handler) Option {
	return func(b *dispatcherBuilder) {
		if err := b.addCommand(id, name, sig, h); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware around every handler.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) Option {
	return func(b *dispatcherBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}

// WithStateHook adds an observer of state transitions.
func WithStateHook(h StateHook) Option {
	return func(b *dispatcherBuilder) {
		if h != nil {
			b.hooks = append(b.hooks, h)
		}
	}
}

// WithLogger sets the logger handed to handlers through TaskContext.
func WithLogger(l *slog.Logger) Option {
	return func(b *dispatcherBuilder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Has reports whether id is registered.
func (d *Dispatcher) Has(id entities.CommandID) bool {
	_, ok := d.commands[id]
	return ok
}

// Lookup returns the command table entry for id.
func (d *Dispatcher) Lookup(id entities.CommandID) (Command, bool) {
	cmd, ok := d.commands[id]
	if !ok {
		return Command{}, false
	}
	return *cmd, true
}

// Commands returns the table sorted by id.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, *d.commands[id])
	}
	return out
}

// Describe returns the command table in wire form.
func (d *Dispatcher) Describe() []wireformat.CommandWire {
	out := make([]wireformat.CommandWire, 0, len(d.ids))
	for _, id := range d.ids {
		cmd := d.commands[id]
		out = append(out, wireformat.NewCommandWire(cmd.ID, cmd.Name, cmd.Signature))
	}
	return out
}

// Invoke dispatches command id on behalf of session. The handler runs only
// if the call's signature equals the command's declared signature. Errors
// raised before the handler carry origin tee; handler errors carry origin
// trusted-app unless the handler set one.
func (d *Dispatcher) Invoke(ctx context.Context, session uint32, id entities.CommandID, p *Params) error {
	cmd := d.commands[id]
	name := ""
	if cmd != nil {
		name = cmd.Name
	}
	tc := newTaskContext(ctx, d.logger, session, id, name)
	op := "invoke " + tc.commandLabel()

	if cmd == nil {
		return d.fail(tc, errors.Newf(entities.CodeBadParameters, entities.OriginTEE, op, "unknown command"))
	}
	if p == nil {
		return d.fail(tc, errors.Newf(entities.CodeBadParameters, entities.OriginTEE, op, "missing parameters"))
	}
	if err := ctx.Err(); err != nil {
		return d.fail(tc, errors.New(entities.CodeCancel, entities.OriginTEE, op, err))
	}
	if err := CheckShape(cmd.Signature, p); err != nil {
		return d.fail(tc, errors.Stamp(err, entities.OriginTEE, op))
	}
	d.transition(tc, StateShapeValidated)
	d.transition(tc, StateExecuting)

	if err := cmd.handler(tc, p); err != nil {
		return d.fail(tc, errors.Stamp(err, entities.OriginTrustedApp, op))
	}
	if err := p.checkUsed(); err != nil {
		return d.fail(tc, errors.Stamp(err, entities.OriginTEE, op))
	}
	d.transition(tc, StateCompleted)
	return nil
}

func (d *Dispatcher) fail(tc *taskContext, err *errors.TEEError) error {
	d.transition(tc, StateFailed)
	tc.logger.Debug("command rejected",
		slog.String("code", err.Code.Name()),
		slog.String("origin", err.Origin.String()),
	)
	return err
}

func (d *Dispatcher) transition(tc *taskContext, to State) {
	from := tc.state
	tc.state = to
	for _, h := range d.hooks {
		h(tc, from, to)
	}
}
