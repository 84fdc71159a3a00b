package ta

import (
	"context"
	"log/slog"

	"github.com/splitworld/tee-sdk/domain/entities"
)

// TaskContext is the context.Context a handler runs under, carrying the
// identity of the invocation.
type TaskContext interface {
	context.Context

	// SessionID returns the session the command was issued on.
	SessionID() uint32

	Command() entities.CommandID

	// CommandName returns the registered name, or "" for an unknown command.
	CommandName() string

	State() State

	// Logger returns a logger annotated with session and command.
	Logger() *slog.Logger
}

type taskContext struct {
	context.Context
	logger  *slog.Logger
	name    string
	session uint32
	command entities.CommandID
	state   State
}

func newTaskContext(ctx context.Context, logger *slog.Logger, session uint32, id entities.CommandID, name string) *taskContext {
	c := &taskContext{
		Context: ctx,
		name:    name,
		session: session,
		command: id,
		state:   StateReceived,
	}
	c.logger = logger.With(slog.Uint64("session", uint64(session)), slog.String("command", c.commandLabel()))
	return c
}

func (c *taskContext) commandLabel() string {
	if c.name != "" {
		return c.name
	}
	return c.command.String()
}

func (c *taskContext) SessionID() uint32 {
	return c.session
}

func (c *taskContext) Command() entities.CommandID {
	return c.command
}

func (c *taskContext) CommandName() string {
	return c.name
}

func (c *taskContext) State() State {
	return c.state
}

func (c *taskContext) Logger() *slog.Logger {
	return c.logger
}
