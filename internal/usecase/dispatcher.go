package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"telegram-bot-core/internal/domain"
	"telegram-bot-core/internal/textutil"
)

const DefaultCommandTimeout = 15 * time.Second

// Handler runs one step of a command. ctx carries the dispatcher deadline;
// handlers should pass it to every I/O call so abandonment stops further work.
type Handler interface {
	Handle(ctx context.Context, req Request) (*Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (*Result, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// Command binds a user-facing name to its handler.
type Command struct {
	Name    string
	Handler Handler
}

// Registry is the fixed set of commands known at startup. It is never
// modified after NewRegistry returns.
type Registry struct {
	commands []Command
}

func NewRegistry(commands ...Command) (*Registry, error) {
	seen := make(map[string]bool, len(commands))
	out := make([]Command, 0, len(commands))
	for _, c := range commands {
		key := textutil.Normalize(c.Name)
		if key == "" {
			return nil, errors.New("usecase: command name must not be empty")
		}
		if c.Handler == nil {
			return nil, fmt.Errorf("usecase: command %q has no handler", c.Name)
		}
		if seen[key] {
			return nil, fmt.Errorf("usecase: duplicate command %q", c.Name)
		}
		seen[key] = true
		out = append(out, c)
	}
	return &Registry{commands: out}, nil
}

// Names returns command names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.commands))
	for i, c := range r.commands {
		names[i] = c.Name
	}
	return names
}

// Match finds the command whose normalized name equals the normalized text or
// the session's active process.
func (r *Registry) Match(text, process string) (Command, bool) {
	t := textutil.Normalize(text)
	p := textutil.Normalize(process)
	for _, c := range r.commands {
		n := textutil.Normalize(c.Name)
		if n == t || (p != "" && n == p) {
			return c, true
		}
	}
	return Command{}, false
}

// Dispatcher routes inbound text to a registered command and bounds its run time.
type Dispatcher struct {
	registry  *Registry
	messenger Messenger
	timeout   time.Duration
	logger    *slog.Logger
}

func NewDispatcher(r *Registry, m Messenger, timeout time.Duration, logger *slog.Logger) (*Dispatcher, error) {
	if r == nil {
		return nil, errors.New("usecase: registry must not be nil")
	}
	if m == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:  r,
		messenger: m,
		timeout:   timeout,
		logger:    logger.With("component", "dispatcher"),
	}, nil
}

type outcome struct {
	res *Result
	err error
}

// Dispatch runs the matching command. No match sends the unrecognized notice
// and returns (nil, nil). A handler failure or timeout is reported to the user
// and returned; the handler may still be running when a timeout is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	in := req.Inbound
	cmd, ok := d.registry.Match(in.Text, req.Session.Process)
	if !ok {
		d.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgUnrecognizedCommand, html.EscapeString(in.Text)))
		return nil, nil
	}

	logger := d.logger.With("command", cmd.Name, "user_id", in.UserID)
	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("usecase: command %q panicked: %v", cmd.Name, p)}
			}
		}()
		res, err := cmd.Handler.Handle(runCtx, req)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			logger.ErrorContext(ctx, "command failed", "err", o.err)
			d.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgCommandFailed, cmd.Name))
			return nil, o.err
		}
		return o.res, nil
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WarnContext(ctx, "command timed out", "timeout", d.timeout)
		d.messenger.SendText(ctx, in.ChatID, fmt.Sprintf(msgCommandTimeout, cmd.Name))
		return nil, domain.NewError(domain.KindTimeout, "usecase: Dispatch", "command_timeout",
			fmt.Errorf("command %q exceeded %s", cmd.Name, d.timeout))
	}
}
