// Package orchestrator drives watch mode and exec mode.
//
// In watch mode a single goroutine owns every piece of state: the armed
// flag, the add-event grace period and whether a child is running. File
// events, timers and child exits all reach that goroutine as channel
// messages, so they are handled one at a time in arrival order.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/yamlinc/internal/compiler"
	"github.com/conneroisu/yamlinc/internal/logging"
	"github.com/conneroisu/yamlinc/internal/process"
	"github.com/conneroisu/yamlinc/internal/watcher"
)

// Compiler is the part of *compiler.Compiler the orchestrator needs.
type Compiler interface {
	Compile(ctx context.Context, input string) (*compiler.Result, error)
	IsInput(path string) bool
	IsGenerated(path string) bool
}

// State is the externally visible state of the watch loop.
type State int32

const (
	StateIdle State = iota
	StateWatching
	StateChildRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateChildRunning:
		return "child-running"
	default:
		return "unknown"
	}
}

// Options configures a watch loop.
type Options struct {
	// Input is the document to compile.
	Input string
	// Command and Args describe the child. An empty Command only
	// recompiles.
	Command string
	Args    []string
	// ArmDelay is the time from start until events count and the child is
	// first launched.
	ArmDelay time.Duration
	// AddGrace is the time from start during which add events are ignored.
	AddGrace time.Duration
}

// Orchestrator runs the watch loop.
type Orchestrator struct {
	compiler Compiler
	spawner  process.Spawner
	logger   logging.Logger
	opts     Options

	events chan []watcher.ChangeEvent
	exits  chan error
	done   chan struct{}
	state  atomic.Int32

	// compiles counts compilations, failed ones included.
	compiles atomic.Int64
	doneOnce sync.Once
}

// New creates an orchestrator. Run starts it.
func New(c Compiler, s process.Spawner, opts Options, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		compiler: c,
		spawner:  s,
		logger:   logger.WithComponent("orchestrator"),
		opts:     opts,
		events:   make(chan []watcher.ChangeEvent, 16),
		exits:    make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Compiles returns how many compilations the loop has run.
func (o *Orchestrator) Compiles() int64 {
	return o.compiles.Load()
}

// Notify hands a batch of file events to the loop. It never blocks once
// the loop has stopped. Notify has the signature of a watcher handler.
func (o *Orchestrator) Notify(events []watcher.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	select {
	case o.events <- events:
	case <-o.done:
	}
	return nil
}

// Run compiles the input, then processes events until ctx is cancelled. A
// running child is not killed on return. Run returns nil on cancellation.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.doneOnce.Do(func() { close(o.done) })
	defer o.state.Store(int32(StateIdle))

	// A failed first compile is reported; a later change may fix it.
	o.compile(ctx)

	armTimer := time.NewTimer(o.opts.ArmDelay)
	defer armTimer.Stop()
	graceTimer := time.NewTimer(o.opts.AddGrace)
	defer graceTimer.Stop()

	var (
		armed      bool
		acceptAdds bool
		running    bool
	)
	o.state.Store(int32(StateWatching))

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-armTimer.C:
			armed = true
			running = o.launch(ctx, running)

		case <-graceTimer.C:
			acceptAdds = true

		case batch := <-o.events:
			if !armed {
				continue
			}
			if !o.relevant(ctx, batch, acceptAdds) {
				continue
			}
			o.compile(ctx)
			running = o.launch(ctx, running)

		case err := <-o.exits:
			running = false
			o.state.Store(int32(StateWatching))
			if err != nil {
				o.logger.Warn(ctx, err, "child exited", "command", o.opts.Command)
			} else {
				o.logger.Info(ctx, "child exited", "command", o.opts.Command)
			}
		}
	}
}

// relevant logs and reports whether batch contains a change that should
// trigger a recompile.
func (o *Orchestrator) relevant(ctx context.Context, batch []watcher.ChangeEvent, acceptAdds bool) bool {
	found := false
	for _, e := range batch {
		if e.Type == watcher.EventAdded && !acceptAdds {
			continue
		}
		if o.compiler.IsGenerated(e.Path) || !o.compiler.IsInput(e.Path) {
			continue
		}
		o.logger.Info(ctx, "changed", "file", e.Path, "event", e.Type.String())
		found = true
	}
	return found
}

func (o *Orchestrator) compile(ctx context.Context) {
	o.compiles.Add(1)
	if _, err := o.compiler.Compile(ctx, o.opts.Input); err != nil {
		o.logger.Error(ctx, err, "compile failed", "file", o.opts.Input)
	}
}

// launch starts the child unless one is already running and reports
// whether a child is running afterwards.
func (o *Orchestrator) launch(ctx context.Context, running bool) bool {
	if running || o.opts.Command == "" {
		return running
	}

	o.logger.Info(ctx, "command", "command", commandLine(o.opts.Command, o.opts.Args))
	err := o.spawner.Spawn(ctx, o.opts.Command, o.opts.Args, o.forwardExit)
	if err != nil {
		o.logger.Error(ctx, err, "failed to start command", "command", o.opts.Command)
		return false
	}

	o.state.Store(int32(StateChildRunning))
	return true
}

// forwardExit moves a child exit into the loop.
func (o *Orchestrator) forwardExit(err error) {
	select {
	case o.exits <- err:
	case <-o.done:
	}
}

func commandLine(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}
