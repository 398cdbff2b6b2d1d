package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/yamlinc/internal/compiler"
	yerrors "github.com/conneroisu/yamlinc/internal/errors"
	"github.com/conneroisu/yamlinc/internal/watcher"
)

type fakeCompiler struct {
	mu     sync.Mutex
	inputs []string
	err    error
}

func (f *fakeCompiler) Compile(_ context.Context, input string) (*compiler.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &compiler.Result{Input: input, Output: compiler.OutputName(input)}, nil
}

var fakeExtensions = []string{"yml", "yaml", "json"}

func (f *fakeCompiler) IsInput(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return slices.Contains(fakeExtensions, ext)
}

func (f *fakeCompiler) IsGenerated(path string) bool {
	return compiler.IsGenerated(path, fakeExtensions)
}

func (f *fakeCompiler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type spawnCall struct {
	name string
	args []string
}

type fakeSpawner struct {
	mu       sync.Mutex
	spawns   []spawnCall
	runs     []spawnCall
	onExit   []func(error)
	spawnErr error
	runErr   error
}

func (f *fakeSpawner) Spawn(_ context.Context, name string, args []string, onExit func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spawnErr != nil {
		return f.spawnErr
	}
	f.spawns = append(f.spawns, spawnCall{name, args})
	f.onExit = append(f.onExit, onExit)
	return nil
}

func (f *fakeSpawner) Run(_ context.Context, name string, args []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, spawnCall{name, args})
	return f.runErr
}

func (f *fakeSpawner) spawnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spawns)
}

// exit finishes the most recent child.
func (f *fakeSpawner) exit(err error) {
	f.mu.Lock()
	onExit := f.onExit[len(f.onExit)-1]
	f.mu.Unlock()
	onExit(err)
}

type harness struct {
	orch     *Orchestrator
	compiler *fakeCompiler
	spawner  *fakeSpawner
	cancel   context.CancelFunc
	done     chan error
}

func start(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.Input == "" {
		opts.Input = "app.yml"
	}

	h := &harness{
		compiler: &fakeCompiler{},
		spawner:  &fakeSpawner{},
		done:     make(chan error, 1),
	}
	h.orch = New(h.compiler, h.spawner, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.orch.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("orchestrator did not stop")
		}
	})
	return h
}

func (h *harness) waitState(t *testing.T, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.orch.State() == s }, 2*time.Second, 5*time.Millisecond,
		"state %s never reached, have %s", s, h.orch.State())
}

func (h *harness) waitCompiles(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.compiler.count() >= n }, 2*time.Second, 5*time.Millisecond)
}

func (h *harness) settle() {
	time.Sleep(50 * time.Millisecond)
}

func changed(paths ...string) []watcher.ChangeEvent {
	events := make([]watcher.ChangeEvent, len(paths))
	for i, p := range paths {
		events[i] = watcher.ChangeEvent{Type: watcher.EventChanged, Path: p}
	}
	return events
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "watching", StateWatching.String())
	assert.Equal(t, "child-running", StateChildRunning.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestRunCompilesAndLaunchesAfterArming(t *testing.T) {
	h := start(t, Options{Command: "server", Args: []string{"-f", "app.inc.yml"}, ArmDelay: 30 * time.Millisecond, AddGrace: time.Hour})

	h.waitCompiles(t, 1)
	h.waitState(t, StateChildRunning)

	h.spawner.mu.Lock()
	require.Len(t, h.spawner.spawns, 1)
	assert.Equal(t, spawnCall{"server", []string{"-f", "app.inc.yml"}}, h.spawner.spawns[0])
	h.spawner.mu.Unlock()

	h.compiler.mu.Lock()
	assert.Equal(t, []string{"app.yml"}, h.compiler.inputs)
	h.compiler.mu.Unlock()
}

func TestEventsBeforeArmingAreIgnored(t *testing.T) {
	h := start(t, Options{ArmDelay: time.Hour, AddGrace: time.Hour})
	h.waitState(t, StateWatching)

	require.NoError(t, h.orch.Notify(changed("app.yml")))
	h.settle()

	assert.Equal(t, 1, h.compiler.count())
	assert.Equal(t, 0, h.spawner.spawnCount())
}

func TestChangeRecompilesOncePerBatch(t *testing.T) {
	h := start(t, Options{ArmDelay: time.Millisecond, AddGrace: time.Hour})
	h.waitState(t, StateWatching)
	h.settle()

	require.NoError(t, h.orch.Notify(changed("app.yml", "fragments/db.yml", "other.yaml")))
	h.waitCompiles(t, 2)
	h.settle()

	assert.Equal(t, 2, h.compiler.count())
	assert.Equal(t, int64(2), h.orch.Compiles())
}

func TestEventFiltering(t *testing.T) {
	testCases := []struct {
		name   string
		events []watcher.ChangeEvent
	}{
		{"generated output", changed("app.inc.yml")},
		{"generated output any case", changed("dir/APP.INC.YAML")},
		{"generated output of a json input", changed("app.inc.json")},
		{"other extension", changed("README.md", "main.go")},
		{"add during grace", []watcher.ChangeEvent{{Type: watcher.EventAdded, Path: "new.yml"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := start(t, Options{ArmDelay: time.Millisecond, AddGrace: time.Hour})
			h.waitState(t, StateWatching)
			h.settle()

			require.NoError(t, h.orch.Notify(tc.events))
			h.settle()
			assert.Equal(t, 1, h.compiler.count())
		})
	}
}

func TestRemovalTriggersRecompile(t *testing.T) {
	h := start(t, Options{ArmDelay: time.Millisecond, AddGrace: time.Hour})
	h.waitState(t, StateWatching)
	h.settle()

	require.NoError(t, h.orch.Notify([]watcher.ChangeEvent{{Type: watcher.EventRemoved, Path: "db.yml"}}))
	h.waitCompiles(t, 2)
}

func TestAddAcceptedAfterGrace(t *testing.T) {
	h := start(t, Options{ArmDelay: time.Millisecond, AddGrace: 20 * time.Millisecond})
	h.waitState(t, StateWatching)
	h.settle()

	require.NoError(t, h.orch.Notify([]watcher.ChangeEvent{{Type: watcher.EventAdded, Path: "new.yml"}}))
	h.waitCompiles(t, 2)
}

func TestSingleChildGuard(t *testing.T) {
	h := start(t, Options{Command: "server", ArmDelay: time.Millisecond, AddGrace: time.Hour})
	h.waitState(t, StateChildRunning)

	require.NoError(t, h.orch.Notify(changed("app.yml")))
	h.waitCompiles(t, 2)
	h.settle()
	assert.Equal(t, 1, h.spawner.spawnCount(), "no relaunch while a child runs")

	h.spawner.exit(&yerrors.ExitError{Code: 1})
	h.waitState(t, StateWatching)
	assert.Equal(t, 1, h.spawner.spawnCount(), "exit alone does not relaunch")

	require.NoError(t, h.orch.Notify(changed("app.yml")))
	h.waitState(t, StateChildRunning)
	assert.Equal(t, 2, h.spawner.spawnCount())
}

func TestSpawnFailureKeepsWatching(t *testing.T) {
	c := &fakeCompiler{}
	s := &fakeSpawner{spawnErr: yerrors.NewSpawnError("server", errors.New("not found"))}
	o := New(c, s, Options{Input: "app.yml", Command: "server", ArmDelay: time.Millisecond, AddGrace: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return o.State() == StateWatching }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateWatching, o.State())

	require.NoError(t, o.Notify(changed("app.yml")))
	require.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestCompileFailureKeepsWatching(t *testing.T) {
	c := &fakeCompiler{err: yerrors.NewNotFoundError("app.yml", nil)}
	s := &fakeSpawner{}
	o := New(c, s, Options{Input: "app.yml", ArmDelay: time.Millisecond, AddGrace: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return o.State() == StateWatching }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, o.Notify(changed("app.yml")))
	require.Eventually(t, func() bool { return c.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, StateIdle, o.State())
}

func TestCancellationLeavesChildAlone(t *testing.T) {
	c := &fakeCompiler{}
	s := &fakeSpawner{}
	o := New(c, s, Options{Input: "app.yml", Command: "server", ArmDelay: time.Millisecond, AddGrace: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return o.State() == StateChildRunning }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// the child outliving the loop must not block
	exited := make(chan struct{})
	go func() {
		s.exit(nil)
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("late child exit blocked")
	}

	// nor may late events
	assert.NoError(t, o.Notify(changed("app.yml")))
	assert.NoError(t, o.Notify(changed("app.yml")))
	for i := 0; i < 20; i++ {
		assert.NoError(t, o.Notify(changed("app.yml")))
	}
}

func TestNotifyEmptyBatch(t *testing.T) {
	o := New(&fakeCompiler{}, &fakeSpawner{}, Options{}, nil)
	assert.NoError(t, o.Notify(nil))
}
