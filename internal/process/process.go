// Package process starts the user's command: asynchronously for watch mode,
// where the caller is told when the child exits, and synchronously for exec
// mode. The child shares the terminal of yamlinc.
package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	yerrors "github.com/conneroisu/yamlinc/internal/errors"
)

// Spawner starts child processes.
type Spawner interface {
	// Spawn starts name with args and returns once the child is running.
	// onExit is called exactly once, from another goroutine, with the
	// child's wait error (nil for a zero exit status).
	Spawn(ctx context.Context, name string, args []string, onExit func(error)) error
	// Run starts name with args and waits for it.
	Run(ctx context.Context, name string, args []string) error
}

// ExecSpawner runs commands with os/exec. Zero-valued streams default to
// the streams of the current process.
type ExecSpawner struct {
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecSpawner returns a spawner attached to the current terminal.
func NewExecSpawner() *ExecSpawner {
	return &ExecSpawner{}
}

// command builds the child. The child is deliberately not bound to ctx:
// interrupting the terminal reaches it directly.
func (s *ExecSpawner) command(name string, args []string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.Dir = s.Dir
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd
}

// Spawn implements Spawner.
func (s *ExecSpawner) Spawn(ctx context.Context, name string, args []string, onExit func(error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := s.command(name, args)
	if err := cmd.Start(); err != nil {
		return yerrors.NewSpawnError(name, err)
	}

	go func() {
		err := cmd.Wait()
		if onExit != nil {
			onExit(exitError(err))
		}
	}()

	return nil
}

// Run implements Spawner. A non-zero exit status is returned as an
// *errors.ExitError carrying the code.
func (s *ExecSpawner) Run(ctx context.Context, name string, args []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := s.command(name, args)
	if err := cmd.Start(); err != nil {
		return yerrors.NewSpawnError(name, err)
	}
	return exitError(cmd.Wait())
}

func exitError(err error) error {
	if err == nil {
		return nil
	}
	var xe *exec.ExitError
	if errors.As(err, &xe) {
		code := xe.ExitCode()
		if code < 0 {
			// killed by a signal
			code = 1
		}
		return &yerrors.ExitError{Code: code, Err: err}
	}
	return err
}
