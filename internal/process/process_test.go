package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	yerrors "github.com/conneroisu/yamlinc/internal/errors"
)

func requireShell(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell required")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestRun(t *testing.T) {
	sh := requireShell(t)

	testCases := []struct {
		name     string
		args     []string
		stdout   string
		exitCode int
	}{
		{"success", []string{"-c", "echo hello"}, "hello\n", 0},
		{"exit code forwarded", []string{"-c", "echo partial; exit 3"}, "partial\n", 3},
		{"arguments verbatim", []string{"-c", `printf '%s|' "$@"`, "sh", "a b", "$HOME"}, "a b|$HOME|", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			s := &ExecSpawner{Stdout: &out, Stdin: strings.NewReader("")}

			err := s.Run(context.Background(), sh, tc.args)
			assert.Equal(t, tc.exitCode, yerrors.ExitCode(err))
			if tc.exitCode != 0 {
				var ee *yerrors.ExitError
				require.True(t, errors.As(err, &ee))
				assert.Equal(t, tc.exitCode, ee.Code)
			}
			assert.Equal(t, tc.stdout, out.String())
		})
	}
}

func TestRunMissingCommand(t *testing.T) {
	err := NewExecSpawner().Run(context.Background(), "yamlinc-no-such-command", nil)
	require.Error(t, err)

	var ye *yerrors.YamlincError
	require.True(t, errors.As(err, &ye))
	assert.Equal(t, yerrors.ErrCodeSpawnFailed, ye.Code)
	assert.Equal(t, 1, yerrors.ExitCode(err))
}

func TestSpawnCallsOnExitOnce(t *testing.T) {
	sh := requireShell(t)

	var out bytes.Buffer
	s := &ExecSpawner{Stdout: &out, Stdin: strings.NewReader("")}

	exits := make(chan error, 2)
	err := s.Spawn(context.Background(), sh, []string{"-c", "echo spawned; exit 2"}, func(err error) {
		exits <- err
	})
	require.NoError(t, err)

	select {
	case err := <-exits:
		assert.Equal(t, 2, yerrors.ExitCode(err))
	case <-time.After(5 * time.Second):
		t.Fatal("onExit not called")
	}

	select {
	case <-exits:
		t.Fatal("onExit called twice")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, "spawned\n", out.String())
}

func TestSpawnErrors(t *testing.T) {
	called := false
	err := NewExecSpawner().Spawn(context.Background(), "yamlinc-no-such-command", nil, func(error) { called = true })
	require.Error(t, err)
	assert.Contains(t, err.Error(), yerrors.ErrCodeSpawnFailed)
	assert.False(t, called)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewExecSpawner().Spawn(ctx, "true", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
