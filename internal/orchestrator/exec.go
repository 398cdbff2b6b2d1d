package orchestrator

import (
	"context"

	"github.com/conneroisu/yamlinc/internal/logging"
	"github.com/conneroisu/yamlinc/internal/process"
)

// Exec compiles input once and then runs the command to completion. When
// the compilation fails the command is not run. A non-zero exit status of
// the child is returned as an *errors.ExitError.
func Exec(ctx context.Context, c Compiler, s process.Spawner, input, name string, args []string, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("exec")

	res, err := c.Compile(ctx, input)
	if err != nil {
		return err
	}

	args = SubstituteInput(args, input, res.Output)
	logger.Info(ctx, "command", "command", commandLine(name, args))
	return s.Run(ctx, name, args)
}

// SubstituteInput returns a copy of args where every argument equal to
// input is replaced by output, so "-f app.yml" runs against the generated
// "app.inc.yml".
func SubstituteInput(args []string, input, output string) []string {
	if len(args) == 0 {
		return args
	}
	out := make([]string, len(args))
	for i, arg := range args {
		if arg == input {
			arg = output
		}
		out[i] = arg
	}
	return out
}
