package cmd

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/yamlinc/internal/compiler"
	"github.com/conneroisu/yamlinc/internal/config"
	yerrors "github.com/conneroisu/yamlinc/internal/errors"
	"github.com/conneroisu/yamlinc/internal/logging"
	"github.com/conneroisu/yamlinc/internal/orchestrator"
	"github.com/conneroisu/yamlinc/internal/process"
)

// Mode is what a single invocation does.
type Mode int

const (
	ModeCompile Mode = iota
	ModeWatch
	ModeExec
)

func (m Mode) String() string {
	switch m {
	case ModeCompile:
		return "compile"
	case ModeWatch:
		return "watch"
	case ModeExec:
		return "exec"
	default:
		return "unknown"
	}
}

// Invocation is the parsed command line.
type Invocation struct {
	Mode    Mode
	Input   string
	Command string
	Args    []string
}

const helpHint = "type: yamlinc --help"

func parseInvocation(cmd *cobra.Command, args []string, cfg *config.Config) (*Invocation, error) {
	watch, _ := cmd.Flags().GetBool("watch")
	exec, _ := cmd.Flags().GetBool("exec")
	return buildInvocation(watch, exec, args, cmd.ArgsLenAtDash(), cfg)
}

// buildInvocation derives the invocation from the mode flags and the
// positional arguments. dash is the number of arguments before "--", or -1.
func buildInvocation(watch, exec bool, args []string, dash int, cfg *config.Config) (*Invocation, error) {
	if watch && exec {
		return nil, yerrors.NewArgumentError(yerrors.ErrCodeConflictingModes, "--watch and --exec cannot be combined")
	}

	inv := &Invocation{Mode: ModeCompile}
	switch {
	case watch:
		inv.Mode = ModeWatch
	case exec:
		inv.Mode = ModeExec
	}

	positional := args
	var command []string
	if dash >= 0 {
		positional, command = args[:dash], args[dash:]
	}

	index := slices.IndexFunc(positional, func(arg string) bool {
		return !strings.HasPrefix(arg, "-") && hasExtension(arg, cfg.Extensions)
	})
	if index < 0 {
		return nil, yerrors.NewArgumentError(yerrors.ErrCodeMissingInput, "missing file name, "+helpHint)
	}
	inv.Input = positional[index]

	// Without "--" whatever follows the input is the command.
	if dash < 0 && inv.Mode != ModeCompile {
		command = positional[index+1:]
	}

	if len(command) == 0 && inv.Mode != ModeCompile {
		fromConfig, err := cfg.CommandArgs()
		if err != nil {
			return nil, yerrors.NewConfigError(err.Error())
		}
		command = fromConfig
	}

	if len(command) > 0 && inv.Mode != ModeCompile {
		inv.Command = command[0]
		inv.Args = command[1:]
	}

	if inv.Mode == ModeExec && inv.Command == "" {
		return nil, yerrors.NewArgumentError(yerrors.ErrCodeMissingCommand, "--exec needs a command after \"--\", "+helpHint)
	}

	return inv, nil
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return ext != "" && slices.Contains(exts, ext)
}

// dispatch runs inv. It is the only place that switches on the mode.
func dispatch(ctx context.Context, inv *Invocation, cfg *config.Config, logger logging.Logger) error {
	comp := compiler.New(cfg, logger)

	switch inv.Mode {
	case ModeCompile:
		_, err := comp.Compile(ctx, inv.Input)
		return err

	case ModeWatch:
		o := orchestrator.New(comp, process.NewExecSpawner(), orchestrator.Options{
			Input:    inv.Input,
			Command:  inv.Command,
			Args:     orchestrator.SubstituteInput(inv.Args, inv.Input, comp.OutputPath(inv.Input)),
			ArmDelay: cfg.Watch.ArmDelay,
			AddGrace: cfg.Watch.AddGrace,
		}, logger)

		fw, err := orchestrator.StartWatcher(ctx, ".", cfg, o, logger)
		if err != nil {
			return err
		}
		defer fw.Stop()

		return o.Run(ctx)

	case ModeExec:
		return orchestrator.Exec(ctx, comp, process.NewExecSpawner(), inv.Input, inv.Command, inv.Args, logger)

	default:
		return yerrors.NewArgumentError(yerrors.ErrCodeMissingInput, "unknown mode "+inv.Mode.String())
	}
}
