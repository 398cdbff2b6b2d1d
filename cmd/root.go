// Package cmd provides the command-line interface for yamlinc.
//
// Configuration System:
//
//	Settings come from several sources with clear precedence:
//	1. Command-line flags (--config, --output-dir, etc.) - highest priority
//	2. YAMLINC_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (YAMLINC_LOG_LEVEL, etc.)
//	4. Configuration files (.yamlinc.yml) - lowest priority
//
// Environment Variables:
//
//	YAMLINC_CONFIG_FILE: Path to custom configuration file
//	YAMLINC_DIRECTIVE: Include directive key (default "$include")
//	YAMLINC_OUTPUT_DIR: Directory for generated files
//	YAMLINC_WATCH_COMMAND: Command run by watch mode when none follows "--"
//	And the rest following the YAMLINC_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/yamlinc/internal/config"
	yerrors "github.com/conneroisu/yamlinc/internal/errors"
	"github.com/conneroisu/yamlinc/internal/logging"
	"github.com/conneroisu/yamlinc/internal/version"
)

var (
	cfgFile string
	// configErr holds a failure to read an explicitly named config file.
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "yamlinc [flags] <file> [-- <command> [args...]]",
	Short: "Compose YAML documents from fragments with include directives",
	Long: `yamlinc compiles a YAML document whose mappings pull in other files through
the "$include" key. The merged result is written next to the working directory
as <name>.inc.yml, preceded by a "do not edit" header.

Included content wins over the keys written next to the directive, later
fragments win over earlier ones and sequences are concatenated. Fragments may
be YAML, JSON (with comments) or TOML. Missing fragments are skipped.

Modes:
  yamlinc app.yml                              Compile once
  yamlinc --watch app.yml -- docker compose -f app.yml up
                                               Recompile on change, keep the command running
  yamlinc --exec app.yml -- docker compose -f app.yml config
                                               Compile, then run the command once

An argument equal to the input file is replaced by the generated file before
the command runs.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runRoot,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version.Short()),
		fang.WithNotifySignal(os.Interrupt),
	)
	return yerrors.ExitCode(err)
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is .yamlinc.yml, can also use YAMLINC_CONFIG_FILE env var)")
	pf.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", logging.FormatConsole, "log format (console, text, json)")
	pf.BoolP("mute", "m", false, "only report errors")

	flags := rootCmd.Flags()
	flags.BoolP("watch", "w", false, "recompile on change and keep the command running")
	flags.BoolP("exec", "e", false, "compile, then run the command once")
	flags.StringP("output-dir", "o", config.DefaultOutputDir, "directory for the generated file")

	bindFlags()
}

// bindFlags lets flags override the matching configuration keys.
func bindFlags() {
	pf := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("mute", pf.Lookup("mute"))
	_ = viper.BindPFlag("output_dir", rootCmd.Flags().Lookup("output-dir"))
}

// initConfig initializes the configuration system with support for multiple config sources.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. YAMLINC_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .yamlinc.yml in current directory
//
// Every value can also be set from the environment with the YAMLINC_ prefix,
// nested keys joined by underscores (YAMLINC_WATCH_ARM_DELAY=2s).
func initConfig() {
	explicit := true
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("YAMLINC_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		explicit = false
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".yamlinc")
	}

	viper.SetEnvPrefix("YAMLINC")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.BindEnv(viper.GetViper())

	configErr = nil
	if err := viper.ReadInConfig(); err != nil && explicit {
		configErr = yerrors.NewConfigError(fmt.Sprintf("reading config file: %v", err))
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	inv, err := parseInvocation(cmd, args, cfg)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.LoggerConfig())
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug(cmd.Context(), "using config file", "file", used)
	}

	return dispatch(cmd.Context(), inv, cfg, logger)
}
