package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vk/modgraph/internal/app"
	"github.com/vk/modgraph/internal/inspector"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// EnvPrefix prefixes the environment variables that mirror every flag,
// e.g. MODGRAPH_LOG_LEVEL for --log-level.
const EnvPrefix = "MODGRAPH"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Command names what the invocation asks for.
type Command string

const (
	CommandRun  Command = "run"
	CommandTree Command = "tree"
)

// Invocation is a parsed command line.
type Invocation struct {
	Command Command
	Config  *app.Config
}

// Parse processes command-line arguments. It returns the invocation, a
// boolean indicating if the program should exit cleanly (help was shown),
// or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")
	v := viper.New()
	var inv *Invocation

	root := &cobra.Command{
		Use:   "modgraph [flags] MANIFEST_PATH...",
		Short: "Bootstrap and inspect a declared module graph.",
		Long: `modgraph - scans a module graph declared in HCL manifests, resolves every
provider through the dependency injector and reports what it built.

MANIFEST_PATH is a single .hcl file or a directory searched recursively.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(v, args)
			if err != nil {
				return err
			}
			inv = &Invocation{Command: CommandRun, Config: cfg}
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a config file (yaml, json or toml) providing flag values.")
	flags.Bool("preview", false, "Validate the graph without running any constructor.")
	flags.Bool("snapshot", false, "Record the module graph.")
	flags.String("snapshot-out", "", "Write the recorded graph to this file, '-' for stdout. Implies --snapshot.")
	flags.String("snapshot-format", inspector.FormatJSON, "Snapshot format. Options: 'json' or 'yaml'.")
	flags.String("devtools-url", "", "Publish the recorded graph to this socket.io endpoint. Implies --snapshot.")
	flags.String("devtools-namespace", "/", "socket.io namespace of the devtools endpoint.")
	flags.Duration("devtools-timeout", 0, "Timeout for publishing to devtools. 0 uses the default.")
	flags.String("log-format", "text", "Log output format. Options: 'text', 'json' or 'pretty'.")
	flags.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	root.AddCommand(&cobra.Command{
		Use:   "tree [flags] MANIFEST_PATH...",
		Short: "Print the module import tree with distances.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(v, args)
			if err != nil {
				return err
			}
			inv = &Invocation{Command: CommandTree, Config: cfg}
			return nil
		},
	})

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		v.AutomaticEnv()
		if path := v.GetString("config"); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return &ExitError{Code: ExitUsage, Message: fmt.Sprintf("failed to read config file: %v", err)}
			}
		}
		return nil
	}

	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	if err := root.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	if inv == nil {
		// Help or version output.
		return nil, true, nil
	}
	if len(inv.Config.ManifestPaths) == 0 {
		slog.Debug("No manifest path provided, printing usage and exiting.")
		_ = root.Usage()
		return nil, true, nil
	}
	slog.Debug("CLI parser finished successfully.", "command", inv.Command, "config", inv.Config)
	return inv, false, nil
}

// configFrom builds the app configuration from the bound flags, the
// environment and the config file, in viper's precedence order.
func configFrom(v *viper.Viper, args []string) (*app.Config, error) {
	logFormat := strings.ToLower(v.GetString("log-format"))
	switch logFormat {
	case "text", "json", "pretty":
	default:
		return nil, &ExitError{Code: ExitUsage, Message: "invalid log-format: must be 'text', 'json' or 'pretty'"}
	}

	logLevel := strings.ToLower(v.GetString("log-level"))
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, &ExitError{Code: ExitUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	paths := args
	if len(paths) == 0 {
		paths = v.GetStringSlice("manifest")
	}
	if len(paths) == 0 {
		return &app.Config{}, nil
	}

	cfg, err := app.NewConfig(app.Config{
		ManifestPaths:     paths,
		Preview:           v.GetBool("preview"),
		Snapshot:          v.GetBool("snapshot"),
		SnapshotOut:       v.GetString("snapshot-out"),
		SnapshotFormat:    strings.ToLower(v.GetString("snapshot-format")),
		DevtoolsURL:       v.GetString("devtools-url"),
		DevtoolsNamespace: v.GetString("devtools-namespace"),
		DevtoolsTimeout:   v.GetDuration("devtools-timeout"),
		LogFormat:         logFormat,
		LogLevel:          logLevel,
	})
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return cfg, nil
}
