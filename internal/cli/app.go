// Package cli is the tada command line: cobra commands over a todo.Ledger.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/metrics"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todo"
	"github.com/Makepad-fr/tada/internal/ui"
)

const (
	Version   = "0.2.0"
	BuildTime = "dev"
	appName   = "tada"
)

// usageError marks a bad invocation (exit code 2).
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// globalFlags are the persistent root flags.
type globalFlags struct {
	configPath string
	logLevel   string
	store      string
	remote     string
	theme      string
	noColor    bool
	group      bool
}

// App holds what a single invocation needs. The ledger is opened lazily so
// commands like version and auth never touch storage.
type App struct {
	in     io.Reader
	flags  globalFlags
	cfg    *config.Config
	logger *slog.Logger

	metrics *metrics.Recorder
	ledger  todo.Ledger
	closers []func() error
}

// Run executes the command line and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string) int {
	return run(ctx, args, os.Stdin)
}

func run(ctx context.Context, args []string, in io.Reader) int {
	a := &App{in: in, logger: slog.New(slog.NewTextHandler(ui.Stderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(ui.Stdout())
	root.SetErr(ui.Stderr())

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	code := exitCode(err)
	if msg := err.Error(); msg != "" {
		ui.Fail(msg)
	}
	if errors.Is(err, model.ErrItemNotFound) {
		fmt.Fprintln(ui.Stderr(), ui.Dim("Hint: run `tada ls` to see valid ids"))
	}
	return code
}

func exitCode(err error) int {
	var ue *usageError
	switch {
	case errors.As(err, &ue),
		errors.Is(err, model.ErrInvalidArgument),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, model.ErrItemNotFound):
		return 2
	}
	return 1
}

func (a *App) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Track todo items and their status history",
		Long: `tada keeps a list of todo items, each with a description and a
time-stamped history of status changes (New, Started, Deferred, Completed).

Items live in a local store (json file, sqlite, NATS KV or memory) or on a
remote tada server (--remote).`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return &usageError{}
			}
			_ = cmd.Help()
			return usagef("unknown subcommand: %s", args[0])
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flags.store, "store", "", "Store driver (memory, json, sqlite, nats)")
	pf.StringVar(&a.flags.remote, "remote", "", "Use the tada server at this URL")
	pf.StringVar(&a.flags.theme, "theme", "", "Output theme (classic, neon, mono)")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&a.flags.group, "group", false, "Group list output by status")

	cmd.AddCommand(
		a.addCmd(),
		a.listCmd(),
		a.showCmd(),
		a.updateCmd(),
		a.setCmd(),
		a.doneCmd(),
		a.removeCmd(),
		a.historyCmd(),
		a.statusesCmd(),
		a.seedCmd(),
		a.tuiCmd(),
		a.serveCmd(),
		a.authCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// setup loads configuration and applies it to logging and output.
func (a *App) setup() error {
	cfg, err := config.NewLoader(a.logger).Load(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Merge(&config.Config{
		Store:  config.StoreConfig{Driver: a.flags.store},
		Remote: config.RemoteConfig{URL: a.flags.remote},
		Log:    config.LogConfig{Level: strings.ToLower(a.flags.logLevel)},
		UI:     config.UIConfig{Theme: a.flags.theme},
	})
	if a.flags.noColor {
		cfg.UI.Color = "never"
	}
	if err := cfg.Validate(); err != nil {
		return &usageError{msg: "invalid configuration: " + err.Error()}
	}
	a.cfg = cfg
	a.logger = newLogger(ui.Stderr(), cfg.Log)
	slog.SetDefault(a.logger)

	ui.SetColorForcing(cfg.UI.Color == "always", cfg.UI.Color == "never")
	ui.SetTheme(cfg.UI.Theme)
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}
