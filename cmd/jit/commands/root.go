// Package commands implements the CLI commands for jit.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/jit/internal/app"
	"go.trai.ch/jit/internal/build"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/ui/output"
	"go.trai.ch/zerr"
)

// CLI represents the command line interface for jit.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Run(ctx context.Context, entry string, opts app.RunOptions) error
	Transform(ctx context.Context, file string, opts app.TransformOptions) (string, error)
	CacheDir(ov app.Overrides) (string, error)
	PruneCache(ctx context.Context, olderThan time.Duration, ov app.Overrides) (domain.PruneReport, error)
	CleanCache(ctx context.Context, ov app.Overrides) (domain.PruneReport, error)
	WarmCache(ctx context.Context, dir string, ov app.Overrides) (app.WarmReport, error)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "jit",
		Short:         "Run TypeScript and ES modules in an embedded JavaScript runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	flags := rootCmd.PersistentFlags()
	flags.Bool("no-cache", false, "Disable the transform cache")
	flags.String("cache-dir", "", "Directory for the transform cache")
	flags.Bool("interop", false, "Use a module's default export as its exports")
	flags.Bool("debug", false, "Enable debug logging")
	flags.Bool("json-logs", false, "Write logs as JSON (same as --log-format=json)")
	flags.String("log-format", "auto", "Log format: auto, pretty or json; auto picks json off a terminal or in CI")
	flags.Bool("trace", false, "Log a line for every resolve, transform and execute span")
	flags.StringArray("alias", nil, "Map a specifier prefix to a path (from=to)")
	flags.StringSlice("native", nil, "Modules always loaded natively")
	flags.StringSlice("transform", nil, "Modules always transformed")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newTransformCmd())
	rootCmd.AddCommand(c.newCacheCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// overrides collects the persistent flags.
func overrides(cmd *cobra.Command) (app.Overrides, error) {
	flags := cmd.Flags()
	noCache, _ := flags.GetBool("no-cache")
	cacheDir, _ := flags.GetString("cache-dir")
	interop, _ := flags.GetBool("interop")
	debug, _ := flags.GetBool("debug")
	jsonLogs, _ := flags.GetBool("json-logs")
	logFormat, _ := flags.GetString("log-format")
	trace, _ := flags.GetBool("trace")
	aliases, _ := flags.GetStringArray("alias")
	native, _ := flags.GetStringSlice("native")
	transform, _ := flags.GetStringSlice("transform")

	alias, err := parseAliases(aliases)
	if err != nil {
		return app.Overrides{}, err
	}

	if !jsonLogs {
		jsonLogs = output.ResolveLogMode(output.DetectLogMode(), logFormat) == output.LogModeJSON
	}

	return app.Overrides{
		NoCache:   noCache,
		CacheDir:  cacheDir,
		Interop:   interop,
		Debug:     debug,
		JSONLogs:  jsonLogs,
		Trace:     trace,
		Alias:     alias,
		Native:    native,
		Transform: transform,
	}, nil
}

func parseAliases(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	alias := make(map[string]string, len(values))
	for _, v := range values {
		from, to, ok := strings.Cut(v, "=")
		if !ok || from == "" || to == "" {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidAlias, ""), "alias", v)
		}
		alias[from] = to
	}
	return alias, nil
}
