// Package commands implements the CLI commands for larder.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/larder/internal/build"
	"go.trai.ch/larder/internal/core/domain"
)

// CLI represents the command line interface for larder.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
	verbose bool
}

// Application represents the application logic interface.
type Application interface {
	Lock(ctx context.Context) (*domain.Resolution, error)
	Update(ctx context.Context, names []string) (*domain.Resolution, error)
	Check(ctx context.Context) error
	Show(ctx context.Context) ([]*domain.Manifest, error)
	SetLogLevel(level domain.LogLevel)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "larder",
		Short:         "Resolve and lock package dependencies",
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

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentFlags().BoolVar(&c.verbose, "verbose", false, "Log resolution details")
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if c.verbose {
			c.app.SetLogLevel(domain.LogLevelDebug)
		}
	}

	rootCmd.AddCommand(c.newLockCmd())
	rootCmd.AddCommand(c.newUpdateCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newShowCmd())
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
