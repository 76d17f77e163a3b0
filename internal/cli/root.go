package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config is loaded by the root command before any subcommand runs.
	Config config.Config

	// Now is the clock used for stamping and staleness. Nil means time.Now.
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the canon CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canon",
		Short: "Canon - integrity engine for knowledge graphs",
		Long: `Canon keeps a knowledge graph honest.

Every node and edge carries a content hash chained to its previous version.
Human seals, pins and access rules protect what people have confirmed, and
verification audits artifacts and branches before a pipeline may proceed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts, cmd)
			if !slices.Contains(ValidFormats, opts.Format) {
				return f.Fail(ExitCommandError, ErrCodeInput,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil, nil)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err, nil)
			}
			opts.Config = cfg
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a CUE or JSON config file")

	cmd.AddCommand(NewHashCommand(opts))
	cmd.AddCommand(NewStampCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewVerifyArtifactCommand(opts))
	cmd.AddCommand(NewVerifyBranchCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewRelateCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
