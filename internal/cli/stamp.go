package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/model"
)

// StampOptions holds flags for the stamp command.
type StampOptions struct {
	*RootOptions
	Previous string
}

// nodeOutput prints a node as indented JSON in text mode and as itself in JSON mode.
type nodeOutput struct {
	model.Node
}

func (o nodeOutput) String() string {
	data, err := json.MarshalIndent(o.Node, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

func (o nodeOutput) MarshalJSON() ([]byte, error) {
	return o.Node.MarshalJSON()
}

// NewStampCommand creates the stamp command.
func NewStampCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StampOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stamp <node-file>",
		Short: "Create a new version of a node",
		Long: `Stamp a node with fresh version metadata and print it.

The new version keeps created_at, sets updated_at to now, fills origin and
confidence defaults, records --prev as previous_version_hash and embeds
the version hash. A node without an id gets a new one.

Examples:
  canon stamp claim.yaml
  canon stamp claim.yaml --prev 3f2a...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStamp(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Previous, "prev", "", "hash of the version this one succeeds")

	return cmd
}

func runStamp(opts *StampOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	rt, err := newRuntime(opts.RootOptions, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to initialize", err, nil)
	}

	n, err := loadNode(path, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read node", err, nil)
	}
	if n.ID == "" {
		n.ID = model.NewID()
	}

	stamped, err := rt.factory.Stamp(n, opts.Previous)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to stamp node", err, nil)
	}
	if err := model.ValidateNode(stamped); err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid node", err, nil)
	}
	return f.Success(nodeOutput{stamped})
}
