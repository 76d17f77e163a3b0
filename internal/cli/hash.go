package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/version"
)

// HashOptions holds flags for the hash command.
type HashOptions struct {
	*RootOptions
	Node bool
}

// HashResult is the output of the hash command.
type HashResult struct {
	Kind string `json:"kind"` // "value" or "node"
	Hash string `json:"hash"`
}

func (r HashResult) String() string { return r.Hash }

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HashOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the stable hash of a JSON or YAML value",
		Long: `Print the SHA-256 of the canonical encoding of a JSON or YAML value.

With --node the file is read as a node and its version hash is printed:
the hash of the node with metadata.version_hash removed.

Use "-" to read from stdin.

Examples:
  canon hash value.json
  canon hash --node claim.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Node, "node", false, "hash the file as a node version")

	return cmd
}

func runHash(opts *HashOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Node {
		n, err := loadNode(path, cmd.InOrStdin())
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInput, "failed to read node", err, nil)
		}
		h, err := version.ComputeNodeHash(n)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInput, "failed to hash node", err, nil)
		}
		return f.Success(HashResult{Kind: "node", Hash: h})
	}

	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read input", err, nil)
	}
	v, err := decodeValue(data)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to parse input", err, nil)
	}
	h, err := ir.ComputeStableHash(v)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to hash input", err, nil)
	}
	return f.Success(HashResult{Kind: "value", Hash: h})
}
