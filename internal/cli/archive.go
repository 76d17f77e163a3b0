package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// ArchiveOptions holds flags for the archive command.
type ArchiveOptions struct {
	*RootOptions
	actorFlags
	DB string
}

// ArchiveResult is the output of the archive command.
type ArchiveResult struct {
	ID          string `json:"id"`
	VersionHash string `json:"version_hash"`
	ArchivedAt  string `json:"archived_at"`
}

func (r ArchiveResult) String() string {
	return fmt.Sprintf("archived %s at %s (%s)", r.ID, r.ArchivedAt, r.VersionHash)
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "archive <node-id>",
		Short: "Soft-delete a node",
		Long: `Archive a node by stamping a successor version that carries archived_at.
Outgoing edges are archived with it. Nothing is removed from the history.

The guard refuses pinned nodes and nodes that live edges still point at.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(opts, args[0], cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.DB, "db", "", "store path (defaults to store.path from the config)")

	return cmd
}

func runArchive(opts *ArchiveOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	role, err := opts.role()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid --role", err, nil)
	}
	rt, err := newRuntime(opts.RootOptions, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to initialize", err, nil)
	}

	st, err := rt.openStore(opts.DB)
	if err != nil {
		return storeError(f, "failed to open store", err)
	}
	defer st.Close()

	b, err := rt.loadBreaker(ctx, st)
	if err != nil {
		return storeError(f, "failed to load breaker", err)
	}
	if err := b.Allow(); err != nil {
		return trippedError(f, err)
	}

	g, err := st.LoadGraph(ctx)
	if err != nil {
		return storeError(f, "failed to load graph", err)
	}
	n, ok := g.Node(id)
	if !ok {
		return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("node %s not found", id), nil, nil)
	}
	if d := rt.auditor().CanDeleteNode(n, g, role, opts.User); !d.Allowed {
		return deniedError(f, d)
	}

	archived, err := st.ArchiveNode(ctx, id)
	if err != nil {
		return storeError(f, "failed to archive node", err)
	}
	return f.Success(ArchiveResult{
		ID:          archived.ID,
		VersionHash: archived.Metadata.VersionHash,
		ArchivedAt:  archived.Metadata.ArchivedAt.Format(time.RFC3339),
	})
}
