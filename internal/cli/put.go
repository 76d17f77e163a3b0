package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/guard"
	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/store"
	"github.com/roach88/canon/internal/version"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	actorFlags
	DB string
}

// PutResult is the output of the put and relate commands.
type PutResult struct {
	ID                  string `json:"id"`
	Kind                string `json:"kind"`
	VersionHash         string `json:"version_hash"`
	PreviousVersionHash string `json:"previous_version_hash,omitempty"`
	Created             bool   `json:"created"`
}

func (r PutResult) String() string {
	verb := "updated"
	if r.Created {
		verb = "created"
	}
	return fmt.Sprintf("%s %s %s (%s)", verb, r.Kind, r.ID, r.VersionHash)
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <node-file>",
		Short: "Create or update a node in the store",
		Long: `Write the desired state of a node as its next version.

The write is authorized by the access guard against the stored node:
pinning needs the pin check, unpinning the unpin check, any other change
the modify check. A pinned node accepts nothing but an unpin. The node is
then stamped as the successor of the stored head and appended to its chain.

A new node without an owner is owned by --user. Access control may only
be changed by the owner or an admin. Archival goes through the archive
command and seals are carried from the stored head, so neither can be
written here. Writes are refused while the integrity breaker is tripped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args[0], cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.DB, "db", "", "store path (defaults to store.path from the config)")

	return cmd
}

func runPut(opts *PutOptions, path string, cmd *cobra.Command) error {
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

	n, err := loadNode(path, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read node", err, nil)
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

	var existing *model.Node
	if n.ID == "" {
		n.ID = model.NewID()
	} else {
		cur, err := st.GetNode(ctx, n.ID)
		switch {
		case err == nil:
			existing = &cur
		case !errors.Is(err, store.ErrNotFound):
			return storeError(f, "failed to read node", err)
		}
	}

	auditor := rt.auditor()
	prev := ""
	if existing == nil {
		if n.Metadata.IsArchived() {
			return f.Fail(ExitCommandError, ErrCodeInput, "a new node cannot start archived", nil, nil)
		}
		if n.Metadata.AccessControl.OwnerID == "" {
			n.Metadata.AccessControl.OwnerID = opts.User
		}
		if d := auditor.CanPerformAction(n, role, opts.User, guard.ActionModify); !d.Allowed {
			return deniedError(f, d)
		}
	} else {
		if msg := carryManaged(*existing, &n); msg != "" {
			return f.Fail(ExitCommandError, ErrCodeInput, msg, nil, nil)
		}
		d, err := authorizeUpdate(auditor, *existing, n, role, opts.User)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInput, "failed to compare versions", err, nil)
		}
		if !d.Allowed {
			return deniedError(f, d)
		}
		if n.Metadata.AccessControl != existing.Metadata.AccessControl {
			if d := auditor.CanChangeAccess(*existing, role, opts.User); !d.Allowed {
				return deniedError(f, d)
			}
		}
		n.Metadata.CreatedAt = existing.Metadata.CreatedAt
		prev = existing.Metadata.VersionHash
	}

	stamped, err := rt.factory.Stamp(n, prev)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to stamp node", err, nil)
	}
	if err := st.PutNode(ctx, stamped); err != nil {
		return storeError(f, "failed to store node", err)
	}

	return f.Success(PutResult{
		ID:                  stamped.ID,
		Kind:                string(stamped.Type()),
		VersionHash:         stamped.Metadata.VersionHash,
		PreviousVersionHash: stamped.Metadata.PreviousVersionHash,
		Created:             existing == nil,
	})
}

// authorizeUpdate picks the guard check for moving cur to next.
func authorizeUpdate(a *guard.Auditor, cur, next model.Node, role model.Role, userID string) (guard.Decision, error) {
	switch {
	case cur.Metadata.Pin && !next.Metadata.Pin:
		d := a.CanUnpin(cur, role, userID)
		if !d.Allowed {
			return d, nil
		}
		before, err := version.ComputeSealHash(cur)
		if err != nil {
			return guard.Decision{}, err
		}
		after, err := version.ComputeSealHash(next)
		if err != nil {
			return guard.Decision{}, err
		}
		if before != after {
			// Unpin and edit in one write would change pinned content.
			return a.CanModifyNode(cur, role, userID), nil
		}
		return d, nil
	case !cur.Metadata.Pin && next.Metadata.Pin:
		return a.CanPin(cur, role, userID), nil
	default:
		return a.CanModifyNode(cur, role, userID), nil
	}
}

// carryManaged fills in the metadata put does not own from the stored head.
// Archival belongs to the archive command and seals to their signers; it
// returns a message when next tries to change either.
func carryManaged(cur model.Node, next *model.Node) string {
	m := &next.Metadata
	switch {
	case m.ArchivedAt == nil:
		m.ArchivedAt = cur.Metadata.ArchivedAt
	case cur.Metadata.ArchivedAt == nil || !m.ArchivedAt.Equal(*cur.Metadata.ArchivedAt):
		return "metadata.archived_at cannot be set by put; use canon archive"
	}

	switch {
	case m.HumanSignature == nil:
		m.HumanSignature = cur.Metadata.HumanSignature
	case !sameSignature(cur.Metadata.HumanSignature, m.HumanSignature):
		return "metadata.human_signature cannot be changed by put"
	}

	if m.AccessControl == (model.AccessControl{}) {
		m.AccessControl = cur.Metadata.AccessControl
	}
	return ""
}

func sameSignature(a, b *model.HumanSignature) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.SignerID == b.SignerID &&
		a.Timestamp.Equal(b.Timestamp) &&
		a.HashAtSigning == b.HashAtSigning &&
		a.Method == b.Method &&
		a.Signature == b.Signature
}

// RelateOptions holds flags for the relate command.
type RelateOptions struct {
	*RootOptions
	actorFlags
	Relation string
	DB       string
}

// NewRelateCommand creates the relate command.
func NewRelateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "relate <source-id> <target-id>",
		Short: "Add an edge between two stored nodes",
		Long: `Add a typed edge from source to target.

The acting user needs the relate permission on the source node, and the
relation must be legal: no self relations, and nothing may contradict a
pinned node.

Relations: relates_to, blocks, evidence_for, validates, contradicts, part_of`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelate(opts, args[0], args[1], cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Relation, "relation", string(model.RelRelatesTo), "edge relation")
	cmd.Flags().StringVar(&opts.DB, "db", "", "store path (defaults to store.path from the config)")

	return cmd
}

func runRelate(opts *RelateOptions, sourceID, targetID string, cmd *cobra.Command) error {
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

	source, err := st.GetNode(ctx, sourceID)
	if err != nil {
		return storeError(f, "failed to read source", err)
	}
	target, err := st.GetNode(ctx, targetID)
	if err != nil {
		return storeError(f, "failed to read target", err)
	}

	rel := model.Relation(opts.Relation)
	if d := rt.auditor().CanRelate(source, target, rel, role, opts.User); !d.Allowed {
		return deniedError(f, d)
	}

	e, err := rt.factory.StampEdge(model.NewEdge(source.ID, target.ID, rel), "")
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to stamp edge", err, nil)
	}
	if err := st.PutEdge(ctx, e); err != nil {
		return storeError(f, "failed to store edge", err)
	}

	return f.Success(PutResult{
		ID:          e.ID,
		Kind:        string(e.Relation),
		VersionHash: e.Metadata.VersionHash,
		Created:     true,
	})
}
