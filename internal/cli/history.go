package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/version"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB string
}

// HistoryEntry is one version in a node's chain.
type HistoryEntry struct {
	VersionHash         string    `json:"version_hash"`
	PreviousVersionHash string    `json:"previous_version_hash,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
	Pin                 bool      `json:"pin"`
	Archived            bool      `json:"archived"`
	Sealed              bool      `json:"sealed"`
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	ID       string         `json:"id"`
	Versions []HistoryEntry `json:"versions"`
	Intact   bool           `json:"intact"`
	Break    string         `json:"break,omitempty"`
}

func (r HistoryResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d versions\n", r.ID, len(r.Versions))
	for i, v := range r.Versions {
		var flags []string
		if v.Pin {
			flags = append(flags, "pinned")
		}
		if v.Sealed {
			flags = append(flags, "sealed")
		}
		if v.Archived {
			flags = append(flags, "archived")
		}
		fmt.Fprintf(&b, "  %d %s %s", i, v.UpdatedAt.Format(time.RFC3339), v.VersionHash)
		if len(flags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(flags, ","))
		}
		b.WriteString("\n")
	}
	if r.Intact {
		b.WriteString("chain: intact")
	} else {
		fmt.Fprintf(&b, "chain: BROKEN: %s", r.Break)
	}
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <node-id>",
		Short: "Show and verify a node's version chain",
		Long: `List every stored version of a node, oldest first, and verify that each
version matches its hash and points at its predecessor.

Exit codes:
  0 - Chain intact
  1 - Chain broken, or node not found
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "store path (defaults to store.path from the config)")

	return cmd
}

func runHistory(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	rt, err := newRuntime(opts.RootOptions, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to initialize", err, nil)
	}

	st, err := rt.openStore(opts.DB)
	if err != nil {
		return storeError(f, "failed to open store", err)
	}
	defer st.Close()

	versions, err := st.History(cmd.Context(), id)
	if err != nil {
		return storeError(f, "failed to read history", err)
	}

	res := HistoryResult{ID: id, Intact: true}
	for _, v := range versions {
		res.Versions = append(res.Versions, HistoryEntry{
			VersionHash:         v.Metadata.VersionHash,
			PreviousVersionHash: v.Metadata.PreviousVersionHash,
			UpdatedAt:           v.Metadata.UpdatedAt,
			Pin:                 v.Metadata.Pin,
			Archived:            v.Metadata.IsArchived(),
			Sealed:              v.Metadata.HumanSignature != nil,
		})
	}
	if err := version.VerifyChain(versions); err != nil {
		res.Intact = false
		res.Break = err.Error()
		return f.Fail(ExitFailure, ErrCodeChain, "version chain is broken", err, res)
	}
	return f.Success(res)
}
