package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/breaker"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	actorFlags
	Reason string
	DB     string
}

// ResetResult is the output of the reset command.
type ResetResult struct {
	From  breaker.State `json:"from"`
	State breaker.State `json:"state"`
}

func (r ResetResult) String() string {
	return fmt.Sprintf("breaker %s -> %s", r.From, r.State)
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear a tripped integrity breaker",
		Long: `Return the integrity breaker to OK. Only admins may reset, and the
override is logged with the acting user and the reason.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "why the breaker is being overridden")
	cmd.Flags().StringVar(&opts.DB, "db", "", "store path (defaults to store.path from the config)")

	return cmd
}

func runReset(opts *ResetOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	role, err := opts.role()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid --role", err, nil)
	}
	if opts.Reason == "" {
		return f.Fail(ExitCommandError, ErrCodeInput, "--reason is required", nil, nil)
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
	from := b.State()
	if err := b.Reset(role, opts.User, opts.Reason); err != nil {
		if errors.Is(err, breaker.ErrResetForbidden) {
			return f.Fail(ExitFailure, ErrCodeDenied, "reset refused", err, nil)
		}
		return f.Fail(ExitCommandError, ErrCodeGeneric, "reset failed", err, nil)
	}
	if err := rt.saveBreaker(ctx, st, b); err != nil {
		return storeError(f, "failed to save breaker", err)
	}
	return f.Success(ResetResult{From: from, State: b.State()})
}
