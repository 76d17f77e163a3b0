package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/verify"
)

// VerifyOptions holds flags for the verify-artifact and verify-branch commands.
type VerifyOptions struct {
	*RootOptions
	Context string
	DB      string
}

// reportView is a verification report plus the breaker state it left behind.
type reportView struct {
	verify.Report
	Breaker breaker.State `json:"breaker"`
}

func (v reportView) String() string {
	var b strings.Builder
	result := "PASSED"
	if !v.Passed {
		result = "FAILED"
	}
	fmt.Fprintf(&b, "%s %s: %s (score %.2f)\n", v.Kind, v.Subject, result, v.Score)
	for _, issue := range v.Issues {
		if issue.NodeID != "" {
			fmt.Fprintf(&b, "  [%s] %s %s: %s\n", issue.Severity, issue.Code, issue.NodeID, issue.Message)
		} else {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", issue.Severity, issue.Code, issue.Message)
		}
	}
	for _, t := range v.Tensions {
		fmt.Fprintf(&b, "  tension: %s\n", t)
	}
	if v.OracleStatus != "" {
		fmt.Fprintf(&b, "  oracle: %s (%d constraints)\n", v.OracleStatus, v.CheckedConstraints)
	}
	fmt.Fprintf(&b, "  breaker: %s", v.Breaker)
	return b.String()
}

// NewVerifyArtifactCommand creates the verify-artifact command.
func NewVerifyArtifactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify-artifact <artifact-file>",
		Short: "Audit a generated artifact against its context",
		Long: `Audit an artifact node: its own version hash, its generation receipt,
and every assertion against the context nodes it was generated from.

The context file holds the context nodes, either as a list or under a
"nodes" key. The result feeds the integrity breaker saved in the store.

Exit codes:
  0 - Artifact passed (warnings allowed)
  1 - Critical issues found; the breaker is tripped
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerifyArtifact(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "", "file with the context nodes")
	cmd.Flags().StringVar(&opts.DB, "db", "", "store path (defaults to store.path from the config)")

	return cmd
}

// NewVerifyBranchCommand creates the verify-branch command.
func NewVerifyBranchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify-branch <branch-file>",
		Short: "Audit a branch of nodes and edges",
		Long: `Audit a branch: every node's version hash and seal, pin confidence,
and, when the file carries edges, logical consistency via the configured
oracle. An oracle that cannot answer is reported but does not fail the audit.

Exit codes:
  0 - Branch passed (warnings allowed)
  1 - Critical issues found; the breaker is tripped
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerifyBranch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "store path (defaults to store.path from the config)")

	return cmd
}

func runVerifyArtifact(opts *VerifyOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	rt, err := newRuntime(opts.RootOptions, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to initialize", err, nil)
	}

	artifact, err := loadNode(path, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read artifact", err, nil)
	}
	var contextBranch branchFile
	if opts.Context != "" {
		contextBranch, err = loadBranch(opts.Context, cmd.InOrStdin())
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInput, "failed to read context", err, nil)
		}
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

	engine := verify.NewEngine(
		verify.WithBreaker(b),
		verify.WithLogger(rt.logger),
		verify.WithMetrics(rt.metrics),
		verify.WithBus(rt.bus),
	)
	report, verr := engine.VerifyArtifact(artifact, contextBranch.Nodes)
	if err := rt.saveBreaker(ctx, st, b); err != nil {
		return storeError(f, "failed to save breaker", err)
	}

	view := reportView{Report: report, Breaker: b.State()}
	if verr != nil {
		return f.Fail(ExitFailure, ErrCodeVerify, "artifact failed verification", verr, view)
	}
	return f.Success(view)
}

func runVerifyBranch(opts *VerifyOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	rt, err := newRuntime(opts.RootOptions, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to initialize", err, nil)
	}

	branch, err := loadBranch(path, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read branch", err, nil)
	}

	o, closeOracle, err := rt.oracle(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeOracle, "failed to load oracle", err, nil)
	}
	defer closeOracle()

	st, err := rt.openStore(opts.DB)
	if err != nil {
		return storeError(f, "failed to open store", err)
	}
	defer st.Close()

	b, err := rt.loadBreaker(ctx, st)
	if err != nil {
		return storeError(f, "failed to load breaker", err)
	}

	engine := verify.NewEngine(
		verify.WithOracle(o),
		verify.WithBreaker(b),
		verify.WithLogger(rt.logger),
		verify.WithMetrics(rt.metrics),
		verify.WithBus(rt.bus),
	)
	report, verr := engine.VerifyBranch(ctx, branch.Nodes, branch.Edges)
	if err := rt.saveBreaker(ctx, st, b); err != nil {
		return storeError(f, "failed to save breaker", err)
	}

	view := reportView{Report: report, Breaker: b.State()}
	if verr != nil {
		return f.Fail(ExitFailure, ErrCodeVerify, "branch failed verification", verr, view)
	}
	return f.Success(view)
}
