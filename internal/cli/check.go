package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/version"
)

// CheckResult is the output of the check command.
type CheckResult struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	VersionHash string `json:"version_hash,omitempty"`
	Integrity   bool   `json:"integrity"`
	Sealed      bool   `json:"sealed"`
	SealMethod  string `json:"seal_method,omitempty"`
	SealError   string `json:"seal_error,omitempty"`
	Stale       bool   `json:"stale"`
	StaleReason string `json:"stale_reason,omitempty"`
}

// OK reports whether the node verifies.
func (r CheckResult) OK() bool {
	return r.Integrity && r.SealError == ""
}

func (r CheckResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.Type, r.ID)
	if r.Integrity {
		fmt.Fprintf(&b, "  integrity: ok (%s)\n", r.VersionHash)
	} else {
		fmt.Fprintf(&b, "  integrity: FAILED (stored %q)\n", r.VersionHash)
	}
	switch {
	case !r.Sealed:
		b.WriteString("  seal: none\n")
	case r.SealError != "":
		fmt.Fprintf(&b, "  seal: BROKEN (%s): %s\n", r.SealMethod, r.SealError)
	default:
		fmt.Fprintf(&b, "  seal: ok (%s)\n", r.SealMethod)
	}
	if r.Stale {
		fmt.Fprintf(&b, "  stale: %s\n", r.StaleReason)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <node-file>",
		Short: "Verify a node's version hash and seal",
		Long: `Verify that a node matches its stored version hash and, if it carries
a human seal, that the seal still covers its content. Staleness is reported
using guard.stale_after from the config but does not fail the check.

Exit codes:
  0 - Node verifies
  1 - Integrity or seal failure
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	rt, err := newRuntime(opts, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to initialize", err, nil)
	}

	n, err := loadNode(path, cmd.InOrStdin())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read node", err, nil)
	}

	res := CheckResult{
		ID:          n.ID,
		Type:        string(n.Type()),
		VersionHash: n.Metadata.VersionHash,
		Integrity:   version.VerifyIntegrity(n),
	}
	if sig := n.Metadata.HumanSignature; sig != nil {
		res.Sealed = true
		res.SealMethod = string(sig.Method)
		if err := version.VerifySeal(n); err != nil {
			res.SealError = err.Error()
		}
	}
	if st := rt.auditor().CheckStaleness(n); st.Stale {
		res.Stale = true
		res.StaleReason = st.Reason
	}

	if !res.OK() {
		return f.Fail(ExitFailure, ErrCodeIntegrity, fmt.Sprintf("node %s does not verify", n.ID), nil, res)
	}
	return f.Success(res)
}
