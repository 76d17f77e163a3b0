package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/guard"
	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/store"
)

// actorFlags identify who is acting, for commands that go through the guard.
type actorFlags struct {
	Role string
	User string
}

func (a *actorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.Role, "role", string(model.RoleEditor), "acting role (viewer|editor|admin)")
	cmd.Flags().StringVar(&a.User, "user", "", "acting user id")
}

func (a *actorFlags) role() (model.Role, error) {
	return model.ParseRole(a.Role)
}

// deniedError reports a guard denial with the decision as details.
func deniedError(f *OutputFormatter, d guard.Decision) error {
	return f.Fail(ExitFailure, ErrCodeDenied, "denied: "+d.Reason, nil, d)
}

// trippedError reports an open breaker.
func trippedError(f *OutputFormatter, err error) error {
	t, _ := breaker.AsTripped(err)
	return f.Fail(ExitFailure, ErrCodeBreakerOpen, "integrity breaker is tripped", err, t)
}

// storeError maps store errors onto CLI error codes.
func storeError(f *OutputFormatter, message string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return f.Fail(ExitFailure, ErrCodeNotFound, message, err, nil)
	case errors.Is(err, store.ErrConflict):
		return f.Fail(ExitFailure, ErrCodeConflict, message, err, nil)
	default:
		return f.Fail(ExitCommandError, ErrCodeStore, message, err, nil)
	}
}
