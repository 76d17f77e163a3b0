// canon keeps a knowledge graph's version chains, seals and pins honest.
//
// Usage:
//
//	canon stamp node.json > stamped.json
//	canon put --db canon.db --user alice stamped.json
//	canon verify-branch --db canon.db branch.json
//	canon test internal/harness/testdata/scenarios
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/roach88/canon/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		// Command errors were already written by the output formatter.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
