package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/model"
	"github.com/roach88/canon/internal/oracle"
	tu "github.com/roach88/canon/internal/testutil"
)

type funcOracle func(ctx context.Context, req oracle.Request) (oracle.Response, error)

func (f funcOracle) Check(ctx context.Context, req oracle.Request) (oracle.Response, error) {
	return f(ctx, req)
}

func artifact(t *testing.T, goal string, ctxIDs []string, assertions map[string]string) model.Node {
	t.Helper()
	h, err := ReceiptInputHash(goal, ctxIDs)
	require.NoError(t, err)
	return model.Node{
		ID: tu.ID(100),
		Content: model.Artifact{
			Title: "summary",
			Goal:  goal,
			Body:  "water is wet because of evidence",
			Receipt: &model.Receipt{
				JobID:        tu.ID(900),
				CompiledAt:   tu.Epoch,
				InputHash:    h,
				AssertionMap: assertions,
			},
		},
	}
}

func withConfidence(n model.Node, c float64) model.Node {
	n.Metadata.Confidence = model.Confidence(c)
	return n
}
