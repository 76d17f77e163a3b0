package cli

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/canon/internal/breaker"
	"github.com/roach88/canon/internal/config"
	"github.com/roach88/canon/internal/events"
	"github.com/roach88/canon/internal/guard"
	"github.com/roach88/canon/internal/logging"
	"github.com/roach88/canon/internal/metrics"
	"github.com/roach88/canon/internal/oracle"
	"github.com/roach88/canon/internal/store"
	"github.com/roach88/canon/internal/version"
)

// breakerName is the store key of the CLI pipeline's breaker status.
const breakerName = "default"

// runtime is the set of components one command invocation works with,
// built from the loaded config.
type runtime struct {
	cfg     config.Config
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Collector
	bus     *events.Bus
	factory *version.Factory
}

func newRuntime(opts *RootOptions, cmd *cobra.Command) (*runtime, error) {
	cfg := opts.Config
	lo := cfg.LoggingOptions()
	lo.Output = cmd.ErrOrStderr()
	if opts.Verbose {
		lo.Level = "debug"
	}
	logger, err := logging.New(lo)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	r := &runtime{
		cfg:     cfg,
		now:     now,
		logger:  logger,
		metrics: metrics.NewCollector(cfg.Metrics.Namespace),
		factory: version.NewFactory(version.WithClock(now)),
	}
	r.bus = events.NewBus(events.SubscriberFunc(func(e events.Event) {
		logger.Debug("integrity event",
			zap.String("kind", string(e.Kind)),
			zap.String("scope", e.Scope),
			zap.String("code", e.Code),
			zap.Strings("node_ids", e.NodeIDs),
		)
	}))
	return r, nil
}

func (r *runtime) auditor() *guard.Auditor {
	return guard.NewAuditor(
		guard.WithLogger(r.logger),
		guard.WithBus(r.bus),
		guard.WithMetrics(r.metrics),
		guard.WithClock(r.now),
		guard.WithStaleAfter(r.cfg.Guard.StaleAfter),
	)
}

// openStore opens the store at path, or at the configured path when empty.
func (r *runtime) openStore(path string) (*store.Store, error) {
	if path == "" {
		path = r.cfg.Store.Path
	}
	return store.Open(path, store.WithClock(r.now), store.WithMetrics(r.metrics))
}

// loadBreaker restores the pipeline breaker from st, starting OK when none is saved.
func (r *runtime) loadBreaker(ctx context.Context, st *store.Store) (*breaker.Breaker, error) {
	opts := []breaker.Option{
		breaker.WithClock(r.now),
		breaker.WithLogger(r.logger),
		breaker.WithBus(r.bus),
		breaker.WithMetrics(r.metrics),
	}
	status, err := st.LoadBreakerStatus(ctx, breakerName)
	switch {
	case err == nil:
		opts = append(opts, breaker.WithStatus(status))
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	return breaker.New(opts...), nil
}

func (r *runtime) saveBreaker(ctx context.Context, st *store.Store, b *breaker.Breaker) error {
	return st.SaveBreakerStatus(ctx, breakerName, b.Status())
}

// oracle builds the configured consistency oracle. The returned close
// function is never nil.
func (r *runtime) oracle(ctx context.Context) (oracle.Oracle, func(), error) {
	noop := func() {}
	var inner oracle.Oracle
	switch r.cfg.Oracle.Kind {
	case config.OracleNone:
		return nil, noop, nil
	case config.OracleWasm:
		w, err := oracle.LoadWasmOracle(ctx, r.cfg.Oracle.WasmPath)
		if err != nil {
			return nil, noop, err
		}
		inner = w
		noop = func() { _ = w.Close(context.Background()) }
	default:
		inner = oracle.NewRuleOracle()
	}
	g := oracle.NewGuarded(inner, r.cfg.OracleSettings(),
		oracle.WithLogger(r.logger),
		oracle.WithMetrics(r.metrics),
		oracle.WithBus(r.bus),
	)
	return g, noop, nil
}
