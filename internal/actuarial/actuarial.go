// Package actuarial builds the worked loss model on top of the graph
// engine: average-annual-loss from severity and claim frequency, an
// expected cumulative loss curve, and a task-based Monte Carlo annual loss
// simulation.
//
// The package is glue, not engine: it registers fields and formulas and
// leaves graph construction and propagation to graph.Model.
package actuarial

import (
	"context"
	"math"
	"math/rand"

	"github.com/tarsiflow/tarsiflow/internal/graph"
	"github.com/tarsiflow/tarsiflow/internal/resolve"
	"github.com/tarsiflow/tarsiflow/internal/value"
)

// Field names registered by NewModel.
const (
	FieldSeverity      = "avg_severity"
	FieldClaims        = "avg_n_claims"
	FieldAAL           = "aal"
	FieldLossCurve     = "loss_curve"
	FieldSimulated     = "simulated_losses"
	FieldSimulatedMean = "simulated_mean"
)

// Model defaults applied when Config leaves a knob unset.
const (
	DefaultAvgSeverity = 500_000.0
	DefaultAvgClaims   = 5.0
	DefaultTrials      = 1000
)

// Config parameterizes the model's inputs and the simulation. Nil input
// pointers fall back to the model defaults; an explicit zero is a real
// input (a zero-severity stress scenario, not the default model).
type Config struct {
	AvgSeverity *float64
	AvgClaims   *float64
	Trials      int
	Seed        int64
}

func (c Config) severity() float64 {
	if c.AvgSeverity != nil {
		return *c.AvgSeverity
	}
	return DefaultAvgSeverity
}

func (c Config) claims() float64 {
	if c.AvgClaims != nil {
		return *c.AvgClaims
	}
	return DefaultAvgClaims
}

func (c Config) trials() int {
	if c.Trials <= 0 {
		return DefaultTrials
	}
	return c.Trials
}

// NewModel registers the actuarial fields on a fresh model. The caller
// must run Initialise before refreshing.
//
// Graph shape:
//
//	avg_severity ─┬─> aal
//	avg_n_claims ─┤
//	              ├─> loss_curve
//	              └─> simulated_losses (task) ──> simulated_mean
func NewModel(cfg Config) *graph.Model {
	m := graph.New()
	m.Register(graph.Input(FieldSeverity, value.Scalar(cfg.severity())))
	m.Register(graph.Input(FieldClaims, value.Scalar(cfg.claims())))

	m.Register(graph.Derived(FieldAAL, value.KindScalar, resolve.Scalars(
		func(xs ...float64) float64 { return xs[0] * xs[1] },
		FieldSeverity, FieldClaims,
	)))

	// Cumulative expected losses per claim count: element i is the
	// expected total after i+1 claims.
	m.Register(graph.Derived(FieldLossCurve, value.KindVector, resolve.Bind(
		func(args resolve.Args) (value.Value, error) {
			severity := args.Scalar(FieldSeverity)
			n := int(math.Ceil(args.Scalar(FieldClaims)))
			if n < 1 {
				n = 1
			}
			curve := make(value.Vector, n)
			for i := range curve {
				curve[i] = severity * float64(i+1)
			}
			return curve, nil
		},
		FieldSeverity, FieldClaims,
	)))

	m.Register(graph.DerivedTask(FieldSimulated, value.KindVector, resolve.BindTask(
		func(ctx context.Context, args resolve.Args) (value.Value, error) {
			return simulate(ctx, args.Scalar(FieldSeverity), args.Scalar(FieldClaims), cfg.trials(), cfg.Seed)
		},
		FieldSeverity, FieldClaims,
	)))

	m.Register(graph.Derived(FieldSimulatedMean, value.KindScalar, resolve.Bind(
		func(args resolve.Args) (value.Value, error) {
			losses := args.Vector(FieldSimulated)
			if len(losses) == 0 {
				return value.Scalar(0), nil
			}
			return value.Scalar(losses.Sum() / float64(len(losses))), nil
		},
		FieldSimulated,
	)))

	return m
}

// simulate draws one annual aggregate loss per trial: claim counts are
// Poisson with the given mean, each claim's severity is exponential with
// the given mean. The seed makes runs reproducible; the same inputs and
// seed always produce the same vector.
func simulate(ctx context.Context, avgSeverity, avgClaims float64, trials int, seed int64) (value.Value, error) {
	rng := rand.New(rand.NewSource(seed))
	losses := make(value.Vector, trials)

	for i := 0; i < trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := poisson(rng, avgClaims)
		var total float64
		for j := 0; j < n; j++ {
			total += rng.ExpFloat64() * avgSeverity
		}
		losses[i] = total
	}
	return losses, nil
}

// poisson draws a Poisson-distributed claim count via Knuth's method.
// Fine for the small means this model uses; not suitable for large ones.
func poisson(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}
	limit := math.Exp(-mean)
	n := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return n
		}
		n++
	}
}
