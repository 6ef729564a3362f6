package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsiflow/tarsiflow/internal/value"
)

// taskModel wires a task-based field between an input and a downstream
// sync field: base -> sim (task) -> sim_mean.
func taskModel(t *testing.T, runs *int) *Model {
	t.Helper()
	m := New()
	m.Register(Input("base", value.Scalar(100)))
	m.Register(DerivedTask("sim", value.KindVector, func(ctx context.Context, r *Reader) (value.Value, error) {
		if runs != nil {
			*runs++
		}
		b, err := r.Scalar("base")
		if err != nil {
			return nil, err
		}
		return value.Vector{b, b * 2, b * 3}, nil
	}))
	m.Register(Derived("sim_mean", value.KindScalar, func(r *Reader) (value.Value, error) {
		v, err := r.Vector("sim")
		if err != nil {
			return nil, err
		}
		if len(v) == 0 {
			return value.Scalar(0), nil
		}
		return value.Scalar(v.Sum() / float64(len(v))), nil
	}))
	require.NoError(t, m.Initialise(context.Background()))
	return m
}

func TestModel_Initialise_RunsTaskRuleOnce(t *testing.T) {
	runs := 0
	m := taskModel(t, &runs)

	assert.Equal(t, 1, runs)
	v, err := m.Get("sim")
	require.NoError(t, err)
	assert.Equal(t, value.Vector{100, 200, 300}, v)

	v, err = m.Get("sim_mean")
	require.NoError(t, err)
	assert.Equal(t, value.Scalar(200), v)
}

// The synchronous refresh walk never executes task rules: mutating the
// task field's own input leaves it (and everything downstream of it)
// untouched until RefreshTask is called explicitly.
func TestModel_Refresh_SkipsTaskFields(t *testing.T) {
	runs := 0
	m := taskModel(t, &runs)

	delta, err := m.Refresh("base", value.Scalar(10))
	require.NoError(t, err)
	assert.Empty(t, delta)
	assert.Equal(t, 1, runs, "sync refresh must not re-run the task rule")

	v, err := m.Get("sim")
	require.NoError(t, err)
	assert.Equal(t, value.Vector{100, 200, 300}, v, "stale until RefreshTask")
}

func TestModel_RefreshTask_PropagatesDownstream(t *testing.T) {
	m := taskModel(t, nil)
	require.NoError(t, m.Set("base", value.Scalar(10)))

	delta, err := m.RefreshTask(context.Background(), "sim")
	require.NoError(t, err)

	assert.Equal(t, Delta{
		"sim":      value.Vector{10, 20, 30},
		"sim_mean": value.Scalar(20),
	}, delta)
}

func TestModel_RefreshTask_UnchangedReturnsEmptyDelta(t *testing.T) {
	m := taskModel(t, nil)

	// Inputs untouched: the task recomputes to the same vector.
	delta, err := m.RefreshTask(context.Background(), "sim")
	require.NoError(t, err)
	assert.Empty(t, delta)
}

func TestModel_RefreshTask_NonTaskFieldRejected(t *testing.T) {
	m := taskModel(t, nil)

	_, err := m.RefreshTask(context.Background(), "sim_mean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not task-based")
}

func TestModel_RefreshTask_FailurePropagates(t *testing.T) {
	boom := errors.New("simulation blew up")
	m := New()
	m.Register(DerivedTask("sim", value.KindVector, func(ctx context.Context, r *Reader) (value.Value, error) {
		return value.Vector{1}, nil
	}))
	require.NoError(t, m.Initialise(context.Background()))

	// Swap in a failing rule by re-registering (last write wins).
	m.Register(DerivedTask("sim", value.KindVector, func(ctx context.Context, r *Reader) (value.Value, error) {
		return nil, boom
	}))

	_, err := m.RefreshTask(context.Background(), "sim")
	assert.ErrorIs(t, err, boom)
}

func TestModel_RefreshTask_HonorsContext(t *testing.T) {
	m := New()
	m.Register(DerivedTask("sim", value.KindVector, func(ctx context.Context, r *Reader) (value.Value, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return value.Vector{1}, nil
		}
	}))
	require.NoError(t, m.Initialise(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.RefreshTask(ctx, "sim")
	assert.ErrorIs(t, err, context.Canceled)
}
