package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsiflow/tarsiflow/internal/graph"
	"github.com/tarsiflow/tarsiflow/internal/value"
)

func openTestJournal(t *testing.T, tokens ...string) *Journal {
	t.Helper()
	j, err := Open(t.TempDir()+"/journal.db", NewFixedGenerator(tokens...))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndList(t *testing.T) {
	j := openTestJournal(t, "run-1", "run-2")
	ctx := context.Background()

	e1, err := j.Record(ctx, "base", "avg_severity", graph.Delta{
		"aal": value.Scalar(2_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", e1.ID)
	assert.Equal(t, int64(1), e1.Seq)

	e2, err := j.Record(ctx, "base", "avg_n_claims", graph.Delta{
		"aal":        value.Scalar(1_600_000),
		"loss_curve": value.Vector{400_000, 800_000},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), e2.Seq)

	entries, err := j.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "run-1", entries[0].ID)
	assert.Equal(t, "avg_severity", entries[0].Input)
	assert.Equal(t, value.Scalar(2_000_000), entries[0].Delta["aal"])

	assert.Equal(t, "run-2", entries[1].ID)
	assert.Equal(t, value.Vector{400_000, 800_000}, entries[1].Delta["loss_curve"])
}

func TestJournal_EmptyDelta(t *testing.T) {
	j := openTestJournal(t, "run-1")

	e, err := j.Record(context.Background(), "", "avg_severity", graph.Delta{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Seq)

	entries, err := j.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Delta)
}

func TestJournal_ReopenResumesClock(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/journal.db"

	j, err := Open(path, NewFixedGenerator("run-1"))
	require.NoError(t, err)
	_, err = j.Record(context.Background(), "", "x", graph.Delta{"y": value.Scalar(1)})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path, NewFixedGenerator("run-2"))
	require.NoError(t, err)
	defer j.Close()

	e, err := j.Record(context.Background(), "", "x", graph.Delta{"y": value.Scalar(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Seq, "clock must resume past existing rows")
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())

	c = NewClockAt(10)
	assert.Equal(t, int64(11), c.Next())
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a := g.Generate()
	b := g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "UUIDv7 tokens sort by creation time")
}

func TestFixedGenerator_Exhaustion(t *testing.T) {
	g := NewFixedGenerator("only")
	assert.Equal(t, "only", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
