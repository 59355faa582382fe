package navmesh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const waitTimeout = 30 * time.Second

func receive(t *testing.T, ch <-chan Ready) Ready {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a navmesh")
		return Ready{}
	}
}

func startGenerator(t *testing.T, g *Generator) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()
	return func() error {
		cancel()
		return <-done
	}
}

func TestStaticSourceFilter(t *testing.T) {
	src := scene2D()
	all, err := src.CollectAffectors(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := src.CollectAffectors(context.Background(), []AffectorID{cubeID})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, cubeID, some[0].ID)

	none, err := src.CollectAffectors(context.Background(), []AffectorID{})
	require.NoError(t, err)
	assert.Empty(t, none, "an empty filter selects nothing")
}

func TestGeneratorGenerate(t *testing.T) {
	ready := make(chan Ready, 4)
	g := NewGenerator(scene2D(), WithWorkers(2), WithLogger(zaptest.NewLogger(t)),
		WithReadyHandler(func(r Ready) { ready <- r }))
	stop := startGenerator(t, g)

	settings := scene2DSettings()
	id := g.Generate(settings)
	other := g.Generate(settings)
	assert.NotEqual(t, id, other, "every request gets its own id")

	want, err := Generate(scene2D(), settings)
	require.NoError(t, err)
	seen := map[ID]bool{}
	for i := 0; i < 2; i++ {
		r := receive(t, ready)
		require.NoError(t, r.Err)
		assert.Equal(t, want, r.Navmesh)
		seen[r.ID] = true
	}
	assert.True(t, seen[id] && seen[other])
	assert.False(t, g.Busy(id))

	assert.ErrorIs(t, stop(), context.Canceled)
}

func TestGeneratorRegenerateDeduplicates(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var calls atomic.Int32
	src := AffectorSourceFunc(func(ctx context.Context, filter []AffectorID) ([]Affector, error) {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return scene2D().CollectAffectors(ctx, filter)
	})

	ready := make(chan Ready, 4)
	g := NewGenerator(src, WithWorkers(2), WithReadyHandler(func(r Ready) { ready <- r }))
	settings := scene2DSettings()

	id := g.Generate(settings)
	assert.True(t, g.Busy(id))
	assert.False(t, g.Regenerate(id, settings), "already pending")

	stop := startGenerator(t, g)
	select {
	case <-started:
	case <-time.After(waitTimeout):
		t.Fatal("build never started")
	}
	assert.False(t, g.Regenerate(id, settings), "already running")

	close(release)
	r := receive(t, ready)
	assert.Equal(t, id, r.ID)
	require.NoError(t, r.Err)
	assert.False(t, g.Busy(id))

	// Once done the id can be rebuilt, with different geometry.
	settings.Filter = []AffectorID{groundID}
	require.True(t, g.Regenerate(id, settings))
	r2 := receive(t, ready)
	assert.Equal(t, id, r2.ID)
	require.NoError(t, r2.Err)
	assert.NotEqual(t, r.Navmesh.Polygon, r2.Navmesh.Polygon)
	assert.Equal(t, int32(2), calls.Load())

	require.ErrorIs(t, stop(), context.Canceled)
}

func TestGeneratorReportsErrors(t *testing.T) {
	boom := errors.New("scene unavailable")
	ready := make(chan Ready, 2)
	g := NewGenerator(AffectorSourceFunc(func(context.Context, []AffectorID) ([]Affector, error) {
		return nil, boom
	}), WithWorkers(1), WithReadyHandler(func(r Ready) { ready <- r }))
	stop := startGenerator(t, g)

	id := g.Generate(DefaultSettings())
	r := receive(t, ready)
	assert.Equal(t, id, r.ID)
	assert.Nil(t, r.Navmesh)
	assert.ErrorIs(t, r.Err, ErrCollectAffectors)
	assert.ErrorIs(t, r.Err, boom)

	bad := DefaultSettings()
	bad.MaxVerticesPerPolygon = 0
	g2 := NewGenerator(StaticSource{}, WithWorkers(1), WithReadyHandler(func(r Ready) { ready <- r }))
	stop2 := startGenerator(t, g2)
	g2.Generate(bad)
	r = receive(t, ready)
	assert.Error(t, r.Err)

	require.ErrorIs(t, stop(), context.Canceled)
	require.ErrorIs(t, stop2(), context.Canceled)
}

func TestGeneratorDropsPendingOnStop(t *testing.T) {
	g := NewGenerator(scene2D(), WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	id := g.Generate(scene2DSettings())
	assert.ErrorIs(t, g.Run(ctx), context.Canceled)
	assert.False(t, g.Busy(id))
}

func TestGeneratorIgnoresBuildsAfterStop(t *testing.T) {
	g := NewGenerator(scene2D(), WithWorkers(1), WithLogger(zaptest.NewLogger(t)))
	stop := startGenerator(t, g)
	require.ErrorIs(t, stop(), context.Canceled)

	id := g.Generate(scene2DSettings())
	assert.False(t, g.Busy(id))
	assert.False(t, g.Regenerate(id, scene2DSettings()))
	assert.False(t, g.Busy(id))
}
