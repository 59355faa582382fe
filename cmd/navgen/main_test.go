package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/mesh"
	"github.com/gorustyt/gorerecast/navmesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-up", "z", "-o", "x.nav", "-watch", "a.obj", "b.obj"})
	require.NoError(t, err)
	assert.Equal(t, "z", opts.up)
	assert.Equal(t, "x.nav", opts.out)
	assert.True(t, opts.watch)
	assert.Equal(t, []string{"a.obj", "b.obj"}, opts.inputs)

	_, err = parseFlags([]string{"-v"})
	assert.Error(t, err, "inputs are required")
}

func TestParseUp(t *testing.T) {
	up, err := parseUp("Z")
	require.NoError(t, err)
	assert.Equal(t, navmesh.UpZ, up)

	_, err = parseUp("w")
	assert.Error(t, err)
}

func TestRunWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "ground.obj")
	f, err := os.Create(input)
	require.NoError(t, err)
	require.NoError(t, mesh.WriteObj(f, mesh.Plane(common.Vec2{10, 10})))
	require.NoError(t, f.Close())

	config := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(config, []byte("agent_radius: 0.6\nmax_vertices_per_polygon: 6\n"), 0o644))

	opts := &options{
		config:    config,
		out:       filepath.Join(dir, "out.nav"),
		bin:       filepath.Join(dir, "out.bin"),
		obj:       filepath.Join(dir, "poly.obj"),
		detailObj: filepath.Join(dir, "detail.obj"),
		inputs:    []string{input},
	}
	require.NoError(t, run(context.Background(), opts))

	nav, err := navmesh.LoadNav(opts.out)
	require.NoError(t, err)
	assert.Greater(t, nav.Polygon.PolygonCount(), 0)

	data, err := os.ReadFile(opts.bin)
	require.NoError(t, err)
	var decoded navmesh.Navmesh
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, nav.Polygon, decoded.Polygon)

	for _, path := range []string{opts.obj, opts.detailObj} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(config, []byte("agent_radius: -1\n"), 0o644))
	err := run(context.Background(), &options{config: config, inputs: []string{"missing.obj"}})
	assert.Error(t, err)
}

func TestGenerateOnceReportsSourceError(t *testing.T) {
	errLoad := errors.New("load failed")
	src := navmesh.AffectorSourceFunc(func(context.Context, []navmesh.AffectorID) ([]navmesh.Affector, error) {
		return nil, errLoad
	})
	nav, err := generateOnce(context.Background(), src, navmesh.DefaultSettings())
	assert.ErrorIs(t, err, errLoad)
	assert.Nil(t, nav)
}
