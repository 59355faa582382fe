package navmesh

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/recast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codecSample(t *testing.T) *Navmesh {
	t.Helper()
	settings := scene2DSettings()
	settings.Filter = []AffectorID{groundID, cubeID}
	settings.AreaVolumes = []recast.ConvexVolume{{
		Vertices:  []common.Vec3{{-30, -30, 0}, {30, -30, 0}, {0, 30, 0}},
		MinHeight: -1,
		MaxHeight: 1,
		Area:      3,
	}}
	nav, err := Generate(scene2D(), settings)
	require.NoError(t, err)
	return nav
}

func TestBinaryRoundTrip(t *testing.T) {
	nav := codecSample(t)
	data, err := nav.MarshalBinary()
	require.NoError(t, err)

	var decoded Navmesh
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, nav, &decoded)

	again, err := decoded.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestBinaryRoundTripKeepsEmptyFilter(t *testing.T) {
	for _, filter := range [][]AffectorID{nil, {}, {cubeID}} {
		nav := &Navmesh{Settings: scene2DSettings()}
		nav.Settings.Filter = filter
		data, err := nav.MarshalBinary()
		require.NoError(t, err)

		var decoded Navmesh
		require.NoError(t, decoded.UnmarshalBinary(data))
		assert.Equal(t, filter == nil, decoded.Settings.Filter == nil, "filter %#v", filter)
		assert.Equal(t, nav.Settings, decoded.Settings)

		want, err := scene2D().CollectAffectors(context.Background(), filter)
		require.NoError(t, err)
		got, err := scene2D().CollectAffectors(context.Background(), decoded.Settings.Filter)
		require.NoError(t, err)
		assert.Len(t, got, len(want), "filter %#v", filter)
	}
}

func TestBinaryRejectsCorruptInput(t *testing.T) {
	nav := codecSample(t)
	data, err := nav.MarshalBinary()
	require.NoError(t, err)

	var decoded Navmesh
	assert.Error(t, decoded.UnmarshalBinary(data[:len(data)/2]))
	assert.Error(t, decoded.UnmarshalBinary(append(data, 0)), "trailing bytes")
	assert.Nil(t, decoded.Polygon, "a failed decode leaves the target alone")
}

func TestBinaryEmptyNavmesh(t *testing.T) {
	empty := &Navmesh{Settings: DefaultSettings()}
	data, err := empty.MarshalBinary()
	require.NoError(t, err)
	var decoded Navmesh
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, empty, &decoded)
}

func TestNavRoundTrip(t *testing.T) {
	nav := codecSample(t)
	var buf bytes.Buffer
	require.NoError(t, WriteNav(&buf, nav))
	decoded, err := ReadNav(&buf)
	require.NoError(t, err)
	assert.Equal(t, nav, decoded)

	path := filepath.Join(t.TempDir(), "navmesh.nav")
	require.NoError(t, SaveNav(path, nav))
	loaded, err := LoadNav(path)
	require.NoError(t, err)
	assert.Equal(t, nav, loaded)

	_, err = ReadNav(bytes.NewReader([]byte("{")))
	assert.Error(t, err)
	_, err = LoadNav(filepath.Join(t.TempDir(), "missing.nav"))
	assert.Error(t, err)
}
