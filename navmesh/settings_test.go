package navmesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/recast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, UpY, s.Up)
	assert.Nil(t, s.Aabb)
	assert.Nil(t, s.Filter)
	assert.Equal(t, recast.RC_CONTOUR_TESS_WALL_EDGES, s.ContourFlags)

	s3 := FromAgent3D(5, 2)
	assert.Equal(t, float32(5), s3.AgentRadius)
	assert.Equal(t, float32(2), s3.AgentHeight)
	assert.Equal(t, UpY, s3.Up)

	s2 := FromAgent2D(5, 2)
	assert.Equal(t, UpZ, s2.Up)
	s2.Up = UpY
	assert.Equal(t, s3, s2, "2D settings only differ in the up axis")
}

func TestSettingsConfig(t *testing.T) {
	s := FromAgent3D(1, 2)
	s.CellHeightFraction = 8
	aabb := recast.Aabb3d{Min: common.Vec3{0, 0, 0}, Max: common.Vec3{10, 4, 5}}

	cfg := s.Config(aabb)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float32(0.5), cfg.Cs)
	assert.Equal(t, float32(0.25), cfg.Ch)
	assert.Equal(t, 8, cfg.WalkableHeight)
	assert.Equal(t, 3, cfg.WalkableClimb)
	assert.Equal(t, 2, cfg.WalkableRadius)
	assert.Equal(t, 16, cfg.MaxEdgeLen)
	assert.Equal(t, 64, cfg.MinRegionArea)
	assert.Equal(t, 400, cfg.MergeRegionArea)
	assert.Equal(t, float32(3), cfg.DetailSampleDist)
	assert.Equal(t, float32(0.25), cfg.DetailSampleMaxError)
	assert.Equal(t, 0, cfg.BorderSize)
	assert.Equal(t, 20, cfg.Width)
	assert.Equal(t, 10, cfg.Height)
	assert.Equal(t, aabb, cfg.Aabb)

	s.Tiling = true
	cfg = s.Config(aabb)
	assert.Equal(t, 5, cfg.BorderSize)
	assert.Equal(t, common.Vec3{-2.5, 0, -2.5}, cfg.Aabb.Min)
	assert.Equal(t, common.Vec3{12.5, 4, 7.5}, cfg.Aabb.Max)
	assert.Equal(t, 30, cfg.Width)
	assert.Equal(t, 20, cfg.Height)

	s.BorderSize = 1
	assert.Equal(t, 1, s.Config(aabb).BorderSize, "an explicit border wins")

	s.DetailSampleDist = 0.5
	assert.Zero(t, s.Config(aabb).DetailSampleDist, "small sample distances disable sampling")
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.Up = common.Vec3{1, 1, 0}
	err := s.Validate()
	assert.ErrorIs(t, err, recast.ErrConfig)
	assert.Equal(t, recast.StageConfig, recast.StageOf(err))

	s.Up = common.Vec3{0, -1, 0}
	assert.ErrorIs(t, s.Validate(), recast.ErrConfig, "only the positive axes are accepted")

	bad := Settings{}
	err = bad.Validate()
	require.Error(t, err)
	var buildErr *recast.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.GreaterOrEqual(t, len(multierr.Errors(buildErr.Err)), 4, "every violation is reported")

	s = DefaultSettings()
	s.MaxVerticesPerPolygon = 2
	assert.ErrorIs(t, s.Validate(), recast.ErrConfig)

	s = DefaultSettings()
	s.AreaVolumes = []recast.ConvexVolume{{Vertices: []common.Vec3{{0, 0, 0}, {1, 0, 0}}}}
	assert.ErrorIs(t, s.Validate(), recast.ErrConfig)
}

func TestReadSettingsYAML(t *testing.T) {
	s, err := ReadSettingsYAML(strings.NewReader(`
agent_radius: 5
agent_height: 2
up: [0, 0, 1]
aabb:
  min: [-100, -100, -5]
  max: [100, 100, 5]
area_volumes:
  - vertices: [[0, 0, 0], [1, 0, 0], [1, 1, 0]]
    min_height: -1
    max_height: 1
    area: 5
filter: [1, 3]
`))
	require.NoError(t, err)
	want := FromAgent2D(5, 2)
	want.Aabb = &recast.Aabb3d{Min: common.Vec3{-100, -100, -5}, Max: common.Vec3{100, 100, 5}}
	want.AreaVolumes = []recast.ConvexVolume{{
		Vertices:  []common.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}},
		MinHeight: -1,
		MaxHeight: 1,
		Area:      5,
	}}
	want.Filter = []AffectorID{1, 3}
	assert.Equal(t, want, s)

	empty, err := ReadSettingsYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), empty)

	_, err = ReadSettingsYAML(strings.NewReader("agent_radious: 1\n"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestLoadSettingsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiling: true\ntile_size: 64\n"), 0o644))
	s, err := LoadSettingsYAML(path)
	require.NoError(t, err)
	assert.True(t, s.Tiling)
	assert.Equal(t, 64, s.TileSize)

	_, err = LoadSettingsYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
