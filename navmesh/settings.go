package navmesh

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/recast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Canonical up axes accepted by Settings.Up.
var (
	UpX = common.Vec3{1, 0, 0}
	UpY = common.Vec3{0, 1, 0}
	UpZ = common.Vec3{0, 0, 1}
)

// Settings is the user facing description of a navmesh build. Agent sizes are
// in world units; the voxel Config is derived from them by Config.
type Settings struct {
	/// How many cells fit in the agent radius along x and z.
	CellSizeFraction float32 `json:"cell_size_fraction" yaml:"cell_size_fraction"`
	/// How many cells fit in the agent height along y.
	CellHeightFraction float32 `json:"cell_height_fraction" yaml:"cell_height_fraction"`
	/// Steepest walkable slope. [Units: Degrees]
	WalkableSlopeAngle float32 `json:"walkable_slope_angle" yaml:"walkable_slope_angle"`
	AgentRadius        float32 `json:"agent_radius" yaml:"agent_radius"`
	AgentHeight        float32 `json:"agent_height" yaml:"agent_height"`
	/// Tallest ledge the agent can still step up. [Units: wu]
	WalkableClimb float32 `json:"walkable_climb" yaml:"walkable_climb"`
	/// Square root of the smallest region kept as an island. [Units: vx]
	MinRegionSize int `json:"min_region_size" yaml:"min_region_size"`
	/// Square root of the size below which regions get merged. [Units: vx]
	MergeRegionSize int `json:"merge_region_size" yaml:"merge_region_size"`
	/// Overrides the derived border size when positive. [Units: vx]
	BorderSize int `json:"border_size" yaml:"border_size"`
	/// Longest contour edge, as a multiple of the agent radius.
	EdgeMaxLenFactor       float32 `json:"edge_max_len_factor" yaml:"edge_max_len_factor"`
	MaxSimplificationError float32 `json:"max_simplification_error" yaml:"max_simplification_error"`
	MaxVerticesPerPolygon  int     `json:"max_vertices_per_polygon" yaml:"max_vertices_per_polygon"`
	/// Detail sampling distance in cells. Values below 0.9 disable sampling.
	DetailSampleDist float32 `json:"detail_sample_dist" yaml:"detail_sample_dist"`
	/// Allowed detail surface deviation in cell heights.
	DetailSampleMaxError float32 `json:"detail_sample_max_error" yaml:"detail_sample_max_error"`
	TileSize             int     `json:"tile_size" yaml:"tile_size"`
	Tiling               bool    `json:"tiling" yaml:"tiling"`
	/// Build bounds in the configured up frame. Nil means the bounds of the input.
	Aabb         *recast.Aabb3d        `json:"aabb" yaml:"aabb"`
	ContourFlags recast.ContourFlags   `json:"contour_flags" yaml:"contour_flags"`
	AreaVolumes  []recast.ConvexVolume `json:"area_volumes" yaml:"area_volumes"`
	Up           common.Vec3           `json:"up" yaml:"up"`
	Filter       []AffectorID          `json:"filter" yaml:"filter"`
}

// DefaultSettings returns settings for a human sized agent on a y-up world.
func DefaultSettings() Settings {
	return Settings{
		CellSizeFraction:       2,
		CellHeightFraction:     10,
		WalkableSlopeAngle:     45,
		AgentRadius:            0.6,
		AgentHeight:            2.0,
		WalkableClimb:          0.9,
		MinRegionSize:          8,
		MergeRegionSize:        20,
		EdgeMaxLenFactor:       8,
		MaxSimplificationError: 1.3,
		MaxVerticesPerPolygon:  6,
		DetailSampleDist:       6,
		DetailSampleMaxError:   1,
		TileSize:               32,
		ContourFlags:           recast.RC_CONTOUR_TESS_WALL_EDGES,
		Up:                     UpY,
	}
}

// FromAgent3D returns the defaults sized for an agent of the given radius and height.
func FromAgent3D(radius, height float32) Settings {
	s := DefaultSettings()
	s.AgentRadius = radius
	s.AgentHeight = height
	return s
}

// FromAgent2D is FromAgent3D for worlds where +Z points up.
func FromAgent2D(radius, height float32) Settings {
	s := FromAgent3D(radius, height)
	s.Up = UpZ
	return s
}

// Validate reports every invalid field at once.
func (s *Settings) Validate() error {
	var err error
	if !(s.CellSizeFraction > 0) || !(s.CellHeightFraction > 0) {
		err = multierr.Append(err, fmt.Errorf("cell size and cell height fractions must be positive"))
	}
	if !(s.AgentRadius > 0) {
		err = multierr.Append(err, fmt.Errorf("agent radius must be positive, got %v", s.AgentRadius))
	}
	if !(s.AgentHeight > 0) {
		err = multierr.Append(err, fmt.Errorf("agent height must be positive, got %v", s.AgentHeight))
	}
	if s.WalkableSlopeAngle < 0 || s.WalkableSlopeAngle >= 90 {
		err = multierr.Append(err, fmt.Errorf("walkable slope angle must be in [0, 90), got %v", s.WalkableSlopeAngle))
	}
	if s.WalkableClimb < 0 {
		err = multierr.Append(err, fmt.Errorf("walkable climb must not be negative, got %v", s.WalkableClimb))
	}
	if s.MaxVerticesPerPolygon < 3 {
		err = multierr.Append(err, fmt.Errorf("max vertices per polygon must be at least 3, got %d", s.MaxVerticesPerPolygon))
	}
	if s.MinRegionSize < 0 || s.MergeRegionSize < 0 || s.BorderSize < 0 || s.TileSize < 0 {
		err = multierr.Append(err, fmt.Errorf("region sizes, border size and tile size must not be negative"))
	}
	if _, ok := upPermutation(s.Up); !ok {
		err = multierr.Append(err, fmt.Errorf("unsupported up direction %v, expected one of %v, %v or %v", s.Up, UpY, UpZ, UpX))
	}
	if s.Aabb != nil && !s.Aabb.Valid() {
		err = multierr.Append(err, fmt.Errorf("invalid bounds %v..%v", s.Aabb.Min, s.Aabb.Max))
	}
	for i, v := range s.AreaVolumes {
		if len(v.Vertices) < 3 {
			err = multierr.Append(err, fmt.Errorf("area volume %d needs at least 3 vertices, got %d", i, len(v.Vertices)))
		}
	}
	if err != nil {
		return &recast.BuildError{Stage: recast.StageConfig, Kind: recast.ErrConfig, Err: err}
	}
	return nil
}

// Config derives the voxel configuration for a build covering aabb, which
// must already be in the internal y-up frame.
func (s *Settings) Config(aabb recast.Aabb3d) *recast.Config {
	cs := s.AgentRadius / s.CellSizeFraction
	ch := s.AgentHeight / s.CellHeightFraction
	cfg := &recast.Config{
		TileSize:               s.TileSize,
		Cs:                     cs,
		Ch:                     ch,
		Aabb:                   aabb,
		WalkableSlopeAngle:     s.WalkableSlopeAngle,
		WalkableHeight:         int(math.Ceil(float64(s.AgentHeight / ch))),
		WalkableClimb:          int(math.Floor(float64(s.WalkableClimb / ch))),
		WalkableRadius:         int(math.Ceil(float64(s.AgentRadius / cs))),
		MaxEdgeLen:             int(s.AgentRadius * s.EdgeMaxLenFactor / cs),
		MaxSimplificationError: s.MaxSimplificationError,
		MinRegionArea:          s.MinRegionSize * s.MinRegionSize,
		MergeRegionArea:        s.MergeRegionSize * s.MergeRegionSize,
		MaxVerticesPerPolygon:  s.MaxVerticesPerPolygon,
		ContourFlags:           s.ContourFlags,
		DetailSampleMaxError:   ch * s.DetailSampleMaxError,
	}
	if s.DetailSampleDist >= 0.9 {
		cfg.DetailSampleDist = cs * s.DetailSampleDist
	}
	switch {
	case s.BorderSize > 0:
		cfg.BorderSize = s.BorderSize
	case s.Tiling:
		cfg.BorderSize = cfg.WalkableRadius + 3
	}
	if cfg.BorderSize > 0 {
		pad := float32(cfg.BorderSize) * cs
		cfg.Aabb.Min[0] -= pad
		cfg.Aabb.Min[2] -= pad
		cfg.Aabb.Max[0] += pad
		cfg.Aabb.Max[2] += pad
	}
	cfg.Width, cfg.Height = recast.CalcGridSize(cfg.Aabb, cs)
	return cfg
}

// ReadSettingsYAML decodes settings from r on top of DefaultSettings.
// Unknown keys are an error.
func ReadSettingsYAML(r io.Reader) (Settings, error) {
	s := DefaultSettings()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// LoadSettingsYAML reads settings from a YAML file.
func LoadSettingsYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettings(), err
	}
	s, err := ReadSettingsYAML(bytes.NewReader(data))
	if err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
