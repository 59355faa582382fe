package recast

import (
	"fmt"

	"go.uber.org/multierr"
)

// ContourFlags selects which contour edges are split by Config.MaxEdgeLen.
type ContourFlags int

const (
	RC_CONTOUR_TESS_WALL_EDGES ContourFlags = 0x01 ///< Tessellate solid (impassable) edges during contour simplification.
	RC_CONTOUR_TESS_AREA_EDGES ContourFlags = 0x02 ///< Tessellate edges between areas during contour simplification.
)

// / Specifies a configuration to use when performing Recast builds.
// / @ingroup recast
type Config struct {
	/// The width of the field along the x-axis. [Limit: >= 0] [Units: vx]
	Width int

	/// The height of the field along the z-axis. [Limit: >= 0] [Units: vx]
	Height int

	/// The width/height size of tile's on the xz-plane. [Limit: >= 0] [Units: vx]
	TileSize int

	/// The size of the non-navigable border around the heightfield. [Limit: >=0] [Units: vx]
	BorderSize int

	/// The xz-plane cell size to use for fields. [Limit: > 0] [Units: wu]
	Cs float32

	/// The y-axis cell size to use for fields. [Limit: > 0] [Units: wu]
	Ch float32

	/// The bounds of the field. [Units: wu]
	Aabb Aabb3d

	/// The maximum slope that is considered walkable. [Limits: 0 <= value < 90] [Units: Degrees]
	WalkableSlopeAngle float32

	/// Minimum floor to 'ceiling' height that will still allow the floor area to
	/// be considered walkable. [Limit: >= 3] [Units: vx]
	WalkableHeight int

	/// Maximum ledge height that is considered to still be traversable. [Limit: >=0] [Units: vx]
	WalkableClimb int

	/// The distance to erode/shrink the walkable area of the heightfield away from
	/// obstructions.  [Limit: >=0] [Units: vx]
	WalkableRadius int

	/// The maximum allowed length for contour edges along the border of the mesh. [Limit: >=0] [Units: vx]
	MaxEdgeLen int

	/// The maximum distance a simplified contour's border edges should deviate
	/// the original raw contour. [Limit: >=0] [Units: vx]
	MaxSimplificationError float32

	/// The minimum number of cells allowed to form isolated island areas. [Limit: >=0] [Units: vx]
	MinRegionArea int

	/// Any regions with a span count smaller than this value will, if possible,
	/// be merged with larger regions. [Limit: >=0] [Units: vx]
	MergeRegionArea int

	/// The maximum number of vertices allowed for polygons generated during the
	/// contour to polygon conversion process. [Limit: >= 3]
	MaxVerticesPerPolygon int

	ContourFlags ContourFlags

	/// Sets the sampling distance to use when generating the detail mesh.
	/// (For height detail only.) [Limits: 0 or >= 0.9] [Units: wu]
	DetailSampleDist float32

	/// The maximum distance the detail mesh surface should deviate from heightfield
	/// data. (For height detail only.) [Limit: >=0] [Units: wu]
	DetailSampleMaxError float32
}

// Validate reports every out of range field at once.
func (c *Config) Validate() error {
	var err error
	if !(c.Cs > 0) {
		err = multierr.Append(err, fmt.Errorf("cell size must be positive, got %v", c.Cs))
	}
	if !(c.Ch > 0) {
		err = multierr.Append(err, fmt.Errorf("cell height must be positive, got %v", c.Ch))
	}
	if !c.Aabb.Valid() {
		err = multierr.Append(err, fmt.Errorf("invalid bounds %v..%v", c.Aabb.Min, c.Aabb.Max))
	}
	if c.MaxVerticesPerPolygon < 3 {
		err = multierr.Append(err, fmt.Errorf("max vertices per polygon must be at least 3, got %d", c.MaxVerticesPerPolygon))
	}
	if c.MaxVerticesPerPolygon > RC_MAX_VERTS_PER_POLY {
		err = multierr.Append(err, fmt.Errorf("max vertices per polygon must be at most %d, got %d", RC_MAX_VERTS_PER_POLY, c.MaxVerticesPerPolygon))
	}
	if c.WalkableHeight < 0 || c.WalkableClimb < 0 || c.WalkableRadius < 0 {
		err = multierr.Append(err, fmt.Errorf("walkable height, climb and radius must not be negative"))
	}
	if c.MinRegionArea < 0 || c.MergeRegionArea < 0 {
		err = multierr.Append(err, fmt.Errorf("region areas must not be negative"))
	}
	if c.MaxEdgeLen < 0 || c.MaxSimplificationError < 0 || c.BorderSize < 0 {
		err = multierr.Append(err, fmt.Errorf("edge length, simplification error and border size must not be negative"))
	}
	if c.DetailSampleDist < 0 || c.DetailSampleMaxError < 0 {
		err = multierr.Append(err, fmt.Errorf("detail sample distance and error must not be negative"))
	}
	if err != nil {
		return &BuildError{Stage: StageConfig, Kind: ErrConfig, Err: err}
	}
	return nil
}

// CalcGridSize returns the number of cells along x and z covering aabb.
func CalcGridSize(aabb Aabb3d, cellSize float32) (sizeX, sizeZ int) {
	sizeX = int((aabb.Max[0]-aabb.Min[0])/cellSize + 0.5)
	sizeZ = int((aabb.Max[2]-aabb.Min[2])/cellSize + 0.5)
	return
}
