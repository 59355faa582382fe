package recast

import (
	"testing"

	"github.com/gorustyt/gorerecast/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

// planeMesh returns an upward facing quad at height y.
func planeMesh(minX, minZ, maxX, maxZ, y float32) *TriMesh {
	return &TriMesh{
		Vertices: []common.Vec3{{minX, y, minZ}, {maxX, y, minZ}, {maxX, y, maxZ}, {minX, y, maxZ}},
		Indices:  [][3]uint32{{0, 2, 1}, {0, 3, 2}},
	}
}

func testConfig(aabb Aabb3d) *Config {
	cfg := &Config{
		Cs:                     0.3,
		Ch:                     0.2,
		Aabb:                   aabb,
		WalkableSlopeAngle:     45,
		WalkableHeight:         10,
		WalkableClimb:          4,
		WalkableRadius:         2,
		MaxEdgeLen:             40,
		MaxSimplificationError: 1.3,
		MinRegionArea:          8,
		MergeRegionArea:        20,
		MaxVerticesPerPolygon:  6,
		ContourFlags:           RC_CONTOUR_TESS_WALL_EDGES,
		DetailSampleDist:       1.8,
		DetailSampleMaxError:   0.2,
	}
	cfg.Width, cfg.Height = CalcGridSize(aabb, cfg.Cs)
	return cfg
}

func buildCompact(t *testing.T, cfg *Config, mesh *TriMesh) *CompactHeightfield {
	t.Helper()
	require.NoError(t, cfg.Validate())
	mesh.MarkWalkableTriangles(cfg.WalkableSlopeAngle)

	hf, err := NewHeightfield(cfg.Aabb, cfg.Cs, cfg.Ch)
	require.NoError(t, err)
	require.NoError(t, hf.RasterizeTriangles(mesh, cfg.WalkableClimb))

	hf.FilterLowHangingWalkableObstacles(cfg.WalkableClimb)
	hf.FilterLedgeSpans(cfg.WalkableHeight, cfg.WalkableClimb)
	hf.FilterWalkableLowHeightSpans(cfg.WalkableHeight)

	chf, err := hf.IntoCompact(cfg.WalkableHeight, cfg.WalkableClimb)
	require.NoError(t, err)
	if cfg.WalkableRadius > 0 {
		chf.ErodeWalkableArea(cfg.WalkableRadius)
	}
	return chf
}

func buildPolyMesh(t *testing.T, cfg *Config, chf *CompactHeightfield) *PolygonNavmesh {
	t.Helper()
	require.NoError(t, chf.BuildRegions(cfg.BorderSize, cfg.MinRegionArea, cfg.MergeRegionArea))
	cset := chf.BuildContours(cfg.MaxSimplificationError, cfg.MaxEdgeLen, cfg.ContourFlags)
	require.NotEmpty(t, cset.Contours)
	pmesh, err := cset.IntoPolygonMesh(cfg.MaxVerticesPerPolygon)
	require.NoError(t, err)
	return pmesh
}

// polygonArea returns the xz area of polygon i in cells.
func polygonArea(m *PolygonNavmesh, i int) float64 {
	p := m.Polygon(i)
	n := m.PolygonVertexCount(i)
	area := 0
	for a, b := 0, n-1; a < n; b, a = a, a+1 {
		va := m.Vertices[p[a]]
		vb := m.Vertices[p[b]]
		area += int(va[0])*int(vb[2]) - int(vb[0])*int(va[2])
	}
	return float64(common.Abs(area)) / 2
}

// polygonContains reports whether (x, z), in cells, lies inside polygon i.
func polygonContains(m *PolygonNavmesh, i int, x, z float64) bool {
	p := m.Polygon(i)
	n := m.PolygonVertexCount(i)
	inside := false
	for a, b := 0, n-1; a < n; b, a = a, a+1 {
		ax, az := float64(m.Vertices[p[a]][0]), float64(m.Vertices[p[a]][2])
		bx, bz := float64(m.Vertices[p[b]][0]), float64(m.Vertices[p[b]][2])
		if (az > z) != (bz > z) && x < (bx-ax)*(z-az)/(bz-az)+ax {
			inside = !inside
		}
	}
	return inside
}

func walkableSpans(chf *CompactHeightfield) []bool {
	res := make([]bool, chf.SpanCount())
	for i, a := range chf.Areas {
		res[i] = a != RC_NULL_AREA
	}
	return res
}

func TestConfigValidate(t *testing.T) {
	err := (&Config{}).Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, StageConfig, StageOf(err))

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.GreaterOrEqual(t, len(multierr.Errors(be.Err)), 3, "every problem is reported")

	aabb := NewAabb3d(common.Vec3{}, common.Vec3{5, 1, 5})
	assert.NoError(t, testConfig(aabb).Validate())

	cfg := testConfig(aabb)
	cfg.MaxVerticesPerPolygon = 2
	assert.ErrorIs(t, cfg.Validate(), ErrConfig)
}

func TestIntoCompactEmpty(t *testing.T) {
	hf := newTestHeightfield(t)
	_, err := hf.IntoCompact(2, 1)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, StageCompact, StageOf(err))
}

func TestIntoCompactConnections(t *testing.T) {
	aabb := Aabb3d{Min: common.Vec3{0, -1, 0}, Max: common.Vec3{3, 1, 3}}
	cfg := testConfig(aabb)
	cfg.WalkableRadius = 0
	cfg.Cs = 1
	chf := buildCompact(t, cfg, planeMesh(0, 0, 3, 3, 0))

	// The ledge filter removes the outer ring, leaving the center column.
	require.Equal(t, 1, chf.SpanCount())
	center := chf.Cell(1, 1)
	require.Equal(t, uint8(1), center.Count)
	for dir := 0; dir < 4; dir++ {
		assert.Equal(t, RC_NOT_CONNECTED, chf.Spans[center.Index].GetCon(dir))
	}
}

func TestErodeWalkableAreaIsMonotonic(t *testing.T) {
	aabb := Aabb3d{Min: common.Vec3{0, -1, 0}, Max: common.Vec3{6, 1, 6}}
	cfg := testConfig(aabb)
	cfg.WalkableRadius = 0
	base := buildCompact(t, cfg, planeMesh(0, 0, 6, 6, 0))
	before := walkableSpans(base)

	var previous []bool
	for radius := 1; radius <= 4; radius++ {
		chf := buildCompact(t, cfg, planeMesh(0, 0, 6, 6, 0))
		chf.ErodeWalkableArea(radius)
		now := walkableSpans(chf)
		for i := range now {
			if now[i] {
				assert.True(t, before[i], "erosion never creates walkable spans")
				if previous != nil {
					assert.True(t, previous[i], "a larger radius erodes at least as much")
				}
			}
		}
		previous = now
	}

	count := 0
	for _, w := range previous {
		if w {
			count++
		}
	}
	assert.Greater(t, count, 0)
	assert.Less(t, count, len(before))
}

func TestBuildDistanceField(t *testing.T) {
	aabb := Aabb3d{Min: common.Vec3{0, -1, 0}, Max: common.Vec3{6, 1, 6}}
	cfg := testConfig(aabb)
	chf := buildCompact(t, cfg, planeMesh(0, 0, 6, 6, 0))
	chf.BuildDistanceField()
	require.Len(t, chf.Dist, chf.SpanCount())
	assert.Greater(t, chf.MaxDistance, uint16(0))
	for _, d := range chf.Dist {
		assert.LessOrEqual(t, d, chf.MaxDistance)
	}
}

func TestMarkAreas(t *testing.T) {
	aabb := Aabb3d{Min: common.Vec3{0, -1, 0}, Max: common.Vec3{6, 1, 6}}
	cfg := testConfig(aabb)
	cfg.WalkableRadius = 0
	chf := buildCompact(t, cfg, planeMesh(0, 0, 6, 6, 0))

	square := func(minX, minZ, maxX, maxZ float32, area AreaType) ConvexVolume {
		return ConvexVolume{
			Vertices:  []common.Vec3{{minX, 0, minZ}, {maxX, 0, minZ}, {maxX, 0, maxZ}, {minX, 0, maxZ}},
			MinHeight: -1,
			MaxHeight: 1,
			Area:      area,
		}
	}
	chf.MarkConvexPolyArea(square(1, 1, 4, 4, 10))
	chf.MarkConvexPolyArea(square(2, 2, 5, 5, 20))

	areaAt := func(x, z int) AreaType {
		cell := chf.Cell(x, z)
		require.Equal(t, uint8(1), cell.Count)
		return chf.Areas[cell.Index]
	}
	// Cells are 0.3 wide; (5, 5) is centered at 1.65, (10, 10) at 3.15.
	assert.Equal(t, AreaType(10), areaAt(5, 5))
	assert.Equal(t, AreaType(20), areaAt(10, 10), "later volumes win")
	assert.Equal(t, RC_WALKABLE_AREA, areaAt(18, 2))

	chf.MarkBoxArea(Aabb3d{Min: common.Vec3{0, -1, 0}, Max: common.Vec3{1, 1, 1}}, 30)
	assert.Equal(t, AreaType(30), areaAt(1, 1))

	chf.MarkCylinderArea(common.Vec3{4.5, -1, 4.5}, 0.5, 2, 40)
	assert.Equal(t, AreaType(40), areaAt(15, 15))
}

func TestBuildRegionsRemovesSmallIslands(t *testing.T) {
	aabb := Aabb3d{Min: common.Vec3{0, -1, 0}, Max: common.Vec3{14, 1, 10}}
	cfg := testConfig(aabb)
	cfg.Cs = 0.5
	cfg.WalkableRadius = 0
	cfg.MinRegionArea = 40

	mesh := planeMesh(0, 0, 10, 10, 0)
	mesh.Extend(planeMesh(12, 0, 13.5, 1.5, 0))
	chf := buildCompact(t, cfg, mesh)
	require.NoError(t, chf.BuildRegions(0, cfg.MinRegionArea, cfg.MergeRegionArea))

	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			cell := chf.Cell(x, z)
			for i := int(cell.Index); i < int(cell.Index)+int(cell.Count); i++ {
				if chf.Areas[i] == RC_NULL_AREA {
					continue
				}
				if x >= 24 {
					assert.Zero(t, chf.Spans[i].Reg, "island below the minimum size is dropped")
				} else {
					assert.NotZero(t, chf.Spans[i].Reg)
				}
			}
		}
	}
	assert.Greater(t, chf.MaxRegions, uint16(0))
}

func TestIntoPolygonMeshRejectsSmallPolygons(t *testing.T) {
	_, err := (&ContourSet{}).IntoPolygonMesh(2)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, StagePolyMesh, StageOf(err))
}

func TestPlanePipeline(t *testing.T) {
	aabb := Aabb3d{Min: common.Vec3{0, -1, 0}, Max: common.Vec3{10, 1, 10}}
	cfg := testConfig(aabb)
	chf := buildCompact(t, cfg, planeMesh(0, 0, 10, 10, 0))
	pmesh := buildPolyMesh(t, cfg, chf)

	npolys := pmesh.PolygonCount()
	require.Greater(t, npolys, 0)
	assert.Len(t, pmesh.Regions, npolys)
	assert.Len(t, pmesh.Areas, npolys)
	assert.Len(t, pmesh.Flags, npolys)

	total := 0.0
	for i := 0; i < npolys; i++ {
		nv := pmesh.PolygonVertexCount(i)
		assert.GreaterOrEqual(t, nv, 3)
		assert.LessOrEqual(t, nv, cfg.MaxVerticesPerPolygon)
		assert.Equal(t, RC_WALKABLE_AREA, pmesh.Areas[i])
		for _, v := range pmesh.Polygon(i)[:nv] {
			vert := pmesh.Vertices[v]
			assert.LessOrEqual(t, int(vert[0]), chf.Width)
			assert.LessOrEqual(t, int(vert[2]), chf.Height)
		}
		total += polygonArea(pmesh, i)
	}
	// 33x33 cells minus the ledge ring and two eroded rings.
	assert.InDelta(t, 27*27, total, 27*27*0.15)

	// Adjacency is reciprocal.
	for i := 0; i < npolys; i++ {
		for _, n := range pmesh.Neighbors(i) {
			if n == RC_MESH_NULL_IDX || n&RC_PORTAL_FLAG != 0 {
				continue
			}
			assert.Contains(t, pmesh.Neighbors(int(n)), uint16(i))
		}
	}

	dmesh, err := pmesh.BuildDetail(chf, cfg.DetailSampleDist, cfg.DetailSampleMaxError)
	require.NoError(t, err)
	require.Len(t, dmesh.Meshes, npolys)
	assert.Len(t, dmesh.TriangleFlags, len(dmesh.Triangles))
	for _, sub := range dmesh.Meshes {
		assert.GreaterOrEqual(t, sub.TriangleCount, uint32(1))
		assert.GreaterOrEqual(t, sub.VertexCount, uint32(3))
		for _, tri := range dmesh.Triangles[sub.BaseTriangleIndex : sub.BaseTriangleIndex+sub.TriangleCount] {
			for _, idx := range tri {
				assert.Less(t, uint32(idx), sub.VertexCount)
			}
		}
		for _, v := range dmesh.Vertices[sub.BaseVertexIndex : sub.BaseVertexIndex+sub.VertexCount] {
			assert.InDelta(t, 0, v[1], 3*float64(cfg.Ch))
		}
	}
}

func TestPipelineRespectsHoles(t *testing.T) {
	aabb := Aabb3d{Min: common.Vec3{0, -1, 0}, Max: common.Vec3{12, 1, 12}}
	cfg := testConfig(aabb)
	cfg.Cs = 0.5
	cfg.WalkableRadius = 0
	cfg.Width, cfg.Height = CalcGridSize(aabb, cfg.Cs)

	mesh := planeMesh(0, 0, 12, 5, 0)
	mesh.Extend(planeMesh(0, 7, 12, 12, 0))
	mesh.Extend(planeMesh(0, 5, 5, 7, 0))
	mesh.Extend(planeMesh(7, 5, 12, 7, 0))
	chf := buildCompact(t, cfg, mesh)
	pmesh := buildPolyMesh(t, cfg, chf)

	total := 0.0
	for i := 0; i < pmesh.PolygonCount(); i++ {
		assert.False(t, polygonContains(pmesh, i, 12.5, 12.5), "polygon %d covers the hole", i)
		total += polygonArea(pmesh, i)
	}
	assert.Less(t, total, float64(chf.Width*chf.Height-4))
	assert.Greater(t, total, 300.0)
}

func TestBuildDetailEmptyMesh(t *testing.T) {
	dmesh, err := (&PolygonNavmesh{MaxVerticesPerPolygon: 6}).BuildDetail(nil, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, dmesh.Meshes)
	assert.Empty(t, dmesh.Vertices)
}
