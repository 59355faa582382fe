package navmesh

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/mesh"
	"github.com/gorustyt/gorerecast/recast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	groundID AffectorID = iota + 1
	cubeID
)

// scene2D is a wide ground slab with a cube on it, +Z up.
func scene2D() StaticSource {
	return StaticSource{
		{ID: groundID, Transform: IdentityTransform(), Mesh: mesh.Cuboid(common.Vec3{1000, 1000, 1})},
		{ID: cubeID, Transform: IdentityTransform(), Mesh: mesh.Cuboid(common.Vec3{10, 10, 10})},
	}
}

func scene2DSettings() Settings {
	s := FromAgent2D(5, 2)
	aabb := recast.NewAabb3d(common.Vec3{0, 0, 0}, common.Vec3{100, 100, 5})
	s.Aabb = &aabb
	return s
}

// containsPoint reports whether any polygon covers (a, b), where a and b are
// the first two components of the polygon vertices.
func containsPoint(pmesh *recast.PolygonNavmesh, a, b float64) bool {
	for i := 0; i < pmesh.PolygonCount(); i++ {
		nv := pmesh.PolygonVertexCount(i)
		poly := pmesh.Polygon(i)
		pos, neg := false, false
		for j := 0; j < nv; j++ {
			p := pmesh.Vertices[poly[j]]
			q := pmesh.Vertices[poly[(j+1)%nv]]
			cross := (float64(q[0])-float64(p[0]))*(b-float64(p[1])) - (float64(q[1])-float64(p[1]))*(a-float64(p[0]))
			pos = pos || cross > 0
			neg = neg || cross < 0
		}
		if !(pos && neg) {
			return true
		}
	}
	return false
}

func TestGenerateGroundWithCube(t *testing.T) {
	settings := scene2DSettings()
	withCube, err := Generate(scene2D(), settings)
	require.NoError(t, err)
	ground, err := scene2D().CollectAffectors(context.Background(), []AffectorID{groundID})
	require.NoError(t, err)
	withoutCube, err := Generate(ground, settings)
	require.NoError(t, err)

	assert.NotEqual(t, withCube.Polygon, withoutCube.Polygon)
	assert.Equal(t, settings, withCube.Settings)

	// 80x80 cells of 2.5 units; the cube sits on the center of the grid.
	// Polygon vertices come back in the z-up frame as (z, x, up).
	center := 40.0
	assert.False(t, containsPoint(withCube.Polygon, center, center), "the cube leaves a hole")
	assert.True(t, containsPoint(withoutCube.Polygon, center, center), "no hole without the cube")
	assert.True(t, containsPoint(withCube.Polygon, 20, 20))

	for _, nav := range []*Navmesh{withCube, withoutCube} {
		require.Len(t, nav.Detail.Meshes, nav.Polygon.PolygonCount())
		for _, v := range nav.Detail.Vertices {
			assert.InDelta(t, 0.5, v[2], 1, "detail vertices lie on the ground top in z")
		}
		assert.InDelta(t, -100, nav.Polygon.Aabb.Min[0], 1e-4)
		assert.InDelta(t, -5, nav.Polygon.Aabb.Min[2], 1e-4)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	settings := scene2DSettings()
	a, err := Generate(scene2D(), settings)
	require.NoError(t, err)
	b, err := Generate(scene2D(), settings)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	ab, err := a.MarshalBinary()
	require.NoError(t, err)
	bb, err := b.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, ab, bb)
}

func TestGenerateErrors(t *testing.T) {
	_, err := Generate(nil, DefaultSettings())
	assert.ErrorIs(t, err, recast.ErrEmptyInput)
	assert.Equal(t, recast.StageIngest, recast.StageOf(err))

	bad := DefaultSettings()
	bad.Up = common.Vec3{0, 0, 2}
	_, err = Generate(scene2D(), bad)
	assert.ErrorIs(t, err, recast.ErrConfig)

	broken := []Affector{{Mesh: &recast.TriMesh{Vertices: []common.Vec3{{0, 0, 0}}, Indices: [][3]uint32{{0, 1, 2}}}}}
	_, err = Generate(broken, DefaultSettings())
	assert.ErrorIs(t, err, recast.ErrInvalidInput)

	// Walls only: nothing to stand on.
	wall := []Affector{{Mesh: &recast.TriMesh{
		Vertices: []common.Vec3{{0, 0, 0}, {10, 0, 0}, {10, 10, 0}},
		Indices:  [][3]uint32{{0, 1, 2}},
	}}}
	_, err = Generate(wall, DefaultSettings())
	assert.ErrorIs(t, err, recast.ErrEmptyInput)
}

func TestGenerateUpAxes(t *testing.T) {
	plane := mesh.Plane(common.Vec2{10, 10})
	settings := FromAgent3D(0.6, 2)
	yUp, err := Generate([]Affector{{Mesh: plane}}, settings)
	require.NoError(t, err)

	for _, up := range []common.Vec3{UpZ, UpX} {
		perm, ok := upPermutation(up)
		require.True(t, ok)
		rotated := &recast.TriMesh{Indices: plane.Indices}
		for _, v := range plane.Vertices {
			rotated.Vertices = append(rotated.Vertices, perm.inverse(v))
		}
		s := settings
		s.Up = up
		other, err := Generate([]Affector{{Mesh: rotated}}, s)
		require.NoError(t, err)

		want := cloneNavmesh(t, yUp)
		require.NoError(t, want.Reorient(up))
		assert.Equal(t, want, other, "building in another frame only permutes the output")
	}
}

func cloneNavmesh(t *testing.T, n *Navmesh) *Navmesh {
	t.Helper()
	data, err := n.MarshalBinary()
	require.NoError(t, err)
	out := &Navmesh{}
	require.NoError(t, out.UnmarshalBinary(data))
	return out
}

func TestReorientRoundTrip(t *testing.T) {
	settings := scene2DSettings()
	settings.AreaVolumes = []recast.ConvexVolume{{
		Vertices:  []common.Vec3{{-20, -20, 0}, {20, -20, 0}, {20, 20, 0}},
		MinHeight: -1,
		MaxHeight: 1,
		Area:      7,
	}}
	original, err := Generate(scene2D(), settings)
	require.NoError(t, err)
	nav := cloneNavmesh(t, original)

	require.NoError(t, nav.Reorient(UpY))
	assert.Equal(t, UpY, nav.Settings.Up)
	assert.NotEqual(t, original.Detail.Vertices, nav.Detail.Vertices)
	assert.Equal(t, original.Detail.Vertices[0][2], nav.Detail.Vertices[0][1], "z-up heights move to y")
	assert.Equal(t, common.Vec3{-20, 0, -20}, nav.Settings.AreaVolumes[0].Vertices[0])

	require.NoError(t, nav.Reorient(UpX))
	require.NoError(t, nav.Reorient(UpZ))
	assert.Equal(t, original, nav)
	assert.Equal(t, common.Vec3{-20, -20, 0}, settings.AreaVolumes[0].Vertices[0], "caller settings are untouched")

	assert.ErrorIs(t, nav.Reorient(common.Vec3{1, 1, 1}), recast.ErrConfig)
}

func TestGenerateAreaVolumes(t *testing.T) {
	settings := scene2DSettings()
	settings.AreaVolumes = []recast.ConvexVolume{
		{Vertices: []common.Vec3{{-70, -70, 0}, {-10, -70, 0}, {-10, -10, 0}, {-70, -10, 0}}, MinHeight: -2, MaxHeight: 2, Area: 7},
		{Vertices: []common.Vec3{{-70, -70, 0}, {-40, -70, 0}, {-40, -40, 0}, {-70, -40, 0}}, MinHeight: -2, MaxHeight: 2, Area: 9},
	}
	nav, err := Generate(scene2D(), settings)
	require.NoError(t, err)

	areas := map[recast.AreaType]int{}
	for _, a := range nav.Polygon.Areas {
		areas[a]++
	}
	assert.Greater(t, areas[7], 0)
	assert.Greater(t, areas[9], 0, "later volumes win where they overlap")
	assert.Greater(t, areas[recast.RC_WALKABLE_AREA], 0)
}

func TestGenerateTiled(t *testing.T) {
	settings := scene2DSettings()
	settings.Tiling = true
	nav, err := Generate(scene2D(), settings)
	require.NoError(t, err)
	assert.Equal(t, 5, nav.Polygon.BorderSize)

	portals := 0
	for _, n := range nav.Polygon.PolygonNeighbors {
		if n != recast.RC_MESH_NULL_IDX && n&recast.RC_PORTAL_FLAG != 0 {
			portals++
		}
	}
	assert.Greater(t, portals, 0, "edges on the tile border become portals")
	for _, v := range nav.Polygon.Vertices {
		assert.LessOrEqual(t, int(v[0]), 80)
		assert.LessOrEqual(t, int(v[1]), 80)
	}
}

func TestAffectorTransform(t *testing.T) {
	tri := &recast.TriMesh{
		Vertices: []common.Vec3{{1, 0, 0}, {0, 0, 1}, {0, 0, 0}},
		Indices:  [][3]uint32{{0, 1, 2}},
	}
	affectors := []Affector{
		{Mesh: tri},
		{Transform: Transform{
			Translation: common.Vec3{10, 0, 0},
			Rotation:    mgl32.QuatRotate(mgl32.DegToRad(90), common.Vec3{0, 1, 0}),
			Scale:       common.Vec3{2, 2, 2},
		}, Mesh: tri},
		{Mesh: nil},
	}
	merged := mergeAffectors(affectors)
	require.Len(t, merged.Vertices, 6)
	assert.Equal(t, [][3]uint32{{0, 1, 2}, {3, 4, 5}}, merged.Indices)
	assert.Equal(t, common.Vec3{1, 0, 0}, merged.Vertices[0], "the zero transform is the identity")

	// (1,0,0) scaled to (2,0,0), turned a quarter around +y to (0,0,-2), moved by +10 x.
	assert.InDeltaSlice(t, []float32{10, 0, -2}, merged.Vertices[3][:], 1e-5)
	assert.InDeltaSlice(t, []float32{10, 0, 0}, merged.Vertices[5][:], 1e-5)
	assert.Equal(t, common.Vec3{1, 0, 0}, tri.Vertices[0], "sources are not modified")
}
