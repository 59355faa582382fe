package debug_utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/recast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadPolyMesh() *recast.PolygonNavmesh {
	null := uint16(recast.RC_MESH_NULL_IDX)
	return &recast.PolygonNavmesh{
		Vertices:              [][3]uint16{{0, 0, 0}, {0, 0, 4}, {4, 0, 4}, {4, 0, 0}},
		Polygons:              []uint16{0, 1, 2, 3, null, null},
		PolygonNeighbors:      []uint16{null, null, null, null, null, null},
		Regions:               []uint16{1},
		Flags:                 []uint16{0},
		Areas:                 []recast.AreaType{recast.RC_WALKABLE_AREA},
		MaxVerticesPerPolygon: 6,
		Aabb:                  recast.Aabb3d{Min: common.Vec3{10, 0, 20}, Max: common.Vec3{12, 1, 22}},
		CellSize:              0.5,
		CellHeight:            0.25,
	}
}

func TestDumpPolyMeshToObj(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DumpPolyMeshToObj(&buf, quadPolyMesh(), common.Vec3{0, 1, 0}))
	out := buf.String()

	assert.Contains(t, out, "o NavMesh\n")
	assert.Contains(t, out, "v 10.000000 0.350000 20.000000\n")
	assert.Contains(t, out, "v 12.000000 0.350000 22.000000\n")
	assert.Contains(t, out, "f 1 2 3\nf 1 3 4\n")
	assert.Equal(t, 2, strings.Count(out, "\nf "))

	assert.Error(t, DumpPolyMeshToObj(&buf, nil, common.Vec3{0, 1, 0}))
}

func TestDumpPolyMeshToObjZUp(t *testing.T) {
	pmesh := quadPolyMesh()
	pmesh.Vertices = [][3]uint16{{0, 0, 0}, {4, 0, 0}, {4, 4, 0}, {0, 4, 0}}
	pmesh.Aabb = recast.Aabb3d{Min: common.Vec3{20, 10, 0}, Max: common.Vec3{22, 12, 1}}

	var buf bytes.Buffer
	require.NoError(t, DumpPolyMeshToObj(&buf, pmesh, common.Vec3{0, 0, 1}))
	assert.Contains(t, buf.String(), "v 22.000000 12.000000 0.350000\n")
}

func TestDumpDetailMeshToObj(t *testing.T) {
	dmesh := &recast.DetailNavmesh{
		Meshes: []recast.DetailSubMesh{
			{BaseVertexIndex: 0, VertexCount: 3, BaseTriangleIndex: 0, TriangleCount: 1},
			{BaseVertexIndex: 3, VertexCount: 3, BaseTriangleIndex: 1, TriangleCount: 1},
		},
		Vertices:      []common.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}, {2, 0, 0}, {3, 0, 0}, {2, 0, 1}},
		Triangles:     [][3]uint8{{0, 2, 1}, {0, 2, 1}},
		TriangleFlags: []uint8{0, 0},
	}
	var buf bytes.Buffer
	require.NoError(t, DumpDetailMeshToObj(&buf, dmesh))
	out := buf.String()
	assert.Equal(t, 6, strings.Count(out, "\nv "))
	assert.Contains(t, out, "f 1 3 2\nf 4 6 5\n")
}

func TestContourSetRoundTrip(t *testing.T) {
	cset := &recast.ContourSet{
		Contours: []*recast.Contour{
			{
				Vertices:    []int{0, 1, 0, 0, 4, 1, 0, 0x10000, 4, 1, 4, 0},
				RawVertices: []int{0, 1, 0, 0, 2, 1, 0, 0, 4, 1, 0, 0, 4, 1, 4, 0},
				Region:      3,
				Area:        recast.RC_WALKABLE_AREA,
			},
			{Region: 4, Area: 7},
		},
		Aabb:       recast.Aabb3d{Min: common.Vec3{-1, -2, -3}, Max: common.Vec3{1, 2, 3}},
		Cs:         0.3,
		Ch:         0.2,
		Width:      7,
		Height:     20,
		BorderSize: 2,
		MaxError:   1.3,
	}

	got, err := ReadContourSet(DumpContourSet(cset))
	require.NoError(t, err)
	assert.Equal(t, cset, got)

	_, err = ReadContourSet([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrBadMagic)

	data := DumpContourSet(cset)
	_, err = ReadContourSet(data[:len(data)-3])
	assert.Error(t, err)
}
