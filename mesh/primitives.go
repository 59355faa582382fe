package mesh

import (
	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/recast"
)

// cuboidFaces lists (normal, u, v) per face with u x v = normal, so every
// face winds counter-clockwise seen from outside.
var cuboidFaces = [6][3]common.Vec3{
	{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {0, 0, 1}, {1, 0, 0}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {0, 1, 0}, {1, 0, 0}},
}

func addQuad(mesh *recast.TriMesh, center, u, v common.Vec3) {
	base := uint32(len(mesh.Vertices))
	mesh.Vertices = append(mesh.Vertices,
		center.Sub(u).Sub(v),
		center.Add(u).Sub(v),
		center.Add(u).Add(v),
		center.Sub(u).Add(v),
	)
	mesh.Indices = append(mesh.Indices,
		[3]uint32{base, base + 1, base + 2},
		[3]uint32{base, base + 2, base + 3},
	)
}

func scale(a, b common.Vec3) common.Vec3 {
	return common.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Cuboid returns a closed box with the given edge lengths centered on the origin.
func Cuboid(size common.Vec3) *recast.TriMesh {
	half := size.Mul(0.5)
	mesh := &recast.TriMesh{}
	for _, f := range cuboidFaces {
		addQuad(mesh, scale(f[0], half), scale(f[1], half), scale(f[2], half))
	}
	return mesh
}

// Plane returns an upward facing quad on y = 0 centered on the origin.
// size is the extent along x and z.
func Plane(size common.Vec2) *recast.TriMesh {
	mesh := &recast.TriMesh{}
	addQuad(mesh, common.Vec3{}, common.Vec3{0, 0, size[1] / 2}, common.Vec3{size[0] / 2, 0, 0})
	return mesh
}
