package navmesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/recast"
)

// AffectorID identifies an affector for Settings.Filter.
type AffectorID uint64

// Transform places an affector in the world: scale, then rotate, then translate.
// A zero Rotation or Scale counts as the identity so the zero Transform is usable.
type Transform struct {
	Translation common.Vec3 `json:"translation" yaml:"translation"`
	Rotation    common.Quat `json:"rotation" yaml:"rotation"`
	Scale       common.Vec3 `json:"scale" yaml:"scale"`
}

func IdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent(), Scale: common.Vec3{1, 1, 1}}
}

// Matrix returns the affine matrix of t.
func (t Transform) Matrix() mgl32.Mat4 {
	rot := t.Rotation
	if rot == (common.Quat{}) {
		rot = mgl32.QuatIdent()
	}
	scale := t.Scale
	if scale == (common.Vec3{}) {
		scale = common.Vec3{1, 1, 1}
	}
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(rot.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

// Affector is a piece of geometry that contributes to navmesh generation.
type Affector struct {
	ID        AffectorID
	Transform Transform
	Mesh      *recast.TriMesh
}

// mergeAffectors bakes every transform into a single world space mesh.
// The source meshes are not modified.
func mergeAffectors(affectors []Affector) *recast.TriMesh {
	merged := &recast.TriMesh{}
	for _, a := range affectors {
		if a.Mesh == nil {
			continue
		}
		m := a.Transform.Matrix()
		moved := &recast.TriMesh{
			Vertices:  make([]common.Vec3, len(a.Mesh.Vertices)),
			Indices:   a.Mesh.Indices,
			AreaTypes: a.Mesh.AreaTypes,
		}
		for i, v := range a.Mesh.Vertices {
			moved.Vertices[i] = mgl32.TransformCoordinate(v, m)
		}
		merged.Extend(moved)
	}
	return merged
}
