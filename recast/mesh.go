package recast

import (
	"math"

	"github.com/gorustyt/gorerecast/common"
)

// AreaType is the area id stored on triangles, spans and polygons.
type AreaType uint8

const (
	/// Represents the null area.
	/// When a data element is given this value it is considered to no longer be
	/// assigned to a usable area.  (E.g. It is un-walkable.)
	RC_NULL_AREA AreaType = 0

	/// The default area id used to indicate a walkable polygon.
	/// This is also the maximum allowed area id, and the only non-null area id
	/// recognized by some steps in the build process.
	RC_WALKABLE_AREA AreaType = 63
)

// Walkable reports whether the area is not RC_NULL_AREA.
func (a AreaType) Walkable() bool {
	return a != RC_NULL_AREA
}

// TriMesh is an indexed triangle soup with one area id per triangle.
type TriMesh struct {
	Vertices  []common.Vec3 `json:"vertices"`
	Indices   [][3]uint32   `json:"indices"`
	AreaTypes []AreaType    `json:"area_types"`
}

// Extend appends other to m, offsetting its indices.
func (m *TriMesh) Extend(other *TriMesh) {
	if other == nil {
		return
	}
	m.normalizeAreas()
	offset := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, other.Vertices...)
	for i, tri := range other.Indices {
		m.Indices = append(m.Indices, [3]uint32{tri[0] + offset, tri[1] + offset, tri[2] + offset})
		area := RC_NULL_AREA
		if i < len(other.AreaTypes) {
			area = other.AreaTypes[i]
		}
		m.AreaTypes = append(m.AreaTypes, area)
	}
}

// normalizeAreas pads AreaTypes with RC_NULL_AREA up to one entry per triangle.
func (m *TriMesh) normalizeAreas() {
	for len(m.AreaTypes) < len(m.Indices) {
		m.AreaTypes = append(m.AreaTypes, RC_NULL_AREA)
	}
	m.AreaTypes = m.AreaTypes[:len(m.Indices)]
}

// Validate checks that every index refers to an existing vertex and every
// vertex is finite.
func (m *TriMesh) Validate() error {
	n := uint32(len(m.Vertices))
	for i, tri := range m.Indices {
		for _, idx := range tri {
			if idx >= n {
				return newError(StageIngest, ErrInvalidInput, "triangle %d references vertex %d, mesh has %d vertices", i, idx, n)
			}
		}
	}
	for i, v := range m.Vertices {
		if !common.IsFinite(v[0]) || !common.IsFinite(v[1]) || !common.IsFinite(v[2]) {
			return newError(StageIngest, ErrInvalidInput, "vertex %d is not finite", i)
		}
	}
	return nil
}

// ComputeAabb returns the bounds of the referenced vertices. ok is false
// when the mesh has no triangles.
func (m *TriMesh) ComputeAabb() (aabb Aabb3d, ok bool) {
	if len(m.Indices) == 0 {
		return Aabb3d{}, false
	}
	first := true
	for _, tri := range m.Indices {
		for _, idx := range tri {
			v := m.Vertices[idx]
			if first {
				aabb.Min, aabb.Max = v, v
				first = false
				continue
			}
			common.Vmin(aabb.Min[:], v[:])
			common.Vmax(aabb.Max[:], v[:])
		}
	}
	return aabb, true
}

func calcTriNormal(v0, v1, v2 common.Vec3) common.Vec3 {
	return v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()
}

// walkableSlopeEpsilon makes the slope test inclusive despite float rounding
// of the face normal.
const walkableSlopeEpsilon = 1e-6

// MarkWalkableTriangles sets RC_WALKABLE_AREA on every triangle whose slope
// is at most walkableSlopeAngle degrees from +Y. Other triangles keep their
// current area id.
func (m *TriMesh) MarkWalkableTriangles(walkableSlopeAngle float32) {
	m.normalizeAreas()
	walkableThr := float32(math.Cos(float64(walkableSlopeAngle)/180.0*math.Pi)) - walkableSlopeEpsilon
	for i, tri := range m.Indices {
		norm := calcTriNormal(m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]])
		if norm[1] >= walkableThr {
			m.AreaTypes[i] = RC_WALKABLE_AREA
		}
	}
}

// ClearUnwalkableTriangles sets RC_NULL_AREA on every triangle steeper than
// walkableSlopeAngle degrees.
func (m *TriMesh) ClearUnwalkableTriangles(walkableSlopeAngle float32) {
	m.normalizeAreas()
	walkableLimitY := float32(math.Cos(float64(walkableSlopeAngle)/180.0*math.Pi)) - walkableSlopeEpsilon
	for i, tri := range m.Indices {
		norm := calcTriNormal(m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]])
		if norm[1] < walkableLimitY {
			m.AreaTypes[i] = RC_NULL_AREA
		}
	}
}

// Aabb3d is an axis aligned box. Min <= Max componentwise.
type Aabb3d struct {
	Min common.Vec3 `json:"min" yaml:"min"`
	Max common.Vec3 `json:"max" yaml:"max"`
}

// NewAabb3d builds a box from its center and half extents.
func NewAabb3d(center, halfSize common.Vec3) Aabb3d {
	return Aabb3d{Min: center.Sub(halfSize), Max: center.Add(halfSize)}
}

func (a Aabb3d) Size() common.Vec3 {
	return a.Max.Sub(a.Min)
}

func (a Aabb3d) Center() common.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// Valid reports whether every component is finite and Min <= Max.
func (a Aabb3d) Valid() bool {
	for i := 0; i < 3; i++ {
		if !common.IsFinite(a.Min[i]) || !common.IsFinite(a.Max[i]) || a.Min[i] > a.Max[i] {
			return false
		}
	}
	return true
}
