package debug_utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/common/rw"
	"github.com/gorustyt/gorerecast/recast"
)

var (
	ErrBadMagic   = errors.New("bad magic")
	ErrBadVersion = errors.New("bad version")
)

// upAxis returns the index of the non-zero component of up, or 1.
func upAxis(up common.Vec3) int {
	for i, v := range up {
		if v != 0 {
			return i
		}
	}
	return 1
}

// DumpPolyMeshToObj writes the polygons of pmesh, fanned into triangles, as a
// Wavefront OBJ. up names the axis the mesh was generated for; the cell
// height applies along it. Vertices are lifted slightly so the dump draws
// above the source geometry.
func DumpPolyMeshToObj(w io.Writer, pmesh *recast.PolygonNavmesh, up common.Vec3) error {
	if pmesh == nil {
		return errors.New("DumpPolyMeshToObj: nil mesh")
	}
	bw := bufio.NewWriter(w)
	nvp := pmesh.MaxVerticesPerPolygon
	axis := upAxis(up)
	orig := pmesh.Aabb.Min

	bw.WriteString("# Recast Navmesh\n")
	bw.WriteString("o NavMesh\n")
	bw.WriteString("\n")

	for _, v := range pmesh.Vertices {
		var p common.Vec3
		for i := 0; i < 3; i++ {
			if i == axis {
				p[i] = orig[i] + float32(v[i]+1)*pmesh.CellHeight + 0.1
			} else {
				p[i] = orig[i] + float32(v[i])*pmesh.CellSize
			}
		}
		fmt.Fprintf(bw, "v %f %f %f\n", p[0], p[1], p[2])
	}

	bw.WriteString("\n")

	for i := 0; i < pmesh.PolygonCount(); i++ {
		p := pmesh.Polygon(i)
		for j := 2; j < nvp; j++ {
			if p[j] == recast.RC_MESH_NULL_IDX {
				break
			}
			fmt.Fprintf(bw, "f %d %d %d\n", int(p[0])+1, int(p[j-1])+1, int(p[j])+1)
		}
	}
	return bw.Flush()
}

// DumpDetailMeshToObj writes every detail triangle as a Wavefront OBJ.
func DumpDetailMeshToObj(w io.Writer, dmesh *recast.DetailNavmesh) error {
	if dmesh == nil {
		return errors.New("DumpDetailMeshToObj: nil mesh")
	}
	bw := bufio.NewWriter(w)
	bw.WriteString("# Recast Navmesh\n")
	bw.WriteString("o NavMesh\n")
	bw.WriteString("\n")

	for _, v := range dmesh.Vertices {
		fmt.Fprintf(bw, "v %f %f %f\n", v[0], v[1], v[2])
	}

	bw.WriteString("\n")

	for _, m := range dmesh.Meshes {
		bverts := int(m.BaseVertexIndex)
		for _, t := range dmesh.Triangles[m.BaseTriangleIndex : m.BaseTriangleIndex+m.TriangleCount] {
			fmt.Fprintf(bw, "f %d %d %d\n", bverts+int(t[0])+1, bverts+int(t[1])+1, bverts+int(t[2])+1)
		}
	}
	return bw.Flush()
}

const CSET_MAGIC = ('c' << 24) | ('s' << 16) | ('e' << 8) | 't'

const CSET_VERSION = 3

func writeInts(w *rw.ReaderWriter, vs []int) {
	w.WriteLen(len(vs))
	for _, v := range vs {
		w.WriteInt64(int64(v))
	}
}

func readInts(r *rw.ReaderWriter) []int {
	n := r.ReadLen(1)
	if n == 0 {
		return nil
	}
	vs := make([]int, n)
	for i := range vs {
		vs[i] = int(r.ReadInt64())
	}
	return vs
}

// DumpContourSet serializes cset for offline inspection.
func DumpContourSet(cset *recast.ContourSet) []byte {
	w := rw.NewWriter()
	w.WriteUint64(CSET_MAGIC)
	w.WriteUint64(CSET_VERSION)
	w.WriteLen(len(cset.Contours))
	w.WriteFloat32s(cset.Aabb.Min[:])
	w.WriteFloat32s(cset.Aabb.Max[:])

	w.WriteFloat32(cset.Cs)
	w.WriteFloat32(cset.Ch)

	w.WriteInt64(int64(cset.Width))
	w.WriteInt64(int64(cset.Height))
	w.WriteInt64(int64(cset.BorderSize))
	w.WriteFloat32(cset.MaxError)
	for _, cont := range cset.Contours {
		w.WriteUint16(cont.Region)
		w.WriteUint8(uint8(cont.Area))
		writeInts(w, cont.Vertices)
		writeInts(w, cont.RawVertices)
	}
	return w.GetWriteBytes()
}

// ReadContourSet decodes the output of DumpContourSet.
func ReadContourSet(data []byte) (*recast.ContourSet, error) {
	r := rw.NewReader(data)
	if magic := r.ReadUint64(); r.Err() == nil && magic != CSET_MAGIC {
		return nil, fmt.Errorf("ReadContourSet: %w", ErrBadMagic)
	}
	if version := r.ReadUint64(); r.Err() == nil && version != CSET_VERSION {
		return nil, fmt.Errorf("ReadContourSet: %w %d", ErrBadVersion, version)
	}

	cset := &recast.ContourSet{}
	n := r.ReadLen(1)
	r.ReadFloat32s(cset.Aabb.Min[:])
	r.ReadFloat32s(cset.Aabb.Max[:])
	cset.Cs = r.ReadFloat32()
	cset.Ch = r.ReadFloat32()
	cset.Width = int(r.ReadInt64())
	cset.Height = int(r.ReadInt64())
	cset.BorderSize = int(r.ReadInt64())
	cset.MaxError = r.ReadFloat32()
	if n > 0 {
		cset.Contours = make([]*recast.Contour, n)
		for i := range cset.Contours {
			cont := &recast.Contour{}
			cont.Region = r.ReadUint16()
			cont.Area = recast.AreaType(r.ReadUint8())
			cont.Vertices = readInts(r)
			cont.RawVertices = readInts(r)
			cset.Contours[i] = cont
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("ReadContourSet: %w", err)
	}
	return cset, nil
}
