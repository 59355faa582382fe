package navmesh

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/common/rw"
	"github.com/gorustyt/gorerecast/recast"
)

// MarshalBinary encodes n in the compact varint format used for golden files.
// Empty sequences decode as nil, except Settings.Filter where nil and empty
// differ.
func (n *Navmesh) MarshalBinary() ([]byte, error) {
	w := rw.NewWriter()
	writePolygon(w, n.Polygon)
	writeDetail(w, n.Detail)
	writeSettings(w, &n.Settings)
	return w.GetWriteBytes(), nil
}

func (n *Navmesh) UnmarshalBinary(data []byte) error {
	r := rw.NewReader(data)
	out := Navmesh{
		Polygon: readPolygon(r),
		Detail:  readDetail(r),
	}
	readSettings(r, &out.Settings)
	if err := r.Err(); err != nil {
		return fmt.Errorf("decode navmesh: %w", err)
	}
	if r.Remaining() != 0 {
		return fmt.Errorf("decode navmesh: %d trailing bytes", r.Remaining())
	}
	*n = out
	return nil
}

func writeVec3(w *rw.ReaderWriter, v common.Vec3) {
	w.WriteFloat32s(v[:])
}

func readVec3(r *rw.ReaderWriter) (v common.Vec3) {
	r.ReadFloat32s(v[:])
	return
}

func writeAabb(w *rw.ReaderWriter, a recast.Aabb3d) {
	writeVec3(w, a.Min)
	writeVec3(w, a.Max)
}

func readAabb(r *rw.ReaderWriter) recast.Aabb3d {
	return recast.Aabb3d{Min: readVec3(r), Max: readVec3(r)}
}

func writeVec3s(w *rw.ReaderWriter, vs []common.Vec3) {
	w.WriteLen(len(vs))
	for _, v := range vs {
		writeVec3(w, v)
	}
}

func readVec3s(r *rw.ReaderWriter) []common.Vec3 {
	n := r.ReadLen(12)
	if n == 0 {
		return nil
	}
	vs := make([]common.Vec3, n)
	for i := range vs {
		vs[i] = readVec3(r)
	}
	return vs
}

func writeUint16s(w *rw.ReaderWriter, vs []uint16) {
	w.WriteLen(len(vs))
	w.WriteUint16s(vs)
}

func readUint16s(r *rw.ReaderWriter) []uint16 {
	n := r.ReadLen(1)
	if n == 0 {
		return nil
	}
	vs := make([]uint16, n)
	r.ReadUint16s(vs)
	return vs
}

func writeAreas(w *rw.ReaderWriter, areas []recast.AreaType) {
	w.WriteLen(len(areas))
	for _, a := range areas {
		w.WriteUint8(uint8(a))
	}
}

func readAreas(r *rw.ReaderWriter) []recast.AreaType {
	n := r.ReadLen(1)
	if n == 0 {
		return nil
	}
	areas := make([]recast.AreaType, n)
	for i := range areas {
		areas[i] = recast.AreaType(r.ReadUint8())
	}
	return areas
}

func writePolygon(w *rw.ReaderWriter, p *recast.PolygonNavmesh) {
	w.WriteBool(p != nil)
	if p == nil {
		return
	}
	w.WriteLen(len(p.Vertices))
	for _, v := range p.Vertices {
		w.WriteUint16s(v[:])
	}
	writeUint16s(w, p.Polygons)
	writeUint16s(w, p.PolygonNeighbors)
	writeUint16s(w, p.Regions)
	writeUint16s(w, p.Flags)
	writeAreas(w, p.Areas)
	w.WriteUint64(uint64(p.MaxVerticesPerPolygon))
	writeAabb(w, p.Aabb)
	w.WriteFloat32(p.CellSize)
	w.WriteFloat32(p.CellHeight)
	w.WriteInt64(int64(p.BorderSize))
	w.WriteFloat32(p.MaxEdgeError)
}

func readPolygon(r *rw.ReaderWriter) *recast.PolygonNavmesh {
	if !r.ReadBool() {
		return nil
	}
	p := &recast.PolygonNavmesh{}
	if n := r.ReadLen(3); n > 0 {
		p.Vertices = make([][3]uint16, n)
		for i := range p.Vertices {
			r.ReadUint16s(p.Vertices[i][:])
		}
	}
	p.Polygons = readUint16s(r)
	p.PolygonNeighbors = readUint16s(r)
	p.Regions = readUint16s(r)
	p.Flags = readUint16s(r)
	p.Areas = readAreas(r)
	p.MaxVerticesPerPolygon = int(r.ReadUint64())
	p.Aabb = readAabb(r)
	p.CellSize = r.ReadFloat32()
	p.CellHeight = r.ReadFloat32()
	p.BorderSize = int(r.ReadInt64())
	p.MaxEdgeError = r.ReadFloat32()
	return p
}

func writeDetail(w *rw.ReaderWriter, d *recast.DetailNavmesh) {
	w.WriteBool(d != nil)
	if d == nil {
		return
	}
	w.WriteLen(len(d.Meshes))
	for _, m := range d.Meshes {
		w.WriteUint64(uint64(m.BaseVertexIndex))
		w.WriteUint64(uint64(m.VertexCount))
		w.WriteUint64(uint64(m.BaseTriangleIndex))
		w.WriteUint64(uint64(m.TriangleCount))
	}
	writeVec3s(w, d.Vertices)
	w.WriteLen(len(d.Triangles))
	for _, t := range d.Triangles {
		w.WriteUint8s(t[:])
	}
	w.WriteLen(len(d.TriangleFlags))
	w.WriteUint8s(d.TriangleFlags)
}

func readDetail(r *rw.ReaderWriter) *recast.DetailNavmesh {
	if !r.ReadBool() {
		return nil
	}
	d := &recast.DetailNavmesh{}
	if n := r.ReadLen(4); n > 0 {
		d.Meshes = make([]recast.DetailSubMesh, n)
		for i := range d.Meshes {
			d.Meshes[i] = recast.DetailSubMesh{
				BaseVertexIndex:   uint32(r.ReadUint64()),
				VertexCount:       uint32(r.ReadUint64()),
				BaseTriangleIndex: uint32(r.ReadUint64()),
				TriangleCount:     uint32(r.ReadUint64()),
			}
		}
	}
	d.Vertices = readVec3s(r)
	if n := r.ReadLen(3); n > 0 {
		d.Triangles = make([][3]uint8, n)
		for i := range d.Triangles {
			r.ReadUint8s(d.Triangles[i][:])
		}
	}
	if n := r.ReadLen(1); n > 0 {
		d.TriangleFlags = make([]uint8, n)
		r.ReadUint8s(d.TriangleFlags)
	}
	return d
}

func writeSettings(w *rw.ReaderWriter, s *Settings) {
	w.WriteFloat32(s.CellSizeFraction)
	w.WriteFloat32(s.CellHeightFraction)
	w.WriteFloat32(s.WalkableSlopeAngle)
	w.WriteFloat32(s.AgentRadius)
	w.WriteFloat32(s.AgentHeight)
	w.WriteFloat32(s.WalkableClimb)
	w.WriteInt64(int64(s.MinRegionSize))
	w.WriteInt64(int64(s.MergeRegionSize))
	w.WriteInt64(int64(s.BorderSize))
	w.WriteFloat32(s.EdgeMaxLenFactor)
	w.WriteFloat32(s.MaxSimplificationError)
	w.WriteInt64(int64(s.MaxVerticesPerPolygon))
	w.WriteFloat32(s.DetailSampleDist)
	w.WriteFloat32(s.DetailSampleMaxError)
	w.WriteInt64(int64(s.TileSize))
	w.WriteBool(s.Tiling)
	w.WriteBool(s.Aabb != nil)
	if s.Aabb != nil {
		writeAabb(w, *s.Aabb)
	}
	w.WriteInt64(int64(s.ContourFlags))
	w.WriteLen(len(s.AreaVolumes))
	for _, v := range s.AreaVolumes {
		writeVec3s(w, v.Vertices)
		w.WriteFloat32(v.MinHeight)
		w.WriteFloat32(v.MaxHeight)
		w.WriteUint8(uint8(v.Area))
	}
	writeVec3(w, s.Up)
	// nil selects every affector, empty selects none.
	w.WriteBool(s.Filter != nil)
	w.WriteLen(len(s.Filter))
	for _, id := range s.Filter {
		w.WriteUint64(uint64(id))
	}
}

func readSettings(r *rw.ReaderWriter, s *Settings) {
	s.CellSizeFraction = r.ReadFloat32()
	s.CellHeightFraction = r.ReadFloat32()
	s.WalkableSlopeAngle = r.ReadFloat32()
	s.AgentRadius = r.ReadFloat32()
	s.AgentHeight = r.ReadFloat32()
	s.WalkableClimb = r.ReadFloat32()
	s.MinRegionSize = int(r.ReadInt64())
	s.MergeRegionSize = int(r.ReadInt64())
	s.BorderSize = int(r.ReadInt64())
	s.EdgeMaxLenFactor = r.ReadFloat32()
	s.MaxSimplificationError = r.ReadFloat32()
	s.MaxVerticesPerPolygon = int(r.ReadInt64())
	s.DetailSampleDist = r.ReadFloat32()
	s.DetailSampleMaxError = r.ReadFloat32()
	s.TileSize = int(r.ReadInt64())
	s.Tiling = r.ReadBool()
	if r.ReadBool() {
		aabb := readAabb(r)
		s.Aabb = &aabb
	}
	s.ContourFlags = recast.ContourFlags(r.ReadInt64())
	if n := r.ReadLen(1); n > 0 {
		s.AreaVolumes = make([]recast.ConvexVolume, n)
		for i := range s.AreaVolumes {
			v := &s.AreaVolumes[i]
			v.Vertices = readVec3s(r)
			v.MinHeight = r.ReadFloat32()
			v.MaxHeight = r.ReadFloat32()
			v.Area = recast.AreaType(r.ReadUint8())
		}
	}
	s.Up = readVec3(r)
	hasFilter := r.ReadBool()
	if n := r.ReadLen(1); n > 0 || hasFilter {
		s.Filter = make([]AffectorID, n)
		for i := range s.Filter {
			s.Filter[i] = AffectorID(r.ReadUint64())
		}
	}
}

// WriteNav writes n in the .nav interchange format.
func WriteNav(w io.Writer, n *Navmesh) error {
	enc := json.NewEncoder(w)
	return enc.Encode(n)
}

// ReadNav reads a navmesh in the .nav interchange format.
func ReadNav(r io.Reader) (*Navmesh, error) {
	n := &Navmesh{}
	if err := json.NewDecoder(r).Decode(n); err != nil {
		return nil, fmt.Errorf("decode .nav: %w", err)
	}
	return n, nil
}

func SaveNav(path string, n *Navmesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = WriteNav(f, n); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func LoadNav(path string) (*Navmesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadNav(f)
}
