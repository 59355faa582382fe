package recast

import (
	"time"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/common/logger"
	"go.uber.org/zap"
)

const (
	VERTEX_BUCKET_COUNT = 1 << 12

	/// An value which indicates an invalid index within a mesh.
	/// @note This does not necessarily indicate an error.
	/// @see PolygonNavmesh::Polygons
	RC_MESH_NULL_IDX = 0xffff

	/// A flag that indicates that an entity links to an external entity.
	/// (E.g. A polygon edge is a portal that links to another polygon.)
	RC_PORTAL_FLAG = 0x8000

	/// Polygon touches multiple regions.
	/// If a polygon has this region ID it was merged with or created
	/// from polygons of different regions during the polymesh
	/// build step that removes redundant border vertices.
	/// (Used during the polymesh and detail polymesh build processes)
	/// @see PolygonNavmesh::Regions
	RC_MULTIPLE_REGS = 0

	// The largest polygon vertex count the detail sampler can hold.
	RC_MAX_VERTS_PER_POLY = 64
)

// / Represents a polygon mesh suitable for use in building a navigation mesh.
type PolygonNavmesh struct {
	Vertices              [][3]uint16 `json:"vertices"`               ///< The mesh vertices in cell coordinates.
	Polygons              []uint16    `json:"polygons"`               ///< Polygon vertex indices, MaxVerticesPerPolygon per polygon, padded with RC_MESH_NULL_IDX.
	PolygonNeighbors      []uint16    `json:"polygon_neighbors"`      ///< Neighbor polygon per polygon edge, RC_MESH_NULL_IDX or a portal flag when open.
	Regions               []uint16    `json:"regions"`                ///< The region id assigned to each polygon.
	Flags                 []uint16    `json:"flags"`                  ///< The user defined flags for each polygon.
	Areas                 []AreaType  `json:"areas"`                  ///< The area id assigned to each polygon.
	MaxVerticesPerPolygon int         `json:"max_vertices_per_polygon"` ///< The maximum number of vertices per polygon.
	Aabb                  Aabb3d      `json:"aabb"`                   ///< The bounds in world space.
	CellSize              float32     `json:"cell_size"`              ///< The size of each cell. (On the xz-plane.)
	CellHeight            float32     `json:"cell_height"`            ///< The height of each cell. (The minimum increment along the y-axis.)
	BorderSize            int         `json:"border_size"`            ///< The AABB border size used to generate the source data from which the mesh was derived.
	MaxEdgeError          float32     `json:"max_edge_error"`         ///< The max error of the polygon edges in the mesh.
}

// PolygonCount returns the number of polygons.
func (m *PolygonNavmesh) PolygonCount() int {
	if m.MaxVerticesPerPolygon == 0 {
		return 0
	}
	return len(m.Polygons) / m.MaxVerticesPerPolygon
}

// Polygon returns the vertex indices of polygon i, including padding.
func (m *PolygonNavmesh) Polygon(i int) []uint16 {
	nvp := m.MaxVerticesPerPolygon
	return m.Polygons[i*nvp : (i+1)*nvp]
}

// Neighbors returns the per edge neighbors of polygon i.
func (m *PolygonNavmesh) Neighbors(i int) []uint16 {
	nvp := m.MaxVerticesPerPolygon
	return m.PolygonNeighbors[i*nvp : (i+1)*nvp]
}

// PolygonVertexCount returns the number of used vertices of polygon i.
func (m *PolygonNavmesh) PolygonVertexCount(i int) int {
	return countPolyVerts(m.Polygon(i), m.MaxVerticesPerPolygon)
}

// polyMeshBuilder holds the interleaved working layout: every polygon owns
// nvp vertex slots followed by nvp neighbor slots.
type polyMeshBuilder struct {
	verts  []uint16 // stride 3
	polys  []uint16 // stride nvp*2
	regs   []uint16
	areas  []AreaType
	nverts int
	npolys int
	nvp    int
}

func (b *polyMeshBuilder) poly(i int) []uint16 {
	return b.polys[i*b.nvp*2 : (i+1)*b.nvp*2]
}

type meshEdge struct {
	vert     [2]uint16
	polyEdge [2]uint16
	poly     [2]uint16
}

func buildMeshAdjacency(polys []uint16, npolys, nverts, vertsPerPoly int) {
	// Based on code by Eric Lengyel from:
	// https://web.archive.org/web/20080704083314/http://www.terathon.com/code/edges.php

	maxEdgeCount := npolys * vertsPerPoly
	firstEdge := make([]int, nverts)
	nextEdge := make([]int, maxEdgeCount)
	edges := make([]meshEdge, 0, maxEdgeCount)
	common.Fill(firstEdge, RC_MESH_NULL_IDX)

	for i := 0; i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := 0; j < vertsPerPoly; j++ {
			if t[j] == RC_MESH_NULL_IDX {
				break
			}
			v0 := t[j]
			var v1 uint16
			if j+1 >= vertsPerPoly || t[j+1] == RC_MESH_NULL_IDX {
				v1 = t[0]
			} else {
				v1 = t[j+1]
			}
			if v0 < v1 {
				edgeCount := len(edges)
				edges = append(edges, meshEdge{
					vert:     [2]uint16{v0, v1},
					poly:     [2]uint16{uint16(i), uint16(i)},
					polyEdge: [2]uint16{uint16(j), 0},
				})
				// Insert edge
				nextEdge[edgeCount] = firstEdge[v0]
				firstEdge[v0] = edgeCount
			}
		}
	}

	for i := 0; i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := 0; j < vertsPerPoly; j++ {
			if t[j] == RC_MESH_NULL_IDX {
				break
			}
			v0 := t[j]
			var v1 uint16
			if j+1 >= vertsPerPoly || t[j+1] == RC_MESH_NULL_IDX {
				v1 = t[0]
			} else {
				v1 = t[j+1]
			}
			if v0 > v1 {
				for e := firstEdge[v1]; e != RC_MESH_NULL_IDX; e = nextEdge[e] {
					edge := &edges[e]
					if edge.vert[1] == v0 && edge.poly[0] == edge.poly[1] {
						edge.poly[1] = uint16(i)
						edge.polyEdge[1] = uint16(j)
						break
					}
				}
			}
		}
	}

	// Store adjacency
	for _, e := range edges {
		if e.poly[0] != e.poly[1] {
			p0 := polys[int(e.poly[0])*vertsPerPoly*2:]
			p1 := polys[int(e.poly[1])*vertsPerPoly*2:]
			p0[vertsPerPoly+int(e.polyEdge[0])] = e.poly[1]
			p1[vertsPerPoly+int(e.polyEdge[1])] = e.poly[0]
		}
	}
}

func computeVertexHash(x, y, z int) int {
	const (
		h1 = 0x8da6b343 // Large multiplicative constants;
		h2 = 0xd8163841 // here arbitrarily chosen primes
		h3 = 0xcb1ab31f
	)
	n := h1*uint32(x) + h2*uint32(y) + h3*uint32(z)
	return int(n & (VERTEX_BUCKET_COUNT - 1))
}

// addVertex returns the index of the vertex at (x, y, z), reusing any
// vertex in the same column within two cells of height.
func (b *polyMeshBuilder) addVertex(x, y, z int, firstVert, nextVert []int) uint16 {
	bucket := computeVertexHash(x, 0, z)
	i := firstVert[bucket]

	for i != -1 {
		v := b.verts[i*3 : i*3+3]
		if int(v[0]) == x && common.Abs(int(v[1])-y) <= 2 && int(v[2]) == z {
			return uint16(i)
		}
		i = nextVert[i] // next
	}

	// Could not find, create new.
	i = b.nverts
	b.nverts++
	v := b.verts[i*3 : i*3+3]
	v[0] = uint16(x)
	v[1] = uint16(y)
	v[2] = uint16(z)
	nextVert[i] = firstVert[bucket]
	firstVert[bucket] = i
	return uint16(i)
}

func diagonalie(i, j, n int, verts []int, indices []int) bool {
	d0 := common.GetVert4(verts, indices[i]&0x0fffffff)
	d1 := common.GetVert4(verts, indices[j]&0x0fffffff)

	// For each edge (k,k+1) of P
	for k := 0; k < n; k++ {
		k1 := common.Next(k, n)
		// Skip edges incident to i or j
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := common.GetVert4(verts, indices[k]&0x0fffffff)
		p1 := common.GetVert4(verts, indices[k1]&0x0fffffff)

		if common.Vequal(d0, p0) || common.Vequal(d1, p0) || common.Vequal(d0, p1) || common.Vequal(d1, p1) {
			continue
		}
		if common.Intersect(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

// Returns true iff the diagonal (i,j) is strictly internal to the
// polygon P in the neighborhood of the i endpoint.
func inCone(i, j, n int, verts []int, indices []int) bool {
	pi := common.GetVert4(verts, indices[i]&0x0fffffff)
	pj := common.GetVert4(verts, indices[j]&0x0fffffff)
	pi1 := common.GetVert4(verts, indices[common.Next(i, n)]&0x0fffffff)
	pin1 := common.GetVert4(verts, indices[common.Prev(i, n)]&0x0fffffff)

	// If P[i] is a convex vertex [ i+1 left or on (i-1,i) ].
	if common.LeftOn(pin1, pi, pi1) {
		return common.Left(pi, pj, pin1) && common.Left(pj, pi, pi1)
	}
	// Assume (i-1,i,i+1) not collinear.
	// else P[i] is reflex.
	return !(common.LeftOn(pi, pj, pi1) && common.LeftOn(pj, pi, pin1))
}

// Returns T iff (v_i, v_j) is a proper internal
// diagonal of P.
func diagonal(i, j, n int, verts []int, indices []int) bool {
	return inCone(i, j, n, verts, indices) && diagonalie(i, j, n, verts, indices)
}

func diagonalieLoose(i, j, n int, verts []int, indices []int) bool {
	d0 := common.GetVert4(verts, indices[i]&0x0fffffff)
	d1 := common.GetVert4(verts, indices[j]&0x0fffffff)

	// For each edge (k,k+1) of P
	for k := 0; k < n; k++ {
		k1 := common.Next(k, n)
		// Skip edges incident to i or j
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := common.GetVert4(verts, indices[k]&0x0fffffff)
		p1 := common.GetVert4(verts, indices[k1]&0x0fffffff)

		if common.Vequal(d0, p0) || common.Vequal(d1, p0) || common.Vequal(d0, p1) || common.Vequal(d1, p1) {
			continue
		}
		if common.IntersectProp(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

func inConeLoose(i, j, n int, verts []int, indices []int) bool {
	pi := common.GetVert4(verts, indices[i]&0x0fffffff)
	pj := common.GetVert4(verts, indices[j]&0x0fffffff)
	pi1 := common.GetVert4(verts, indices[common.Next(i, n)]&0x0fffffff)
	pin1 := common.GetVert4(verts, indices[common.Prev(i, n)]&0x0fffffff)

	// If P[i] is a convex vertex [ i+1 left or on (i-1,i) ].
	if common.LeftOn(pin1, pi, pi1) {
		return common.LeftOn(pi, pj, pin1) && common.LeftOn(pj, pi, pi1)
	}
	// Assume (i-1,i,i+1) not collinear.
	// else P[i] is reflex.
	return !(common.LeftOn(pi, pj, pi1) && common.LeftOn(pj, pi, pin1))
}

func diagonalLoose(i, j, n int, verts []int, indices []int) bool {
	return inConeLoose(i, j, n, verts, indices) && diagonalieLoose(i, j, n, verts, indices)
}

// triangulate ear-clips the polygon given by indices into verts (stride 4)
// and writes vertex triples to tris. A negative count means the polygon
// could only be partially triangulated.
func triangulate(n int, verts, indices []int, tris []int) int {
	ntris := 0
	dst := 0

	// The last bit of the index is used to indicate if the vertex can be removed.
	for i := 0; i < n; i++ {
		i1 := common.Next(i, n)
		i2 := common.Next(i1, n)
		if diagonal(i, i2, n, verts, indices) {
			indices[i1] |= 0x80000000
		}
	}

	for n > 3 {
		minLen := -1
		mini := -1
		for i := 0; i < n; i++ {
			i1 := common.Next(i, n)
			if indices[i1]&0x80000000 != 0 {
				p0 := common.GetVert4(verts, indices[i]&0x0fffffff)
				p2 := common.GetVert4(verts, indices[common.Next(i1, n)]&0x0fffffff)

				dx := p2[0] - p0[0]
				dy := p2[2] - p0[2]
				length := dx*dx + dy*dy
				if minLen < 0 || length < minLen {
					minLen = length
					mini = i
				}
			}
		}

		if mini == -1 {
			// We might get here because the contour has overlapping segments, like this:
			//
			//  A o-o=====o---o B
			//   /  |C   D|    \.
			//  o   o     o     o
			//  :   :     :     :
			// We'll try to recover by loosing up the inCone test a bit so that a diagonal
			// like A-B or C-D can be found and we can continue.
			minLen = -1
			mini = -1
			for i := 0; i < n; i++ {
				i1 := common.Next(i, n)
				i2 := common.Next(i1, n)
				if diagonalLoose(i, i2, n, verts, indices) {
					p0 := common.GetVert4(verts, indices[i]&0x0fffffff)
					p2 := common.GetVert4(verts, indices[common.Next(i2, n)]&0x0fffffff)
					dx := p2[0] - p0[0]
					dy := p2[2] - p0[2]
					length := dx*dx + dy*dy
					if minLen < 0 || length < minLen {
						minLen = length
						mini = i
					}
				}
			}
			if mini == -1 {
				// The contour is messed up. This sometimes happens
				// if the contour simplification is too aggressive.
				return -ntris
			}
		}

		i := mini
		i1 := common.Next(i, n)
		i2 := common.Next(i1, n)

		tris[dst+0] = indices[i] & 0x0fffffff
		tris[dst+1] = indices[i1] & 0x0fffffff
		tris[dst+2] = indices[i2] & 0x0fffffff
		dst += 3
		ntris++

		// Removes P[i1] by copying P[i+1]...P[n-1] left one index.
		n--
		copy(indices[i1:n], indices[i1+1:n+1])

		if i1 >= n {
			i1 = 0
		}
		i = common.Prev(i1, n)

		// Update diagonal flags.
		if diagonal(common.Prev(i, n), i1, n, verts, indices) {
			indices[i] |= 0x80000000
		} else {
			indices[i] &= 0x0fffffff
		}
		if diagonal(i, common.Next(i1, n), n, verts, indices) {
			indices[i1] |= 0x80000000
		} else {
			indices[i1] &= 0x0fffffff
		}
	}

	// Append the remaining triangle.
	tris[dst+0] = indices[0] & 0x0fffffff
	tris[dst+1] = indices[1] & 0x0fffffff
	tris[dst+2] = indices[2] & 0x0fffffff
	ntris++

	return ntris
}

func countPolyVerts(p []uint16, nvp int) int {
	for i := 0; i < nvp; i++ {
		if p[i] == RC_MESH_NULL_IDX {
			return i
		}
	}
	return nvp
}

// polyArea2 returns twice the absolute xz area of polygon p.
func polyArea2(p []uint16, n int, verts []uint16) int {
	area := 0
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi := verts[int(p[i])*3:]
		vj := verts[int(p[j])*3:]
		area += int(vi[0])*int(vj[2]) - int(vj[0])*int(vi[2])
	}
	return common.Abs(area)
}

// getPolyMergeValue returns twice the area of the polygon that merging pa
// and pb across their shared edge would produce, or -1 when they share no
// edge or the result would be too big or not convex.
func getPolyMergeValue(pa, pb []uint16, verts []uint16, nvp int) (value, ea, eb int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	// If the merged polygon would be too big, do not merge.
	if na+nb-2 > nvp {
		return -1, -1, -1
	}

	// Check if the polygons share an edge.
	ea = -1
	eb = -1
	for i := 0; i < na && ea == -1; i++ {
		va0 := pa[i]
		va1 := pa[(i+1)%na]
		if va0 > va1 {
			va0, va1 = va1, va0
		}
		for j := 0; j < nb; j++ {
			vb0 := pb[j]
			vb1 := pb[(j+1)%nb]
			if vb0 > vb1 {
				vb0, vb1 = vb1, vb0
			}
			if va0 == vb0 && va1 == vb1 {
				ea = i
				eb = j
				break
			}
		}
	}

	// No common edge, cannot merge.
	if ea == -1 || eb == -1 {
		return -1, -1, -1
	}

	// Check to see if the merged polygon would be convex.
	va := pa[(ea+na-1)%na]
	vb := pa[ea]
	vc := pb[(eb+2)%nb]
	if !common.Uleft(common.GetVert3(verts, int(va)), common.GetVert3(verts, int(vb)), common.GetVert3(verts, int(vc))) {
		return -1, -1, -1
	}

	va = pb[(eb+nb-1)%nb]
	vb = pb[eb]
	vc = pa[(ea+2)%na]
	if !common.Uleft(common.GetVert3(verts, int(va)), common.GetVert3(verts, int(vb)), common.GetVert3(verts, int(vc))) {
		return -1, -1, -1
	}

	return polyArea2(pa, na, verts) + polyArea2(pb, nb, verts), ea, eb
}

func mergePolyVerts(pa, pb []uint16, ea, eb int, tmp []uint16, nvp int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	// Merge polygons.
	common.Fill(tmp[:nvp], RC_MESH_NULL_IDX)
	n := 0
	// Add pa
	for i := 0; i < na-1; i++ {
		tmp[n] = pa[(ea+1+i)%na]
		n++
	}
	// Add pb
	for i := 0; i < nb-1; i++ {
		tmp[n] = pb[(eb+1+i)%nb]
		n++
	}
	copy(pa[:nvp], tmp[:nvp])
}

// mergePolygons greedily merges the nvp-stride polygons in polys, always
// taking the pair with the largest merged area. onMerge is called before
// pb is overwritten by the last polygon. It returns the new polygon count.
func mergePolygons(polys []uint16, npolys, nvp int, verts []uint16, tmpPoly []uint16, onMerge func(pa, pb, last int)) int {
	if nvp <= 3 {
		return npolys
	}
	for {
		// Find best polygons to merge.
		bestMergeVal := 0
		bestPa, bestPb, bestEa, bestEb := 0, 0, 0, 0

		for j := 0; j < npolys-1; j++ {
			pj := polys[j*nvp : (j+1)*nvp]
			for k := j + 1; k < npolys; k++ {
				pk := polys[k*nvp : (k+1)*nvp]
				v, ea, eb := getPolyMergeValue(pj, pk, verts, nvp)
				if v > bestMergeVal {
					bestMergeVal = v
					bestPa = j
					bestPb = k
					bestEa = ea
					bestEb = eb
				}
			}
		}

		if bestMergeVal <= 0 {
			// Could not merge any polygons, stop.
			return npolys
		}
		// Found best, merge.
		pa := polys[bestPa*nvp : (bestPa+1)*nvp]
		pb := polys[bestPb*nvp : (bestPb+1)*nvp]
		mergePolyVerts(pa, pb, bestEa, bestEb, tmpPoly, nvp)
		if onMerge != nil {
			onMerge(bestPa, bestPb, npolys-1)
		}
		if bestPb != npolys-1 {
			copy(pb, polys[(npolys-1)*nvp:npolys*nvp])
		}
		npolys--
	}
}

func (b *polyMeshBuilder) canRemoveVertex(rem uint16) bool {
	nvp := b.nvp

	// Count number of polygons to remove.
	numTouchedVerts := 0
	numRemainingEdges := 0
	for i := 0; i < b.npolys; i++ {
		p := b.poly(i)
		nv := countPolyVerts(p, nvp)
		numRemoved := 0
		numVerts := 0
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				numTouchedVerts++
				numRemoved++
			}
			numVerts++
		}
		if numRemoved > 0 {
			numRemainingEdges += numVerts - (numRemoved + 1)
		}
	}

	// There would be too few edges remaining to create a polygon.
	// This can happen for example when a tip of a triangle is marked
	// as deletion, but there are no other polys that share the vertex.
	// In this case, the vertex should not be removed.
	if numRemainingEdges <= 2 {
		return false
	}

	// Find edges which share the removed vertex.
	edges := make([][3]int, 0, numTouchedVerts*2)
	for i := 0; i < b.npolys; i++ {
		p := b.poly(i)
		nv := countPolyVerts(p, nvp)

		// Collect edges which touches the removed vertex.
		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				continue
			}
			// Arrange edge so that a=rem.
			a := int(p[j])
			bv := int(p[k])
			if bv == int(rem) {
				a, bv = bv, a
			}

			// Check if the edge exists
			exists := false
			for m := range edges {
				if edges[m][1] == bv {
					// Exists, increment vertex share count.
					edges[m][2]++
					exists = true
				}
			}
			// Add new edge.
			if !exists {
				edges = append(edges, [3]int{a, bv, 1})
			}
		}
	}

	// There should be no more than 2 open edges.
	// This catches the case that two non-adjacent polygons
	// share the removed vertex. In that case, do not remove the vertex.
	numOpenEdges := 0
	for _, e := range edges {
		if e[2] < 2 {
			numOpenEdges++
		}
	}
	return numOpenEdges <= 2
}

func (b *polyMeshBuilder) removeVertex(rem uint16, maxTris int) error {
	nvp := b.nvp

	// Remove the polygons touching rem and keep their far edges.
	var edges [][4]int // va, vb, region, area
	for i := 0; i < b.npolys; i++ {
		p := b.poly(i)
		nv := countPolyVerts(p, nvp)
		hasRem := false
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				hasRem = true
			}
		}
		if !hasRem {
			continue
		}
		// Collect edges which does not touch the removed vertex.
		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				edges = append(edges, [4]int{int(p[k]), int(p[j]), int(b.regs[i]), int(b.areas[i])})
			}
		}
		// Remove the polygon.
		last := b.npolys - 1
		if i != last {
			copy(p[:nvp], b.poly(last)[:nvp])
		}
		common.Fill(p[nvp:], RC_MESH_NULL_IDX)
		b.regs[i] = b.regs[last]
		b.areas[i] = b.areas[last]
		b.npolys--
		i--
	}

	// Remove vertex.
	copy(b.verts[int(rem)*3:b.nverts*3], b.verts[(int(rem)+1)*3:b.nverts*3])
	b.nverts--

	// Adjust indices to match the removed vertex layout.
	for i := 0; i < b.npolys; i++ {
		p := b.poly(i)
		nv := countPolyVerts(p, nvp)
		for j := 0; j < nv; j++ {
			if p[j] > rem {
				p[j]--
			}
		}
	}
	for i := range edges {
		if edges[i][0] > int(rem) {
			edges[i][0]--
		}
		if edges[i][1] > int(rem) {
			edges[i][1]--
		}
	}

	if len(edges) == 0 {
		return nil
	}

	// Start with one vertex, keep appending connected
	// segments to the start and end of the hole.
	hole := []int{edges[0][0]}
	hreg := []int{edges[0][2]}
	harea := []int{edges[0][3]}

	for len(edges) > 0 {
		match := false
		for i := 0; i < len(edges); i++ {
			ea, eb, r, a := edges[i][0], edges[i][1], edges[i][2], edges[i][3]
			add := false
			if hole[0] == eb {
				// The segment matches the beginning of the hole boundary.
				hole = common.PushFront(ea, hole)
				hreg = common.PushFront(r, hreg)
				harea = common.PushFront(a, harea)
				add = true
			} else if hole[len(hole)-1] == ea {
				// The segment matches the end of the hole boundary.
				hole = append(hole, eb)
				hreg = append(hreg, r)
				harea = append(harea, a)
				add = true
			}
			if add {
				// The edge segment was added, remove it.
				edges[i] = edges[len(edges)-1]
				edges = edges[:len(edges)-1]
				i--
				match = true
			}
		}
		if !match {
			break
		}
	}

	nhole := len(hole)
	tris := make([]int, nhole*3)
	tverts := make([]int, nhole*4)
	thole := make([]int, nhole)

	// Generate temp vertex array for triangulation.
	for i, pi := range hole {
		tverts[i*4+0] = int(b.verts[pi*3+0])
		tverts[i*4+1] = int(b.verts[pi*3+1])
		tverts[i*4+2] = int(b.verts[pi*3+2])
		tverts[i*4+3] = 0
		thole[i] = i
	}

	// Triangulate the hole.
	ntris := triangulate(nhole, tverts, thole, tris)
	if ntris < 0 {
		ntris = -ntris
		logger.L().Warn("removeVertex: triangulate() returned bad results",
			zap.String("stage", string(StagePolyMesh)), zap.Int("vertex", int(rem)))
	}

	// Merge the hole triangles back to polygons.
	polys := make([]uint16, (ntris+1)*nvp)
	pregs := make([]uint16, ntris)
	pareas := make([]AreaType, ntris)
	tmpPoly := polys[ntris*nvp:]
	common.Fill(polys, RC_MESH_NULL_IDX)

	// Build initial polygons.
	npolys := 0
	for j := 0; j < ntris; j++ {
		t := tris[j*3 : j*3+3]
		if t[0] == t[1] || t[0] == t[2] || t[1] == t[2] {
			continue
		}
		polys[npolys*nvp+0] = uint16(hole[t[0]])
		polys[npolys*nvp+1] = uint16(hole[t[1]])
		polys[npolys*nvp+2] = uint16(hole[t[2]])

		// If this polygon covers multiple region types then
		// mark it as such
		if hreg[t[0]] != hreg[t[1]] || hreg[t[1]] != hreg[t[2]] {
			pregs[npolys] = RC_MULTIPLE_REGS
		} else {
			pregs[npolys] = uint16(hreg[t[0]])
		}
		pareas[npolys] = AreaType(harea[t[0]])
		npolys++
	}
	if npolys == 0 {
		return nil
	}

	// Merge polygons.
	npolys = mergePolygons(polys, npolys, nvp, b.verts, tmpPoly, func(pa, pb, last int) {
		if pregs[pa] != pregs[pb] {
			pregs[pa] = RC_MULTIPLE_REGS
		}
		pregs[pb] = pregs[last]
		pareas[pb] = pareas[last]
	})

	// Store polygons.
	for i := 0; i < npolys; i++ {
		if b.npolys >= maxTris {
			break
		}
		p := b.poly(b.npolys)
		common.Fill(p, RC_MESH_NULL_IDX)
		copy(p[:nvp], polys[i*nvp:(i+1)*nvp])
		b.regs[b.npolys] = pregs[i]
		b.areas[b.npolys] = pareas[i]
		b.npolys++
		if b.npolys > maxTris {
			return newError(StagePolyMesh, ErrInvalidInput, "too many polygons %d (max: %d)", b.npolys, maxTris)
		}
	}
	return nil
}

// / Builds a polygon mesh from the provided contours.
// /
// / @param[in]		nvp		The maximum number of vertices allowed for polygons generated during the
// / 						contour to polygon conversion process. [Limit: >= 3]
func (cset *ContourSet) IntoPolygonMesh(nvp int) (*PolygonNavmesh, error) {
	start := time.Now()
	if nvp < 3 || nvp > RC_MAX_VERTS_PER_POLY {
		return nil, newError(StagePolyMesh, ErrConfig, "max vertices per polygon must be in [3, %d], got %d", RC_MAX_VERTS_PER_POLY, nvp)
	}

	maxVertices := 0
	maxTris := 0
	maxVertsPerCont := 0
	for _, cont := range cset.Contours {
		nv := cont.VertexCount()
		// Skip null contours.
		if nv < 3 {
			continue
		}
		maxVertices += nv
		maxTris += nv - 2
		maxVertsPerCont = max(maxVertsPerCont, nv)
	}

	if maxVertices >= 0xfffe {
		return nil, newError(StagePolyMesh, ErrInvalidInput, "too many vertices %d", maxVertices)
	}

	vflags := make([]bool, maxVertices)
	b := &polyMeshBuilder{
		verts: make([]uint16, maxVertices*3),
		polys: make([]uint16, maxTris*nvp*2),
		regs:  make([]uint16, maxTris),
		areas: make([]AreaType, maxTris),
		nvp:   nvp,
	}
	common.Fill(b.polys, RC_MESH_NULL_IDX)

	nextVert := make([]int, maxVertices)
	firstVert := make([]int, VERTEX_BUCKET_COUNT)
	common.Fill(firstVert, -1)

	indices := make([]int, maxVertsPerCont)
	tris := make([]int, maxVertsPerCont*3)
	polys := make([]uint16, (maxVertsPerCont+1)*nvp)
	tmpPoly := polys[maxVertsPerCont*nvp:]

	for ci, cont := range cset.Contours {
		nv := cont.VertexCount()
		// Skip null contours.
		if nv < 3 {
			continue
		}

		// Triangulate contour
		for j := 0; j < nv; j++ {
			indices[j] = j
		}
		ntris := triangulate(nv, cont.Vertices, indices, tris)
		if ntris <= 0 {
			// Bad triangulation, should not happen.
			logger.L().Warn("IntoPolygonMesh: bad triangulation",
				zap.String("stage", string(StagePolyMesh)),
				zap.Int("contour", ci), zap.Int("region", int(cont.Region)))
			ntris = -ntris
		}

		// Add and merge vertices.
		for j := 0; j < nv; j++ {
			v := common.GetVert4(cont.Vertices, j)
			idx := b.addVertex(v[0], v[1], v[2], firstVert, nextVert)
			indices[j] = int(idx)
			if v[3]&RC_BORDER_VERTEX != 0 {
				// This vertex should be removed.
				vflags[idx] = true
			}
		}

		// Build initial polygons.
		npolys := 0
		common.Fill(polys[:maxVertsPerCont*nvp], RC_MESH_NULL_IDX)
		for j := 0; j < ntris; j++ {
			t := tris[j*3 : j*3+3]
			if t[0] != t[1] && t[0] != t[2] && t[1] != t[2] {
				polys[npolys*nvp+0] = uint16(indices[t[0]])
				polys[npolys*nvp+1] = uint16(indices[t[1]])
				polys[npolys*nvp+2] = uint16(indices[t[2]])
				npolys++
			}
		}
		if npolys == 0 {
			continue
		}

		// Merge polygons.
		npolys = mergePolygons(polys, npolys, nvp, b.verts, tmpPoly, nil)

		// Store polygons.
		for j := 0; j < npolys; j++ {
			if b.npolys >= maxTris {
				return nil, newError(StagePolyMesh, ErrInvalidInput, "too many polygons %d (max: %d)", b.npolys+1, maxTris)
			}
			copy(b.poly(b.npolys)[:nvp], polys[j*nvp:(j+1)*nvp])
			b.regs[b.npolys] = cont.Region
			b.areas[b.npolys] = cont.Area
			b.npolys++
		}
	}

	// Remove edge vertices.
	for i := 0; i < b.nverts; i++ {
		if !vflags[i] {
			continue
		}
		if !b.canRemoveVertex(uint16(i)) {
			continue
		}
		if err := b.removeVertex(uint16(i), maxTris); err != nil {
			return nil, err
		}
		// Remove vertex
		// Note: b.nverts is already decremented inside removeVertex()!
		// Fixup vertex flags
		copy(vflags[i:b.nverts], vflags[i+1:b.nverts+1])
		i--
	}

	// Calculate adjacency.
	buildMeshAdjacency(b.polys, b.npolys, b.nverts, nvp)

	// Find portal edges
	if cset.BorderSize > 0 {
		w := uint16(cset.Width)
		h := uint16(cset.Height)
		for i := 0; i < b.npolys; i++ {
			p := b.poly(i)
			for j := 0; j < nvp; j++ {
				if p[j] == RC_MESH_NULL_IDX {
					break
				}
				// Skip connected edges.
				if p[nvp+j] != RC_MESH_NULL_IDX {
					continue
				}
				nj := j + 1
				if nj >= nvp || p[nj] == RC_MESH_NULL_IDX {
					nj = 0
				}
				va := common.GetVert3(b.verts, int(p[j]))
				vb := common.GetVert3(b.verts, int(p[nj]))

				if va[0] == 0 && vb[0] == 0 {
					p[nvp+j] = RC_PORTAL_FLAG | 0
				} else if va[2] == h && vb[2] == h {
					p[nvp+j] = RC_PORTAL_FLAG | 1
				} else if va[0] == w && vb[0] == w {
					p[nvp+j] = RC_PORTAL_FLAG | 2
				} else if va[2] == 0 && vb[2] == 0 {
					p[nvp+j] = RC_PORTAL_FLAG | 3
				}
			}
		}
	}

	if b.nverts > 0xffff {
		return nil, newError(StagePolyMesh, ErrInvalidInput, "the resulting mesh has too many vertices %d (max %d)", b.nverts, 0xffff)
	}
	if b.npolys > 0xffff {
		return nil, newError(StagePolyMesh, ErrInvalidInput, "the resulting mesh has too many polygons %d (max %d)", b.npolys, 0xffff)
	}

	mesh := &PolygonNavmesh{
		Vertices:              make([][3]uint16, b.nverts),
		Polygons:              make([]uint16, b.npolys*nvp),
		PolygonNeighbors:      make([]uint16, b.npolys*nvp),
		Regions:               append([]uint16(nil), b.regs[:b.npolys]...),
		Flags:                 make([]uint16, b.npolys),
		Areas:                 append([]AreaType(nil), b.areas[:b.npolys]...),
		MaxVerticesPerPolygon: nvp,
		Aabb:                  cset.Aabb,
		CellSize:              cset.Cs,
		CellHeight:            cset.Ch,
		BorderSize:            cset.BorderSize,
		MaxEdgeError:          cset.MaxError,
	}
	for i := range mesh.Vertices {
		copy(mesh.Vertices[i][:], b.verts[i*3:i*3+3])
	}
	for i := 0; i < b.npolys; i++ {
		p := b.poly(i)
		copy(mesh.Polygons[i*nvp:(i+1)*nvp], p[:nvp])
		copy(mesh.PolygonNeighbors[i*nvp:(i+1)*nvp], p[nvp:])
	}

	logger.L().Debug("IntoPolygonMesh",
		zap.String("stage", string(StagePolyMesh)),
		zap.Int("vertices", b.nverts), zap.Int("polygons", b.npolys),
		zap.Duration("took", time.Since(start)))
	return mesh, nil
}
