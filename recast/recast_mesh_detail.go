package recast

import (
	"math"
	"time"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/common/logger"
	"go.uber.org/zap"
)

const (
	RC_UNSET_HEIGHT = 0xffff

	MAX_VERTS          = 127
	MAX_TRIS           = 255 // Max tris for delaunay is 2n-2-k (n=num verts, k=num hull verts).
	MAX_VERTS_PER_EDGE = 32

	// Matches the boundary edge flag of the runtime detail triangles.
	DETAIL_EDGE_BOUNDARY = 0x1
)

const (
	EV_UNDEF = -1
	EV_HULL  = -2
)

// / Defines the location of detail sub-mesh data within a DetailNavmesh.
type DetailSubMesh struct {
	BaseVertexIndex   uint32 `json:"base_vertex_index"`   ///< The offset of the vertices in the DetailNavmesh::Vertices array.
	VertexCount       uint32 `json:"vertex_count"`        ///< The number of vertices in the sub-mesh.
	BaseTriangleIndex uint32 `json:"base_triangle_index"` ///< The offset of the triangles in the DetailNavmesh::Triangles array.
	TriangleCount     uint32 `json:"triangle_count"`      ///< The number of triangles in the sub-mesh.
}

// / Contains triangle meshes that represent detailed height data associated
// / with the polygons in its associated polygon mesh object.
type DetailNavmesh struct {
	Meshes        []DetailSubMesh `json:"meshes"`         ///< One sub-mesh per polygon.
	Vertices      []common.Vec3   `json:"vertices"`       ///< The mesh vertices in world space.
	Triangles     [][3]uint8      `json:"triangles"`      ///< Sub-mesh local vertex indices per triangle.
	TriangleFlags []uint8         `json:"triangle_flags"` ///< Boundary edge flags per triangle, two bits per edge.
}

type heightPatch struct {
	data                      []uint16
	xmin, ymin, width, height int
}

func getHeight(fx, fy, fz, cs, ics, ch float32, radius int, hp *heightPatch) uint16 {
	ix := int(math.Floor(float64(fx*ics + 0.01)))
	iz := int(math.Floor(float64(fz*ics + 0.01)))
	ix = common.Clamp(ix-hp.xmin, 0, hp.width-1)
	iz = common.Clamp(iz-hp.ymin, 0, hp.height-1)
	h := hp.data[ix+iz*hp.width]
	if h != RC_UNSET_HEIGHT {
		return h
	}

	// Special case when data might be bad.
	// Walk adjacent cells in a spiral up to 'radius', and look
	// for a pixel which has a valid height.
	x, z, dx, dz := 1, 0, 1, 0
	maxSize := radius*2 + 1
	maxIter := maxSize*maxSize - 1

	nextRingIterStart := 8
	nextRingIters := 16

	dmin := float32(math.MaxFloat32)
	for i := 0; i < maxIter; i++ {
		nx := ix + x
		nz := iz + z

		if nx >= 0 && nz >= 0 && nx < hp.width && nz < hp.height {
			nh := hp.data[nx+nz*hp.width]
			if nh != RC_UNSET_HEIGHT {
				d := common.Abs(float32(nh)*ch - fy)
				if d < dmin {
					h = nh
					dmin = d
				}
			}
		}

		// We are searching in a grid which looks approximately like this:
		//  __________
		// |2 ______ 2|
		// | |1 __ 1| |
		// | | |__| | |
		// | |______| |
		// |__________|
		// We want to find the best height as close to the center cell as possible. This means that
		// if we find a height in one of the neighbor cells to the center, we don't want to
		// expand further out than the 8 neighbors - we want to limit our search to the closest
		// of these "rings", but the best height in the ring.
		// For example, the center is just 1 cell. We checked that at the entrance to the function.
		// The next "ring" contains 8 cells (marked 1 above). Those are all the neighbors to the center cell.
		// The next one again contains 16 cells (marked 2). In general each ring has 8 additional cells, which
		// can be thought of as adding 2 cells around the "center" of each side when we expand the ring.
		// Here we detect if we are about to enter the next ring, and if we are and we have found
		// a height, we abort the search.
		if i+1 == nextRingIterStart {
			if h != RC_UNSET_HEIGHT {
				break
			}
			nextRingIterStart += nextRingIters
			nextRingIters += 8
		}

		if x == z || (x < 0 && x == -z) || (x > 0 && x == 1-z) {
			dx, dz = -dz, dx
		}
		x += dx
		z += dz
	}
	return h
}

func findEdge(edges []int, s, t int) int {
	for i := 0; i < len(edges)/4; i++ {
		e := edges[i*4 : i*4+4]
		if (e[0] == s && e[1] == t) || (e[0] == t && e[1] == s) {
			return i
		}
	}
	return EV_UNDEF
}

// addEdge appends (s, t) unless it already exists and returns its index.
func addEdge(edges []int, maxEdges, s, t, l, r int) ([]int, int) {
	if len(edges)/4 >= maxEdges {
		logger.L().Error("addEdge: too many edges", zap.String("stage", string(StageDetailMesh)), zap.Int("count", len(edges)/4), zap.Int("max", maxEdges))
		return edges, EV_UNDEF
	}

	// Add edge if not already in the triangulation.
	if e := findEdge(edges, s, t); e != EV_UNDEF {
		return edges, EV_UNDEF
	}
	edges = append(edges, s, t, l, r)
	return edges, len(edges)/4 - 1
}

func updateLeftFace(e []int, s, t, f int) {
	if e[0] == s && e[1] == t && e[2] == EV_UNDEF {
		e[2] = f
	} else if e[1] == s && e[0] == t && e[3] == EV_UNDEF {
		e[3] = f
	}
}

func overlapSegSeg2d(a, b, c, d []float32) bool {
	a1 := common.Vcross2(a, b, d)
	a2 := common.Vcross2(a, b, c)
	if a1*a2 < 0.0 {
		a3 := common.Vcross2(c, d, a)
		a4 := a3 + a2 - a1
		if a3*a4 < 0.0 {
			return true
		}
	}
	return false
}

func overlapEdges(pts []float32, edges []int, s1, t1 int) bool {
	for i := 0; i < len(edges)/4; i++ {
		s0 := edges[i*4+0]
		t0 := edges[i*4+1]
		// Same or connected edges do not overlap.
		if s0 == s1 || s0 == t1 || t0 == s1 || t0 == t1 {
			continue
		}
		if overlapSegSeg2d(common.GetVert3(pts, s0), common.GetVert3(pts, t0), common.GetVert3(pts, s1), common.GetVert3(pts, t1)) {
			return true
		}
	}
	return false
}

func completeFacet(pts []float32, npts int, edges []int, maxEdges int, nfaces *int, e int) []int {
	const EPS = 1e-5

	edge := edges[e*4 : e*4+4]

	// Cache s and t.
	var s, t int
	if edge[2] == EV_UNDEF {
		s = edge[0]
		t = edge[1]
	} else if edge[3] == EV_UNDEF {
		s = edge[1]
		t = edge[0]
	} else {
		// Edge already completed.
		return edges
	}

	// Find best point on left of edge.
	pt := npts
	c := []float32{0, 0, 0}
	r := float32(-1)
	for u := 0; u < npts; u++ {
		if u == s || u == t {
			continue
		}
		if common.Vcross2(common.GetVert3(pts, s), common.GetVert3(pts, t), common.GetVert3(pts, u)) <= EPS {
			continue
		}
		if r < 0 {
			// The circle is not updated yet, do it now.
			pt = u
			r, _ = common.CircumCircle(common.GetVert3(pts, s), common.GetVert3(pts, t), common.GetVert3(pts, u), c)
			continue
		}
		d := common.Vdist2(c, common.GetVert3(pts, u))
		const tol = 0.001
		if d > r*(1+tol) {
			// Outside current circumcircle, skip.
			continue
		} else if d >= r*(1-tol) {
			// Inside epsilon circum circle, do extra tests to make sure the edge is valid.
			// s-u and t-u cannot overlap with s-pt nor t-pt if they exists.
			if overlapEdges(pts, edges, s, u) {
				continue
			}
			if overlapEdges(pts, edges, t, u) {
				continue
			}
		}
		// Inside safe circumcircle, update circle.
		pt = u
		r, _ = common.CircumCircle(common.GetVert3(pts, s), common.GetVert3(pts, t), common.GetVert3(pts, u), c)
	}

	// Add new triangle or update edge info if s-t is on hull.
	if pt >= npts {
		updateLeftFace(edges[e*4:e*4+4], s, t, EV_HULL)
		return edges
	}

	// Update face information of edge being completed.
	updateLeftFace(edges[e*4:e*4+4], s, t, *nfaces)

	// Add new edge or update face info of old edge.
	if ei := findEdge(edges, pt, s); ei == EV_UNDEF {
		edges, _ = addEdge(edges, maxEdges, pt, s, *nfaces, EV_UNDEF)
	} else {
		updateLeftFace(edges[ei*4:ei*4+4], pt, s, *nfaces)
	}

	// Add new edge or update face info of old edge.
	if ei := findEdge(edges, t, pt); ei == EV_UNDEF {
		edges, _ = addEdge(edges, maxEdges, t, pt, *nfaces, EV_UNDEF)
	} else {
		updateLeftFace(edges[ei*4:ei*4+4], t, pt, *nfaces)
	}

	*nfaces++
	return edges
}

func delaunayHull(npts int, pts []float32, hull []int, tris, edges []int) ([]int, []int) {
	nfaces := 0
	maxEdges := npts * 10
	edges = edges[:0]

	for i, j := 0, len(hull)-1; i < len(hull); j, i = i, i+1 {
		edges, _ = addEdge(edges, maxEdges, hull[j], hull[i], EV_HULL, EV_UNDEF)
	}

	for currentEdge := 0; currentEdge < len(edges)/4; currentEdge++ {
		if edges[currentEdge*4+2] == EV_UNDEF {
			edges = completeFacet(pts, npts, edges, maxEdges, &nfaces, currentEdge)
		}
		if edges[currentEdge*4+3] == EV_UNDEF {
			edges = completeFacet(pts, npts, edges, maxEdges, &nfaces, currentEdge)
		}
	}

	// Create tris
	tris = tris[:0]
	for i := 0; i < nfaces*4; i++ {
		tris = append(tris, -1)
	}

	for i := 0; i < len(edges)/4; i++ {
		e := edges[i*4 : i*4+4]
		if e[3] >= 0 {
			// Left face
			t := tris[e[3]*4 : e[3]*4+4]
			if t[0] == -1 {
				t[0] = e[0]
				t[1] = e[1]
			} else if t[0] == e[1] {
				t[2] = e[0]
			} else if t[1] == e[0] {
				t[2] = e[1]
			}
		}
		if e[2] >= 0 {
			// Right
			t := tris[e[2]*4 : e[2]*4+4]
			if t[0] == -1 {
				t[0] = e[1]
				t[1] = e[0]
			} else if t[0] == e[0] {
				t[2] = e[1]
			} else if t[1] == e[1] {
				t[2] = e[0]
			}
		}
	}

	for i := 0; i < len(tris)/4; i++ {
		t := tris[i*4 : i*4+4]
		if t[0] == -1 || t[1] == -1 || t[2] == -1 {
			logger.L().Warn("delaunayHull: removing dangling face", zap.String("stage", string(StageDetailMesh)),
				zap.Int("face", i), zap.Ints("verts", []int{t[0], t[1], t[2]}))
			copy(t, tris[len(tris)-4:])
			tris = tris[:len(tris)-4]
			i--
		}
	}
	return tris, edges
}

// Calculate minimum extend of the polygon.
func polyMinExtent(verts []float32, nverts int) float32 {
	minDist := float32(math.MaxFloat32)
	for i := 0; i < nverts; i++ {
		ni := (i + 1) % nverts
		p1 := common.GetVert3(verts, i)
		p2 := common.GetVert3(verts, ni)
		maxEdgeDist := float32(0)
		for j := 0; j < nverts; j++ {
			if j == i || j == ni {
				continue
			}
			d := common.DistancePtSeg2d(common.GetVert3(verts, j), p1, p2)
			maxEdgeDist = max(maxEdgeDist, d)
		}
		minDist = min(minDist, maxEdgeDist)
	}
	return float32(math.Sqrt(float64(minDist)))
}

func triangulateHull(verts []float32, hull []int, nin int, tris []int) []int {
	nhull := len(hull)
	start, left, right := 0, 1, nhull-1

	// Start from an ear with shortest perimeter.
	// This tends to favor well formed triangles as starting point.
	dmin := float32(math.MaxFloat32)
	for i := 0; i < nhull; i++ {
		if hull[i] >= nin {
			continue // Ears are triangles with original vertices as middle vertex while others are actually line segments on edges
		}
		pi := common.Prev(i, nhull)
		ni := common.Next(i, nhull)
		pv := common.GetVert3(verts, hull[pi])
		cv := common.GetVert3(verts, hull[i])
		nv := common.GetVert3(verts, hull[ni])
		d := common.Vdist2(pv, cv) + common.Vdist2(cv, nv) + common.Vdist2(nv, pv)
		if d < dmin {
			start = i
			left = ni
			right = pi
			dmin = d
		}
	}

	// Add first triangle
	tris = append(tris, hull[start], hull[left], hull[right], 0)

	// Triangulate the polygon by moving left or right,
	// depending on which triangle has shorter perimeter.
	// This heuristic was chose empirically, since it seems
	// handle tessellated straight edges well.
	for common.Next(left, nhull) != right {
		// Check to see if se should advance left or right.
		nleft := common.Next(left, nhull)
		nright := common.Prev(right, nhull)

		cvleft := common.GetVert3(verts, hull[left])
		nvleft := common.GetVert3(verts, hull[nleft])
		cvright := common.GetVert3(verts, hull[right])
		nvright := common.GetVert3(verts, hull[nright])
		dleft := common.Vdist2(cvleft, nvleft) + common.Vdist2(nvleft, cvright)
		dright := common.Vdist2(cvright, nvright) + common.Vdist2(cvleft, nvright)

		if dleft < dright {
			tris = append(tris, hull[left], hull[nleft], hull[right], 0)
			left = nleft
		} else {
			tris = append(tris, hull[left], hull[nright], hull[right], 0)
			right = nright
		}
	}
	return tris
}

func getJitterX(i int) float32 {
	return (float32((uint32(i)*0x8da6b343)&0xffff) / 65535.0 * 2.0) - 1.0
}

func getJitterY(i int) float32 {
	return (float32((uint32(i)*0xd8163841)&0xffff) / 65535.0 * 2.0) - 1.0
}

func onHull(a, b int, hull []int) bool {
	nhull := len(hull)
	// All internal sampled points come after the hull so we can early out for those.
	if a >= nhull || b >= nhull {
		return false
	}
	for j, i := nhull-1, 0; i < nhull; j, i = i, i+1 {
		if a == hull[j] && b == hull[i] {
			return true
		}
	}
	return false
}

// Only detail edges along the polygon hull are flagged.
func setTriFlags(tris []int, hull []int) {
	for i := 0; i < len(tris); i += 4 {
		a := tris[i+0]
		b := tris[i+1]
		c := tris[i+2]
		flags := 0
		if onHull(a, b, hull) {
			flags |= DETAIL_EDGE_BOUNDARY << 0
		}
		if onHull(b, c, hull) {
			flags |= DETAIL_EDGE_BOUNDARY << 2
		}
		if onHull(c, a, hull) {
			flags |= DETAIL_EDGE_BOUNDARY << 4
		}
		tris[i+3] = flags
	}
}

// detailBuilder keeps the scratch buffers reused across polygons.
type detailBuilder struct {
	chf                *CompactHeightfield
	sampleDist         float32
	sampleMaxError     float32
	heightSearchRadius int
	hp                 heightPatch
	verts              []float32
	tris               []int
	edges              []int
	samples            []int
	queue              []int
}

func (db *detailBuilder) buildPolyDetail(in []float32, nin int) int {
	var edge [(MAX_VERTS_PER_EDGE + 1) * 3]float32
	hull := make([]int, 0, MAX_VERTS)

	chf := db.chf
	sampleDist := db.sampleDist
	sampleMaxError := db.sampleMaxError
	verts := db.verts
	nverts := nin
	copy(verts, in[:nin*3])

	db.edges = db.edges[:0]
	db.tris = db.tris[:0]

	cs := chf.Cs
	ics := 1.0 / cs

	// Calculate minimum extents of the polygon based on input data.
	minExtent := polyMinExtent(verts, nverts)

	// Tessellate outlines.
	// This is done in separate pass in order to ensure
	// seamless height values across the ply boundaries.
	if sampleDist > 0 {
		for i, j := 0, nin-1; i < nin; j, i = i, i+1 {
			vj := common.GetVert3(in, j)
			vi := common.GetVert3(in, i)
			swapped := false
			// Make sure the segments are always handled in same order
			// using lexological sort or else there will be seams.
			if common.Abs(vj[0]-vi[0]) < 1e-6 {
				if vj[2] > vi[2] {
					vj, vi = vi, vj
					swapped = true
				}
			} else if vj[0] > vi[0] {
				vj, vi = vi, vj
				swapped = true
			}
			// Create samples along the edge.
			dx := vi[0] - vj[0]
			dy := vi[1] - vj[1]
			dz := vi[2] - vj[2]
			d := float32(math.Sqrt(float64(dx*dx + dz*dz)))
			nn := 1 + int(math.Floor(float64(d/sampleDist)))
			if nn >= MAX_VERTS_PER_EDGE {
				nn = MAX_VERTS_PER_EDGE - 1
			}
			if nverts+nn >= MAX_VERTS {
				nn = max(MAX_VERTS-1-nverts, 1)
			}

			for k := 0; k <= nn; k++ {
				u := float32(k) / float32(nn)
				pos := edge[k*3 : k*3+3]
				pos[0] = vj[0] + dx*u
				pos[1] = vj[1] + dy*u
				pos[2] = vj[2] + dz*u
				pos[1] = float32(getHeight(pos[0], pos[1], pos[2], cs, ics, chf.Ch, db.heightSearchRadius, &db.hp)) * chf.Ch
			}
			// Simplify samples.
			var idx [MAX_VERTS_PER_EDGE]int
			idx[0] = 0
			idx[1] = nn
			nidx := 2
			for k := 0; k < nidx-1; {
				a := idx[k]
				b := idx[k+1]
				va := edge[a*3 : a*3+3]
				vb := edge[b*3 : b*3+3]
				// Find maximum deviation along the segment.
				maxd := float32(0)
				maxi := -1
				for m := a + 1; m < b; m++ {
					dev := common.DistancePtSeg(edge[m*3:m*3+3], va, vb)
					if dev > maxd {
						maxd = dev
						maxi = m
					}
				}
				// If the max deviation is larger than accepted error,
				// add new point, else continue to next segment.
				if maxi != -1 && maxd > common.Sqr(sampleMaxError) {
					copy(idx[k+2:nidx+1], idx[k+1:nidx])
					idx[k+1] = maxi
					nidx++
				} else {
					k++
				}
			}

			hull = append(hull, j)
			// Add new vertices.
			if swapped {
				for k := nidx - 2; k > 0; k-- {
					copy(verts[nverts*3:nverts*3+3], edge[idx[k]*3:idx[k]*3+3])
					hull = append(hull, nverts)
					nverts++
				}
			} else {
				for k := 1; k < nidx-1; k++ {
					copy(verts[nverts*3:nverts*3+3], edge[idx[k]*3:idx[k]*3+3])
					hull = append(hull, nverts)
					nverts++
				}
			}
		}
	} else {
		for i := 0; i < nin; i++ {
			hull = append(hull, i)
		}
	}

	// If the polygon minimum extent is small (sliver or small triangle), do not try to add internal points.
	if minExtent < sampleDist*2 {
		db.tris = triangulateHull(verts, hull, nin, db.tris)
		setTriFlags(db.tris, hull)
		return nverts
	}

	// Tessellate the base mesh.
	// We're using the triangulateHull instead of delaunayHull as it tends to
	// create a bit better triangulation for long thin triangles when there
	// are no internal points.
	db.tris = triangulateHull(verts, hull, nin, db.tris)

	if len(db.tris) == 0 {
		// Could not triangulate the poly, make sure there is some valid data there.
		logger.L().Warn("buildPolyDetail: could not triangulate polygon", zap.String("stage", string(StageDetailMesh)), zap.Int("verts", nverts))
		return nverts
	}

	if sampleDist > 0 {
		// Create sample locations in a grid.
		bmin := [3]float32{in[0], in[1], in[2]}
		bmax := bmin
		for i := 1; i < nin; i++ {
			common.Vmin(bmin[:], common.GetVert3(in, i))
			common.Vmax(bmax[:], common.GetVert3(in, i))
		}
		x0 := int(math.Floor(float64(bmin[0] / sampleDist)))
		x1 := int(math.Ceil(float64(bmax[0] / sampleDist)))
		z0 := int(math.Floor(float64(bmin[2] / sampleDist)))
		z1 := int(math.Ceil(float64(bmax[2] / sampleDist)))
		db.samples = db.samples[:0]
		for z := z0; z < z1; z++ {
			for x := x0; x < x1; x++ {
				pt := []float32{float32(x) * sampleDist, (bmax[1] + bmin[1]) * 0.5, float32(z) * sampleDist}
				// Make sure the samples are not too close to the edges.
				if common.DistToPoly(nin, in, pt) > -sampleDist/2 {
					continue
				}
				h := getHeight(pt[0], pt[1], pt[2], cs, ics, chf.Ch, db.heightSearchRadius, &db.hp)
				db.samples = append(db.samples, x, int(h), z, 0) // Not added
			}
		}

		// Add the samples starting from the one that has the most
		// error. The procedure stops when all samples are added
		// or when the max error is within treshold.
		nsamples := len(db.samples) / 4
		for iter := 0; iter < nsamples; iter++ {
			if nverts >= MAX_VERTS {
				break
			}

			// Find sample with most error.
			var bestpt [3]float32
			bestd := float32(0)
			besti := -1
			for i := 0; i < nsamples; i++ {
				s := db.samples[i*4 : i*4+4]
				if s[3] != 0 {
					continue // skip added.
				}
				// The sample location is jittered to get rid of some bad triangulations
				// which are cause by symmetrical data from the grid structure.
				pt := []float32{
					float32(s[0])*sampleDist + getJitterX(i)*cs*0.1,
					float32(s[1]) * chf.Ch,
					float32(s[2])*sampleDist + getJitterY(i)*cs*0.1,
				}
				d := common.DistToTriMesh(pt, verts, db.tris, len(db.tris)/4)
				if d < 0 {
					continue // did not hit the mesh.
				}
				if d > bestd {
					bestd = d
					besti = i
					copy(bestpt[:], pt)
				}
			}
			// If the max error is within accepted threshold, stop tesselating.
			if bestd <= sampleMaxError || besti == -1 {
				break
			}
			// Mark sample as added.
			db.samples[besti*4+3] = 1
			// Add the new sample point.
			copy(verts[nverts*3:nverts*3+3], bestpt[:])
			nverts++

			// Create new triangulation.
			// TODO: Incremental add instead of full rebuild.
			db.tris, db.edges = delaunayHull(nverts, verts, hull, db.tris, db.edges)
		}
	}

	ntris := len(db.tris) / 4
	if ntris > MAX_TRIS {
		db.tris = db.tris[:MAX_TRIS*4]
		logger.L().Error("BuildDetail: shrinking triangle count", zap.String("stage", string(StageDetailMesh)),
			zap.Int("from", ntris), zap.Int("max", MAX_TRIS))
	}

	setTriFlags(db.tris, hull)
	return nverts
}

// Reads to the compact heightfield are offset by border size (bs)
// since border size offset is already removed from the polymesh vertices.
func (db *detailBuilder) seedArrayWithPolyCenter(poly []uint16, npoly int, verts [][3]uint16, bs int) {
	chf := db.chf
	hp := &db.hp
	offset := [9 * 2]int{0, 0, -1, -1, 0, -1, 1, -1, 1, 0, 1, 1, 0, 1, -1, 1, -1, 0}

	// Find cell closest to a poly vertex
	startCellX, startCellY, startSpanIndex := 0, 0, -1
	dmin := RC_UNSET_HEIGHT
	for j := 0; j < npoly && dmin > 0; j++ {
		for k := 0; k < 9 && dmin > 0; k++ {
			v := verts[poly[j]]
			ax := int(v[0]) + offset[k*2+0]
			ay := int(v[1])
			az := int(v[2]) + offset[k*2+1]
			if ax < hp.xmin || ax >= hp.xmin+hp.width || az < hp.ymin || az >= hp.ymin+hp.height {
				continue
			}
			c := chf.Cells[(ax+bs)+(az+bs)*chf.Width]
			for i := int(c.Index); i < int(c.Index)+int(c.Count) && dmin > 0; i++ {
				d := common.Abs(ay - int(chf.Spans[i].Y))
				if d < dmin {
					startCellX = ax
					startCellY = az
					startSpanIndex = i
					dmin = d
				}
			}
		}
	}

	db.queue = db.queue[:0]
	if startSpanIndex == -1 {
		logger.L().Warn("seedArrayWithPolyCenter: no span near polygon vertices", zap.String("stage", string(StageDetailMesh)), zap.Int("verts", npoly))
		return
	}

	// Find center of the polygon
	pcx, pcy := 0, 0
	for j := 0; j < npoly; j++ {
		pcx += int(verts[poly[j]][0])
		pcy += int(verts[poly[j]][2])
	}
	pcx /= npoly
	pcy /= npoly

	// Use seeds array as a stack for DFS
	db.queue = append(db.queue, startCellX, startCellY, startSpanIndex)

	dirs := [4]int{0, 1, 2, 3}
	common.Fill(hp.data[:hp.width*hp.height], 0)
	// DFS to move to the center. Note that we need a DFS here and can not just move
	// directly towards the center without recording intermediate nodes, even though the polygons
	// are convex. In very rare we can get stuck due to contour simplification if we do not
	// record nodes.
	cx, cy, ci := -1, -1, -1
	for {
		if len(db.queue) < 3 {
			logger.L().Warn("Walk towards polygon center failed to reach center", zap.String("stage", string(StageDetailMesh)))
			break
		}

		n := len(db.queue)
		cx, cy, ci = db.queue[n-3], db.queue[n-2], db.queue[n-1]
		db.queue = db.queue[:n-3]

		if cx == pcx && cy == pcy {
			break
		}

		// If we are already at the correct X-position, prefer direction
		// directly towards the center in the Y-axis; otherwise prefer
		// direction in the X-axis
		var directDir int
		if cx == pcx {
			if pcy > cy {
				directDir = common.GetDirForOffset(0, 1)
			} else {
				directDir = common.GetDirForOffset(0, -1)
			}
		} else {
			if pcx > cx {
				directDir = common.GetDirForOffset(1, 0)
			} else {
				directDir = common.GetDirForOffset(-1, 0)
			}
		}

		// Push the direct dir last so we start with this on next iteration
		dirs[directDir], dirs[3] = dirs[3], dirs[directDir]

		cs := chf.Spans[ci]
		for i := 0; i < 4; i++ {
			dir := dirs[i]
			con := cs.GetCon(dir)
			if con == RC_NOT_CONNECTED {
				continue
			}

			newX := cx + common.GetDirOffsetX(dir)
			newY := cy + common.GetDirOffsetY(dir)

			hpx := newX - hp.xmin
			hpy := newY - hp.ymin
			if hpx < 0 || hpx >= hp.width || hpy < 0 || hpy >= hp.height {
				continue
			}
			if hp.data[hpx+hpy*hp.width] != 0 {
				continue
			}

			hp.data[hpx+hpy*hp.width] = 1
			db.queue = append(db.queue, newX, newY, int(chf.Cells[(newX+bs)+(newY+bs)*chf.Width].Index)+con)
		}

		dirs[directDir], dirs[3] = dirs[3], dirs[directDir]
	}

	// getHeightData() will start from the found seed
	db.queue = append(db.queue[:0], cx+bs, cy+bs, ci)

	common.Fill(hp.data[:hp.width*hp.height], RC_UNSET_HEIGHT)
	hp.data[cx-hp.xmin+(cy-hp.ymin)*hp.width] = chf.Spans[ci].Y
}

func (db *detailBuilder) getHeightData(poly []uint16, npoly int, verts [][3]uint16, bs int, region uint16) {
	chf := db.chf
	hp := &db.hp
	// Note: Reads to the compact heightfield are offset by border size (bs)
	// since border size offset is already removed from the polymesh vertices.

	db.queue = db.queue[:0]
	// Set all heights to RC_UNSET_HEIGHT.
	common.Fill(hp.data[:hp.width*hp.height], RC_UNSET_HEIGHT)

	empty := true

	// We cannot sample from this poly if it was created from polys
	// of different regions. If it was then it could potentially be overlapping
	// with polys of that region and the heights sampled here could be wrong.
	if region != RC_MULTIPLE_REGS {
		// Copy the height from the same region, and mark region borders
		// as seed points to fill the rest.
		for hy := 0; hy < hp.height; hy++ {
			y := hp.ymin + hy + bs
			for hx := 0; hx < hp.width; hx++ {
				x := hp.xmin + hx + bs
				c := chf.Cells[x+y*chf.Width]
				for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
					s := chf.Spans[i]
					if s.Reg != region {
						continue
					}
					// Store height
					hp.data[hx+hy*hp.width] = s.Y
					empty = false

					// If any of the neighbours is not in same region,
					// add the current location as flood fill start
					border := false
					for dir := 0; dir < 4; dir++ {
						ai := chf.neighbor(x, y, i, dir)
						if ai >= 0 && chf.Spans[ai].Reg != region {
							border = true
							break
						}
					}
					if border {
						db.queue = append(db.queue, x, y, i)
					}
					break
				}
			}
		}
	}

	// if the polygon does not contain any points from the current region (rare, but happens)
	// or if it could potentially be overlapping polygons of the same region,
	// then use the center as the seed point.
	if empty {
		db.seedArrayWithPolyCenter(poly, npoly, verts, bs)
	}

	// We assume the seed is centered in the polygon, so a BFS to collect
	// height data will ensure we do not move onto overlapping polygons and
	// sample wrong heights.
	for head := 0; head*3 < len(db.queue); head++ {
		cx := db.queue[head*3+0]
		cy := db.queue[head*3+1]
		ci := db.queue[head*3+2]

		for dir := 0; dir < 4; dir++ {
			ai := chf.neighbor(cx, cy, ci, dir)
			if ai < 0 {
				continue
			}
			ax := cx + common.GetDirOffsetX(dir)
			ay := cy + common.GetDirOffsetY(dir)
			hx := ax - hp.xmin - bs
			hy := ay - hp.ymin - bs

			if hx < 0 || hx >= hp.width || hy < 0 || hy >= hp.height {
				continue
			}
			if hp.data[hx+hy*hp.width] != RC_UNSET_HEIGHT {
				continue
			}
			hp.data[hx+hy*hp.width] = chf.Spans[ai].Y
			db.queue = append(db.queue, ax, ay, ai)
		}
	}
}

// / Builds a detail mesh from the provided polygon mesh.
// /
// / @param[in]		chf				Compact heightfield used to build the contours.
// / @param[in]		sampleDist		Sets the distance to use when sampling the heightfield. [Limit: >=0] [Units: wu]
// / @param[in]		sampleMaxError	The maximum distance the detail mesh surface should deviate from
// / 								heightfield data. [Limit: >=0] [Units: wu]
func (mesh *PolygonNavmesh) BuildDetail(chf *CompactHeightfield, sampleDist, sampleMaxError float32) (*DetailNavmesh, error) {
	start := time.Now()
	dmesh := &DetailNavmesh{}
	npolys := mesh.PolygonCount()
	if len(mesh.Vertices) == 0 || npolys == 0 {
		return dmesh, nil
	}
	if chf == nil {
		return nil, newError(StageDetailMesh, ErrInvalidInput, "missing compact heightfield")
	}

	nvp := mesh.MaxVerticesPerPolygon
	cs := mesh.CellSize
	ch := mesh.CellHeight
	orig := mesh.Aabb.Min
	borderSize := mesh.BorderSize
	heightSearchRadius := max(1, int(math.Ceil(float64(mesh.MaxEdgeError))))

	bounds := make([]int, npolys*4)
	poly := make([]float32, nvp*3)

	// Find max size for a polygon area.
	maxhw, maxhh := 0, 0
	for i := 0; i < npolys; i++ {
		p := mesh.Polygon(i)
		xmin, xmax := chf.Width, 0
		ymin, ymax := chf.Height, 0
		for j := 0; j < nvp; j++ {
			if p[j] == RC_MESH_NULL_IDX {
				break
			}
			v := mesh.Vertices[p[j]]
			xmin = min(xmin, int(v[0]))
			xmax = max(xmax, int(v[0]))
			ymin = min(ymin, int(v[2]))
			ymax = max(ymax, int(v[2]))
		}
		xmin = max(0, xmin-1)
		xmax = min(chf.Width, xmax+1)
		ymin = max(0, ymin-1)
		ymax = min(chf.Height, ymax+1)
		bounds[i*4+0], bounds[i*4+1], bounds[i*4+2], bounds[i*4+3] = xmin, xmax, ymin, ymax
		if xmin >= xmax || ymin >= ymax {
			continue
		}
		maxhw = max(maxhw, xmax-xmin)
		maxhh = max(maxhh, ymax-ymin)
	}

	db := &detailBuilder{
		chf:                chf,
		sampleDist:         sampleDist,
		sampleMaxError:     sampleMaxError,
		heightSearchRadius: heightSearchRadius,
		hp:                 heightPatch{data: make([]uint16, maxhw*maxhh)},
		verts:              make([]float32, (MAX_VERTS+nvp)*3),
		tris:               make([]int, 0, 512),
		edges:              make([]int, 0, 64),
		samples:            make([]int, 0, 512),
		queue:              make([]int, 0, 512),
	}

	dmesh.Meshes = make([]DetailSubMesh, npolys)
	for i := 0; i < npolys; i++ {
		p := mesh.Polygon(i)

		// Store polygon vertices for processing.
		npoly := 0
		for j := 0; j < nvp; j++ {
			if p[j] == RC_MESH_NULL_IDX {
				break
			}
			v := mesh.Vertices[p[j]]
			poly[j*3+0] = float32(v[0]) * cs
			poly[j*3+1] = float32(v[1]) * ch
			poly[j*3+2] = float32(v[2]) * cs
			npoly++
		}

		// Get the height data from the area of the polygon.
		db.hp.xmin = bounds[i*4+0]
		db.hp.ymin = bounds[i*4+2]
		db.hp.width = max(0, bounds[i*4+1]-bounds[i*4+0])
		db.hp.height = max(0, bounds[i*4+3]-bounds[i*4+2])

		var nverts int
		if db.hp.width == 0 || db.hp.height == 0 {
			// Nothing to sample, keep the flat polygon.
			copy(db.verts, poly[:npoly*3])
			nverts = npoly
			hull := make([]int, npoly)
			for j := range hull {
				hull[j] = j
			}
			db.tris = triangulateHull(db.verts, hull, npoly, db.tris[:0])
			setTriFlags(db.tris, hull)
		} else {
			db.getHeightData(p, npoly, mesh.Vertices, borderSize, mesh.Regions[i])
			// Build detail mesh.
			nverts = db.buildPolyDetail(poly, npoly)
		}

		// Store detail submesh.
		ntris := len(db.tris) / 4
		dmesh.Meshes[i] = DetailSubMesh{
			BaseVertexIndex:   uint32(len(dmesh.Vertices)),
			VertexCount:       uint32(nverts),
			BaseTriangleIndex: uint32(len(dmesh.Triangles)),
			TriangleCount:     uint32(ntris),
		}

		// Move detail verts to world space.
		for j := 0; j < nverts; j++ {
			v := common.GetVert3(db.verts, j)
			dmesh.Vertices = append(dmesh.Vertices, common.Vec3{
				v[0] + orig[0],
				v[1] + orig[1] + chf.Ch,
				v[2] + orig[2],
			})
		}
		for j := 0; j < ntris; j++ {
			t := db.tris[j*4 : j*4+4]
			dmesh.Triangles = append(dmesh.Triangles, [3]uint8{uint8(t[0]), uint8(t[1]), uint8(t[2])})
			dmesh.TriangleFlags = append(dmesh.TriangleFlags, uint8(t[3]))
		}
	}

	logger.L().Debug("BuildDetail",
		zap.String("stage", string(StageDetailMesh)),
		zap.Int("meshes", len(dmesh.Meshes)),
		zap.Int("vertices", len(dmesh.Vertices)),
		zap.Int("triangles", len(dmesh.Triangles)),
		zap.Duration("took", time.Since(start)))
	return dmesh, nil
}
