package recast

import (
	"slices"
	"time"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/common/logger"
	"go.uber.org/zap"
)

const (
	/// Applied to the region id field of contour vertices in order to extract the region id.
	/// The region id field of a vertex may have several flags applied to it.  So the
	/// fields value can't be used directly.
	/// @see Contour::Vertices, Contour::RawVertices
	RC_CONTOUR_REG_MASK = 0xffff
	/// Area border flag.
	/// If a region ID has this bit set, then the associated element lies on
	/// the border of an area.
	/// (Used during the region and contour build process.)
	RC_AREA_BORDER = 0x20000
	/// Border vertex flag.
	/// If a region ID has this bit set, then the associated element lies on
	/// a tile border. If a contour vertex's region ID has this bit set, the
	/// vertex will later be removed in order to match the segments and vertices
	/// at tile boundaries.
	/// (Used during the build process.)
	RC_BORDER_VERTEX = 0x10000
)

// / Represents a simple, non-overlapping contour in field space.
type Contour struct {
	Vertices    []int    ///< Simplified contour vertex and connection data. [Size: 4 * #nverts]
	RawVertices []int    ///< Raw contour vertex and connection data. [Size: 4 * #nrverts]
	Region      uint16   ///< The region id of the contour.
	Area        AreaType ///< The area id of the contour.
}

// VertexCount returns the number of simplified vertices.
func (c *Contour) VertexCount() int {
	return len(c.Vertices) / 4
}

// / Represents a group of related contours.
type ContourSet struct {
	Contours   []*Contour ///< An array of the contours in the set.
	Aabb       Aabb3d     ///< The bounds in world space.
	Cs         float32    ///< The size of each cell. (On the xz-plane.)
	Ch         float32    ///< The height of each cell. (The minimum increment along the y-axis.)
	Width      int        ///< The width of the set. (Along the x-axis in cell units.)
	Height     int        ///< The height of the set. (Along the z-axis in cell units.)
	BorderSize int        ///< The AABB border size used to generate the source data from which the contours were derived.
	MaxError   float32    ///< The max edge error that this contour set was simplified with.
}

func (chf *CompactHeightfield) getCornerHeight(x, y, i, dir int) (height int, isBorderVertex bool) {
	s := chf.Spans[i]
	height = int(s.Y)
	dirp := (dir + 1) & 0x3

	var regs [4]uint32

	// Combine region and area codes in order to prevent
	// border vertices which are in between two areas to be removed.
	regs[0] = uint32(chf.Spans[i].Reg) | uint32(chf.Areas[i])<<16

	if ai := chf.neighbor(x, y, i, dir); ai >= 0 {
		ax := x + common.GetDirOffsetX(dir)
		ay := y + common.GetDirOffsetY(dir)
		height = max(height, int(chf.Spans[ai].Y))
		regs[1] = uint32(chf.Spans[ai].Reg) | uint32(chf.Areas[ai])<<16
		if ai2 := chf.neighbor(ax, ay, ai, dirp); ai2 >= 0 {
			height = max(height, int(chf.Spans[ai2].Y))
			regs[2] = uint32(chf.Spans[ai2].Reg) | uint32(chf.Areas[ai2])<<16
		}
	}
	if ai := chf.neighbor(x, y, i, dirp); ai >= 0 {
		ax := x + common.GetDirOffsetX(dirp)
		ay := y + common.GetDirOffsetY(dirp)
		height = max(height, int(chf.Spans[ai].Y))
		regs[3] = uint32(chf.Spans[ai].Reg) | uint32(chf.Areas[ai])<<16
		if ai2 := chf.neighbor(ax, ay, ai, dir); ai2 >= 0 {
			height = max(height, int(chf.Spans[ai2].Y))
			regs[2] = uint32(chf.Spans[ai2].Reg) | uint32(chf.Areas[ai2])<<16
		}
	}

	// Check if the vertex is special edge vertex, these vertices will be removed later.
	for j := 0; j < 4; j++ {
		a := j
		b := (j + 1) & 0x3
		c := (j + 2) & 0x3
		d := (j + 3) & 0x3

		// The vertex is a border vertex there are two same exterior cells in a row,
		// followed by two interior cells and none of the regions are out of bounds.
		twoSameExts := (regs[a]&regs[b]&RC_BORDER_REG) != 0 && regs[a] == regs[b]
		twoInts := ((regs[c] | regs[d]) & RC_BORDER_REG) == 0
		intsSameArea := (regs[c] >> 16) == (regs[d] >> 16)
		noZeros := regs[a] != 0 && regs[b] != 0 && regs[c] != 0 && regs[d] != 0
		if twoSameExts && twoInts && intsSameArea && noZeros {
			isBorderVertex = true
			break
		}
	}
	return height, isBorderVertex
}

func (chf *CompactHeightfield) walkContour(x, y, i int, flags []uint8, points []int) []int {
	// Choose the first non-connected edge
	dir := 0
	for flags[i]&(1<<dir) == 0 {
		dir++
	}

	startDir := dir
	starti := i

	area := chf.Areas[i]

	for iter := 1; iter < 40000; iter++ {
		if flags[i]&(1<<dir) != 0 {
			// Choose the edge corner
			isAreaBorder := false
			px := x
			py, isBorderVertex := chf.getCornerHeight(x, y, i, dir)
			pz := y
			switch dir {
			case 0:
				pz++
			case 1:
				px++
				pz++
			case 2:
				px++
			}
			r := 0
			if ai := chf.neighbor(x, y, i, dir); ai >= 0 {
				r = int(chf.Spans[ai].Reg)
				if area != chf.Areas[ai] {
					isAreaBorder = true
				}
			}
			if isBorderVertex {
				r |= RC_BORDER_VERTEX
			}
			if isAreaBorder {
				r |= RC_AREA_BORDER
			}
			points = append(points, px, py, pz, r)

			flags[i] &^= 1 << dir // Remove visited edges
			dir = (dir + 1) & 0x3 // Rotate CW
		} else {
			ni := chf.neighbor(x, y, i, dir)
			if ni < 0 {
				// Should not happen.
				return points
			}
			x += common.GetDirOffsetX(dir)
			y += common.GetDirOffsetY(dir)
			i = ni
			dir = (dir + 3) & 0x3 // Rotate CCW
		}

		if starti == i && startDir == dir {
			break
		}
	}
	return points
}

func insertContourPoint(simplified []int, at int, points []int, pi int) []int {
	return slices.Insert(simplified, at*4, points[pi*4+0], points[pi*4+1], points[pi*4+2], pi)
}

func simplifyContour(points, simplified []int, maxError float32, maxEdgeLen int, buildFlags ContourFlags) []int {
	// Add initial points.
	hasConnections := false
	for i := 0; i < len(points); i += 4 {
		if points[i+3]&RC_CONTOUR_REG_MASK != 0 {
			hasConnections = true
			break
		}
	}

	pn := len(points) / 4
	if hasConnections {
		// The contour has some portals to other regions.
		// Add a new point to every location where the region changes.
		for i := 0; i < pn; i++ {
			ii := (i + 1) % pn
			differentRegs := points[i*4+3]&RC_CONTOUR_REG_MASK != points[ii*4+3]&RC_CONTOUR_REG_MASK
			areaBorders := points[i*4+3]&RC_AREA_BORDER != points[ii*4+3]&RC_AREA_BORDER
			if differentRegs || areaBorders {
				simplified = append(simplified, points[i*4+0], points[i*4+1], points[i*4+2], i)
			}
		}
	}

	if len(simplified) == 0 {
		// If there is no connections at all,
		// create some initial points for the simplification process.
		// Find lower-left and upper-right vertices of the contour.
		llx, lly, llz, lli := points[0], points[1], points[2], 0
		urx, ury, urz, uri := points[0], points[1], points[2], 0
		for i := 0; i < len(points); i += 4 {
			x := points[i+0]
			y := points[i+1]
			z := points[i+2]
			if x < llx || (x == llx && z < llz) {
				llx, lly, llz, lli = x, y, z, i/4
			}
			if x > urx || (x == urx && z > urz) {
				urx, ury, urz, uri = x, y, z, i/4
			}
		}
		simplified = append(simplified, llx, lly, llz, lli, urx, ury, urz, uri)
	}

	// Add points until all raw points are within
	// error tolerance to the simplified shape.
	for i := 0; i < len(simplified)/4; {
		ii := (i + 1) % (len(simplified) / 4)

		ax := simplified[i*4+0]
		az := simplified[i*4+2]
		ai := simplified[i*4+3]

		bx := simplified[ii*4+0]
		bz := simplified[ii*4+2]
		bi := simplified[ii*4+3]

		// Find maximum deviation from the segment.
		var maxd float32
		maxi := -1
		var ci, cinc, endi int

		// Traverse the segment in lexilogical order so that the
		// max deviation is calculated similarly when traversing
		// opposite segments.
		if bx > ax || (bx == ax && bz > az) {
			cinc = 1
			ci = (ai + cinc) % pn
			endi = bi
		} else {
			cinc = pn - 1
			ci = (bi + cinc) % pn
			endi = ai
			ax, bx = bx, ax
			az, bz = bz, az
		}

		// Tessellate only outer edges or edges between areas.
		if points[ci*4+3]&RC_CONTOUR_REG_MASK == 0 || points[ci*4+3]&RC_AREA_BORDER != 0 {
			for ci != endi {
				d := common.ContourDistancePtSeg(points[ci*4+0], points[ci*4+2], ax, az, bx, bz)
				if d > maxd {
					maxd = d
					maxi = ci
				}
				ci = (ci + cinc) % pn
			}
		}

		// If the max deviation is larger than accepted error,
		// add new point, else continue to next segment.
		if maxi != -1 && maxd > maxError*maxError {
			simplified = insertContourPoint(simplified, i+1, points, maxi)
		} else {
			i++
		}
	}

	// Split too long edges.
	if maxEdgeLen > 0 && buildFlags&(RC_CONTOUR_TESS_WALL_EDGES|RC_CONTOUR_TESS_AREA_EDGES) != 0 {
		for i := 0; i < len(simplified)/4; {
			ii := (i + 1) % (len(simplified) / 4)

			ax := simplified[i*4+0]
			az := simplified[i*4+2]
			ai := simplified[i*4+3]

			bx := simplified[ii*4+0]
			bz := simplified[ii*4+2]
			bi := simplified[ii*4+3]

			// Find maximum deviation from the segment.
			maxi := -1
			ci := (ai + 1) % pn

			// Tessellate only outer edges or edges between areas.
			tess := false
			// Wall edges.
			if buildFlags&RC_CONTOUR_TESS_WALL_EDGES != 0 && points[ci*4+3]&RC_CONTOUR_REG_MASK == 0 {
				tess = true
			}
			// Edges between areas.
			if buildFlags&RC_CONTOUR_TESS_AREA_EDGES != 0 && points[ci*4+3]&RC_AREA_BORDER != 0 {
				tess = true
			}

			if tess {
				dx := bx - ax
				dz := bz - az
				if dx*dx+dz*dz > maxEdgeLen*maxEdgeLen {
					// Round based on the segments in lexilogical order so that the
					// max tesselation is consistent regardless in which direction
					// segments are traversed.
					n := bi - ai
					if bi < ai {
						n = bi + pn - ai
					}
					if n > 1 {
						if bx > ax || (bx == ax && bz > az) {
							maxi = (ai + n/2) % pn
						} else {
							maxi = (ai + (n+1)/2) % pn
						}
					}
				}
			}

			// If the max deviation is larger than accepted error,
			// add new point, else continue to next segment.
			if maxi != -1 {
				simplified = insertContourPoint(simplified, i+1, points, maxi)
			} else {
				i++
			}
		}
	}

	for i := 0; i < len(simplified)/4; i++ {
		// The edge vertex flag is take from the current raw point,
		// and the neighbour region is take from the next raw point.
		ai := (simplified[i*4+3] + 1) % pn
		bi := simplified[i*4+3]
		simplified[i*4+3] = (points[ai*4+3] & (RC_CONTOUR_REG_MASK | RC_AREA_BORDER)) | (points[bi*4+3] & RC_BORDER_VERTEX)
	}
	return simplified
}

func removeDegenerateSegments(simplified []int) []int {
	// Remove adjacent vertices which are equal on xz-plane,
	// or else the triangulator will get confused.
	npts := len(simplified) / 4
	for i := 0; i < npts; i++ {
		ni := common.Next(i, npts)
		if simplified[i*4] == simplified[ni*4] && simplified[i*4+2] == simplified[ni*4+2] {
			// Degenerate segment, remove.
			simplified = slices.Delete(simplified, i*4, i*4+4)
			npts--
		}
	}
	return simplified
}

func mergeContours(ca, cb *Contour, ia, ib int) {
	na := ca.VertexCount()
	nb := cb.VertexCount()
	verts := make([]int, 0, (na+nb+2)*4)

	// Copy contour A.
	for i := 0; i <= na; i++ {
		verts = append(verts, common.GetVert4(ca.Vertices, (ia+i)%na)...)
	}
	// Copy contour B
	for i := 0; i <= nb; i++ {
		verts = append(verts, common.GetVert4(cb.Vertices, (ib+i)%nb)...)
	}

	ca.Vertices = verts
	cb.Vertices = nil
}

type contourHole struct {
	contour              *Contour
	minx, minz, leftmost int
}

type contourRegion struct {
	outline *Contour
	holes   []*contourHole
}

type potentialDiagonal struct {
	vert int
	dist int
}

// Finds the lowest leftmost vertex of a contour.
func findLeftMostVertex(contour *Contour) (minx, minz, leftmost int) {
	minx = contour.Vertices[0]
	minz = contour.Vertices[2]
	for i := 1; i < contour.VertexCount(); i++ {
		x := contour.Vertices[i*4+0]
		z := contour.Vertices[i*4+2]
		if x < minx || (x == minx && z < minz) {
			minx = x
			minz = z
			leftmost = i
		}
	}
	return
}

func compareHoles(a, b *contourHole) int {
	if a.minx == b.minx {
		return a.minz - b.minz
	}
	return a.minx - b.minx
}

func contourInCone(i, n int, verts, pj []int) bool {
	pi := common.GetVert4(verts, i)
	pi1 := common.GetVert4(verts, common.Next(i, n))
	pin1 := common.GetVert4(verts, common.Prev(i, n))

	// If P[i] is a convex vertex [ i+1 left or on (i-1,i) ].
	if common.LeftOn(pin1, pi, pi1) {
		return common.Left(pi, pj, pin1) && common.Left(pj, pi, pi1)
	}
	// Assume (i-1,i,i+1) not collinear.
	// else P[i] is reflex.
	return !(common.LeftOn(pi, pj, pi1) && common.LeftOn(pj, pi, pin1))
}

func mergeRegionHoles(region *contourRegion) {
	// Sort holes from left to right.
	for _, hole := range region.holes {
		hole.minx, hole.minz, hole.leftmost = findLeftMostVertex(hole.contour)
	}
	slices.SortStableFunc(region.holes, compareHoles)

	maxVerts := region.outline.VertexCount()
	for _, hole := range region.holes {
		maxVerts += hole.contour.VertexCount()
	}
	diags := make([]potentialDiagonal, 0, maxVerts)

	outline := region.outline

	// Merge holes into the outline one by one.
	for i, h := range region.holes {
		hole := h.contour
		nhv := hole.VertexCount()

		index := -1
		bestVertex := h.leftmost
		for iter := 0; iter < nhv; iter++ {
			// Find potential diagonals.
			// The 'best' vertex must be in the cone described by 3 consecutive vertices of the outline.
			// ..o j-1
			//   |
			//   |   * best
			//   |
			// j o-----o j+1
			//         :
			diags = diags[:0]
			corner := common.GetVert4(hole.Vertices, bestVertex)
			nov := outline.VertexCount()
			for j := 0; j < nov; j++ {
				if contourInCone(j, nov, outline.Vertices, corner) {
					dx := outline.Vertices[j*4+0] - corner[0]
					dz := outline.Vertices[j*4+2] - corner[2]
					diags = append(diags, potentialDiagonal{vert: j, dist: dx*dx + dz*dz})
				}
			}
			// Sort potential diagonals by distance, we want to make the connection as short as possible.
			slices.SortStableFunc(diags, func(a, b potentialDiagonal) int { return a.dist - b.dist })

			// Find a diagonal that is not intersecting the outline not the remaining holes.
			index = -1
			for _, diag := range diags {
				pt := common.GetVert4(outline.Vertices, diag.vert)
				intersect := common.IntersectSegContour(pt, corner, diag.vert, nov, outline.Vertices)
				for k := i; k < len(region.holes) && !intersect; k++ {
					other := region.holes[k].contour
					intersect = common.IntersectSegContour(pt, corner, -1, other.VertexCount(), other.Vertices)
				}
				if !intersect {
					index = diag.vert
					break
				}
			}
			// If found non-intersecting diagonal, stop looking.
			if index != -1 {
				break
			}
			// All the potential diagonals for the current vertex were intersecting, try next vertex.
			bestVertex = (bestVertex + 1) % nhv
		}

		if index == -1 {
			logger.L().Warn("mergeRegionHoles: failed to find merge points for hole",
				zap.String("stage", string(StageContours)),
				zap.Int("region", int(outline.Region)), zap.Int("hole", i))
			continue
		}
		mergeContours(region.outline, hole, index, bestVertex)
	}
}

// / Builds a contour set from the region outlines in the provided compact heightfield.
// /
// / The raw contours will match the region outlines exactly. The @p maxError and @p maxEdgeLen
// / parameters control how closely the simplified contours will match the raw contours.
// /
// / Simplified contours are generated such that the vertices for portals between areas match up.
// / (They are considered mandatory vertices.)
// /
// / Setting @p maxEdgeLength to zero will disabled the edge length feature.
// /
// / Contours that collapse below three vertices are dropped and logged.
func (chf *CompactHeightfield) BuildContours(maxError float32, maxEdgeLen int, buildFlags ContourFlags) *ContourSet {
	start := time.Now()
	w := chf.Width
	h := chf.Height
	borderSize := chf.BorderSize

	cset := &ContourSet{
		Aabb:       chf.Aabb,
		Cs:         chf.Cs,
		Ch:         chf.Ch,
		Width:      chf.Width - chf.BorderSize*2,
		Height:     chf.Height - chf.BorderSize*2,
		BorderSize: chf.BorderSize,
		MaxError:   maxError,
		Contours:   make([]*Contour, 0, max(int(chf.MaxRegions), 8)),
	}
	if borderSize > 0 {
		// If the heightfield was build with bordersize, remove the offset.
		pad := float32(borderSize) * chf.Cs
		cset.Aabb.Min[0] += pad
		cset.Aabb.Min[2] += pad
		cset.Aabb.Max[0] -= pad
		cset.Aabb.Max[2] -= pad
	}

	flags := make([]uint8, chf.SpanCount())

	// Mark boundaries.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				reg := chf.Spans[i].Reg
				if reg == 0 || reg&RC_BORDER_REG != 0 {
					flags[i] = 0
					continue
				}
				var res uint8
				for dir := 0; dir < 4; dir++ {
					var r uint16
					if ai := chf.neighbor(x, y, i, dir); ai >= 0 {
						r = chf.Spans[ai].Reg
					}
					if r == reg {
						res |= 1 << dir
					}
				}
				flags[i] = res ^ 0xf // Inverse, mark non connected edges.
			}
		}
	}

	verts := make([]int, 0, 256)
	simplified := make([]int, 0, 64)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+y*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				if flags[i] == 0 || flags[i] == 0xf {
					flags[i] = 0
					continue
				}
				reg := chf.Spans[i].Reg
				if reg == 0 || reg&RC_BORDER_REG != 0 {
					continue
				}
				area := chf.Areas[i]

				verts = chf.walkContour(x, y, i, flags, verts[:0])
				simplified = simplifyContour(verts, simplified[:0], maxError, maxEdgeLen, buildFlags)
				simplified = removeDegenerateSegments(simplified)

				// Store region->contour remap info.
				// Create contour.
				if len(simplified)/4 < 3 {
					logger.L().Warn("BuildContours: dropping degenerate contour",
						zap.String("stage", string(StageContours)),
						zap.Error(ErrDegenerateGeometry),
						zap.Int("region", int(reg)), zap.Int("vertices", len(simplified)/4))
					continue
				}

				cont := &Contour{
					Vertices:    slices.Clone(simplified),
					RawVertices: slices.Clone(verts),
					Region:      reg,
					Area:        area,
				}
				if borderSize > 0 {
					// If the heightfield was build with bordersize, remove the offset.
					for j := 0; j < len(cont.Vertices); j += 4 {
						cont.Vertices[j+0] -= borderSize
						cont.Vertices[j+2] -= borderSize
					}
					for j := 0; j < len(cont.RawVertices); j += 4 {
						cont.RawVertices[j+0] -= borderSize
						cont.RawVertices[j+2] -= borderSize
					}
				}
				cset.Contours = append(cset.Contours, cont)
			}
		}
	}

	cset.mergeHoles(int(chf.MaxRegions))

	logger.L().Debug("BuildContours",
		zap.String("stage", string(StageContours)),
		zap.Int("contours", len(cset.Contours)), zap.Duration("took", time.Since(start)))
	return cset
}

// mergeHoles stitches every clockwise contour into the outline of its region.
func (cset *ContourSet) mergeHoles(maxRegions int) {
	if len(cset.Contours) == 0 {
		return
	}
	// Calculate winding of all polygons.
	winding := make([]int, len(cset.Contours))
	nholes := 0
	for i, cont := range cset.Contours {
		// If the contour is wound backwards, it is a hole.
		winding[i] = 1
		if common.CalcAreaOfPolygon2D(cont.Vertices, cont.VertexCount()) < 0 {
			winding[i] = -1
			nholes++
		}
	}
	if nholes == 0 {
		return
	}

	// Collect outline contour and holes contours per region.
	// We assume that there is one outline and multiple holes.
	regions := make([]contourRegion, maxRegions+1)
	for i, cont := range cset.Contours {
		if int(cont.Region) >= len(regions) {
			continue
		}
		// Positively would contours are outlines, negative holes.
		reg := &regions[cont.Region]
		if winding[i] > 0 {
			if reg.outline != nil {
				logger.L().Warn("BuildContours: multiple outlines for region",
					zap.String("stage", string(StageContours)), zap.Int("region", int(cont.Region)))
			}
			reg.outline = cont
		} else {
			reg.holes = append(reg.holes, &contourHole{contour: cont})
		}
	}

	// Finally merge each regions holes into the outline.
	for i := range regions {
		reg := &regions[i]
		if len(reg.holes) == 0 {
			continue
		}
		if reg.outline != nil {
			mergeRegionHoles(reg)
		} else {
			// The region does not have an outline.
			// This can happen if the contour becaomes selfoverlapping because of
			// too aggressive simplification settings.
			logger.L().Warn("BuildContours: bad outline for region, contour simplification is likely too aggressive",
				zap.String("stage", string(StageContours)), zap.Int("region", i))
		}
	}

	// Holes merged into an outline leave an empty contour behind.
	cset.Contours = slices.DeleteFunc(cset.Contours, func(c *Contour) bool {
		return len(c.Vertices) == 0
	})
}
