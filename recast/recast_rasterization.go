package recast

import (
	"math"

	"github.com/gorustyt/gorerecast/common"
)

const (
	/// The number of spans allocated per span spool.
	/// @see SpanPool
	RC_SPANS_PER_POOL = 2048
	/// Defines the number of bits allocated to Span::Smin and Span::Smax.
	RC_SPAN_HEIGHT_BITS = 13
	/// Defines the maximum value for Span::Smin and Span::Smax.
	RC_SPAN_MAX_HEIGHT = (1 << RC_SPAN_HEIGHT_BITS) - 1
)

// / Represents a span in a heightfield.
// / @see Heightfield
type Span struct {
	Smin uint16   ///< The lower limit of the span. [Limit: < #smax]
	Smax uint16   ///< The upper limit of the span. [Limit: <= #RC_SPAN_MAX_HEIGHT]
	Area AreaType ///< The area id assigned to the span.
	Next *Span    ///< The next span higher up in column.
}

// / A memory pool used for quick allocation of spans within a heightfield.
// / @see Heightfield
type spanPool struct {
	next  *spanPool               ///< The next span pool.
	items [RC_SPANS_PER_POOL]Span ///< Array of spans in the pool.
}

// / A dynamic heightfield representing obstructed space.
// / @ingroup recast
type Heightfield struct {
	Width  int     ///< The width of the heightfield. (Along the x-axis in cell units.)
	Height int     ///< The height of the heightfield. (Along the z-axis in cell units.)
	Aabb   Aabb3d  ///< The bounds in world space.
	Cs     float32 ///< The size of each cell. (On the xz-plane.)
	Ch     float32 ///< The height of each cell. (The minimum increment along the y-axis.)
	Spans  []*Span ///< Heightfield of spans (width*height).

	pools    *spanPool ///< Linked list of span pools.
	freelist *Span     ///< The next free span.
}

// NewHeightfield allocates an empty heightfield covering aabb.
func NewHeightfield(aabb Aabb3d, cellSize, cellHeight float32) (*Heightfield, error) {
	if !(cellSize > 0) || !(cellHeight > 0) {
		return nil, newError(StageHeightfield, ErrConfig, "cell size %v and cell height %v must be positive", cellSize, cellHeight)
	}
	if !aabb.Valid() {
		return nil, newError(StageHeightfield, ErrConfig, "invalid bounds %v..%v", aabb.Min, aabb.Max)
	}
	width, height := CalcGridSize(aabb, cellSize)
	if width <= 0 || height <= 0 {
		return nil, newError(StageHeightfield, ErrEmptyInput, "bounds %v..%v cover no cells", aabb.Min, aabb.Max)
	}
	return &Heightfield{
		Width:  width,
		Height: height,
		Aabb:   aabb,
		Cs:     cellSize,
		Ch:     cellHeight,
		Spans:  make([]*Span, width*height),
	}, nil
}

// Column returns the first span of column (x, z).
func (hf *Heightfield) Column(x, z int) *Span {
	return hf.Spans[x+z*hf.Width]
}

// SpanCount returns the number of spans with a non-null area.
func (hf *Heightfield) SpanCount() int {
	spanCount := 0
	for _, span := range hf.Spans {
		for ; span != nil; span = span.Next {
			if span.Area != RC_NULL_AREA {
				spanCount++
			}
		}
	}
	return spanCount
}

// / Releases the memory used by the span back to the heightfield, so it can be re-used for new spans.
func (hf *Heightfield) freeSpan(span *Span) {
	if span == nil {
		return
	}
	// Add the span to the front of the free list.
	span.Next = hf.freelist
	hf.freelist = span
}

// / Allocates a new span in the heightfield.
// / Use a memory pool and free list to minimize actual allocations.
func (hf *Heightfield) allocSpan() *Span {
	// If necessary, allocate new page and update the freelist.
	if hf.freelist == nil || hf.freelist.Next == nil {
		pool := &spanPool{next: hf.pools}
		hf.pools = pool
		freeList := hf.freelist
		for i := RC_SPANS_PER_POOL - 1; i >= 0; i-- {
			pool.items[i].Next = freeList
			freeList = &pool.items[i]
		}
		hf.freelist = freeList
	}
	// Pop item from the front of the free list.
	newSpan := hf.freelist
	hf.freelist = newSpan.Next
	*newSpan = Span{}
	return newSpan
}

// / Adds a span to the heightfield.  If the new span overlaps existing spans,
// / it will merge the new span with the existing ones.
// /
// / @param[in]	x					The new span's column cell x index
// / @param[in]	z					The new span's column cell z index
// / @param[in]	spanMin				The new span's minimum cell index
// / @param[in]	spanMax				The new span's maximum cell index
// / @param[in]	areaID				The new span's area type ID
// / @param[in]	flagMergeThreshold	How close two spans maximum extents need to be to merge area type IDs
func (hf *Heightfield) AddSpan(x, z int, spanMin, spanMax uint16, areaID AreaType, flagMergeThreshold int) {
	newSpan := hf.allocSpan()
	newSpan.Smin = spanMin
	newSpan.Smax = spanMax
	newSpan.Area = areaID

	columnIndex := x + z*hf.Width
	var previousSpan *Span
	currentSpan := hf.Spans[columnIndex]

	// Insert the new span, possibly merging it with existing spans.
	for currentSpan != nil {
		if currentSpan.Smin > newSpan.Smax {
			// Current span is completely after the new span, break.
			break
		}
		if currentSpan.Smax < newSpan.Smin {
			// Current span is completely before the new span.  Keep going.
			previousSpan = currentSpan
			currentSpan = currentSpan.Next
			continue
		}

		// The new span overlaps with an existing span.  Merge them.
		newSpan.Smin = min(newSpan.Smin, currentSpan.Smin)
		newSpan.Smax = max(newSpan.Smax, currentSpan.Smax)

		// Merge flags.
		if common.Abs(int(newSpan.Smax)-int(currentSpan.Smax)) <= flagMergeThreshold {
			// Higher area ID numbers indicate higher resolution priority.
			newSpan.Area = max(newSpan.Area, currentSpan.Area)
		}

		// Remove the current span since it's now merged with newSpan.
		// Keep going because there might be other overlapping spans that also need to be merged.
		next := currentSpan.Next
		hf.freeSpan(currentSpan)
		if previousSpan != nil {
			previousSpan.Next = next
		} else {
			hf.Spans[columnIndex] = next
		}
		currentSpan = next
	}

	// Insert new span after prev
	if previousSpan != nil {
		newSpan.Next = previousSpan.Next
		previousSpan.Next = newSpan
	} else {
		// This span should go before the others in the list
		newSpan.Next = hf.Spans[columnIndex]
		hf.Spans[columnIndex] = newSpan
	}
}

type axis int

const (
	axisX axis = 0
	axisY axis = 1
	axisZ axis = 2
)

// / Divides a convex polygon of max 12 vertices into two convex polygons
// / across a separating axis.
// /
// / @param[in]	inVerts			The input polygon vertices
// / @param[in]	inVertsCount	The number of input polygon vertices
// / @param[out]	outVerts1		Resulting polygon 1's vertices
// / @param[out]	outVerts2		Resulting polygon 2's vertices
// / @param[in]	axisOffset		THe offset along the specified axis
// / @param[in]	axis			The separating axis
// / @return the vertex counts of polygon 1 and polygon 2
func dividePoly(inVerts []float32, inVertsCount int, outVerts1, outVerts2 []float32,
	axisOffset float32, ax axis) (outVerts1Count, outVerts2Count int) {
	// How far positive or negative away from the separating axis is each vertex.
	var inVertAxisDelta [12]float32
	for inVert := 0; inVert < inVertsCount; inVert++ {
		inVertAxisDelta[inVert] = axisOffset - inVerts[inVert*3+int(ax)]
	}

	poly1Vert := 0
	poly2Vert := 0
	for inVertA, inVertB := 0, inVertsCount-1; inVertA < inVertsCount; inVertB, inVertA = inVertA, inVertA+1 {
		// If the two vertices are on the same side of the separating axis
		sameSide := (inVertAxisDelta[inVertA] >= 0) == (inVertAxisDelta[inVertB] >= 0)
		if !sameSide {
			s := inVertAxisDelta[inVertB] / (inVertAxisDelta[inVertB] - inVertAxisDelta[inVertA])
			a := common.GetVert3(inVerts, inVertA)
			b := common.GetVert3(inVerts, inVertB)
			out1 := common.GetVert3(outVerts1, poly1Vert)
			out1[0] = b[0] + (a[0]-b[0])*s
			out1[1] = b[1] + (a[1]-b[1])*s
			out1[2] = b[2] + (a[2]-b[2])*s
			copy(common.GetVert3(outVerts2, poly2Vert), out1)
			poly1Vert++
			poly2Vert++

			// add the inVertA point to the right polygon. Do NOT add points that are on the dividing line
			// since these were already added above
			if inVertAxisDelta[inVertA] > 0 {
				copy(common.GetVert3(outVerts1, poly1Vert), a)
				poly1Vert++
			} else if inVertAxisDelta[inVertA] < 0 {
				copy(common.GetVert3(outVerts2, poly2Vert), a)
				poly2Vert++
			}
			continue
		}

		// add the inVertA point to the right polygon. Addition is done even for points on the dividing line
		if inVertAxisDelta[inVertA] >= 0 {
			copy(common.GetVert3(outVerts1, poly1Vert), common.GetVert3(inVerts, inVertA))
			poly1Vert++
			if inVertAxisDelta[inVertA] != 0 {
				continue
			}
		}
		copy(common.GetVert3(outVerts2, poly2Vert), common.GetVert3(inVerts, inVertA))
		poly2Vert++
	}
	return poly1Vert, poly2Vert
}

// / Rasterize a single triangle to the heightfield.
// /
// / This code is extremely hot, so much care should be given to maintaining maximum perf here.
func (hf *Heightfield) rasterizeTri(v0, v1, v2 []float32, areaID AreaType,
	inverseCellSize, inverseCellHeight float32, flagMergeThreshold int) {
	bmin := hf.Aabb.Min
	bmax := hf.Aabb.Max
	cellSize := hf.Cs

	// Calculate the bounding box of the triangle.
	triBBMin := []float32{v0[0], v0[1], v0[2]}
	triBBMax := []float32{v0[0], v0[1], v0[2]}
	common.Vmin(triBBMin, v1)
	common.Vmin(triBBMin, v2)
	common.Vmax(triBBMax, v1)
	common.Vmax(triBBMax, v2)

	// If the triangle does not touch the bounding box of the heightfield, skip the triangle.
	if !common.OverlapBounds(triBBMin, triBBMax, bmin[:], bmax[:]) {
		return
	}

	w := hf.Width
	h := hf.Height
	by := bmax[1] - bmin[1]

	// Calculate the footprint of the triangle on the grid's z-axis
	z0 := int((triBBMin[2] - bmin[2]) * inverseCellSize)
	z1 := int((triBBMax[2] - bmin[2]) * inverseCellSize)

	// use -1 rather than 0 to cut the polygon properly at the start of the tile
	z0 = common.Clamp(z0, -1, h-1)
	z1 = common.Clamp(z1, 0, h-1)

	// Clip the triangle into all grid cells it touches.
	var buf [7 * 3 * 4]float32
	in := buf[0 : 7*3]
	inRow := buf[7*3 : 7*3*2]
	p1 := buf[7*3*2 : 7*3*3]
	p2 := buf[7*3*3 : 7*3*4]

	copy(in[0:], v0[:3])
	copy(in[3:], v1[:3])
	copy(in[6:], v2[:3])
	nvIn := 3

	for z := z0; z <= z1; z++ {
		// Clip polygon to row. Store the remaining polygon as well
		cellZ := bmin[2] + float32(z)*cellSize
		var nvRow int
		nvRow, nvIn = dividePoly(in, nvIn, inRow, p1, cellZ+cellSize, axisZ)
		in, p1 = p1, in

		if nvRow < 3 {
			continue
		}
		if z < 0 {
			continue
		}

		// find X-axis bounds of the row
		minX := inRow[0]
		maxX := inRow[0]
		for vert := 1; vert < nvRow; vert++ {
			minX = min(minX, inRow[vert*3])
			maxX = max(maxX, inRow[vert*3])
		}
		x0 := int((minX - bmin[0]) * inverseCellSize)
		x1 := int((maxX - bmin[0]) * inverseCellSize)
		if x1 < 0 || x0 >= w {
			continue
		}
		x0 = common.Clamp(x0, -1, w-1)
		x1 = common.Clamp(x1, 0, w-1)

		nv2 := nvRow
		for x := x0; x <= x1; x++ {
			// Clip polygon to column. store the remaining polygon as well
			cx := bmin[0] + float32(x)*cellSize
			var nv int
			nv, nv2 = dividePoly(inRow, nv2, p1, p2, cx+cellSize, axisX)
			inRow, p2 = p2, inRow

			if nv < 3 {
				continue
			}
			if x < 0 {
				continue
			}

			// Calculate min and max of the span.
			spanMin := p1[1]
			spanMax := p1[1]
			for vert := 1; vert < nv; vert++ {
				spanMin = min(spanMin, p1[vert*3+1])
				spanMax = max(spanMax, p1[vert*3+1])
			}
			spanMin -= bmin[1]
			spanMax -= bmin[1]

			// Skip the span if it's completely outside the heightfield bounding box
			if spanMax < 0.0 {
				continue
			}
			if spanMin > by {
				continue
			}

			// Clamp the span to the heightfield bounding box.
			spanMin = max(spanMin, 0)
			spanMax = min(spanMax, by)

			// Snap the span to the heightfield height grid.
			spanMinCellIndex := common.Clamp(int(math.Floor(float64(spanMin*inverseCellHeight))), 0, RC_SPAN_MAX_HEIGHT)
			spanMaxCellIndex := common.Clamp(int(math.Ceil(float64(spanMax*inverseCellHeight))), spanMinCellIndex+1, RC_SPAN_MAX_HEIGHT)

			hf.AddSpan(x, z, uint16(spanMinCellIndex), uint16(spanMaxCellIndex), areaID, flagMergeThreshold)
		}
	}
}

// RasterizeTriangle rasterizes a single triangle into the heightfield.
func (hf *Heightfield) RasterizeTriangle(v0, v1, v2 common.Vec3, areaID AreaType, flagMergeThreshold int) {
	hf.rasterizeTri(v0[:], v1[:], v2[:], areaID, 1.0/hf.Cs, 1.0/hf.Ch, flagMergeThreshold)
}

// RasterizeTriangles rasterizes every triangle of mesh. Spans within
// flagMergeThreshold cells of each other merge their area ids.
func (hf *Heightfield) RasterizeTriangles(mesh *TriMesh, flagMergeThreshold int) error {
	if err := mesh.Validate(); err != nil {
		err.(*BuildError).Stage = StageRasterize
		return err
	}
	mesh.normalizeAreas()
	inverseCellSize := 1.0 / hf.Cs
	inverseCellHeight := 1.0 / hf.Ch
	for i, tri := range mesh.Indices {
		v0 := mesh.Vertices[tri[0]]
		v1 := mesh.Vertices[tri[1]]
		v2 := mesh.Vertices[tri[2]]
		hf.rasterizeTri(v0[:], v1[:], v2[:], mesh.AreaTypes[i], inverseCellSize, inverseCellHeight, flagMergeThreshold)
	}
	return nil
}
