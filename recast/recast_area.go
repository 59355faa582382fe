package recast

import (
	"slices"

	"github.com/gorustyt/gorerecast/common"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ConvexVolume overrides the area id of every span whose floor lies inside
// the prism formed by extruding Vertices (xz footprint) from MinHeight to
// MaxHeight.
type ConvexVolume struct {
	Vertices  []common.Vec3 `json:"vertices" yaml:"vertices"`
	MinHeight float32       `json:"min_height" yaml:"min_height"`
	MaxHeight float32       `json:"max_height" yaml:"max_height"`
	Area      AreaType      `json:"area" yaml:"area"`
}

// propagateDistance runs the two raster passes of a chamfer distance
// transform over dist: orthogonal steps cost 2, diagonal steps cost 3.
func (chf *CompactHeightfield) propagateDistance(dist []int) {
	relax := func(x, z, i, dir, diagDir int) {
		ai := chf.neighbor(x, z, i, dir)
		if ai < 0 {
			return
		}
		if nd := dist[ai] + 2; nd < dist[i] {
			dist[i] = nd
		}
		ax := x + common.GetDirOffsetX(dir)
		az := z + common.GetDirOffsetY(dir)
		bi := chf.neighbor(ax, az, ai, diagDir)
		if bi < 0 {
			return
		}
		if nd := dist[bi] + 3; nd < dist[i] {
			dist[i] = nd
		}
	}

	// Pass 1
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			cell := chf.Cells[x+z*chf.Width]
			for i := int(cell.Index); i < int(cell.Index)+int(cell.Count); i++ {
				// (-1,0) then (-1,-1)
				relax(x, z, i, 0, 3)
				// (0,-1) then (1,-1)
				relax(x, z, i, 3, 2)
			}
		}
	}

	// Pass 2
	for z := chf.Height - 1; z >= 0; z-- {
		for x := chf.Width - 1; x >= 0; x-- {
			cell := chf.Cells[x+z*chf.Width]
			for i := int(cell.Index); i < int(cell.Index)+int(cell.Count); i++ {
				// (1,0) then (1,1)
				relax(x, z, i, 2, 1)
				// (0,1) then (-1,1)
				relax(x, z, i, 1, 0)
			}
		}
	}
}

// / Erodes the walkable area within the heightfield by the specified radius.
// /
// / Basically, any spans that are closer to a boundary or obstruction than the specified radius
// / are marked as un-walkable.
// /
// / @param[in]		erosionRadius	The radius of erosion. [Limits: 0 < value < 255] [Units: vx]
func (chf *CompactHeightfield) ErodeWalkableArea(erosionRadius int) {
	distanceToBoundary := make([]int, chf.SpanCount())
	common.Fill(distanceToBoundary, 0xff)

	// Mark boundary cells.
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			cell := chf.Cells[x+z*chf.Width]
			for spanIndex := int(cell.Index); spanIndex < int(cell.Index)+int(cell.Count); spanIndex++ {
				if chf.Areas[spanIndex] == RC_NULL_AREA {
					distanceToBoundary[spanIndex] = 0
					continue
				}
				// Check that there is a non-null adjacent span in each of the 4 cardinal directions.
				neighborCount := 0
				for direction := 0; direction < 4; direction++ {
					neighborSpanIndex := chf.neighbor(x, z, spanIndex, direction)
					if neighborSpanIndex < 0 || chf.Areas[neighborSpanIndex] == RC_NULL_AREA {
						break
					}
					neighborCount++
				}
				// At least one missing neighbour, so this is a boundary cell.
				if neighborCount != 4 {
					distanceToBoundary[spanIndex] = 0
				}
			}
		}
	}

	chf.propagateDistance(distanceToBoundary)

	minBoundaryDistance := erosionRadius * 2
	for spanIndex, d := range distanceToBoundary {
		if min(d, 0xff) < minBoundaryDistance {
			chf.Areas[spanIndex] = RC_NULL_AREA
		}
	}
}

// / Applies a median filter to walkable area types (based on area id), removing noise.
// /
// / This filter is usually applied after applying area id's using functions
// / such as #MarkBoxArea, #MarkConvexPolyArea, and #MarkCylinderArea.
func (chf *CompactHeightfield) MedianFilterWalkableArea() {
	areas := make([]AreaType, chf.SpanCount())
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			cell := chf.Cells[x+z*chf.Width]
			for spanIndex := int(cell.Index); spanIndex < int(cell.Index)+int(cell.Count); spanIndex++ {
				if chf.Areas[spanIndex] == RC_NULL_AREA {
					areas[spanIndex] = RC_NULL_AREA
					continue
				}

				var neighborAreas [9]AreaType
				for neighborIndex := range neighborAreas {
					neighborAreas[neighborIndex] = chf.Areas[spanIndex]
				}

				for dir := 0; dir < 4; dir++ {
					aIndex := chf.neighbor(x, z, spanIndex, dir)
					if aIndex < 0 {
						continue
					}
					if chf.Areas[aIndex] != RC_NULL_AREA {
						neighborAreas[dir*2+0] = chf.Areas[aIndex]
					}
					dir2 := (dir + 1) & 0x3
					bIndex := chf.neighbor(x+common.GetDirOffsetX(dir), z+common.GetDirOffsetY(dir), aIndex, dir2)
					if bIndex >= 0 && chf.Areas[bIndex] != RC_NULL_AREA {
						neighborAreas[dir*2+1] = chf.Areas[bIndex]
					}
				}
				slices.Sort(neighborAreas[:])
				areas[spanIndex] = neighborAreas[4]
			}
		}
	}
	chf.Areas = areas
}

// gridFootprint converts a world space box into clamped cell ranges. ok is
// false when the box misses the grid.
func (chf *CompactHeightfield) gridFootprint(bmin, bmax common.Vec3) (minX, minY, minZ, maxX, maxY, maxZ int, ok bool) {
	minX = int((bmin[0] - chf.Aabb.Min[0]) / chf.Cs)
	minY = int((bmin[1] - chf.Aabb.Min[1]) / chf.Ch)
	minZ = int((bmin[2] - chf.Aabb.Min[2]) / chf.Cs)
	maxX = int((bmax[0] - chf.Aabb.Min[0]) / chf.Cs)
	maxY = int((bmax[1] - chf.Aabb.Min[1]) / chf.Ch)
	maxZ = int((bmax[2] - chf.Aabb.Min[2]) / chf.Cs)

	// Early-out if the box is outside the bounds of the grid.
	if maxX < 0 || minX >= chf.Width || maxZ < 0 || minZ >= chf.Height {
		return 0, 0, 0, 0, 0, 0, false
	}
	// Clamp relevant bound coordinates to the grid.
	minX = max(minX, 0)
	maxX = min(maxX, chf.Width-1)
	minZ = max(minZ, 0)
	maxZ = min(maxZ, chf.Height-1)
	return minX, minY, minZ, maxX, maxY, maxZ, true
}

// / Applies an area id to all spans within the specified bounding box. (AABB)
func (chf *CompactHeightfield) MarkBoxArea(box Aabb3d, areaID AreaType) {
	minX, minY, minZ, maxX, maxY, maxZ, ok := chf.gridFootprint(box.Min, box.Max)
	if !ok {
		return
	}
	for z := minZ; z <= maxZ; z++ {
		for x := minX; x <= maxX; x++ {
			cell := chf.Cells[x+z*chf.Width]
			for spanIndex := int(cell.Index); spanIndex < int(cell.Index)+int(cell.Count); spanIndex++ {
				y := int(chf.Spans[spanIndex].Y)
				// Skip if the span is outside the box extents.
				if y < minY || y > maxY {
					continue
				}
				// Skip if the span has been removed.
				if chf.Areas[spanIndex] == RC_NULL_AREA {
					continue
				}
				chf.Areas[spanIndex] = areaID
			}
		}
	}
}

// / Applies the area id to the all spans within the specified convex polygon.
// /
// / The value of spacial parameters are in world units.
// /
// / The y-values of the polygon vertices are ignored. So the polygon is effectively
// / projected onto the xz-plane, translated to @p MinHeight, then extruded to @p MaxHeight.
func (chf *CompactHeightfield) MarkConvexPolyArea(volume ConvexVolume) {
	if len(volume.Vertices) < 3 {
		return
	}

	// Compute the bounding box of the polygon
	bmin := volume.Vertices[0]
	bmax := volume.Vertices[0]
	ring := make(orb.Ring, 0, len(volume.Vertices)+1)
	for _, v := range volume.Vertices {
		common.Vmin(bmin[:], v[:])
		common.Vmax(bmax[:], v[:])
		ring = append(ring, orb.Point{float64(v[0]), float64(v[2])})
	}
	ring = append(ring, ring[0])
	bmin[1] = volume.MinHeight
	bmax[1] = volume.MaxHeight

	// Compute the grid footprint of the polygon
	minX, minY, minZ, maxX, maxY, maxZ, ok := chf.gridFootprint(bmin, bmax)
	if !ok {
		return
	}

	for z := minZ; z <= maxZ; z++ {
		for x := minX; x <= maxX; x++ {
			cell := chf.Cells[x+z*chf.Width]
			for spanIndex := int(cell.Index); spanIndex < int(cell.Index)+int(cell.Count); spanIndex++ {
				// Skip if span is removed.
				if chf.Areas[spanIndex] == RC_NULL_AREA {
					continue
				}
				// Skip if y extents don't overlap.
				y := int(chf.Spans[spanIndex].Y)
				if y < minY || y > maxY {
					continue
				}
				point := orb.Point{
					float64(chf.Aabb.Min[0] + (float32(x)+0.5)*chf.Cs),
					float64(chf.Aabb.Min[2] + (float32(z)+0.5)*chf.Cs),
				}
				if planar.RingContains(ring, point) {
					chf.Areas[spanIndex] = volume.Area
				}
			}
		}
	}
}

// / Applies the area id to all spans within the specified y-axis-aligned cylinder.
func (chf *CompactHeightfield) MarkCylinderArea(position common.Vec3, radius, height float32, areaID AreaType) {
	bmin := common.Vec3{position[0] - radius, position[1], position[2] - radius}
	bmax := common.Vec3{position[0] + radius, position[1] + height, position[2] + radius}
	radiusSq := radius * radius

	minX, minY, minZ, maxX, maxY, maxZ, ok := chf.gridFootprint(bmin, bmax)
	if !ok {
		return
	}
	for z := minZ; z <= maxZ; z++ {
		for x := minX; x <= maxX; x++ {
			cell := chf.Cells[x+z*chf.Width]
			for spanIndex := int(cell.Index); spanIndex < int(cell.Index)+int(cell.Count); spanIndex++ {
				if chf.Areas[spanIndex] == RC_NULL_AREA {
					continue
				}
				y := int(chf.Spans[spanIndex].Y)
				if y < minY || y > maxY {
					continue
				}
				cellX := chf.Aabb.Min[0] + (float32(x)+0.5)*chf.Cs
				cellZ := chf.Aabb.Min[2] + (float32(z)+0.5)*chf.Cs
				deltaX := cellX - position[0]
				deltaZ := cellZ - position[2]
				// Skip this span if it's outside the radius of the cylinder.
				if deltaX*deltaX+deltaZ*deltaZ >= radiusSq {
					continue
				}
				chf.Areas[spanIndex] = areaID
			}
		}
	}
}
