package recast

import (
	"github.com/gorustyt/gorerecast/common"
)

// spanMaxHeight stands in for an open ceiling above the topmost span.
const spanMaxHeight = 0xffff

func spanCeiling(span *Span) int {
	if span.Next != nil {
		return int(span.Next.Smin)
	}
	return spanMaxHeight
}

// / Marks non-walkable spans as walkable if their maximum is within @p walkableClimb of the span below them.
// /
// / This removes small obstacles and rasterization artifacts that the agent would be able to walk over
// / such as curbs.  It also allows agents to move up terraced structures like stairs.
// /
// / Obstacle spans are marked walkable if: <tt>obstacleSpan.smax - walkableSpan.smax < walkableClimb</tt>
// /
// / @param[in]		walkableClimb	Maximum ledge height that is considered to still be traversable.
// / 								[Limit: >=0] [Units: vx]
func (hf *Heightfield) FilterLowHangingWalkableObstacles(walkableClimb int) {
	for z := 0; z < hf.Height; z++ {
		for x := 0; x < hf.Width; x++ {
			var previousSpan *Span
			previousWasWalkable := false
			previousArea := RC_NULL_AREA

			for span := hf.Spans[x+z*hf.Width]; span != nil; span = span.Next {
				walkable := span.Area != RC_NULL_AREA
				// If current span is not walkable, but there is walkable
				// span just below it, mark the span above it walkable too.
				if !walkable && previousWasWalkable {
					if common.Abs(int(span.Smax)-int(previousSpan.Smax)) <= walkableClimb {
						span.Area = previousArea
					}
				}
				// Copy walkable flag so that it cannot propagate
				// past multiple non-walkable objects.
				previousWasWalkable = walkable
				previousArea = span.Area
				previousSpan = span
			}
		}
	}
}

// / Marks spans that are ledges as not-walkable.
// /
// / A ledge is a span with one or more neighbors whose maximum is further away than @p walkableClimb
// / from the current span's maximum.
// / This method removes the impact of the overestimation of conservative voxelization
// / so the resulting mesh will not have regions hanging in the air over ledges.
// /
// / A span is a ledge if: <tt>rcAbs(currentSpan.smax - neighborSpan.smax) > walkableClimb</tt>
// /
// / @param[in]		walkableHeight	Minimum floor to 'ceiling' height that will still allow the floor area to
// / 								be considered walkable. [Limit: >= 3] [Units: vx]
// / @param[in]		walkableClimb	Maximum ledge height that is considered to still be traversable.
// / 								[Limit: >=0] [Units: vx]
func (hf *Heightfield) FilterLedgeSpans(walkableHeight, walkableClimb int) {
	xSize := hf.Width
	zSize := hf.Height

	// Mark spans that are adjacent to a ledge as unwalkable..
	for z := 0; z < zSize; z++ {
		for x := 0; x < xSize; x++ {
			for span := hf.Spans[x+z*xSize]; span != nil; span = span.Next {
				// Skip non-walkable spans.
				if span.Area == RC_NULL_AREA {
					continue
				}

				floor := int(span.Smax)
				ceiling := spanCeiling(span)

				// The difference between this walkable area and the lowest neighbor walkable area.
				// This is the difference between the current span and all neighbor spans that have
				// enough space for an agent to move between, but not accounting at all for surface slope.
				lowestNeighborFloorDifference := spanMaxHeight

				// Min and max height of accessible neighbours.
				lowestTraversableNeighborFloor := floor
				highestTraversableNeighborFloor := floor

				for direction := 0; direction < 4; direction++ {
					neighborX := x + common.GetDirOffsetX(direction)
					neighborZ := z + common.GetDirOffsetY(direction)

					// Skip neighbours which are out of bounds.
					if neighborX < 0 || neighborZ < 0 || neighborX >= xSize || neighborZ >= zSize {
						lowestNeighborFloorDifference = -walkableClimb - 1
						break
					}

					neighborSpan := hf.Spans[neighborX+neighborZ*xSize]

					// The most we can step down to the neighbor is the walkableClimb distance.
					// Start with the area under the neighbor span
					neighborCeiling := spanMaxHeight
					if neighborSpan != nil {
						neighborCeiling = int(neighborSpan.Smin)
					}

					// The space below the neighbor's first span is open down to minus infinity.
					if min(ceiling, neighborCeiling)-floor >= walkableHeight {
						lowestNeighborFloorDifference = -walkableClimb - 1
						break
					}

					// For each span in the neighboring column...
					for ; neighborSpan != nil; neighborSpan = neighborSpan.Next {
						neighborFloor := int(neighborSpan.Smax)
						neighborCeiling = spanCeiling(neighborSpan)

						// Only consider neighboring areas that have enough overlap to be potentially traversable.
						if min(ceiling, neighborCeiling)-max(floor, neighborFloor) < walkableHeight {
							// No space to traverse between them.
							continue
						}

						neighborFloorDifference := neighborFloor - floor
						lowestNeighborFloorDifference = min(lowestNeighborFloorDifference, neighborFloorDifference)

						// Find min/max accessible neighbor height.
						// Only consider neighbors that are at most walkableClimb away.
						if common.Abs(neighborFloorDifference) <= walkableClimb {
							// There is space to move to the neighbor cell and the slope isn't too much.
							lowestTraversableNeighborFloor = min(lowestTraversableNeighborFloor, neighborFloor)
							highestTraversableNeighborFloor = max(highestTraversableNeighborFloor, neighborFloor)
						} else if neighborFloorDifference < -walkableClimb {
							// We already know this will be considered a ledge span so we can early-out
							break
						}
					}
				}

				// The current span is close to a ledge if the magnitude of the drop to any neighbour span is greater than the walkableClimb distance.
				// That is, there is a gap that is large enough to let an agent move between them, but the drop (surface slope) is too large to allow it.
				// (If this is the case, then biggestNeighborStepDown will be negative, so compare against the negative walkableClimb as a means of checking
				// the magnitude of the delta)
				if lowestNeighborFloorDifference < -walkableClimb {
					span.Area = RC_NULL_AREA
				} else if highestTraversableNeighborFloor-lowestTraversableNeighborFloor > walkableClimb {
					// If the difference between all neighbor floors is too large, this is a steep slope, so mark the span as an unwalkable ledge.
					span.Area = RC_NULL_AREA
				}
			}
		}
	}
}

// / Marks walkable spans as not walkable if the clearance above the span is less than the specified walkableHeight.
// /
// / For this filter, the clearance above the span is the distance from the span's
// / maximum to the minimum of the next higher span in the same column.
// / If there is no higher span in the column, the clearance is computed as the
// / distance from the top of the span to the maximum heightfield height.
func (hf *Heightfield) FilterWalkableLowHeightSpans(walkableHeight int) {
	// Remove walkable flag from spans which do not have enough
	// space above them for the agent to stand there.
	for _, span := range hf.Spans {
		for ; span != nil; span = span.Next {
			if spanCeiling(span)-int(span.Smax) < walkableHeight {
				span.Area = RC_NULL_AREA
			}
		}
	}
}
