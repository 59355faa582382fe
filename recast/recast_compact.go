package recast

import (
	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/common/logger"
	"go.uber.org/zap"
)

const (
	/// The value returned by GetCon if the specified direction is not connected
	/// to another span. (Has no neighbor.)
	RC_NOT_CONNECTED = 0x3f
)

// / Provides information on the content of a cell column in a compact heightfield.
type CompactCell struct {
	Index uint32 ///< Index to the first span in the column.
	Count uint8  ///< Number of spans in the column.
}

// / Represents a span of unobstructed space within a compact heightfield.
type CompactSpan struct {
	Y   uint16 ///< The lower extent of the span. (Measured from the heightfield's base.)
	Reg uint16 ///< The id of the region the span belongs to. (Or zero if not in a region.)
	Con uint32 ///< Packed neighbor connection data.
	H   uint8  ///< The height of the span.  (Measured from #y.)
}

// / Sets the neighbor connection data for the specified direction.
// / @param[in]		direction		The direction to set. [Limits: 0 <= value < 4]
// / @param[in]		neighborIndex	The index of the neighbor span.
func (s *CompactSpan) SetCon(direction, neighborIndex int) {
	shift := uint32(direction * 6)
	s.Con = (s.Con &^ (0x3f << shift)) | (uint32(neighborIndex&0x3f) << shift)
}

// / Gets neighbor connection data for the specified direction.
// / @param[in]		direction	The direction to check. [Limits: 0 <= value < 4]
// / @return The neighbor connection data for the specified direction, or #RC_NOT_CONNECTED if there is no connection.
func (s *CompactSpan) GetCon(direction int) int {
	shift := uint32(direction * 6)
	return int((s.Con >> shift) & 0x3f)
}

// / A compact, static heightfield representing unobstructed space.
// / @ingroup recast
type CompactHeightfield struct {
	Width          int           ///< The width of the heightfield. (Along the x-axis in cell units.)
	Height         int           ///< The height of the heightfield. (Along the z-axis in cell units.)
	WalkableHeight int           ///< The walkable height used during the build of the field.  (See: Config::WalkableHeight)
	WalkableClimb  int           ///< The walkable climb used during the build of the field. (See: Config::WalkableClimb)
	BorderSize     int           ///< The AABB border size used during the build of the field. (See: Config::BorderSize)
	MaxDistance    uint16        ///< The maximum distance value of any span within the field.
	MaxRegions     uint16        ///< The maximum region id of any span within the field.
	Aabb           Aabb3d        ///< The bounds in world space.
	Cs             float32       ///< The size of each cell. (On the xz-plane.)
	Ch             float32       ///< The height of each cell. (The minimum increment along the y-axis.)
	Cells          []CompactCell ///< Array of cells. [Size: #width*#height]
	Spans          []CompactSpan ///< Array of spans. [Size: #spanCount]
	Dist           []uint16      ///< Array containing border distance data. [Size: #spanCount]
	Areas          []AreaType    ///< Array containing area id data. [Size: #spanCount]
}

// SpanCount returns the number of spans in the field.
func (chf *CompactHeightfield) SpanCount() int {
	return len(chf.Spans)
}

// Cell returns the column at (x, z).
func (chf *CompactHeightfield) Cell(x, z int) CompactCell {
	return chf.Cells[x+z*chf.Width]
}

// neighbor returns the index of the span connected to span i of cell
// (x, z) in direction dir, or -1.
func (chf *CompactHeightfield) neighbor(x, z, i, dir int) int {
	con := chf.Spans[i].GetCon(dir)
	if con == RC_NOT_CONNECTED {
		return -1
	}
	ax := x + common.GetDirOffsetX(dir)
	az := z + common.GetDirOffsetY(dir)
	return int(chf.Cells[ax+az*chf.Width].Index) + con
}

// IntoCompact builds a compact heightfield holding the walkable spans of hf
// with their neighbor links.
func (hf *Heightfield) IntoCompact(walkableHeight, walkableClimb int) (*CompactHeightfield, error) {
	xSize := hf.Width
	zSize := hf.Height
	spanCount := hf.SpanCount()
	if spanCount == 0 {
		return nil, newError(StageCompact, ErrEmptyInput, "heightfield has no walkable spans")
	}

	// Fill in header.
	chf := &CompactHeightfield{
		Width:          xSize,
		Height:         zSize,
		WalkableHeight: walkableHeight,
		WalkableClimb:  walkableClimb,
		Aabb:           hf.Aabb,
		Cs:             hf.Cs,
		Ch:             hf.Ch,
		Cells:          make([]CompactCell, xSize*zSize),
		Spans:          make([]CompactSpan, spanCount),
		Areas:          make([]AreaType, spanCount),
	}
	chf.Aabb.Max[1] += float32(walkableHeight) * hf.Ch

	// Fill in cells and spans.
	currentCellIndex := 0
	for columnIndex, span := range hf.Spans {
		// If there are no spans at this cell, just leave the data to index=0, count=0.
		if span == nil {
			continue
		}
		cell := &chf.Cells[columnIndex]
		cell.Index = uint32(currentCellIndex)
		cell.Count = 0

		for ; span != nil; span = span.Next {
			if span.Area == RC_NULL_AREA {
				continue
			}
			bot := int(span.Smax)
			top := spanCeiling(span)
			chf.Spans[currentCellIndex].Y = uint16(common.Clamp(bot, 0, 0xffff))
			chf.Spans[currentCellIndex].H = uint8(common.Clamp(top-bot, 0, 0xff))
			chf.Areas[currentCellIndex] = span.Area
			currentCellIndex++
			cell.Count++
		}
	}

	// Find neighbour connections.
	const maxLayers = RC_NOT_CONNECTED - 1
	maxLayerIndex := 0
	for z := 0; z < zSize; z++ {
		for x := 0; x < xSize; x++ {
			cell := chf.Cells[x+z*xSize]
			for i := int(cell.Index); i < int(cell.Index)+int(cell.Count); i++ {
				span := &chf.Spans[i]
				for dir := 0; dir < 4; dir++ {
					span.SetCon(dir, RC_NOT_CONNECTED)
					neighborX := x + common.GetDirOffsetX(dir)
					neighborZ := z + common.GetDirOffsetY(dir)
					// First check that the neighbour cell is in bounds.
					if neighborX < 0 || neighborZ < 0 || neighborX >= xSize || neighborZ >= zSize {
						continue
					}

					// Iterate over all neighbour spans and check if any of the is
					// accessible from current cell.
					neighborCell := chf.Cells[neighborX+neighborZ*xSize]
					for k := int(neighborCell.Index); k < int(neighborCell.Index)+int(neighborCell.Count); k++ {
						neighborSpan := &chf.Spans[k]
						bot := max(int(span.Y), int(neighborSpan.Y))
						top := min(int(span.Y)+int(span.H), int(neighborSpan.Y)+int(neighborSpan.H))

						// Check that the gap between the spans is walkable,
						// and that the climb height between the gaps is not too high.
						if top-bot >= walkableHeight && common.Abs(int(neighborSpan.Y)-int(span.Y)) <= walkableClimb {
							// Mark direction as walkable.
							layerIndex := k - int(neighborCell.Index)
							if layerIndex < 0 || layerIndex > maxLayers {
								maxLayerIndex = max(maxLayerIndex, layerIndex)
								continue
							}
							span.SetCon(dir, layerIndex)
							break
						}
					}
				}
			}
		}
	}

	if maxLayerIndex > maxLayers {
		logger.L().Warn("IntoCompact: heightfield has too many layers",
			zap.String("stage", string(StageCompact)),
			zap.Int("layers", maxLayerIndex), zap.Int("max", maxLayers))
	}
	return chf, nil
}
