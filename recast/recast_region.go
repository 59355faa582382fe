package recast

import (
	"time"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/common/logger"
	"go.uber.org/zap"
)

const (
	/// Heightfield border flag.
	/// If a heightfield region ID has this bit set, then the region is a border
	/// region and its spans are considered un-walkable.
	/// (Used during the region and contour build process.)
	/// @see CompactSpan::Reg
	RC_BORDER_REG = 0x8000

	// Watershed level stacks and levels per stack.
	regionStackCount       = 8
	regionLogLevelsPerStack = 1

	maxRegionID = 0xffff
)

// calculateDistanceField fills src with the chamfer distance to the nearest
// cell that lacks a same-area neighbor and returns the largest distance.
func (chf *CompactHeightfield) calculateDistanceField(src []int) (maxDist int) {
	common.Fill(src, 0xffff)

	// Mark boundary cells.
	for y := 0; y < chf.Height; y++ {
		for x := 0; x < chf.Width; x++ {
			c := chf.Cells[x+y*chf.Width]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				area := chf.Areas[i]
				nc := 0
				for dir := 0; dir < 4; dir++ {
					if ai := chf.neighbor(x, y, i, dir); ai >= 0 && area == chf.Areas[ai] {
						nc++
					}
				}
				if nc != 4 {
					src[i] = 0
				}
			}
		}
	}

	chf.propagateDistance(src)

	for _, d := range src {
		maxDist = max(maxDist, d)
	}
	return maxDist
}

func (chf *CompactHeightfield) boxBlur(thr int, src, dst []int) []int {
	thr *= 2
	for y := 0; y < chf.Height; y++ {
		for x := 0; x < chf.Width; x++ {
			c := chf.Cells[x+y*chf.Width]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				cd := src[i]
				if cd <= thr {
					dst[i] = cd
					continue
				}
				d := cd
				for dir := 0; dir < 4; dir++ {
					ai := chf.neighbor(x, y, i, dir)
					if ai < 0 {
						d += cd * 2
						continue
					}
					d += src[ai]
					ax := x + common.GetDirOffsetX(dir)
					ay := y + common.GetDirOffsetY(dir)
					dir2 := (dir + 1) & 0x3
					if ai2 := chf.neighbor(ax, ay, ai, dir2); ai2 >= 0 {
						d += src[ai2]
					} else {
						d += cd
					}
				}
				dst[i] = (d + 5) / 9
			}
		}
	}
	return dst
}

// / Builds the distance field for the specified compact heightfield.
// /
// / This is usually the second to the last step in creating a fully built
// / compact heightfield.  This step is required before regions are built
// / using #BuildRegions.
func (chf *CompactHeightfield) BuildDistanceField() {
	start := time.Now()
	src := make([]int, chf.SpanCount())
	dst := make([]int, chf.SpanCount())

	maxDist := chf.calculateDistanceField(src)
	chf.MaxDistance = uint16(min(maxDist, 0xffff))

	// Blur
	blurred := chf.boxBlur(1, src, dst)

	// Store distance.
	chf.Dist = make([]uint16, chf.SpanCount())
	for i, d := range blurred {
		chf.Dist[i] = uint16(min(d, 0xffff))
	}
	logger.L().Debug("BuildDistanceField",
		zap.String("stage", string(StageRegions)),
		zap.Int("maxDistance", maxDist), zap.Duration("took", time.Since(start)))
}

func (chf *CompactHeightfield) paintRectRegion(minx, maxx, miny, maxy int, regID uint16, srcReg []uint16) {
	for y := miny; y < maxy; y++ {
		for x := minx; x < maxx; x++ {
			c := chf.Cells[x+y*chf.Width]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				if chf.Areas[i] != RC_NULL_AREA {
					srcReg[i] = regID
				}
			}
		}
	}
}

type levelStackEntry struct {
	x     int
	y     int
	index int
}

func newLevelStack() Stack[levelStackEntry] {
	return NewStack(func() levelStackEntry { return levelStackEntry{} })
}

func (chf *CompactHeightfield) floodRegion(x, y, i int, level int, r uint16,
	srcReg, srcDist []uint16, stack Stack[levelStackEntry]) bool {
	area := chf.Areas[i]

	// Flood fill mark region.
	stack.Clear()
	stack.Push(levelStackEntry{x, y, i})
	srcReg[i] = r
	srcDist[i] = 0

	lev := 0
	if level >= 2 {
		lev = level - 2
	}
	count := 0

	for !stack.Empty() {
		back := stack.Pop()
		cx, cy, ci := back.x, back.y, back.index

		// Check if any of the neighbours already have a valid region set.
		var ar uint16
		for dir := 0; dir < 4; dir++ {
			// 8 connected
			ai := chf.neighbor(cx, cy, ci, dir)
			if ai < 0 {
				continue
			}
			if chf.Areas[ai] != area {
				continue
			}
			nr := srcReg[ai]
			if nr&RC_BORDER_REG != 0 { // Do not take borders into account.
				continue
			}
			if nr != 0 && nr != r {
				ar = nr
				break
			}

			ax := cx + common.GetDirOffsetX(dir)
			ay := cy + common.GetDirOffsetY(dir)
			dir2 := (dir + 1) & 0x3
			if ai2 := chf.neighbor(ax, ay, ai, dir2); ai2 >= 0 {
				if chf.Areas[ai2] != area {
					continue
				}
				nr2 := srcReg[ai2]
				if nr2 != 0 && nr2 != r {
					ar = nr2
					break
				}
			}
		}
		if ar != 0 {
			srcReg[ci] = 0
			continue
		}

		count++

		// Expand neighbours.
		for dir := 0; dir < 4; dir++ {
			ai := chf.neighbor(cx, cy, ci, dir)
			if ai < 0 {
				continue
			}
			if chf.Areas[ai] != area {
				continue
			}
			if int(chf.Dist[ai]) >= lev && srcReg[ai] == 0 {
				srcReg[ai] = r
				srcDist[ai] = 0
				stack.Push(levelStackEntry{cx + common.GetDirOffsetX(dir), cy + common.GetDirOffsetY(dir), ai})
			}
		}
	}

	return count > 0
}

type dirtyEntry struct {
	index     int
	region    uint16
	distance2 uint16
}

func (chf *CompactHeightfield) expandRegions(maxIter, level int, srcReg, srcDist []uint16,
	stack Stack[levelStackEntry], fillStack bool) {
	if fillStack {
		// Find cells revealed by the raised level.
		stack.Clear()
		for y := 0; y < chf.Height; y++ {
			for x := 0; x < chf.Width; x++ {
				c := chf.Cells[x+y*chf.Width]
				for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
					if int(chf.Dist[i]) >= level && srcReg[i] == 0 && chf.Areas[i] != RC_NULL_AREA {
						stack.Push(levelStackEntry{x, y, i})
					}
				}
			}
		}
	} else {
		// use cells in the input stack
		// mark all cells which already have a region
		entries := stack.Data()
		for j := range entries {
			if i := entries[j].index; i >= 0 && srcReg[i] != 0 {
				entries[j].index = -1
			}
		}
	}

	var dirtyEntries []dirtyEntry
	iter := 0
	for stack.Len() > 0 {
		failed := 0
		dirtyEntries = dirtyEntries[:0]

		entries := stack.Data()
		for j := range entries {
			x, y, i := entries[j].x, entries[j].y, entries[j].index
			if i < 0 {
				failed++
				continue
			}

			r := srcReg[i]
			d2 := 0xffff
			area := chf.Areas[i]
			for dir := 0; dir < 4; dir++ {
				ai := chf.neighbor(x, y, i, dir)
				if ai < 0 {
					continue
				}
				if chf.Areas[ai] != area {
					continue
				}
				if srcReg[ai] > 0 && srcReg[ai]&RC_BORDER_REG == 0 {
					if int(srcDist[ai])+2 < d2 {
						r = srcReg[ai]
						d2 = int(srcDist[ai]) + 2
					}
				}
			}
			if r != 0 {
				entries[j].index = -1 // mark as used
				dirtyEntries = append(dirtyEntries, dirtyEntry{i, r, uint16(d2)})
			} else {
				failed++
			}
		}

		// Copy entries that differ between src and dst to keep them in sync.
		for _, e := range dirtyEntries {
			srcReg[e.index] = e.region
			srcDist[e.index] = e.distance2
		}

		if failed == stack.Len() {
			break
		}

		if level > 0 {
			iter++
			if iter >= maxIter {
				break
			}
		}
	}
}

func (chf *CompactHeightfield) sortCellsByLevel(startLevel int, srcReg []uint16,
	stacks []Stack[levelStackEntry], logLevelsPerStack int) {
	startLevel = startLevel >> logLevelsPerStack
	for _, s := range stacks {
		s.Clear()
	}

	// put all cells in the level range into the appropriate stacks
	for y := 0; y < chf.Height; y++ {
		for x := 0; x < chf.Width; x++ {
			c := chf.Cells[x+y*chf.Width]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				if chf.Areas[i] == RC_NULL_AREA || srcReg[i] != 0 {
					continue
				}
				level := int(chf.Dist[i]) >> logLevelsPerStack
				sID := startLevel - level
				if sID >= len(stacks) {
					continue
				}
				sID = max(sID, 0)
				stacks[sID].Push(levelStackEntry{x, y, i})
			}
		}
	}
}

func appendStacks(srcStack, dstStack Stack[levelStackEntry], srcReg []uint16) {
	for _, e := range srcStack.Data() {
		if e.index < 0 || srcReg[e.index] != 0 {
			continue
		}
		dstStack.Push(e)
	}
}

type region struct {
	spanCount   int    // Number of spans belonging to this region
	id          uint16 // ID of the region
	areaType    AreaType
	remap       bool
	visited     bool
	overlap     bool
	connections []uint16
	floors      []uint16
}

func removeAdjacentNeighbours(reg *region) {
	// Remove adjacent duplicates.
	for i := 0; i < len(reg.connections) && len(reg.connections) > 1; {
		ni := (i + 1) % len(reg.connections)
		if reg.connections[i] == reg.connections[ni] {
			reg.connections = append(reg.connections[:i], reg.connections[i+1:]...)
		} else {
			i++
		}
	}
}

func replaceNeighbour(reg *region, oldID, newID uint16) {
	neiChanged := false
	for i := range reg.connections {
		if reg.connections[i] == oldID {
			reg.connections[i] = newID
			neiChanged = true
		}
	}
	for i := range reg.floors {
		if reg.floors[i] == oldID {
			reg.floors[i] = newID
		}
	}
	if neiChanged {
		removeAdjacentNeighbours(reg)
	}
}

func canMergeWithRegion(rega, regb *region) bool {
	if rega.areaType != regb.areaType {
		return false
	}
	n := 0
	for _, c := range rega.connections {
		if c == regb.id {
			n++
		}
	}
	if n > 1 {
		return false
	}
	for _, f := range rega.floors {
		if f == regb.id {
			return false
		}
	}
	return true
}

func addUniqueFloorRegion(reg *region, n uint16) {
	for _, f := range reg.floors {
		if f == n {
			return
		}
	}
	reg.floors = append(reg.floors, n)
}

func mergeRegions(rega, regb *region) bool {
	aid := rega.id
	bid := regb.id

	// Duplicate current neighbourhood.
	acon := append([]uint16(nil), rega.connections...)
	bcon := regb.connections

	// Find insertion point on A.
	insa := -1
	for i, c := range acon {
		if c == bid {
			insa = i
			break
		}
	}
	if insa == -1 {
		return false
	}

	// Find insertion point on B.
	insb := -1
	for i, c := range bcon {
		if c == aid {
			insb = i
			break
		}
	}
	if insb == -1 {
		return false
	}

	// Merge neighbours.
	rega.connections = rega.connections[:0]
	for i, ni := 0, len(acon); i < ni-1; i++ {
		rega.connections = append(rega.connections, acon[(insa+1+i)%ni])
	}
	for i, ni := 0, len(bcon); i < ni-1; i++ {
		rega.connections = append(rega.connections, bcon[(insb+1+i)%ni])
	}

	removeAdjacentNeighbours(rega)

	for _, f := range regb.floors {
		addUniqueFloorRegion(rega, f)
	}
	rega.spanCount += regb.spanCount
	regb.spanCount = 0
	regb.connections = nil

	return true
}

// isRegionConnectedToBorder reports whether the region touches unregioned space.
func isRegionConnectedToBorder(reg *region) bool {
	// Region is connected to border if
	// one of the neighbours is null id.
	for _, c := range reg.connections {
		if c == 0 {
			return true
		}
	}
	return false
}

// isRegionConnectedToTileBorder reports whether the region touches the
// painted border of a tile.
func isRegionConnectedToTileBorder(reg *region) bool {
	for _, c := range reg.connections {
		if c&RC_BORDER_REG != 0 {
			return true
		}
	}
	return false
}

func (chf *CompactHeightfield) isSolidEdge(srcReg []uint16, x, y, i, dir int) bool {
	var r uint16
	if ai := chf.neighbor(x, y, i, dir); ai >= 0 {
		r = srcReg[ai]
	}
	return r != srcReg[i]
}

func (chf *CompactHeightfield) walkRegionContour(x, y, i, dir int, srcReg []uint16) []uint16 {
	startDir := dir
	starti := i

	var curReg uint16
	if ai := chf.neighbor(x, y, i, dir); ai >= 0 {
		curReg = srcReg[ai]
	}
	cont := []uint16{curReg}

	for iter := 1; iter < 40000; iter++ {
		if chf.isSolidEdge(srcReg, x, y, i, dir) {
			// Choose the edge corner
			var r uint16
			if ai := chf.neighbor(x, y, i, dir); ai >= 0 {
				r = srcReg[ai]
			}
			if r != curReg {
				curReg = r
				cont = append(cont, curReg)
			}
			dir = (dir + 1) & 0x3 // Rotate CW
		} else {
			ni := chf.neighbor(x, y, i, dir)
			if ni < 0 {
				// Should not happen.
				return cont
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

	// Remove adjacent duplicates.
	if len(cont) > 1 {
		for j := 0; j < len(cont); {
			nj := (j + 1) % len(cont)
			if cont[j] == cont[nj] {
				cont = append(cont[:j], cont[j+1:]...)
			} else {
				j++
			}
		}
	}
	return cont
}

func (chf *CompactHeightfield) mergeAndFilterRegions(minRegionArea, mergeRegionSize int,
	maxRegionId uint16, srcReg []uint16) (newMaxRegionID uint16, overlaps []uint16) {
	nreg := int(maxRegionId) + 1
	regions := make([]*region, nreg)

	// Construct regions
	for i := range regions {
		regions[i] = &region{id: uint16(i)}
	}

	// Find edge of a region and find connections around the contour.
	for y := 0; y < chf.Height; y++ {
		for x := 0; x < chf.Width; x++ {
			c := chf.Cells[x+y*chf.Width]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				r := srcReg[i]
				if r == 0 || int(r) >= nreg {
					continue
				}

				reg := regions[r]
				reg.spanCount++

				// Update floors.
				for j := int(c.Index); j < int(c.Index)+int(c.Count); j++ {
					if i == j {
						continue
					}
					floorID := srcReg[j]
					if floorID == 0 || int(floorID) >= nreg {
						continue
					}
					if floorID == r {
						reg.overlap = true
					}
					addUniqueFloorRegion(reg, floorID)
				}

				// Have found contour
				if len(reg.connections) > 0 {
					continue
				}

				reg.areaType = chf.Areas[i]

				// Check if this cell is next to a border.
				ndir := -1
				for dir := 0; dir < 4; dir++ {
					if chf.isSolidEdge(srcReg, x, y, i, dir) {
						ndir = dir
						break
					}
				}

				if ndir != -1 {
					// The cell is at border.
					// Walk around the contour to find all the neighbours.
					reg.connections = chf.walkRegionContour(x, y, i, ndir, srcReg)
				}
			}
		}
	}

	// Remove too small regions.
	var stack, trace []uint16
	for i := 0; i < nreg; i++ {
		reg := regions[i]
		if reg.id == 0 || reg.id&RC_BORDER_REG != 0 {
			continue
		}
		if reg.spanCount == 0 {
			continue
		}
		if reg.visited {
			continue
		}

		// Count the total size of all the connected regions.
		// Also keep track of the regions connects to a tile border.
		connectsToBorder := false
		spanCount := 0
		stack = stack[:0]
		trace = trace[:0]

		reg.visited = true
		stack = append(stack, uint16(i))

		for len(stack) > 0 {
			// Pop
			ri := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			creg := regions[ri]
			spanCount += creg.spanCount
			trace = append(trace, ri)

			for _, conn := range creg.connections {
				if conn&RC_BORDER_REG != 0 {
					connectsToBorder = true
					continue
				}
				neireg := regions[conn]
				if neireg.visited {
					continue
				}
				if neireg.id == 0 || neireg.id&RC_BORDER_REG != 0 {
					continue
				}
				// Visit
				stack = append(stack, neireg.id)
				neireg.visited = true
			}
		}

		// If the accumulated regions size is too small, remove it.
		// Do not remove areas which connect to tile borders
		// as their size cannot be estimated correctly and removing them
		// can potentially remove necessary areas.
		if spanCount < minRegionArea && !connectsToBorder {
			// Kill all visited regions.
			for _, t := range trace {
				regions[t].spanCount = 0
				regions[t].id = 0
			}
		}
	}

	// Merge too small regions to neighbour regions.
	for {
		mergeCount := 0
		for i := 0; i < nreg; i++ {
			reg := regions[i]
			if reg.id == 0 || reg.id&RC_BORDER_REG != 0 {
				continue
			}
			if reg.overlap {
				continue
			}
			if reg.spanCount == 0 {
				continue
			}

			// Check to see if the region should be merged.
			if reg.spanCount > mergeRegionSize && isRegionConnectedToBorder(reg) {
				continue
			}

			// Small region with more than 1 connection.
			// Or region which is not connected to a border at all.
			// Find smallest neighbour region that connects to this one.
			// Equally small candidates resolve to the lower region id.
			smallest := 0xfffffff
			mergeID := reg.id
			for _, conn := range reg.connections {
				if conn&RC_BORDER_REG != 0 {
					continue
				}
				mreg := regions[conn]
				if mreg.id == 0 || mreg.id&RC_BORDER_REG != 0 || mreg.overlap {
					continue
				}
				better := mreg.spanCount < smallest ||
					(mreg.spanCount == smallest && mergeID != reg.id && mreg.id < mergeID)
				if better && canMergeWithRegion(reg, mreg) && canMergeWithRegion(mreg, reg) {
					smallest = mreg.spanCount
					mergeID = mreg.id
				}
			}
			// Found new id.
			if mergeID != reg.id {
				oldID := reg.id
				target := regions[mergeID]

				// Merge neighbours.
				if mergeRegions(target, reg) {
					// Fixup regions pointing to current region.
					for j := 0; j < nreg; j++ {
						if regions[j].id == 0 || regions[j].id&RC_BORDER_REG != 0 {
							continue
						}
						// If another region was already merged into current region
						// change the nid of the previous region too.
						if regions[j].id == oldID {
							regions[j].id = mergeID
						}
						// Replace the current region with the new one if the
						// current regions is neighbour.
						replaceNeighbour(regions[j], oldID, mergeID)
					}
					mergeCount++
				}
			}
		}
		if mergeCount == 0 {
			break
		}
	}

	// Delete what is still too small after merging. Regions touching a tile
	// border are kept since their true size is unknown.
	for i := 0; i < nreg; i++ {
		reg := regions[i]
		if reg.id == 0 || reg.id&RC_BORDER_REG != 0 || reg.spanCount == 0 {
			continue
		}
		if reg.spanCount >= minRegionArea || isRegionConnectedToTileBorder(reg) {
			continue
		}
		logger.L().Debug("mergeAndFilterRegions: removing undersized region",
			zap.String("stage", string(StageRegions)),
			zap.Int("region", int(reg.id)), zap.Int("spans", reg.spanCount))
		deadID := reg.id
		for j := 0; j < nreg; j++ {
			if regions[j].id == deadID {
				regions[j].id = 0
			}
		}
	}

	// Compress region Ids.
	for i := 0; i < nreg; i++ {
		regions[i].remap = false
		if regions[i].id == 0 {
			continue // Skip nil regions.
		}
		if regions[i].id&RC_BORDER_REG != 0 {
			continue // Skip external regions.
		}
		regions[i].remap = true
	}

	var regIDGen uint16
	for i := 0; i < nreg; i++ {
		if !regions[i].remap {
			continue
		}
		oldID := regions[i].id
		regIDGen++
		newID := regIDGen
		for j := i; j < nreg; j++ {
			if regions[j].id == oldID {
				regions[j].id = newID
				regions[j].remap = false
			}
		}
	}

	// Remap regions.
	for i := range srcReg {
		if srcReg[i]&RC_BORDER_REG == 0 {
			srcReg[i] = regions[srcReg[i]].id
		}
	}

	// Return regions that we found to be overlapping.
	for i := 0; i < nreg; i++ {
		if regions[i].overlap {
			overlaps = append(overlaps, regions[i].id)
		}
	}
	return regIDGen, overlaps
}

// / Builds region data for the heightfield using watershed partitioning.
// /
// / Non-null regions will consist of connected, non-overlapping walkable spans that form a single contour.
// / Contours will form simple polygons.
// /
// / If multiple regions form an area that is smaller than @p minRegionArea, then all spans will be
// / re-assigned to the zero (null) region.
// /
// / Watershed partitioning can result in smaller than necessary regions, especially in diagonal corridors.
// / @p mergeRegionArea helps reduce unnecessarily small regions.
// /
// / The distance field must be created using #BuildDistanceField before attempting to build regions.
// /
// / @param[in]		borderSize			The size of the non-navigable border around the heightfield.
// / 									[Limit: >=0] [Units: vx]
// / @param[in]		minRegionArea		The minimum number of cells allowed to form isolated island areas.
// / 									[Limit: >=0] [Units: vx].
// / @param[in]		mergeRegionArea		Any regions with a span count smaller than this value will, if possible,
// / 								be merged with larger regions. [Limit: >=0] [Units: vx]
func (chf *CompactHeightfield) BuildRegions(borderSize, minRegionArea, mergeRegionArea int) error {
	start := time.Now()
	if len(chf.Dist) != chf.SpanCount() {
		chf.BuildDistanceField()
	}

	w := chf.Width
	h := chf.Height
	srcReg := make([]uint16, chf.SpanCount())
	srcDist := make([]uint16, chf.SpanCount())

	lvlStacks := make([]Stack[levelStackEntry], regionStackCount)
	for i := range lvlStacks {
		lvlStacks[i] = newLevelStack()
	}
	stack := newLevelStack()

	regionID := 1
	level := (int(chf.MaxDistance) + 1) &^ 1

	// TODO: Figure better formula, expandIters defines how much the
	// watershed "overflows" and simplifies the regions. Tying it to
	// agent radius was usually good indication how greedy it could be.
	const expandIters = 8

	if borderSize > 0 {
		// Make sure border will not overflow.
		bw := min(w, borderSize)
		bh := min(h, borderSize)

		// Paint regions
		chf.paintRectRegion(0, bw, 0, h, uint16(regionID)|RC_BORDER_REG, srcReg)
		regionID++
		chf.paintRectRegion(w-bw, w, 0, h, uint16(regionID)|RC_BORDER_REG, srcReg)
		regionID++
		chf.paintRectRegion(0, w, 0, bh, uint16(regionID)|RC_BORDER_REG, srcReg)
		regionID++
		chf.paintRectRegion(0, w, h-bh, h, uint16(regionID)|RC_BORDER_REG, srcReg)
		regionID++
	}
	chf.BorderSize = borderSize

	sID := -1
	for level > 0 {
		if level >= 2 {
			level -= 2
		} else {
			level = 0
		}
		sID = (sID + 1) & (regionStackCount - 1)

		if sID == 0 {
			chf.sortCellsByLevel(level, srcReg, lvlStacks, regionLogLevelsPerStack)
		} else {
			appendStacks(lvlStacks[sID-1], lvlStacks[sID], srcReg) // copy left overs from last level
		}

		// Expand current regions until no empty connected cells found.
		chf.expandRegions(expandIters, level, srcReg, srcDist, lvlStacks[sID], false)

		// Mark new regions with IDs.
		for j := 0; j < lvlStacks[sID].Len(); j++ {
			current := lvlStacks[sID].Index(j)
			if current.index < 0 || srcReg[current.index] != 0 {
				continue
			}
			if chf.floodRegion(current.x, current.y, current.index, level, uint16(regionID), srcReg, srcDist, stack) {
				if regionID >= maxRegionID {
					return newError(StageRegions, ErrInvalidInput, "region id overflow")
				}
				regionID++
			}
		}
	}

	// Expand current regions until no empty connected cells found.
	chf.expandRegions(expandIters*8, 0, srcReg, srcDist, stack, true)

	// Merge regions and filter out small regions.
	maxRegions, overlaps := chf.mergeAndFilterRegions(minRegionArea, mergeRegionArea, uint16(regionID), srcReg)
	chf.MaxRegions = maxRegions

	// If overlapping regions were found during merging, report them.
	if len(overlaps) > 0 {
		logger.L().Warn("BuildRegions: overlapping regions",
			zap.String("stage", string(StageRegions)), zap.Int("count", len(overlaps)))
	}

	// Write the result out.
	for i := range chf.Spans {
		chf.Spans[i].Reg = srcReg[i]
	}

	if maxRegions == 0 {
		return newError(StageRegions, ErrEmptyInput, "no regions left after filtering")
	}
	logger.L().Debug("BuildRegions",
		zap.String("stage", string(StageRegions)),
		zap.Int("regions", int(maxRegions)), zap.Duration("took", time.Since(start)))
	return nil
}
