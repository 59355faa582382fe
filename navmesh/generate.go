package navmesh

import (
	"time"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/common/logger"
	"github.com/gorustyt/gorerecast/recast"
	"go.uber.org/zap"
)

// Navmesh is the result of a build: the polygon mesh used for pathfinding,
// the detail mesh for accurate heights and the settings that produced them.
// Vertices are in the frame selected by Settings.Up.
type Navmesh struct {
	Polygon  *recast.PolygonNavmesh `json:"polygon"`
	Detail   *recast.DetailNavmesh  `json:"detail"`
	Settings Settings               `json:"settings"`
}

// axisPermutation maps a user frame onto the internal y-up frame:
// internal[i] = user[src[i]].
type axisPermutation struct {
	src [3]int
}

func upPermutation(up common.Vec3) (axisPermutation, bool) {
	switch up {
	case UpY:
		return axisPermutation{src: [3]int{0, 1, 2}}, true
	case UpZ:
		return axisPermutation{src: [3]int{1, 2, 0}}, true
	case UpX:
		return axisPermutation{src: [3]int{2, 0, 1}}, true
	}
	return axisPermutation{}, false
}

func (p axisPermutation) identity() bool {
	return p.src == [3]int{0, 1, 2}
}

func (p axisPermutation) forward(v common.Vec3) common.Vec3 {
	return common.Vec3{v[p.src[0]], v[p.src[1]], v[p.src[2]]}
}

func (p axisPermutation) inverse(v common.Vec3) common.Vec3 {
	var out common.Vec3
	for i, s := range p.src {
		out[s] = v[i]
	}
	return out
}

func (p axisPermutation) inverseGrid(v [3]uint16) [3]uint16 {
	var out [3]uint16
	for i, s := range p.src {
		out[s] = v[i]
	}
	return out
}

func (p axisPermutation) forwardAabb(a recast.Aabb3d) recast.Aabb3d {
	return recast.Aabb3d{Min: p.forward(a.Min), Max: p.forward(a.Max)}
}

func (p axisPermutation) inverseAabb(a recast.Aabb3d) recast.Aabb3d {
	return recast.Aabb3d{Min: p.inverse(a.Min), Max: p.inverse(a.Max)}
}

// Reorient rewrites n, generated for Settings.Up, into the frame where up
// points up. Converting there and back again restores every value exactly.
func (n *Navmesh) Reorient(up common.Vec3) error {
	from, ok := upPermutation(n.Settings.Up)
	if !ok {
		return &recast.BuildError{Stage: recast.StageConfig, Kind: recast.ErrConfig, Msg: "unsupported up direction"}
	}
	to, ok := upPermutation(up)
	if !ok {
		return &recast.BuildError{Stage: recast.StageConfig, Kind: recast.ErrConfig, Msg: "unsupported up direction"}
	}
	if from == to {
		return nil
	}
	n.remap(from.forward, func(v [3]uint16) [3]uint16 {
		return [3]uint16{v[from.src[0]], v[from.src[1]], v[from.src[2]]}
	}, from.forwardAabb)
	n.toUser(to)

	s := &n.Settings
	if s.Aabb != nil {
		box := to.inverseAabb(from.forwardAabb(*s.Aabb))
		s.Aabb = &box
	}
	if s.AreaVolumes != nil {
		volumes := make([]recast.ConvexVolume, len(s.AreaVolumes))
		for i, v := range s.AreaVolumes {
			volumes[i] = v
			volumes[i].Vertices = make([]common.Vec3, len(v.Vertices))
			for j, p := range v.Vertices {
				volumes[i].Vertices[j] = to.inverse(from.forward(p))
			}
		}
		s.AreaVolumes = volumes
	}
	s.Up = up
	return nil
}

// toUser rewrites the navmesh from the y-up frame into the user frame.
func (n *Navmesh) toUser(p axisPermutation) {
	n.remap(p.inverse, p.inverseGrid, p.inverseAabb)
}

func (n *Navmesh) remap(vec func(common.Vec3) common.Vec3, grid func([3]uint16) [3]uint16, box func(recast.Aabb3d) recast.Aabb3d) {
	if n.Polygon != nil {
		for i, v := range n.Polygon.Vertices {
			n.Polygon.Vertices[i] = grid(v)
		}
		n.Polygon.Aabb = box(n.Polygon.Aabb)
	}
	if n.Detail != nil {
		for i, v := range n.Detail.Vertices {
			n.Detail.Vertices[i] = vec(v)
		}
	}
}

// Generate builds a navmesh from affectors. Generation is a pure function of
// its inputs: identical affectors and settings give identical output.
func Generate(affectors []Affector, settings Settings) (*Navmesh, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	perm, _ := upPermutation(settings.Up)

	trimesh := mergeAffectors(affectors)
	if err := trimesh.Validate(); err != nil {
		return nil, err
	}
	if !perm.identity() {
		for i, v := range trimesh.Vertices {
			trimesh.Vertices[i] = perm.forward(v)
		}
	}

	var aabb recast.Aabb3d
	if settings.Aabb != nil {
		aabb = perm.forwardAabb(*settings.Aabb)
	} else {
		var ok bool
		if aabb, ok = trimesh.ComputeAabb(); !ok {
			return nil, &recast.BuildError{Stage: recast.StageIngest, Kind: recast.ErrEmptyInput, Msg: "failed to compute AABB: trimesh is empty"}
		}
	}

	volumes := make([]recast.ConvexVolume, len(settings.AreaVolumes))
	for i, v := range settings.AreaVolumes {
		volumes[i] = v
		volumes[i].Vertices = make([]common.Vec3, len(v.Vertices))
		for j, p := range v.Vertices {
			volumes[i].Vertices[j] = perm.forward(p)
		}
	}

	cfg := settings.Config(aabb)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	polygon, detail, err := build(trimesh, cfg, volumes)
	if err != nil {
		return nil, err
	}
	navmesh := &Navmesh{Polygon: polygon, Detail: detail, Settings: settings}
	if !perm.identity() {
		navmesh.toUser(perm)
	}
	return navmesh, nil
}

// build runs the voxel pipeline on a y-up mesh.
func build(trimesh *recast.TriMesh, cfg *recast.Config, volumes []recast.ConvexVolume) (*recast.PolygonNavmesh, *recast.DetailNavmesh, error) {
	log := logger.L()
	start := time.Now()
	lap := func(stage recast.Stage) {
		now := time.Now()
		log.Debug("stage done", zap.String("stage", string(stage)), zap.Duration("took", now.Sub(start)))
		start = now
	}

	log.Debug("building navmesh",
		zap.Int("width", cfg.Width), zap.Int("height", cfg.Height),
		zap.Int("vertices", len(trimesh.Vertices)), zap.Int("triangles", len(trimesh.Indices)))

	trimesh.MarkWalkableTriangles(cfg.WalkableSlopeAngle)

	heightfield, err := recast.NewHeightfield(cfg.Aabb, cfg.Cs, cfg.Ch)
	if err != nil {
		return nil, nil, err
	}
	if err = heightfield.RasterizeTriangles(trimesh, cfg.WalkableClimb); err != nil {
		return nil, nil, err
	}
	lap(recast.StageRasterize)

	// Once all geometry is rasterized, do an initial pass of filtering to
	// remove unwanted overhangs caused by the conservative rasterization
	// as well as spans where the character cannot possibly stand.
	heightfield.FilterLowHangingWalkableObstacles(cfg.WalkableClimb)
	heightfield.FilterLedgeSpans(cfg.WalkableHeight, cfg.WalkableClimb)
	heightfield.FilterWalkableLowHeightSpans(cfg.WalkableHeight)

	chf, err := heightfield.IntoCompact(cfg.WalkableHeight, cfg.WalkableClimb)
	if err != nil {
		return nil, nil, err
	}
	chf.ErodeWalkableArea(cfg.WalkableRadius)
	for _, volume := range volumes {
		chf.MarkConvexPolyArea(volume)
	}
	lap(recast.StageCompact)

	chf.BuildDistanceField()
	if err = chf.BuildRegions(cfg.BorderSize, cfg.MinRegionArea, cfg.MergeRegionArea); err != nil {
		return nil, nil, err
	}
	lap(recast.StageRegions)

	contours := chf.BuildContours(cfg.MaxSimplificationError, cfg.MaxEdgeLen, cfg.ContourFlags)
	lap(recast.StageContours)

	polygon, err := contours.IntoPolygonMesh(cfg.MaxVerticesPerPolygon)
	if err != nil {
		return nil, nil, err
	}
	lap(recast.StagePolyMesh)

	detail, err := polygon.BuildDetail(chf, cfg.DetailSampleDist, cfg.DetailSampleMaxError)
	if err != nil {
		return nil, nil, err
	}
	lap(recast.StageDetailMesh)
	return polygon, detail, nil
}
