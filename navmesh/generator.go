package navmesh

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"

	"github.com/gorustyt/gorerecast/common/logger"
	"github.com/gorustyt/gorerecast/recast"
	"go.uber.org/zap"
	"gopkg.in/eapache/queue.v1"
)

// ErrCollectAffectors is the kind of error reported when the AffectorSource fails.
var ErrCollectAffectors = errors.New("collect affectors failed")

// ID identifies a navmesh produced by a Generator.
type ID uint64

// Ready is delivered once a generation finishes. Exactly one of Navmesh and
// Err is set.
type Ready struct {
	ID      ID
	Navmesh *Navmesh
	Err     error
}

// AffectorSource collects the geometry a navmesh is generated from.
// A nil filter asks for every affector, otherwise only the listed ones.
type AffectorSource interface {
	CollectAffectors(ctx context.Context, filter []AffectorID) ([]Affector, error)
}

// AffectorSourceFunc adapts a function to AffectorSource.
type AffectorSourceFunc func(ctx context.Context, filter []AffectorID) ([]Affector, error)

func (f AffectorSourceFunc) CollectAffectors(ctx context.Context, filter []AffectorID) ([]Affector, error) {
	return f(ctx, filter)
}

// StaticSource serves a fixed list of affectors.
type StaticSource []Affector

func (s StaticSource) CollectAffectors(_ context.Context, filter []AffectorID) ([]Affector, error) {
	if filter == nil {
		return slices.Clone(s), nil
	}
	out := make([]Affector, 0, len(filter))
	for _, a := range s {
		if slices.Contains(filter, a.ID) {
			out = append(out, a)
		}
	}
	return out, nil
}

type Option func(*Generator)

// WithWorkers sets how many navmeshes are built concurrently.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithReadyHandler registers the callback receiving finished builds. It is
// called from worker goroutines.
func WithReadyHandler(fn func(Ready)) Option {
	return func(g *Generator) {
		g.onReady = fn
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

type job struct {
	id       ID
	settings Settings
}

// Generator builds navmeshes in the background. Every id has at most one
// build pending or running at a time. The Generator keeps no reference to
// the navmeshes it produces.
type Generator struct {
	source  AffectorSource
	workers int
	onReady func(Ready)
	log     *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	nextID  ID
	pending *queue.Queue
	queued  map[ID]struct{}
	closed  bool
}

func NewGenerator(source AffectorSource, opts ...Option) *Generator {
	g := &Generator{
		source:  source,
		workers: runtime.GOMAXPROCS(0),
		onReady: func(Ready) {},
		log:     logger.L(),
		pending: queue.New(),
		queued:  make(map[ID]struct{}),
	}
	g.cond = sync.NewCond(&g.mu)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate queues a build of a new navmesh and returns its id. Once Run has
// stopped the id is still reserved but nothing is built.
func (g *Generator) Generate(settings Settings) ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := g.nextID
	g.enqueueLocked(id, settings)
	return id
}

// Regenerate queues a rebuild of id. It returns false, and does nothing,
// when a build of id is already pending or running or Run has stopped.
func (g *Generator) Regenerate(id ID, settings Settings) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.queued[id]; ok || g.closed {
		return false
	}
	g.enqueueLocked(id, settings)
	return true
}

// Busy reports whether a build of id is pending or running.
func (g *Generator) Busy(id ID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.queued[id]
	return ok
}

func (g *Generator) enqueueLocked(id ID, settings Settings) {
	if g.closed {
		g.log.Warn("navmesh generator stopped, dropping build", zap.Uint64("id", uint64(id)))
		return
	}
	g.queued[id] = struct{}{}
	g.pending.Add(job{id: id, settings: settings})
	g.cond.Signal()
}

// Run processes queued builds until ctx is done, then waits for the
// running builds to finish. Builds still pending at that point are dropped.
// Run must be called at most once.
func (g *Generator) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		g.mu.Lock()
		g.closed = true
		for g.pending.Length() > 0 {
			delete(g.queued, g.pending.Remove().(job).id)
		}
		g.mu.Unlock()
		g.cond.Broadcast()
	})
	defer stop()

	g.log.Info("navmesh generator started", zap.Int("workers", g.workers))
	var wg sync.WaitGroup
	for i := 0; i < g.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, ok := g.next()
				if !ok {
					return
				}
				g.process(ctx, j)
			}
		}()
	}
	wg.Wait()
	g.log.Info("navmesh generator stopped")
	return ctx.Err()
}

func (g *Generator) next() (job, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.pending.Length() == 0 && !g.closed {
		g.cond.Wait()
	}
	if g.closed {
		return job{}, false
	}
	return g.pending.Remove().(job), true
}

func (g *Generator) process(ctx context.Context, j job) {
	log := g.log.With(zap.Uint64("id", uint64(j.id)))
	ready := Ready{ID: j.id}

	affectors, err := g.source.CollectAffectors(ctx, j.settings.Filter)
	if err != nil {
		ready.Err = &recast.BuildError{Stage: recast.StageGenerator, Kind: ErrCollectAffectors, Err: err}
	} else {
		ready.Navmesh, ready.Err = Generate(affectors, j.settings)
	}
	if ready.Err != nil {
		log.Error("failed to generate navmesh", zap.Error(ready.Err))
	} else {
		log.Debug("navmesh ready", zap.Int("polygons", ready.Navmesh.Polygon.PolygonCount()))
	}

	g.mu.Lock()
	delete(g.queued, j.id)
	g.mu.Unlock()
	g.onReady(ready)
}
