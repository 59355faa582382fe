// Command navgen builds a navmesh from Wavefront OBJ files.
//
//	navgen [-config s.yaml] [-up y|z|x] [-o out.nav] [-bin out.bin]
//	       [-obj poly.obj] [-detail-obj detail.obj] [-log file] [-v] [-watch] input.obj...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/common/logger"
	"github.com/gorustyt/gorerecast/debug_utils"
	"github.com/gorustyt/gorerecast/mesh"
	"github.com/gorustyt/gorerecast/navmesh"
	"go.uber.org/zap"
)

type options struct {
	config    string
	up        string
	out       string
	bin       string
	obj       string
	detailObj string
	logFile   string
	verbose   bool
	watch     bool
	inputs    []string
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("navgen", flag.ContinueOnError)
	fs.StringVar(&opts.config, "config", "", "YAML settings file")
	fs.StringVar(&opts.up, "up", "", "up axis: x, y or z (overrides the settings file)")
	fs.StringVar(&opts.out, "o", "navmesh.nav", "output .nav file")
	fs.StringVar(&opts.bin, "bin", "", "also write the binary encoding here")
	fs.StringVar(&opts.obj, "obj", "", "dump the polygon mesh as OBJ")
	fs.StringVar(&opts.detailObj, "detail-obj", "", "dump the detail mesh as OBJ")
	fs.StringVar(&opts.logFile, "log", "", "log to this file instead of stderr")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")
	fs.BoolVar(&opts.watch, "watch", false, "regenerate whenever an input changes")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.inputs = fs.Args()
	if len(opts.inputs) == 0 {
		return nil, errors.New("no input files")
	}
	return opts, nil
}

func parseUp(s string) (common.Vec3, error) {
	switch s {
	case "x", "X":
		return navmesh.UpX, nil
	case "y", "Y":
		return navmesh.UpY, nil
	case "z", "Z":
		return navmesh.UpZ, nil
	}
	return common.Vec3{}, fmt.Errorf("unknown up axis %q", s)
}

func loadSettings(opts *options) (navmesh.Settings, error) {
	settings := navmesh.DefaultSettings()
	if opts.config != "" {
		var err error
		if settings, err = navmesh.LoadSettingsYAML(opts.config); err != nil {
			return settings, err
		}
	}
	if opts.up != "" {
		up, err := parseUp(opts.up)
		if err != nil {
			return settings, err
		}
		settings.Up = up
	}
	return settings, settings.Validate()
}

// source serves the affectors loaded from the input files and can be
// reloaded while the generator runs.
type source struct {
	mu        sync.RWMutex
	affectors navmesh.StaticSource
}

func (s *source) CollectAffectors(ctx context.Context, filter []navmesh.AffectorID) ([]navmesh.Affector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.affectors.CollectAffectors(ctx, filter)
}

func (s *source) load(paths []string) error {
	affectors := make(navmesh.StaticSource, 0, len(paths))
	for i, path := range paths {
		m, err := mesh.LoadObj(path)
		if err != nil {
			return err
		}
		affectors = append(affectors, navmesh.Affector{
			ID:        navmesh.AffectorID(i),
			Transform: navmesh.IdentityTransform(),
			Mesh:      m,
		})
	}
	s.mu.Lock()
	s.affectors = affectors
	s.mu.Unlock()
	return nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeOutputs(opts *options, nav *navmesh.Navmesh) error {
	if err := navmesh.SaveNav(opts.out, nav); err != nil {
		return err
	}
	if opts.bin != "" {
		data, err := nav.MarshalBinary()
		if err != nil {
			return err
		}
		if err = os.WriteFile(opts.bin, data, 0o644); err != nil {
			return err
		}
	}
	if opts.obj != "" {
		err := writeFile(opts.obj, func(f *os.File) error {
			return debug_utils.DumpPolyMeshToObj(f, nav.Polygon, nav.Settings.Up)
		})
		if err != nil {
			return err
		}
	}
	if opts.detailObj != "" {
		err := writeFile(opts.detailObj, func(f *os.File) error {
			return debug_utils.DumpDetailMeshToObj(f, nav.Detail)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, opts *options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	src := &source{}
	if err = src.load(opts.inputs); err != nil {
		return err
	}
	log := logger.L()

	if !opts.watch {
		nav, err := generateOnce(ctx, src, settings)
		if err != nil {
			return err
		}
		log.Info("navmesh generated", zap.Int("polygons", nav.Polygon.PolygonCount()), zap.String("out", opts.out))
		return writeOutputs(opts, nav)
	}
	return watch(ctx, opts, settings, src)
}

func generateOnce(ctx context.Context, src navmesh.AffectorSource, settings navmesh.Settings) (*navmesh.Navmesh, error) {
	affectors, err := src.CollectAffectors(ctx, settings.Filter)
	if err != nil {
		return nil, fmt.Errorf("collect affectors: %w", err)
	}
	return navmesh.Generate(affectors, settings)
}

func watch(ctx context.Context, opts *options, settings navmesh.Settings, src *source) error {
	log := logger.L()
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]bool{}
	for _, path := range append([]string{opts.config}, opts.inputs...) {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		watched[abs] = true
		// Watch the directory so editors that replace files are noticed.
		if err = watcher.Add(filepath.Dir(abs)); err != nil {
			return err
		}
	}

	gen := navmesh.NewGenerator(src, navmesh.WithWorkers(1), navmesh.WithLogger(log),
		navmesh.WithReadyHandler(func(r navmesh.Ready) {
			if r.Err != nil {
				return
			}
			if err := writeOutputs(opts, r.Navmesh); err != nil {
				log.Error("failed to write navmesh", zap.Error(err))
				return
			}
			log.Info("navmesh written", zap.String("out", opts.out), zap.Int("polygons", r.Navmesh.Polygon.PolygonCount()))
		}))
	id := gen.Generate(settings)

	done := make(chan error, 1)
	go func() { done <- gen.Run(ctx) }()

	// Editors emit bursts of events; rebuild once they settle.
	const settle = 200 * time.Millisecond
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case ev := <-watcher.Events:
			if watched[ev.Name] && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer = time.After(settle)
			}
		case err := <-watcher.Errors:
			log.Warn("watch error", zap.Error(err))
		case <-timer:
			timer = nil
			next, err := loadSettings(opts)
			if err != nil {
				log.Error("invalid settings", zap.Error(err))
				continue
			}
			if err = src.load(opts.inputs); err != nil {
				log.Error("failed to reload inputs", zap.Error(err))
				continue
			}
			settings = next
			if !gen.Regenerate(id, settings) {
				// A build is running; try again once it is done.
				timer = time.After(settle)
			}
		}
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "navgen:", err)
		os.Exit(2)
	}

	cfg := logger.Config{File: opts.logFile, Level: "info", MaxSizeMB: 50, MaxBackups: 3}
	if opts.verbose {
		cfg.Level = "debug"
		cfg.Development = true
	}
	l, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "navgen:", err)
		os.Exit(2)
	}
	logger.SetLogger(l)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err = run(ctx, opts); err != nil {
		l.Error("navgen failed", zap.Error(err))
		l.Sync()
		os.Exit(1)
	}
}
