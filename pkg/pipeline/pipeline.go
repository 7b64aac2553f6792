// Package pipeline runs a complete SLA job: it places the model, grows the
// support tree, builds the pad and renders every layer into a display
// mask.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/graph"
	"github.com/chazu/resin/pkg/index"
	"github.com/chazu/resin/pkg/kernel"
	"github.com/chazu/resin/pkg/mesh"
	"github.com/chazu/resin/pkg/pad"
	"github.com/chazu/resin/pkg/polygon"
	"github.com/chazu/resin/pkg/raster"
	"github.com/chazu/resin/pkg/slice"
	"github.com/chazu/resin/pkg/supports"
	"github.com/chazu/resin/pkg/supports/points"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// zeroElevation is the elevation below which the model is considered to
// sit on the pad.
const zeroElevation = 1e-6

// Output names accepted in Job.Formats.
const (
	FormatArchive = "zip"
	FormatSTL     = "stl"
	FormatLayers  = "layers"
)

// Job is one model with its settings.
type Job struct {
	// ID names the run; the zero UUID gets a random one.
	ID     uuid.UUID
	Name   string
	Model  *mesh.TriangleMesh
	Config *config.Store

	// OutputDir receives the outputs listed in Formats. Empty keeps the
	// results in memory only.
	OutputDir string
	Formats   []string

	// MeshOnly stops after the pad; no layers are sliced or rendered.
	MeshOnly bool
}

// Timing is the wall time of one stage.
type Timing struct {
	Stage string
	Took  time.Duration
}

// Result holds everything a run produced.
type Result struct {
	ID uuid.UUID

	// Model is the placed model; Supports and Pad are nil when disabled.
	Model    *mesh.TriangleMesh
	Supports *mesh.TriangleMesh
	Pad      *mesh.TriangleMesh
	Tree     *graph.Tree

	Points                                      int
	Heads, Pillars, Bridges, Junctions, Anchors int

	// Heights are the slicing levels; Layers[i] is the encoded mask of
	// level i in LayerFormat.
	Heights     []float64
	Layers      [][]byte
	LayerFormat raster.Format

	Timings []Timing
	Files   []string
}

// LayerCount returns the number of rendered layers.
func (r *Result) LayerCount() int { return len(r.Layers) }

// Combined merges model, supports and pad into one mesh.
func (r *Result) Combined() *mesh.TriangleMesh {
	m := r.Model.Clone()
	m.Merge(r.Supports, r.Pad)
	return m
}

// Runner executes jobs. The zero value is ready to use.
type Runner struct {
	Logger *log.Logger

	// Kernel meshes the support tree; nil selects the polyhedral kernel.
	Kernel kernel.Kernel

	// Workers bounds the goroutines of the parallel stages. Zero uses
	// GOMAXPROCS.
	Workers int

	// Scale is the polygon unit; zero selects polygon.DefaultScale.
	Scale polygon.Scale

	// Progress, when set, receives the stage name and its completion
	// percentage. It may be called from several goroutines at once.
	Progress func(stage string, pct int)
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.New(io.Discard)
	}
	return r.Logger
}

func (r *Runner) workers() int {
	if r.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return r.Workers
}

func (r *Runner) scale() polygon.Scale {
	if r.Scale <= 0 {
		return polygon.DefaultScale
	}
	return r.Scale
}

func (r *Runner) progress(stage string, pct int) {
	if r.Progress != nil {
		r.Progress(stage, pct)
	}
}

// settings is the typed view of a job's option store.
type settings struct {
	display    raster.Settings
	supports   supports.Config
	points     points.Config
	pad        pad.Config
	withSup    bool
	withPad    bool
	layerH     float64
	closing    float64
	correction [2]float64
}

func readSettings(s *config.Store) (settings, error) {
	st := settings{
		points:  points.ConfigFromStore(s),
		pad:     pad.ConfigFromStore(s),
		withSup: s.Bool(config.KeySupportsEnable),
		withPad: s.Bool(config.KeyPadEnable),
		layerH:  s.Float(config.KeyLayerHeight),
		closing: s.Float(config.KeySliceClosingRadius),
	}
	var err error
	if st.display, err = raster.SettingsFromStore(s); err != nil {
		return st, err
	}
	if st.supports, err = supports.ConfigFromStore(s); err != nil {
		return st, err
	}
	st.correction = [2]float64{1, 1}
	if v, err := s.Get(config.KeyRelativeCorrection); err == nil {
		for i := 0; i < len(v.Floats) && i < 2; i++ {
			st.correction[i] = v.Floats[i]
		}
	}

	var violations []string
	if !(st.layerH > 0) {
		violations = append(violations, fmt.Sprintf("layer height must be positive, got %g", st.layerH))
	}
	if !(st.correction[0] > 0) || !(st.correction[1] > 0) {
		violations = append(violations, fmt.Sprintf("relative correction %v must be positive", st.correction))
	}
	if err := config.Validation("job settings", violations); err != nil {
		return st, err
	}
	if !st.withSup {
		st.supports.ObjectElevation = 0
	} else if err := config.Validation("support config", st.supports.Validate()); err != nil {
		return st, err
	}
	if err := config.Validation("support point config", st.points.Validate()); err != nil {
		return st, err
	}
	if st.withPad {
		if err := config.Validation("pad config", st.pad.Validate()); err != nil {
			return st, err
		}
	}
	return st, nil
}

// run is the state of one Run call.
type run struct {
	*Runner
	job   Job
	st    settings
	res   *Result
	log   *log.Logger
	scale polygon.Scale
	pts   []points.SupportPoint
}

func (rn *run) stage(name string, f func() error) error {
	start := time.Now()
	rn.progress(name, 0)
	if err := f(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	took := time.Since(start)
	rn.res.Timings = append(rn.res.Timings, Timing{Stage: name, Took: took})
	rn.log.Debug("stage done", "stage", name, "took", took)
	rn.progress(name, 100)
	return nil
}

// Run executes job. Invalid settings are reported as a
// *config.ValidationError before any geometry is built. A support tree
// that cannot be completed fails the run with supports.ErrGenerationFault
// in the chain.
func (r *Runner) Run(ctx context.Context, job Job) (*Result, error) {
	if job.Model.IsEmpty() {
		return nil, errors.New("pipeline: empty model")
	}
	if job.Config == nil {
		job.Config = config.Defaults(config.SLADefs())
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Name == "" {
		job.Name = job.Model.Name
	}
	if job.Name == "" {
		job.Name = "job"
	}
	st, err := readSettings(job.Config)
	if err != nil {
		return nil, err
	}
	rn := &run{
		Runner: r,
		job:    job,
		st:     st,
		res:    &Result{ID: job.ID, LayerFormat: st.display.Format},
		log:    r.logger().With("job", job.ID.String()),
		scale:  r.scale(),
	}
	start := time.Now()
	rn.log.Info("job started", "name", job.Name, "supports", st.withSup, "pad", st.withPad)

	if err := rn.execute(ctx); err != nil {
		if ctx.Err() != nil {
			rn.log.Warn("job cancelled", "err", err)
		}
		return nil, err
	}
	if job.OutputDir != "" {
		if err := rn.stage("write", func() error { return rn.write() }); err != nil {
			return nil, err
		}
	}
	rn.log.Info("job finished",
		"layers", rn.res.LayerCount(),
		"points", rn.res.Points,
		"pillars", rn.res.Pillars,
		"took", time.Since(start).Round(time.Millisecond),
	)
	return rn.res, nil
}

func (rn *run) execute(ctx context.Context) error {
	var (
		idx       *index.Index
		modelBase polygon.ExPolygons
		modelZ    []polygon.ExPolygons
		supZ      []polygon.ExPolygons
		padZ      []polygon.ExPolygons
	)
	steps := []struct {
		name   string
		render bool
		f      func() error
	}{
		{"place", false, func() error {
			rn.res.Model = rn.place()
			idx = index.New(rn.res.Model)
			return nil
		}},
		{"slice model", false, func() (err error) {
			top := rn.res.Model.BoundingBox().Max.Z
			rn.res.Heights = slice.Grid(rn.st.layerH/2, top, rn.st.layerH)
			modelZ, err = rn.slice(ctx, rn.res.Model)
			return err
		}},
		{"support points", false, func() error {
			if !rn.st.withSup {
				return nil
			}
			return rn.supportPoints(ctx, idx, modelZ)
		}},
		{"support tree", false, func() error {
			if !rn.st.withSup {
				return nil
			}
			return rn.supportTree(ctx, idx)
		}},
		{"pad", false, func() (err error) {
			if !rn.st.withPad {
				return nil
			}
			if modelBase, err = rn.modelBlueprint(ctx); err != nil {
				return err
			}
			return rn.buildPad(ctx, modelBase)
		}},
		{"slice supports", true, func() (err error) {
			if supZ, err = rn.slice(ctx, rn.res.Supports); err != nil {
				return err
			}
			padZ, err = rn.slice(ctx, rn.res.Pad)
			return err
		}},
		{"rasterize", true, func() error {
			return rn.rasterize(ctx, modelZ, supZ, padZ)
		}},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.render && rn.job.MeshOnly {
			continue
		}
		if err := rn.stage(s.name, s.f); err != nil {
			return err
		}
	}
	return nil
}

// place applies the printer correction and moves the model to the
// display centre with its bottom at the support elevation above the pad
// floor.
func (rn *run) place() *mesh.TriangleMesh {
	m := rn.job.Model.Clone()
	bb := m.BoundingBox()
	c := bb.Center()
	m.Scale(c, v3.Vec{X: rn.st.correction[0], Y: rn.st.correction[1], Z: 1})

	cx, cy := rn.st.display.Centre()
	m.Translate(v3.Vec{X: cx - c.X, Y: cy - c.Y, Z: rn.ground() + rn.st.supports.ObjectElevation - bb.Min.Z})

	bb = m.BoundingBox()
	w, h := 2*cx, 2*cy
	if bb.Min.X < 0 || bb.Min.Y < 0 || bb.Max.X > w || bb.Max.Y > h {
		rn.log.Warn("model exceeds the display", "size", bb.Size(), "display_w", w, "display_h", h)
	}
	return m
}

// ground is the level the support tree stands on: the top of the pad
// floor, or the platform without a pad.
func (rn *run) ground() float64 {
	if rn.st.withPad {
		return rn.st.pad.WallThickness
	}
	return 0
}

func (rn *run) slice(ctx context.Context, m *mesh.TriangleMesh) ([]polygon.ExPolygons, error) {
	if m.IsEmpty() {
		return make([]polygon.ExPolygons, len(rn.res.Heights)), nil
	}
	sl := slice.New(m, rn.scale)
	sl.Workers = rn.workers()
	return sl.Slice(ctx, rn.res.Heights, rn.st.closing)
}

func (rn *run) supportPoints(ctx context.Context, idx *index.Index, modelZ []polygon.ExPolygons) error {
	bottom := rn.res.Model.BoundingBox().Min.Z
	first := 0
	for first < len(rn.res.Heights) && rn.res.Heights[first] < bottom {
		first++
	}
	g := &points.Generator{
		Index:   idx,
		Slices:  modelZ[first:],
		Heights: rn.res.Heights[first:],
		Scale:   rn.scale,
		Config:  rn.st.points,
		Logger:  rn.log,
		Progress: func(pct int) {
			rn.progress("support points", pct)
		},
	}
	res, err := g.Generate(ctx)
	if err != nil {
		return err
	}
	if res.Cancelled {
		return ctx.Err()
	}
	pts := res.Points
	if rn.st.supports.ObjectElevation < zeroElevation {
		pts = points.RemoveBottomPoints(pts, bottom, rn.st.supports.BaseHeight)
		rn.log.Debug("bottom points removed", "kept", len(pts), "of", len(res.Points))
	}
	rn.res.Points = len(pts)
	rn.pts = pts
	return nil
}

func (rn *run) supportTree(ctx context.Context, idx *index.Index) error {
	b := &supports.Builder{Logger: rn.log, Kernel: rn.Kernel, Workers: rn.workers()}
	tree, err := b.Build(ctx, supports.SupportableMesh{Index: idx, Points: rn.pts, Config: rn.st.supports})
	if err != nil {
		return err
	}
	rn.res.Tree = tree
	rn.res.Heads, rn.res.Pillars, rn.res.Bridges, rn.res.Junctions, rn.res.Anchors = tree.Counts()
	if rn.res.Supports, err = b.RetrieveMesh(tree); err != nil {
		return err
	}
	return nil
}

// modelBlueprint returns the model footprint the pad is built under. An
// elevated model leaves the pad to the supports alone.
func (rn *run) modelBlueprint(ctx context.Context) (polygon.ExPolygons, error) {
	if rn.st.withSup && rn.st.supports.ObjectElevation >= zeroElevation {
		return nil, nil
	}
	return pad.Blueprint(ctx, rn.res.Model, rn.st.pad.FullHeight(), rn.st.layerH, rn.scale)
}

func (rn *run) buildPad(ctx context.Context, modelBase polygon.ExPolygons) error {
	supBase, err := pad.Blueprint(ctx, rn.res.Supports, rn.st.pad.FullHeight(), rn.st.layerH, rn.scale)
	if err != nil {
		return err
	}
	m, err := pad.Create(ctx, supBase, modelBase, rn.st.pad, rn.scale)
	if errors.Is(err, pad.ErrEmptyBlueprint) {
		rn.log.Warn("no footprint for the pad, skipping it")
		return nil
	}
	if err != nil {
		return err
	}
	rn.res.Pad = pad.Place(m, rn.ground(), rn.st.pad)
	return nil
}

// rasterize renders every level. Each worker owns one raster and takes
// levels from a shared queue.
func (rn *run) rasterize(ctx context.Context, parts ...[]polygon.ExPolygons) error {
	n := len(rn.res.Heights)
	rn.res.Layers = make([][]byte, n)
	queue := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for i := 0; i < n; i++ {
			select {
			case queue <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	var done atomic.Int64
	step := int64(max(n/20, 1))
	for range min(rn.workers(), max(n, 1)) {
		g.Go(func() error {
			r := rn.st.display.New(rn.scale)
			defer r.Release()
			for i := range queue {
				r.Clear()
				for _, p := range parts {
					r.DrawAll(p[i])
				}
				b, err := r.Bytes()
				if err != nil {
					return fmt.Errorf("layer %d: %w", i, err)
				}
				rn.res.Layers[i] = b
				if d := done.Add(1); d%step == 0 {
					rn.progress("rasterize", int(d*100/int64(n)))
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// ExposureTime returns the exposure of layer i in seconds: the first
// layer gets the initial time, the others the normal one.
func ExposureTime(s *config.Store, i int) float64 {
	if i == 0 {
		return s.Float(config.KeyInitialExposureTime)
	}
	return s.Float(config.KeyExposureTime)
}

// EstimatedPrintTime sums the exposures and a fixed tilt time per layer.
func EstimatedPrintTime(s *config.Store, layers int) time.Duration {
	const tilt = 5.0
	total := 0.0
	for i := 0; i < layers; i++ {
		total += ExposureTime(s, i) + tilt
	}
	return time.Duration(math.Round(total)) * time.Second
}
