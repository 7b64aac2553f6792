// Package cli implements the resin command-line interface.
//
// # Commands
//
//   - support: generate support points and the support tree for a model
//   - pad: build the pad under a model and its supports
//   - slice (alias rasterize): render the layer masks of a model
//   - run: execute a job script (.lisp) or job file (.yaml)
//   - config: print the default or the effective option set
//
// Every command reads its options as defaults < --config file < --set
// assignments. Loggers travel in the command context.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/chazu/resin/internal/logger"
	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/kernel"
	"github.com/chazu/resin/pkg/kernel/manifold"
	"github.com/chazu/resin/pkg/kernel/poly"
	"github.com/chazu/resin/pkg/kernel/sdfx"
	"github.com/chazu/resin/pkg/mesh"
	"github.com/chazu/resin/pkg/pipeline"
)

const appName = "resin"

// Kernel names accepted by --kernel.
const (
	kernelPoly     = "poly"
	kernelSdfx     = "sdfx"
	kernelManifold = "manifold"
)

// CLI holds the flags shared by all commands.
type CLI struct {
	configPath string
	overrides  []string
	outDir     string
	verbose    bool
	logFile    string
	kernelName string
	workers    int

	closer io.Closer
}

// New returns a CLI with default flags.
func New() *CLI {
	return &CLI{outDir: ".", kernelName: kernelPoly}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "resin grows supports, pads and layer masks for resin printers",
		Long:         `resin prepares models for masked SLA printing: it places support points, grows a support tree to the platform, builds the pad underneath and renders every layer into a display mask.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			o := logger.DefaultOptions()
			o.Console = cmd.ErrOrStderr()
			o.File = c.logFile
			if c.verbose {
				o.Level = "debug"
			}
			l, closer := logger.New(o)
			c.closer = closer
			cmd.SetContext(logger.WithLogger(cmd.Context(), l))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.closer != nil {
				c.closer.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "option file (yaml, toml or ini)")
	pf.StringArrayVar(&c.overrides, "set", nil, "set an option, key=value (repeatable)")
	pf.StringVarP(&c.outDir, "out", "o", c.outDir, "output directory")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&c.logFile, "log-file", "", "also log to this file, rotated by size")
	pf.StringVar(&c.kernelName, "kernel", c.kernelName, "support mesh kernel: poly, sdfx or manifold")
	pf.IntVar(&c.workers, "workers", 0, "parallel workers (0 uses every CPU)")

	root.AddCommand(c.supportCommand())
	root.AddCommand(c.padCommand())
	root.AddCommand(c.sliceCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.configCommand())

	return root
}

// loadConfig reads the options with the command's own assignments applied
// before the user's --set flags.
func (c *CLI) loadConfig(forced ...string) (*config.Store, error) {
	return config.Load(config.SLADefs(), c.configPath, append(forced, c.overrides...))
}

func (c *CLI) kernel() (kernel.Kernel, error) {
	switch c.kernelName {
	case kernelPoly, "":
		return poly.New(0), nil
	case kernelSdfx:
		return sdfx.New(), nil
	case kernelManifold:
		return manifold.New()
	}
	return nil, fmt.Errorf("unknown kernel %q", c.kernelName)
}

func (c *CLI) newRunner(l *log.Logger) (*pipeline.Runner, error) {
	k, err := c.kernel()
	if err != nil {
		return nil, err
	}
	return &pipeline.Runner{
		Logger:  l,
		Kernel:  k,
		Workers: c.workers,
		Progress: func(stage string, pct int) {
			if pct == 100 {
				l.Debug("progress", "stage", stage)
			}
		},
	}, nil
}

// runModel loads a model file and runs it through the pipeline.
func (c *CLI) runModel(ctx context.Context, path string, job pipeline.Job, forced ...string) (*pipeline.Result, error) {
	l := logger.FromContext(ctx)
	m, err := mesh.Load(path)
	if err != nil {
		return nil, err
	}
	if st := m.Repair(); st.NeededRepair() {
		l.Warn("model repaired", "stats", fmt.Sprintf("%+v", st))
	}
	if job.Config, err = c.loadConfig(forced...); err != nil {
		return nil, err
	}
	job.Model = m
	if job.Name == "" {
		job.Name = modelName(path)
	}
	return c.execute(ctx, job)
}

func (c *CLI) execute(ctx context.Context, job pipeline.Job) (*pipeline.Result, error) {
	l := logger.FromContext(ctx)
	r, err := c.newRunner(l)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := r.Run(ctx, job)
	if err != nil {
		return nil, err
	}
	l.Infof("%s done (%s)", job.Name, time.Since(start).Round(time.Millisecond))
	return res, nil
}

func modelName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
