package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chazu/resin/internal/logger"
	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/engine"
	"github.com/chazu/resin/pkg/mesh"
	"github.com/chazu/resin/pkg/pipeline"
)

func (c *CLI) supportCommand() *cobra.Command {
	var preview bool
	cmd := &cobra.Command{
		Use:   "support MODEL",
		Short: "Generate support points and the support tree",
		Long:  `Places support points on the model, grows the support tree to the platform and writes the supported model as <name>_supported.stl.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if preview {
				c.kernelName = kernelSdfx
			}
			res, err := c.runModel(cmd.Context(), args[0], pipeline.Job{MeshOnly: true},
				config.KeySupportsEnable+"=1", config.KeyPadEnable+"=0")
			if err != nil {
				return err
			}
			logger.FromContext(cmd.Context()).Info("support tree",
				"points", res.Points,
				"heads", res.Heads,
				"pillars", res.Pillars,
				"bridges", res.Bridges,
				"anchors", res.Anchors,
			)
			return c.saveMesh(cmd, modelName(args[0])+"_supported.stl", res.Combined())
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "mesh the tree with the smooth sdfx kernel")
	return cmd
}

func (c *CLI) padCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pad MODEL",
		Short: "Build the pad under a model and its supports",
		Long:  `Builds the pad the model (and its supports, when enabled) stands on and writes it as <name>_pad.stl.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.runModel(cmd.Context(), args[0], pipeline.Job{MeshOnly: true}, config.KeyPadEnable+"=1")
			if err != nil {
				return err
			}
			if res.Pad == nil {
				return errors.New("the model has no footprint to build a pad under")
			}
			return c.saveMesh(cmd, modelName(args[0])+"_pad.stl", res.Pad)
		},
	}
}

func (c *CLI) sliceCommand() *cobra.Command {
	var (
		formats     []string
		imageFormat string
		gamma       float64
		mirrorX     bool
		mirrorY     bool
		orientation string
	)
	cmd := &cobra.Command{
		Use:     "slice MODEL",
		Aliases: []string{"rasterize"},
		Short:   "Render the layer masks of a model with its supports and pad",
		Long:    `Runs the whole job and writes the layer masks. Outputs are chosen with --format: layers (one image per layer), zip (print archive) and stl (combined mesh).`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range formats {
				if !pipeline.KnownFormat(f) {
					return fmt.Errorf("unknown output format %q", f)
				}
			}
			// Raster flags apply only when given, so they sit between the
			// config file and --set.
			var forced []string
			fl := cmd.Flags()
			if fl.Changed("image-format") {
				forced = append(forced, config.KeyRasterFormat+"="+imageFormat)
			}
			if fl.Changed("gamma") {
				forced = append(forced, config.KeyGammaCorrection+"="+strconv.FormatFloat(gamma, 'g', -1, 64))
			}
			if fl.Changed("mirror-x") {
				forced = append(forced, config.KeyDisplayMirrorX+"="+boolText(mirrorX))
			}
			if fl.Changed("mirror-y") {
				forced = append(forced, config.KeyDisplayMirrorY+"="+boolText(mirrorY))
			}
			if fl.Changed("orientation") {
				forced = append(forced, config.KeyDisplayOrientation+"="+orientation)
			}
			job := pipeline.Job{OutputDir: c.outDir, Formats: formats}
			res, err := c.runModel(cmd.Context(), args[0], job, forced...)
			if err != nil {
				return err
			}
			for _, f := range res.Files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&formats, "format", []string{pipeline.FormatLayers}, "outputs: layers, zip, stl")
	f.StringVar(&imageFormat, "image-format", "png", "layer image format: png or raw")
	f.Float64Var(&gamma, "gamma", 1, "gamma correction, 0 for a hard threshold")
	f.BoolVar(&mirrorX, "mirror-x", true, "mirror the masks horizontally")
	f.BoolVar(&mirrorY, "mirror-y", false, "mirror the masks vertically")
	f.StringVar(&orientation, "orientation", "landscape", "display orientation: landscape or portrait")
	return cmd
}

func (c *CLI) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run JOB",
		Short: "Run a job script (.lisp) or job file (.yaml)",
		Long:  `Evaluates the job, layers its settings over the option file and runs it. --out replaces the job's output directory; without either the job's own directory is used.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := engine.NewEngine().LoadJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			base, err := c.loadConfig()
			if err != nil {
				return err
			}
			pj, err := job.Pipeline(base)
			if err != nil {
				return err
			}
			// --set wins over the job's own settings.
			if err := config.ApplyOverrides(pj.Config, c.overrides); err != nil {
				return err
			}
			switch {
			case cmd.Flags().Changed("out"):
				pj.OutputDir = c.outDir
			case pj.OutputDir == "":
				pj.OutputDir = job.Dir
			}
			res, err := c.execute(cmd.Context(), pj)
			if err != nil {
				return err
			}
			for _, f := range res.Files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
}

func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print option sets",
	}

	var format string
	show := func(cmd *cobra.Command, s *config.Store) error {
		switch format {
		case "yaml":
			data, err := config.MarshalYAML(s)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		case "ini":
			return config.WriteINI(cmd.OutOrStdout(), s)
		}
		return fmt.Errorf("unknown config format %q", format)
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective options (defaults, --config file, --set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadConfig()
			if err != nil {
				return err
			}
			return show(cmd, s)
		},
	}
	defaults := &cobra.Command{
		Use:   "defaults",
		Short: "Print the default options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return show(cmd, config.Defaults(config.SLADefs()))
		},
	}
	cmd.PersistentFlags().StringVar(&format, "format", "yaml", "output format: yaml or ini")
	cmd.AddCommand(dump, defaults)
	return cmd
}

// saveMesh writes m as binary STL under the output directory.
func (c *CLI) saveMesh(cmd *cobra.Command, name string, m *mesh.TriangleMesh) error {
	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(c.outDir, name)
	if err := mesh.SaveSTL(path, m); err != nil {
		return err
	}
	logger.FromContext(cmd.Context()).Info("wrote mesh", "path", path, "faces", m.FaceCount())
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func boolText(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
