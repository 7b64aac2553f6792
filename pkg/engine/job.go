package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/mesh"
	"github.com/chazu/resin/pkg/pipeline"
	"gopkg.in/yaml.v3"
)

// ErrNoModel is returned when a job names neither a model file nor a part.
var ErrNoModel = errors.New("job has no model")

// Job is the build a script or job file describes.
type Job struct {
	Name       string
	Dir        string   // base for relative model files and output dir
	Settings   []string // "key=value" in the order given
	ModelFiles []string
	Parts      []*mesh.TriangleMesh
	OutputDir  string
	Formats    []string
}

// jobFile is the YAML form of a Job.
type jobFile struct {
	Name   string         `yaml:"name"`
	Models []string       `yaml:"models"`
	Config map[string]any `yaml:"config"`
	Output struct {
		Dir     string   `yaml:"dir"`
		Formats []string `yaml:"formats"`
	} `yaml:"output"`
}

// ParseYAML reads a job file of the form
//
//	name: bracket
//	models: [bracket.stl]
//	config:
//	  layer_height: 0.05
//	  support_object_elevation: 5
//	output:
//	  dir: out
//	  formats: [zip, stl]
func ParseYAML(data []byte) (*Job, error) {
	var f jobFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	settings, err := config.Assignments(config.SLADefs(), f.Config)
	if err != nil {
		return nil, err
	}
	for _, format := range f.Output.Formats {
		if !pipeline.KnownFormat(format) {
			return nil, fmt.Errorf("unknown output format %q", format)
		}
	}
	return &Job{
		Name:       f.Name,
		Settings:   settings,
		ModelFiles: f.Models,
		OutputDir:  f.Output.Dir,
		Formats:    f.Output.Formats,
	}, nil
}

// LoadJob reads a job from a script (.lisp, .zy) or a YAML job file.
// Script errors are joined into the returned error.
func (e *Engine) LoadJob(ctx context.Context, path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var job *Job
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if job, err = ParseYAML(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case ".lisp", ".zy":
		var evalErrs []EvalError
		job, evalErrs, err = e.EvaluateContext(ctx, string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(evalErrs) > 0 {
			errs := make([]error, len(evalErrs))
			for i, ee := range evalErrs {
				errs[i] = ee
			}
			return nil, fmt.Errorf("%s: %w", path, errors.Join(errs...))
		}
	default:
		return nil, fmt.Errorf("unsupported job file %q", filepath.Ext(path))
	}
	job.Dir = filepath.Dir(path)
	if job.Name == "" {
		job.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return job, nil
}

func (j *Job) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || j.Dir == "" {
		return p
	}
	return filepath.Join(j.Dir, p)
}

// Store returns a copy of base with the job's settings applied. A nil
// base starts from the defaults.
func (j *Job) Store(base *config.Store) (*config.Store, error) {
	var s *config.Store
	if base == nil {
		s = config.Defaults(config.SLADefs())
	} else {
		s = base.Clone()
	}
	if err := config.ApplyOverrides(s, j.Settings); err != nil {
		return nil, err
	}
	return s, nil
}

// Model loads the model files and merges them with the script parts.
func (j *Job) Model() (*mesh.TriangleMesh, error) {
	if len(j.ModelFiles) == 0 && len(j.Parts) == 0 {
		return nil, ErrNoModel
	}
	name := j.Name
	if name == "" {
		name = "model"
	}
	m := mesh.New(name)
	for _, f := range j.ModelFiles {
		part, err := mesh.Load(j.resolve(f))
		if err != nil {
			return nil, fmt.Errorf("loading model: %w", err)
		}
		m.Merge(part)
	}
	m.Merge(j.Parts...)
	return m, nil
}

// Pipeline resolves the job into a pipeline job over base.
func (j *Job) Pipeline(base *config.Store) (pipeline.Job, error) {
	s, err := j.Store(base)
	if err != nil {
		return pipeline.Job{}, err
	}
	m, err := j.Model()
	if err != nil {
		return pipeline.Job{}, err
	}
	return pipeline.Job{
		Name:      j.Name,
		Model:     m,
		Config:    s,
		OutputDir: j.resolve(j.OutputDir),
		Formats:   j.Formats,
	}, nil
}
