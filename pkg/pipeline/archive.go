package pipeline

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/mesh"
)

// LayerName returns the archive entry name of layer i.
func (r *Result) LayerName(job string, i int) string {
	return fmt.Sprintf("%s%05d.%s", job, i, r.LayerFormat.Ext())
}

// WriteArchive writes a zip holding every layer mask, the job summary
// (job.ini), the full option set (config.ini) and the combined mesh as
// binary STL.
func WriteArchive(w io.Writer, name string, res *Result, s *config.Store) error {
	zw := zip.NewWriter(w)
	add := func(entry string, write func(io.Writer) error) error {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Deflate, Modified: time.Now()})
		if err != nil {
			return err
		}
		if err := write(f); err != nil {
			return fmt.Errorf("writing %s: %w", entry, err)
		}
		return nil
	}

	if err := add("job.ini", func(w io.Writer) error { return writeJobINI(w, name, res, s) }); err != nil {
		return err
	}
	if err := add("config.ini", func(w io.Writer) error { return config.WriteINI(w, s) }); err != nil {
		return err
	}
	for i, b := range res.Layers {
		if err := add(res.LayerName(name, i), func(w io.Writer) error {
			_, err := w.Write(b)
			return err
		}); err != nil {
			return err
		}
	}
	if res.Model != nil {
		if err := add(name+".stl", func(w io.Writer) error { return mesh.WriteSTL(w, res.Combined()) }); err != nil {
			return err
		}
	}
	return zw.Close()
}

// writeJobINI writes the print summary a printer reads before the layers.
func writeJobINI(w io.Writer, name string, res *Result, s *config.Store) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "action = print\n")
	fmt.Fprintf(&b, "jobDir = %s\n", name)
	fmt.Fprintf(&b, "jobId = %s\n", res.ID)
	fmt.Fprintf(&b, "layerHeight = %g\n", s.Float(config.KeyLayerHeight))
	fmt.Fprintf(&b, "expTime = %g\n", ExposureTime(s, 1))
	fmt.Fprintf(&b, "expTimeFirst = %g\n", ExposureTime(s, 0))
	fmt.Fprintf(&b, "numLayers = %d\n", res.LayerCount())
	fmt.Fprintf(&b, "printTime = %d\n", int(EstimatedPrintTime(s, res.LayerCount())/time.Second))
	fmt.Fprintf(&b, "printerModel = %s\n", s.String(config.KeyPrinterModel))
	fmt.Fprintf(&b, "supportPoints = %d\n", res.Points)
	fmt.Fprintf(&b, "pillars = %d\n", res.Pillars)
	_, err := w.Write(b.Bytes())
	return err
}

// write stores the outputs of a finished run under the job's output
// directory.
func (rn *run) write() error {
	dir := rn.job.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	formats := rn.job.Formats
	if len(formats) == 0 {
		formats = []string{FormatArchive}
	}
	for _, f := range formats {
		var err error
		switch f {
		case FormatArchive:
			err = rn.writeFile(filepath.Join(dir, rn.job.Name+".zip"), func(w io.Writer) error {
				return WriteArchive(w, rn.job.Name, rn.res, rn.job.Config)
			})
		case FormatSTL:
			err = rn.writeFile(filepath.Join(dir, rn.job.Name+".stl"), func(w io.Writer) error {
				return mesh.WriteSTL(w, rn.res.Combined())
			})
		case FormatLayers:
			err = rn.writeLayers(filepath.Join(dir, rn.job.Name))
		default:
			err = fmt.Errorf("unknown output format %q", f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (rn *run) writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	rn.res.Files = append(rn.res.Files, path)
	rn.log.Info("wrote output", "path", path)
	return nil
}

func (rn *run) writeLayers(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, b := range rn.res.Layers {
		path := filepath.Join(dir, rn.res.LayerName(rn.job.Name, i))
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return err
		}
	}
	rn.res.Files = append(rn.res.Files, dir)
	rn.log.Info("wrote layers", "dir", dir, "count", len(rn.res.Layers))
	return nil
}

// KnownFormat reports whether f names an output of Job.Formats.
func KnownFormat(f string) bool {
	return slices.Contains([]string{FormatArchive, FormatSTL, FormatLayers}, f)
}
