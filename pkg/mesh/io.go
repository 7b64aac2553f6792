package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Load reads a mesh file, choosing the format from the extension (.stl or
// .obj). The result is welded so that faces share vertices.
func Load(path string) (*TriangleMesh, error) {
	var (
		m   *TriangleMesh
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		var tris []*sdf.Triangle3
		if tris, err = loadSTL(path); err == nil {
			m = FromTriangles(tris)
		}
	case ".obj":
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return nil, err
		}
		m, err = ReadOBJ(f)
		f.Close()
	default:
		return nil, fmt.Errorf("mesh: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("mesh: read %s: %w", path, err)
	}
	m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m.Repair()
	return m, nil
}

// loadSTL reads an ASCII or binary STL file. An ASCII file whose vertex
// count is not a multiple of three makes the sdfx loader panic.
func loadSTL(path string) (tris []*sdf.Triangle3, err error) {
	defer func() {
		if r := recover(); r != nil {
			tris, err = nil, fmt.Errorf("stl: malformed file: %v", r)
		}
	}()
	return render.LoadSTL(path)
}

// FromTriangles builds an unwelded mesh from a triangle soup.
func FromTriangles(tris []*sdf.Triangle3) *TriangleMesh {
	m := New("")
	m.Vertices = make([]v3.Vec, 0, 3*len(tris))
	m.Faces = make([][3]int, 0, len(tris))
	for _, t := range tris {
		m.AddFace(m.AddVertex(t[0]), m.AddVertex(t[1]), m.AddVertex(t[2]))
	}
	return m
}

// Triangles returns the faces of m as a triangle soup.
func (m *TriangleMesh) Triangles() []*sdf.Triangle3 {
	tris := make([]*sdf.Triangle3, len(m.Faces))
	for i := range m.Faces {
		a, b, c := m.Triangle(i)
		tris[i] = &sdf.Triangle3{a, b, c}
	}
	return tris
}

// ReadSTL decodes a binary or ASCII STL stream. Vertices are not welded.
func ReadSTL(r io.Reader) (*TriangleMesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if isBinarySTL(data) {
		return readBinarySTL(data)
	}
	return readASCIISTL(data)
}

func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}
	n := binary.LittleEndian.Uint32(data[80:84])
	if uint64(len(data)) == 84+uint64(n)*50 {
		return true
	}
	return !bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid"))
}

func vec32(p [3]float32) v3.Vec {
	return v3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
}

func float32s(v v3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func readBinarySTL(data []byte) (*TriangleMesh, error) {
	r := bytes.NewReader(data)
	var hdr render.STLHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	n := int(hdr.Count)
	if len(data) < 84+n*50 {
		return nil, fmt.Errorf("stl: truncated, want %d triangles", n)
	}
	m := New("")
	m.Vertices = make([]v3.Vec, 0, n*3)
	m.Faces = make([][3]int, 0, n)
	var rec render.STLTriangle
	for i := 0; i < n; i++ {
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("stl: triangle %d: %w", i, err)
		}
		m.AddFace(m.AddVertex(vec32(rec.Vertex1)), m.AddVertex(vec32(rec.Vertex2)), m.AddVertex(vec32(rec.Vertex3)))
	}
	return m, nil
}

// readASCIISTL parses "vertex x y z" records in threes.
func readASCIISTL(data []byte) (*TriangleMesh, error) {
	m := New("")
	sc := bufio.NewScanner(bytes.NewReader(data))
	var corner [3]int
	k := 0
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] != "vertex" {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("stl: line %d: malformed vertex", line)
		}
		var c [3]float64
		for j := 0; j < 3; j++ {
			v, err := strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("stl: line %d: %w", line, err)
			}
			c[j] = v
		}
		corner[k] = m.AddVertex(v3.Vec{X: c[0], Y: c[1], Z: c[2]})
		k++
		if k == 3 {
			m.Faces = append(m.Faces, corner)
			k = 0
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if k != 0 {
		return nil, fmt.Errorf("stl: dangling vertices at end of file")
	}
	return m, nil
}

// WriteSTL encodes m as binary STL records on w.
func WriteSTL(w io.Writer, m *TriangleMesh) error {
	bw := bufio.NewWriter(w)
	hdr := render.STLHeader{Count: uint32(len(m.Faces))}
	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	var rec render.STLTriangle
	for i := range m.Faces {
		a, b, c := m.Triangle(i)
		rec.Normal = float32s(m.FaceNormal(i))
		rec.Vertex1, rec.Vertex2, rec.Vertex3 = float32s(a), float32s(b), float32s(c)
		if err := binary.Write(bw, binary.LittleEndian, &rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveSTL writes m to path as binary STL.
func SaveSTL(path string, m *TriangleMesh) error {
	return render.SaveSTL(path, m.Triangles())
}

// ReadOBJ decodes the vertex and face records of a Wavefront OBJ stream.
// Polygonal faces are fan triangulated; negative indices are relative.
func ReadOBJ(r io.Reader) (*TriangleMesh, error) {
	m := New("")
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj: line %d: malformed vertex", line)
			}
			var c [3]float64
			for j := 0; j < 3; j++ {
				v, err := strconv.ParseFloat(fields[j+1], 64)
				if err != nil {
					return nil, fmt.Errorf("obj: line %d: %w", line, err)
				}
				c[j] = v
			}
			m.AddVertex(v3.Vec{X: c[0], Y: c[1], Z: c[2]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj: line %d: face needs three vertices", line)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				if slash := strings.IndexByte(tok, '/'); slash >= 0 {
					tok = tok[:slash]
				}
				i, err := strconv.Atoi(tok)
				if err != nil {
					return nil, fmt.Errorf("obj: line %d: %w", line, err)
				}
				if i < 0 {
					i = len(m.Vertices) + i
				} else {
					i--
				}
				if i < 0 || i >= len(m.Vertices) {
					return nil, fmt.Errorf("obj: line %d: vertex index out of range", line)
				}
				idx = append(idx, i)
			}
			for j := 1; j+1 < len(idx); j++ {
				m.AddFace(idx[0], idx[j], idx[j+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
