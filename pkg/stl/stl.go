// Package stl reads and writes STL files as indexed meshes.
package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/gcdeform/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// WeldTolerance merges STL corner copies closer than this.
const WeldTolerance = 1e-6

// Parse reads an STL file and returns a welded mesh.
// It automatically detects whether the file is ASCII or binary format.
func Parse(filename string) (*mesh.Mesh, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return Decode(data)
}

// Decode parses STL bytes in either format.
func Decode(data []byte) (*mesh.Mesh, error) {
	var (
		name string
		tris [][3]r3.Vec
		err  error
	)
	if isASCII(data) {
		name, tris, err = parseASCII(bytes.NewReader(data))
	} else {
		name, tris, err = parseBinary(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}
	return mesh.FromTriangles(name, tris, WeldTolerance), nil
}

// isASCII checks for the "solid" keyword. Some binary exporters also
// start their header with "solid", so the size is checked against the
// binary layout first.
func isASCII(data []byte) bool {
	if !bytes.HasPrefix(data, []byte("solid")) {
		return false
	}
	if len(data) >= 84 {
		n := binary.LittleEndian.Uint32(data[80:84])
		if 84+int64(n)*50 == int64(len(data)) {
			return false
		}
	}
	return true
}

// parseASCII parses an ASCII STL stream.
func parseASCII(reader io.Reader) (string, [][3]r3.Vec, error) {
	scanner := bufio.NewScanner(reader)
	var (
		name     string
		tris     [][3]r3.Vec
		vertices []r3.Vec
	)

	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "solid":
			if len(fields) > 1 {
				name = strings.Join(fields[1:], " ")
			}

		case "vertex":
			if len(fields) < 4 {
				return "", nil, fmt.Errorf("malformed vertex line %q", scanner.Text())
			}
			var xyz [3]float64
			for i := range xyz {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return "", nil, fmt.Errorf("bad vertex coordinate %q: %w", fields[i+1], err)
				}
				xyz[i] = f
			}
			vertices = append(vertices, r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]})

		case "endfacet":
			if len(vertices) == 3 {
				tris = append(tris, [3]r3.Vec{vertices[0], vertices[1], vertices[2]})
			}
			vertices = vertices[:0]
		}
	}

	if err := scanner.Err(); err != nil {
		return "", nil, fmt.Errorf("error reading ASCII STL: %w", err)
	}
	return name, tris, nil
}

// parseBinary parses a binary STL stream.
func parseBinary(reader io.Reader) (string, [][3]r3.Vec, error) {
	header := make([]byte, 80)
	if _, err := io.ReadFull(reader, header); err != nil {
		return "", nil, fmt.Errorf("failed to read header: %w", err)
	}
	name := strings.TrimSpace(string(bytes.TrimRight(header, "\x00")))

	var triangleCount uint32
	if err := binary.Read(reader, binary.LittleEndian, &triangleCount); err != nil {
		return "", nil, fmt.Errorf("failed to read triangle count: %w", err)
	}

	tris := make([][3]r3.Vec, 0, triangleCount)
	for i := uint32(0); i < triangleCount; i++ {
		var rec struct {
			Normal    [3]float32
			V         [3][3]float32
			Attribute uint16
		}
		if err := binary.Read(reader, binary.LittleEndian, &rec); err != nil {
			return "", nil, fmt.Errorf("failed to read triangle %d: %w", i, err)
		}
		var t [3]r3.Vec
		for j, v := range rec.V {
			t[j] = r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
		}
		tris = append(tris, t)
	}
	return name, tris, nil
}

// Write encodes m as binary STL.
func Write(w io.Writer, m *mesh.Mesh) error {
	bw := bufio.NewWriter(w)

	header := make([]byte, 80)
	copy(header, m.Name)
	if _, err := bw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Faces))); err != nil {
		return fmt.Errorf("failed to write triangle count: %w", err)
	}

	buf := make([]byte, 50)
	for i, f := range m.Faces {
		n := m.FaceNormal(i)
		putVec(buf[0:12], n)
		for j := 0; j < 3; j++ {
			putVec(buf[12+12*j:24+12*j], m.Vertices[f[j]])
		}
		buf[48], buf[49] = 0, 0
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("failed to write triangle %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteFile writes m to filename as binary STL.
func WriteFile(filename string, m *mesh.Mesh) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func putVec(b []byte, v r3.Vec) {
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(float32(v.Z)))
}
