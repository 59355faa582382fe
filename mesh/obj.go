// Package mesh provides geometry sources for navmesh generation: a Wavefront
// OBJ reader and a few primitive shapes.
package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gorustyt/gorerecast/common"
	"github.com/gorustyt/gorerecast/recast"
)

// Faces with more corners than this are truncated.
const maxFaceVerts = 32

// LoadObj reads the triangles of a Wavefront OBJ file.
func LoadObj(path string) (*recast.TriMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mesh, err := ParseObj(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mesh, nil
}

// ParseObj reads vertex ("v") and face ("f") records; everything else is
// ignored. Polygonal faces are triangulated as fans and faces referencing
// missing vertices are skipped.
func ParseObj(r io.Reader) (*recast.TriMesh, error) {
	mesh := &recast.TriMesh{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		var err error
		switch fields[0] {
		case "v":
			err = parseVertex(mesh, fields[1:])
		case "f":
			err = parseFace(mesh, fields[1:])
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mesh, nil
}

func parseVertex(mesh *recast.TriMesh, fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("vertex needs 3 coordinates, got %d", len(fields))
	}
	var v common.Vec3
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return fmt.Errorf("vertex coordinate %q: %w", fields[i], err)
		}
		v[i] = float32(f)
	}
	mesh.Vertices = append(mesh.Vertices, v)
	return nil
}

func parseFace(mesh *recast.TriMesh, fields []string) error {
	nverts := len(mesh.Vertices)
	face := make([]int, 0, min(len(fields), maxFaceVerts))
	for _, field := range fields {
		if len(face) == maxFaceVerts {
			break
		}
		// v, v/vt, v//vn or v/vt/vn
		ref, _, _ := strings.Cut(field, "/")
		vi, err := strconv.Atoi(ref)
		if err != nil {
			return fmt.Errorf("face index %q: %w", field, err)
		}
		if vi < 0 {
			vi += nverts
		} else {
			vi--
		}
		face = append(face, vi)
	}
	for i := 2; i < len(face); i++ {
		a, b, c := face[0], face[i-1], face[i]
		if a < 0 || a >= nverts || b < 0 || b >= nverts || c < 0 || c >= nverts {
			continue
		}
		mesh.Indices = append(mesh.Indices, [3]uint32{uint32(a), uint32(b), uint32(c)})
	}
	return nil
}

// WriteObj writes mesh as a Wavefront OBJ.
func WriteObj(w io.Writer, mesh *recast.TriMesh) error {
	bw := bufio.NewWriter(w)
	for _, v := range mesh.Vertices {
		fmt.Fprintf(bw, "v %g %g %g\n", v[0], v[1], v[2])
	}
	for _, t := range mesh.Indices {
		fmt.Fprintf(bw, "f %d %d %d\n", t[0]+1, t[1]+1, t[2]+1)
	}
	return bw.Flush()
}
