package readers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/types"
)

// ReadMeshFile reads a mesh file based on extension
func ReadMeshFile(filename string, opts mesh.Options) (*mesh.Mesh, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".su2":
		return ReadSU2(filename, opts)
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", ext)
	}
}

// ReadSU2 reads an SU2 native format file
func ReadSU2(filename string, opts mesh.Options) (*mesh.Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseSU2(file, opts)
}

// su2ElementTypeMap maps SU2/VTK element type identifiers to mesh element types
var su2ElementTypeMap = map[int]mesh.ElementType{
	3:  mesh.Line,     // VTK_LINE
	5:  mesh.Triangle, // VTK_TRIANGLE
	9:  mesh.Quad,     // VTK_QUAD
	10: mesh.Tet,      // VTK_TETRA
	12: mesh.Hex,      // VTK_HEXAHEDRON
	13: mesh.Prism,    // VTK_WEDGE
	14: mesh.Pyramid,  // VTK_PYRAMID
}

// ParseSU2 reads the SU2 sections NDIME, NPOIN, NELEM and NMARK. Each marker
// becomes a boundary patch; 2D meshes are extruded one cell thick.
func ParseSU2(r io.Reader, opts mesh.Options) (*mesh.Mesh, error) {
	var (
		scanner            = bufio.NewScanner(r)
		ndime              int
		hasNDIME, hasNPOIN bool
		el                 = mesh.Elements{Boundary: make(map[string][][]int)}
		err                error
	)
	nextLine := func(what string) (string, error) {
		for scanner.Scan() {
			line := stripComment(scanner.Text())
			if line != "" {
				return line, nil
			}
		}
		return "", fmt.Errorf("unexpected EOF reading %s", what)
	}
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "NDIME="):
			hasNDIME = true
			if ndime, err = headerInt(line, "NDIME="); err != nil {
				return nil, err
			}
			if ndime != 2 && ndime != 3 {
				return nil, fmt.Errorf("unsupported dimension: NDIME=%d", ndime)
			}

		case strings.HasPrefix(line, "NPOIN="):
			hasNPOIN = true
			var npoin int
			if npoin, err = headerInt(line, "NPOIN="); err != nil {
				return nil, err
			}
			if ndime == 0 {
				return nil, fmt.Errorf("NPOIN= before NDIME=")
			}
			el.Points = make([]types.Vector, npoin)
			for i := 0; i < npoin; i++ {
				var ptLine string
				if ptLine, err = nextLine("nodes"); err != nil {
					return nil, err
				}
				fields := strings.Fields(ptLine)
				if len(fields) < ndime {
					return nil, fmt.Errorf("invalid node line: expected at least %d coordinates", ndime)
				}
				// Node ID is implicit, a trailing legacy ID is ignored
				for j := 0; j < ndime; j++ {
					if el.Points[i][j], err = strconv.ParseFloat(fields[j], 64); err != nil {
						return nil, fmt.Errorf("invalid coordinate: %v", err)
					}
				}
			}

		case strings.HasPrefix(line, "NELEM="):
			var nelem int
			if nelem, err = headerInt(line, "NELEM="); err != nil {
				return nil, err
			}
			el.Conn = make([][]int, 0, nelem)
			el.Types = make([]mesh.ElementType, 0, nelem)
			for i := 0; i < nelem; i++ {
				var elLine string
				if elLine, err = nextLine("elements"); err != nil {
					return nil, err
				}
				etype, nodes, err := parseElement(elLine)
				if err != nil {
					return nil, err
				}
				el.Conn = append(el.Conn, nodes)
				el.Types = append(el.Types, etype)
			}

		case strings.HasPrefix(line, "NMARK="):
			var nmark int
			if nmark, err = headerInt(line, "NMARK="); err != nil {
				return nil, err
			}
			for i := 0; i < nmark; i++ {
				var markerLine, elemLine string
				if markerLine, err = nextLine("marker tag"); err != nil {
					return nil, err
				}
				if !strings.HasPrefix(markerLine, "MARKER_TAG=") {
					return nil, fmt.Errorf("expected MARKER_TAG=, got: %s", markerLine)
				}
				tagName := strings.TrimSpace(strings.TrimPrefix(markerLine, "MARKER_TAG="))
				if elemLine, err = nextLine("marker elements"); err != nil {
					return nil, err
				}
				var nMarkerElems int
				if nMarkerElems, err = headerInt(elemLine, "MARKER_ELEMS="); err != nil {
					return nil, err
				}
				for j := 0; j < nMarkerElems; j++ {
					var bLine string
					if bLine, err = nextLine("boundary elements"); err != nil {
						return nil, err
					}
					btype, nodes, err := parseElement(bLine)
					if err != nil {
						return nil, err
					}
					if btype.Dimension() != ndime-1 {
						return nil, fmt.Errorf("boundary element of type %v in a %dD mesh", btype, ndime)
					}
					el.Boundary[tagName] = append(el.Boundary[tagName], nodes)
				}
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %v", err)
	}
	if !hasNDIME {
		return nil, fmt.Errorf("missing required NDIME= section")
	}
	if !hasNPOIN {
		return nil, fmt.Errorf("missing required NPOIN= section")
	}
	// NELEM may precede NPOIN, so node indices are checked once both are read
	for e, nodes := range el.Conn {
		for _, n := range nodes {
			if n < 0 || n >= len(el.Points) {
				return nil, fmt.Errorf("element %d node index %d out of range [0,%d)", e, n, len(el.Points))
			}
		}
	}
	return mesh.FromElements(el, opts)
}

func stripComment(line string) string {
	if idx := strings.Index(line, "%"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

func headerInt(line, key string) (n int, err error) {
	if !strings.HasPrefix(line, key) {
		return 0, fmt.Errorf("expected %s, got: %s", key, line)
	}
	if n, err = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, key))); err != nil {
		return 0, fmt.Errorf("invalid %s line: %s", key, line)
	}
	return
}

func parseElement(line string) (etype mesh.ElementType, nodes []int, err error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, nil, fmt.Errorf("invalid element line: %s", line)
	}
	su2Type, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, nil, fmt.Errorf("invalid element type: %v", err)
	}
	etype, ok := su2ElementTypeMap[su2Type]
	if !ok {
		return 0, nil, fmt.Errorf("unknown element type: %d", su2Type)
	}
	numNodes := etype.NumNodes()
	if len(fields) < numNodes+1 {
		return 0, nil, fmt.Errorf("element type %v expects %d nodes, got %d fields",
			etype, numNodes, len(fields)-1)
	}
	nodes = make([]int, numNodes)
	for j := range nodes {
		if nodes[j], err = strconv.Atoi(fields[1+j]); err != nil {
			return 0, nil, fmt.Errorf("invalid node index: %v", err)
		}
	}
	return
}
