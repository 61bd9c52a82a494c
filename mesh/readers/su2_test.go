package readers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/fvcore/mesh"
)

const twoQuads = `% two quads side by side
NDIME= 2
NELEM= 2
9 0 1 4 3 0
9 1 2 5 4 1
NPOIN= 6
0.0 0.0 0
1.0 0.0 1
2.0 0.0 2
0.0 1.0 3
1.0 1.0 4
2.0 1.0 5
NMARK= 2
MARKER_TAG= inlet
MARKER_ELEMS= 1
3 0 3
MARKER_TAG= walls
MARKER_ELEMS= 5
3 0 1
3 1 2
3 2 5
3 5 4
3 4 3
`

func TestSU2(t *testing.T) {
	{ // Element indices past the point list
		bad := strings.Replace(twoQuads, "9 1 2 5 4 1", "9 1 2 6 4 1", 1)
		_, err := ParseSU2(strings.NewReader(bad), mesh.Options{})
		require.Error(t, err)
	}
	dir := t.TempDir()
	fname := filepath.Join(dir, "twoQuads.su2")
	require.NoError(t, os.WriteFile(fname, []byte(twoQuads), 0644))
	m, err := ReadMeshFile(fname, mesh.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, m.NCells())
	assert.Equal(t, 1, m.NInternalFaces())
	var names []string
	for _, p := range m.Patches() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"frontAndBack", "inlet", "walls"}, names)
	inlet, _ := m.FindPatch("inlet")
	assert.Equal(t, 1, inlet.Size)
	walls, _ := m.FindPatch("walls")
	assert.Equal(t, 5, walls.Size)
	assert.InDelta(t, 2, m.V()[0]+m.V()[1], 1e-14)

	_, err = ReadMeshFile(filepath.Join(dir, "mesh.neu"), mesh.Options{})
	assert.Error(t, err)
	_, err = ParseSU2(strings.NewReader("NPOIN= 1\n0 0\n"), mesh.Options{})
	assert.Error(t, err)
}
