//go:build !metis

package decompose

import (
	"fmt"

	"github.com/notargets/fvcore/mesh"
)

// Metis needs the METIS C library, build with -tags metis to enable it
func Metis(_ *mesh.Mesh, _ Config) ([]int, error) {
	return nil, fmt.Errorf("%w: metis (build with -tags metis)", ErrMethodUnavailable)
}
