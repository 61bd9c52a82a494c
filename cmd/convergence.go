/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/notargets/fvcore/dimensions"
	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/fvc"
	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/types"
)

// ConvergenceCmd represents the convergence command
var ConvergenceCmd = &cobra.Command{
	Use:   "convergence",
	Short: "Measure the order of accuracy of interpolation schemes",
	Long: `
Interpolates sin(pi x) to the faces of a sequence of refined line meshes,
carried by a unit flux, and reports the errors and their observed order,

fvcore convergence -s linear -s "linearUpwind Gauss linear" -c 16,32,64`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			specs, _   = cmd.Flags().GetStringArray("schemes")
			cells, _   = cmd.Flags().GetIntSlice("cells")
			csvFile, _ = cmd.Flags().GetString("csvFile")
			studies    []*ConvergenceStudy
		)
		for _, spec := range specs {
			cs, err := RunConvergence(context.Background(), spec, cells)
			if err != nil {
				return err
			}
			cs.Print(cmd.OutOrStdout())
			studies = append(studies, cs)
		}
		if len(csvFile) == 0 {
			return
		}
		f, err := os.Create(csvFile)
		if err != nil {
			return
		}
		defer f.Close()
		return WriteCSV(f, studies)
	},
}

func init() {
	rootCmd.AddCommand(ConvergenceCmd)
	ConvergenceCmd.Flags().StringArrayP("schemes", "s",
		[]string{"linear", "upwind", "linearUpwind Gauss linear", "vanLeer"}, "interpolation schemes to study")
	ConvergenceCmd.Flags().IntSliceP("cells", "c", []int{16, 32, 64, 128}, "number of cells of each mesh")
	ConvergenceCmd.Flags().String("csvFile", "", "file to write the entries of the study into")
}

type ConvergenceStudy struct {
	Scheme   string
	NumCells []int
	RMS, Max []float64
}

func NewConvergenceStudy(scheme string) *ConvergenceStudy {
	return &ConvergenceStudy{
		Scheme: scheme,
	}
}

func (cs *ConvergenceStudy) Add(numCells int, rms, mx float64) {
	cs.NumCells = append(cs.NumCells, numCells)
	cs.RMS = append(cs.RMS, rms)
	cs.Max = append(cs.Max, mx)
}

// Orders are the observed orders of the max error between successive meshes
func (cs *ConvergenceStudy) Orders() (orders []float64) {
	for i := 1; i < len(cs.NumCells); i++ {
		ratio := float64(cs.NumCells[i]) / float64(cs.NumCells[i-1])
		orders = append(orders, math.Log(cs.Max[i-1]/cs.Max[i])/math.Log(ratio))
	}
	return
}

func (cs *ConvergenceStudy) Print(w io.Writer) {
	fmt.Fprintf(w, "Scheme = %s\n", cs.Scheme)
	orders := cs.Orders()
	for i := range cs.NumCells {
		fmt.Fprintf(w, "%6d, %12.5e, %12.5e", cs.NumCells[i], cs.RMS[i], cs.Max[i])
		if i > 0 {
			fmt.Fprintf(w, ", order = %5.2f", orders[i-1])
		}
		fmt.Fprintln(w)
	}
}

// WriteCSV writes one record per scheme and mesh, after a header
func WriteCSV(w io.Writer, studies []*ConvergenceStudy) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"scheme", "cells", "rms", "max"}); err != nil {
		return err
	}
	for _, cs := range studies {
		for i := range cs.NumCells {
			rec := []string{
				cs.Scheme,
				strconv.Itoa(cs.NumCells[i]),
				strconv.FormatFloat(cs.RMS[i], 'e', -1, 64),
				strconv.FormatFloat(cs.Max[i], 'e', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// RunConvergence measures the internal face errors of the interpolation
// scheme spec on line meshes of each number of cells
func RunConvergence(ctx context.Context, spec string, cells []int) (cs *ConvergenceStudy, err error) {
	cs = NewConvergenceStudy(spec)
	d := schemes.DefaultDictionary()
	d.Interpolation["interpolate(T)"] = spec
	sc, err := schemes.New(d)
	if err != nil {
		return nil, err
	}
	exact := func(x float64) float64 { return math.Sin(math.Pi * x) }
	for _, n := range cells {
		var (
			m     *mesh.Mesh
			T     *fields.ScalarField
			faceT *fields.ScalarSurfaceField
		)
		m, err = mesh.Block{
			N:     [3]int{n, 1, 1},
			L:     [3]float64{1, 1, 1},
			Kinds: map[string]mesh.Kind{"bottom": mesh.KindEmpty, "top": mesh.KindEmpty, "back": mesh.KindEmpty, "front": mesh.KindEmpty},
		}.Build(mesh.Options{Name: fmt.Sprintf("line%d", n)})
		if err != nil {
			return
		}
		internal := make([]types.Scalar, n)
		for i, c := range m.C() {
			internal[i] = types.Scalar(exact(c[0]))
		}
		bcs := map[string]fields.Dict{
			"left":  {"type": "fixedValue", "value": exact(0)},
			"right": {"type": "fixedValue", "value": exact(1)},
		}
		if T, err = fields.New("T", m, dimensions.Dimensionless, internal, bcs); err != nil {
			return
		}
		phi := make([]float64, m.NFaces())
		for f, s := range m.Sf() {
			phi[f] = s[0]
		}
		flux := fields.NewFlux("phi", m, dimensions.DimVolFlux, phi)
		if faceT, err = fvc.Interpolate(ctx, sc, T, flux); err != nil {
			return
		}
		var rms, mx float64
		for f, v := range faceT.Internal() {
			e := math.Abs(float64(v) - exact(m.Cf()[f][0]))
			rms += e * e
			mx = max(mx, e)
		}
		cs.Add(n, math.Sqrt(rms/float64(m.NInternalFaces())), mx)
	}
	return
}
