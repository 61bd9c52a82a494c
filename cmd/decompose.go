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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/mesh/decompose"
	"github.com/notargets/fvcore/parallel"
)

// DecomposeCmd represents the decompose command
var DecomposeCmd = &cobra.Command{
	Use:   "decompose",
	Short: "Partition the case mesh and report the subdomains",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		caseFile, _ := cmd.Flags().GetString("inputConditionsFile")
		if len(caseFile) == 0 {
			return fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
		}
		cp, err := ReadCase(caseFile)
		if err != nil {
			return
		}
		cfg := cp.Decomposition
		if n, _ := cmd.Flags().GetInt("subdomains"); n > 0 {
			cfg.NumPartitions = n
		}
		if method, _ := cmd.Flags().GetString("method"); method != "" {
			cfg.Method = method
		}
		m, err := cp.NewMesh(caseName(caseFile))
		if err != nil {
			return
		}
		return Decompose(cmd.OutOrStdout(), m, cfg)
	},
}

func init() {
	rootCmd.AddCommand(DecomposeCmd)
	DecomposeCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for the case parameters")
	DecomposeCmd.Flags().IntP("subdomains", "n", 0, "number of subdomains, overrides the case decomposition")
	DecomposeCmd.Flags().StringP("method", "m", "", "simple or metis, overrides the case decomposition")
}

// Decompose partitions m and prints the cells and processor boundaries of
// every subdomain
func Decompose(w io.Writer, m *mesh.Mesh, cfg decompose.Config) (err error) {
	var (
		cellProc []int
		parts    []*decompose.Part
	)
	if cellProc, err = decompose.Partition(m, cfg); err != nil {
		return
	}
	if parts, err = decompose.Decompose(m, cellProc, parallel.NewWorld(cfg.NumPartitions)); err != nil {
		return
	}
	for _, p := range parts {
		fmt.Fprintf(w, "processor%d: cells = %d, faces = %d, points = %d\n",
			p.Proc, p.Mesh.NCells(), p.Mesh.NFaces(), p.Mesh.NPoints())
		for _, patch := range p.Mesh.Patches() {
			if patch.Kind == mesh.KindProcessor {
				fmt.Fprintf(w, "\t%s: faces = %d, neighbour = %d\n", patch.Name, patch.Size, patch.NeighbourRank)
			}
		}
	}
	return
}
