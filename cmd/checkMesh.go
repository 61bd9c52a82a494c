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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notargets/fvcore/mesh"
	"github.com/notargets/fvcore/mesh/readers"
)

// CheckMeshCmd represents the checkMesh command
var CheckMeshCmd = &cobra.Command{
	Use:   "checkMesh",
	Short: "Report the size and quality of a mesh",
	Long: `
Reads a .su2 mesh file, or builds the mesh of a case file, and reports its
volumes, non-orthogonality and open cells,

fvcore checkMesh -F grid.su2`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			m        *mesh.Mesh
			gridFile string
			caseFile string
		)
		gridFile, _ = cmd.Flags().GetString("gridFile")
		caseFile, _ = cmd.Flags().GetString("inputConditionsFile")
		switch {
		case len(gridFile) != 0:
			m, err = readers.ReadMeshFile(gridFile, mesh.Options{Name: caseName(gridFile)})
		case len(caseFile) != 0:
			cp, cerr := ReadCase(caseFile)
			if cerr != nil {
				return cerr
			}
			m, err = cp.NewMesh(caseName(caseFile))
		default:
			return fmt.Errorf("must supply a grid file (-F, --gridFile) or an input parameters file (-I, --inputConditionsFile)")
		}
		if err != nil {
			return
		}
		s, err := m.Check(context.Background())
		if err != nil {
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", m.Name, s)
		if s.OpenCells > 0 {
			return fmt.Errorf("mesh %s has %d open cells", m.Name, s.OpenCells)
		}
		return
	},
}

func init() {
	rootCmd.AddCommand(CheckMeshCmd)
	CheckMeshCmd.Flags().StringP("gridFile", "F", "", "Grid file to read in SU2 (.su2) format")
	CheckMeshCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for the case parameters")
}
