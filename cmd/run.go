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
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/fvcore/InputParameters"
	"github.com/notargets/fvcore/model_problems/ScalarTransport"
)

const exampleCase = `
########################################
Title: "Test Case"
EndTime: 1
DeltaT: 0.01
WriteInterval: 10
Diffusivity: 0.01
Mesh:
  cells: [20, 1, 1]
  lengths: [1, 0.1, 0.1]
  patches: {bottom: empty, top: empty, back: empty, front: empty}
Schemes:
  divSchemes:
    div(phi,T): Gauss linearUpwind Gauss linear
Solvers:
  T: {solver: PBiCGStab, preconditioner: DILU, tolerance: 1.e-8}
Fields:
  T:
    dimensions: "[0 0 0 1 0 0 0]"
    internalField: 0
    boundaryField:
      left: {type: fixedValue, value: 1}
      right: {type: zeroGradient}
  U:
    dimensions: "[0 1 -1 0 0 0 0]"
    internalField: [1, 0, 0]
    boundaryField:
      left: {type: fixedValue, value: [1, 0, 0]}
      right: {type: zeroGradient}
########################################
`

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Solve a scalar transport case",
	Long: `
Advances ddt(T) + div(phi,T) - laplacian(DT,T) = 0 from the case file, writing T
into one directory per output time, or per processor when decomposed,

fvcore run -I case.yaml -o results -n 4`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			caseFile = viper.GetString("inputConditionsFile")
			outDir   = viper.GetString("output")
		)
		if len(caseFile) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Example File:%s\n", exampleCase)
			return fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
		}
		switch viper.GetString("profile") {
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(outDir)).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath(outDir)).Stop()
		case "":
		default:
			return fmt.Errorf("unknown profile %q, valid profiles are [cpu mem]", viper.GetString("profile"))
		}
		if viper.GetBool("trace") {
			defer startTrace(cmd.OutOrStdout())()
		}
		run := func() error {
			_, err := RunCase(cmd.Context(), caseFile, outDir, viper.GetInt("subdomains"))
			return err
		}
		if viper.GetBool("perf") {
			return measure(cmd.OutOrStdout(), run)
		}
		return run()
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for the case parameters")
	RunCmd.Flags().StringP("output", "o", "", "directory to write results into, nothing is written when empty")
	RunCmd.Flags().IntP("subdomains", "n", 0, "number of subdomains, overrides the case decomposition")
	RunCmd.Flags().String("profile", "", "write a cpu or mem profile into the output directory")
	RunCmd.Flags().Bool("perf", false, "count the instructions used by the solution (linux only)")
	RunCmd.Flags().Bool("trace", false, "summarise the time spent in solves and halo exchanges")
	for _, name := range []string{"inputConditionsFile", "output", "subdomains", "profile", "perf", "trace"} {
		_ = viper.BindPFlag(name, RunCmd.Flags().Lookup(name))
	}
}

// ReadCase parses and validates the case file
func ReadCase(caseFile string) (cp *InputParameters.CaseParameters, err error) {
	var data []byte
	if data, err = os.ReadFile(caseFile); err != nil {
		return
	}
	cp = &InputParameters.CaseParameters{}
	if err = cp.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", caseFile, err)
	}
	return
}

func caseName(caseFile string) string {
	return strings.TrimSuffix(filepath.Base(caseFile), filepath.Ext(caseFile))
}

func RunCase(ctx context.Context, caseFile, outDir string, nparts int) (c *ScalarTransport.ScalarTransport, err error) {
	cp, err := ReadCase(caseFile)
	if err != nil {
		return
	}
	if nparts > 0 {
		cp.Decomposition.NumPartitions = nparts
	}
	cp.Print()
	m, err := cp.NewMesh(caseName(caseFile))
	if err != nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c = ScalarTransport.NewScalarTransport(cp, m, outDir)
	err = c.Run(ctx)
	return
}
