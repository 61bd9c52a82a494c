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
	"strings"

	"github.com/spf13/cobra"

	"github.com/notargets/fvcore/fields"
	"github.com/notargets/fvcore/schemes"
	"github.com/notargets/fvcore/solvers"
	"github.com/notargets/fvcore/types"
)

// SchemesCmd represents the schemes command
var SchemesCmd = &cobra.Command{
	Use:   "schemes",
	Short: "List the registered schemes, boundary conditions and solvers",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		for _, kind := range schemes.Kinds() {
			fmt.Fprintf(w, "%sSchemes: %s\n", kind, strings.Join(schemes.Names(kind), ", "))
		}
		fmt.Fprintf(w, "scalar boundary conditions: %s\n", strings.Join(fields.BCNames[types.Scalar](), ", "))
		fmt.Fprintf(w, "vector boundary conditions: %s\n", strings.Join(fields.BCNames[types.Vector](), ", "))
		fmt.Fprintf(w, "solvers: %s\n", strings.Join(solvers.Names(), ", "))
		fmt.Fprintf(w, "preconditioners: %s\n", strings.Join(solvers.Preconditioners(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(SchemesCmd)
}
