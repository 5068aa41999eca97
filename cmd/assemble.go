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
	"io/ioutil"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/tianyikillua/dolfinx/InputParameters"
	"github.com/tianyikillua/dolfinx/model_problems/Poisson1D"
)

// assembleCmd represents the assemble command
var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble the 1D Poisson model problem",
	Long: `
Builds the stiffness matrix and load vector of -u'' = f on an interval
mesh with Dirichlet values at both ends, optionally in parallel across
several ranks,

dolfinx assemble -k 100 -r 4`,
	Run: func(cmd *cobra.Command, args []string) {
		ap := &InputParameters.AssemblyParameters{
			Title:        "Poisson",
			ElementCount: 100,
			XMin:         0,
			XMax:         1,
			Ranks:        1,
			Source:       1,
			BCs: map[string]map[string]float64{
				"Dirichlet": {"Left": 0, "Right": 0},
			},
		}
		if inputFile, _ := cmd.Flags().GetString("input"); inputFile != "" {
			data, err := ioutil.ReadFile(inputFile)
			if err != nil {
				fmt.Printf("unable to read input file %s: %v\n", inputFile, err)
				os.Exit(1)
			}
			if err = ap.Parse(data); err != nil {
				fmt.Printf("unable to parse input file %s: %v\n", inputFile, err)
				os.Exit(1)
			}
		}
		if k, _ := cmd.Flags().GetInt("k"); k != 0 {
			ap.ElementCount = k
		}
		if r, _ := cmd.Flags().GetInt("ranks"); r != 0 {
			ap.Ranks = r
		}
		if prof, _ := cmd.Flags().GetBool("profile"); prof {
			defer profile.Start().Stop()
		}
		ap.Print()
		RunAssemble(ap)
	},
}

func init() {
	rootCmd.AddCommand(assembleCmd)
	assembleCmd.Flags().StringP("input", "i", "", "YAML input file with assembly parameters")
	assembleCmd.Flags().IntP("k", "k", 0, "Number of elements in the mesh")
	assembleCmd.Flags().IntP("ranks", "r", 0, "Number of parallel ranks")
	assembleCmd.Flags().Bool("profile", false, "Generate a runtime profile of the assembly")
}

func RunAssemble(ap *InputParameters.AssemblyParameters) {
	var (
		bcs    = ap.BCs["Dirichlet"]
		source = ap.Source
	)
	c, err := Poisson1D.NewPoisson(ap.Ranks, ap.ElementCount, ap.XMin, ap.XMax,
		func(x float64) float64 { return source },
		bcs["Left"], bcs["Right"])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err = c.Assemble(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	c.Print()
}
