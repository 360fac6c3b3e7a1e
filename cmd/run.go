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
	"log/slog"
	"os"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/notargets/gridfluid/InputParameters"
	"github.com/notargets/gridfluid/model_problems/GridFluid"
	"github.com/notargets/gridfluid/utils"
)

type RunModel struct {
	SceneFile string
	Frames    int
	Policy    string
	CSVFile   string
	Profile   bool
}

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a fluid scene",
	Long: `
Executes a grid fluid scene described by a YAML file, e.g.:

gridfluid run -F dambreak.yaml --csv frames.csv

Without a scene file the example input file is printed.`,
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		rm := &RunModel{}
		rm.SceneFile, _ = cmd.Flags().GetString("sceneFile")
		rm.Frames, _ = cmd.Flags().GetInt("frames")
		rm.Policy, _ = cmd.Flags().GetString("policy")
		rm.CSVFile, _ = cmd.Flags().GetString("csv")
		rm.Profile, _ = cmd.Flags().GetBool("profile")
		if rm.Profile {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		var sp *InputParameters.SceneParameters
		if sp, err = processInput(rm); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if err = Run(sp, rm.CSVFile, slog.Default()); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("sceneFile", "F", "", "YAML file with scene parameters")
	RunCmd.Flags().Int("frames", 0, "override the number of frames")
	RunCmd.Flags().String("policy", "", "override the execution policy: serial, threaded, bulk")
	RunCmd.Flags().String("csv", "", "write per frame stats to this CSV file")
	RunCmd.Flags().Bool("profile", false, "write a CPU profile to the current directory")
}

func processInput(rm *RunModel) (sp *InputParameters.SceneParameters, err error) {
	if len(rm.SceneFile) == 0 {
		fmt.Printf("Example scene file:%s", InputParameters.ExampleFile)
		os.Exit(0)
	}
	var data []byte
	if data, err = os.ReadFile(rm.SceneFile); err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	sp = &InputParameters.SceneParameters{}
	if err = sp.Parse(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rm.SceneFile, err)
	}
	sp.Defaults()
	if rm.Frames > 0 {
		sp.Frames = rm.Frames
	}
	if rm.Policy != "" {
		sp.Policy = rm.Policy
	}
	sp.Print()
	return
}

// Run executes the scene, streaming frame stats to csvFile when it is set
func Run(sp *InputParameters.SceneParameters, csvFile string, logger *slog.Logger) (err error) {
	var sw *StatsWriter
	if sw, err = CreateStatsFile(csvFile); err != nil {
		return
	}
	defer sw.Close()
	var (
		start    = time.Now()
		writeErr error
	)
	_, err = GridFluid.Run(sp, logger, func(fs GridFluid.FrameStats) {
		fmt.Printf("Frame %4d, Time = %8.5f, Substeps = %3d, Max |u| = %8.5f, Max |div u| = %8.2e, Volume = %8.5f\n",
			fs.Frame, fs.Time, fs.Substeps, fs.MaxSpeed, fs.MaxDivergence, fs.Volume)
		if e := sw.Write(fs); e != nil && writeErr == nil {
			writeErr = e
		}
	})
	if err != nil {
		return
	}
	fmt.Printf("Elapsed = %v, %s\n", time.Since(start), utils.GetMemUsage())
	return writeErr
}
