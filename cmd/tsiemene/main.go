package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tsiemene",
	Short: "Board contract tools: validation, run, and training waves",
	Long: `tsiemene instantiates a circuit+wave+jkimyei-spec bundle into a board
contract and drives its executor.

Key Features:
- Circuit and wave validation without executing anything
- Single-wave run/train execution against a channel-file observation root
- Prometheus-backed loss/step metrics for long training waves`,
}

func main() {
	rootCmd.AddCommand(
		validateCmd(),
		runCmd(),
		trainCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func validateCmd() *cobra.Command {
	var circuitPath, wavePath, jkspecPath, waveName string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a circuit+wave+jkimyei-spec bundle without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(circuitPath, wavePath, jkspecPath, waveName)
		},
	}
	cmd.Flags().StringVar(&circuitPath, "circuit", "", "path to the .circuit DSL file")
	cmd.Flags().StringVar(&wavePath, "wave", "", "path to the .wave DSL file")
	cmd.Flags().StringVar(&jkspecPath, "jkspec", "", "path to the .jkspec DSL file")
	cmd.Flags().StringVar(&waveName, "wave-name", "main", "name of the WAVE block to use")
	cmd.MarkFlagRequired("circuit")
	cmd.MarkFlagRequired("wave")
	cmd.MarkFlagRequired("jkspec")
	return cmd
}

func runCmd() *cobra.Command {
	var circuitPath, wavePath, jkspecPath, observationPath, waveName string
	var seqLen int
	var seed int64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Instantiate a board contract and drive it to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(circuitPath, wavePath, jkspecPath, observationPath, waveName, seqLen, seed)
		},
	}
	cmd.Flags().StringVar(&circuitPath, "circuit", "", "path to the .circuit DSL file")
	cmd.Flags().StringVar(&wavePath, "wave", "", "path to the .wave DSL file")
	cmd.Flags().StringVar(&jkspecPath, "jkspec", "", "path to the .jkspec DSL file")
	cmd.Flags().StringVar(&observationPath, "observation", "", "path to an observation channel manifest (JSON)")
	cmd.Flags().StringVar(&waveName, "wave-name", "main", "name of the WAVE block to use")
	cmd.Flags().IntVar(&seqLen, "seq-len", 32, "sequence length each sample window carries")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed for augmentation sampling")
	cmd.MarkFlagRequired("circuit")
	cmd.MarkFlagRequired("wave")
	cmd.MarkFlagRequired("jkspec")
	cmd.MarkFlagRequired("observation")
	return cmd
}

func trainCmd() *cobra.Command {
	var circuitPath, wavePath, jkspecPath, observationPath, waveName string
	var seqLen int
	var seed int64
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run a training wave, reporting loss through Prometheus metrics",
		Long: `train is run with a Prometheus registry wired in: every sink's loss
is observed as a running average, and the executor's events-processed gauge
is updated once per step.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(circuitPath, wavePath, jkspecPath, observationPath, waveName, seqLen, seed)
		},
	}
	cmd.Flags().StringVar(&circuitPath, "circuit", "", "path to the .circuit DSL file")
	cmd.Flags().StringVar(&wavePath, "wave", "", "path to the .wave DSL file")
	cmd.Flags().StringVar(&jkspecPath, "jkspec", "", "path to the .jkspec DSL file")
	cmd.Flags().StringVar(&observationPath, "observation", "", "path to an observation channel manifest (JSON)")
	cmd.Flags().StringVar(&waveName, "wave-name", "main", "name of the WAVE block to use")
	cmd.Flags().IntVar(&seqLen, "seq-len", 32, "sequence length each sample window carries")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed for augmentation sampling")
	cmd.MarkFlagRequired("circuit")
	cmd.MarkFlagRequired("wave")
	cmd.MarkFlagRequired("jkspec")
	cmd.MarkFlagRequired("observation")
	return cmd
}
