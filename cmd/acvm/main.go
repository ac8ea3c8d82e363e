// acvm is a thin command line front to the witness-execution engine: it
// loads a compiled circuit and an initial witness, runs the driver, and
// persists the solved witness.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/consensys/acvm/circuit"
	"github.com/consensys/acvm/exec"
	"github.com/consensys/acvm/logger"
	"github.com/consensys/acvm/solver"
	"github.com/consensys/acvm/witness"
)

var rootCmd = &cobra.Command{
	Use:          "acvm",
	Short:        "Witness-execution engine for compiled arithmetic circuits.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

var executeCmd = &cobra.Command{
	Use:   "execute [flags] circuit_file",
	Short: "Execute a circuit against an initial witness and solve the full assignment.",
	Long: `Execute a circuit against an initial witness and solve the full assignment.
	The circuit is a compiled binary file; the initial witness is a JSON object
	mapping variable indices to decimal field element values.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		witnessFile, _ := cmd.Flags().GetString("witness")
		outFile, _ := cmd.Flags().GetString("out")
		showOutput, _ := cmd.Flags().GetBool("show-output")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var c circuit.Circuit
		if _, err := c.FromBytes(data); err != nil {
			return fmt.Errorf("reading circuit %s: %w", args[0], err)
		}

		initial := witness.New(c.NbVariables)
		if witnessFile != "" {
			wData, err := os.ReadFile(witnessFile)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(wData, initial); err != nil {
				return fmt.Errorf("reading witness %s: %w", witnessFile, err)
			}
		}

		log := logger.Logger()
		solved, err := exec.Execute(solver.DefaultEvaluator{}, &c, initial,
			exec.WithShowOutput(showOutput))
		if err != nil {
			return err
		}
		log.Info().Int("nbAssigned", solved.Len()).Msg("circuit solved")

		if outFile == "" {
			return nil
		}
		return writeWitness(solved, outFile)
	},
}

func writeWitness(w *witness.Map, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".json") {
		data, err := json.MarshalIndent(w, "", "  ")
		if err != nil {
			return err
		}
		_, err = f.Write(data)
		return err
	}
	_, err = w.WriteTo(f)
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	executeCmd.Flags().String("witness", "", "initial witness file (JSON)")
	executeCmd.Flags().String("out", "", "write the solved witness to this file (.json for JSON, binary otherwise)")
	executeCmd.Flags().Bool("show-output", false, "render circuit print output to stdout")
	rootCmd.AddCommand(executeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
