package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/journeys/internal/model"
)

var stepsCmd = &cobra.Command{
	Use:     "steps",
	Short:   "Read or replace the step graph of a journey",
	GroupID: "graph",
}

var stepsGetCmd = &cobra.Command{
	Use:   "get <journey-id>",
	Short: "Print the step map of a journey",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "journey id")
		if err != nil {
			return err
		}
		m, err := deps.svc.GetStepMap(cmd.Context(), id)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, m)
		}
		printStepMap(os.Stdout, m)
		return nil
	},
}

var stepsSetCmd = &cobra.Command{
	Use:   "set <journey-id> <file|->",
	Short: "Reconcile the step graph of a journey to a step map document",
	Long: `Reads a step map (a JSON object keyed by step external id) from a file,
or from stdin when the path is "-", and reconciles the stored graph to it.
Steps and edges missing from the document are deleted. Running the same
document twice writes nothing the second time.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "journey id")
		if err != nil {
			return err
		}

		var r io.Reader = os.Stdin
		if args[1] != "-" {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("opening step map: %w", err)
			}
			defer f.Close()
			r = f
		}
		desired, err := readStepMap(r)
		if err != nil {
			return err
		}

		m, err := deps.svc.SetStepMap(cmd.Context(), id, desired)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, m)
		}
		fmt.Printf("Reconciled journey %d: %d steps\n", id, len(m))
		printStepMap(os.Stdout, m)
		return nil
	},
}

// readStepMap decodes a step map document. Unknown fields are rejected so a
// misspelled key does not silently drop a step's children.
func readStepMap(r io.Reader) (model.StepMap, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var m model.StepMap
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding step map: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("decoding step map: expected a JSON object")
	}
	return m, nil
}

var statsCmd = &cobra.Command{
	Use:     "stats <journey-id>",
	Short:   "Show how many users currently sit at each step",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "journey id")
		if err != nil {
			return err
		}
		stats, err := deps.svc.StepStats(cmd.Context(), id)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, stats)
		}
		printStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	stepsCmd.AddCommand(stepsGetCmd)
	stepsCmd.AddCommand(stepsSetCmd)
}
