package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"personaflow/core"
	"personaflow/engine"
)

var (
	runInput  string
	runEvents bool
)

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow from a YAML file",
	Long: `Run executes a workflow graph defined in a YAML file and prints
the aggregated output.

Examples:
  personaflow run workflow.yaml --input "summarize this repo"
  personaflow run workflow.yaml --input hi --events --provider mock`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := loadWorkflowFile(args[0])
		if err != nil {
			return err
		}

		provider, err := newProvider()
		if err != nil {
			return err
		}

		e := engine.New(provider, func(o *engine.Options) {
			o.Logger = newLogger()
		})

		var sink core.Sink
		if runEvents {
			sink = func(ev core.Event) {
				switch ev.Type {
				case core.EventNodeStart:
					fmt.Fprintf(os.Stderr, "-> %s\n", ev.NodeID)
				case core.EventNodeComplete:
					fmt.Fprintf(os.Stderr, "<- %s (%s)\n", ev.NodeID, ev.Duration)
				case core.EventNodeError:
					fmt.Fprintf(os.Stderr, "!! %s: %s\n", ev.NodeID, ev.Err)
				}
			}
		}

		outcome, err := e.ExecuteWorkflow(cmd.Context(), wf, runInput, sink)
		if err != nil {
			return err
		}

		fmt.Println(outcome.Output)
		if verbose {
			fmt.Fprintf(os.Stderr, "\nExecution time: %s, nodes executed: %d\n",
				outcome.ExecutionTime, len(outcome.Results))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "workflow input text")
	runCmd.Flags().BoolVar(&runEvents, "events", false, "print node progress to stderr")
	rootCmd.AddCommand(runCmd)
}

func loadWorkflowFile(path string) (*core.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	var wf core.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow file: %w", err)
	}
	return &wf, nil
}
