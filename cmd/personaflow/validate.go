package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"personaflow/core"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml>",
	Short: "Validate a workflow file without executing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := loadWorkflowFile(args[0])
		if err != nil {
			return err
		}
		if err := validateWorkflow(wf); err != nil {
			return err
		}
		fmt.Printf("Workflow %q is valid: %d nodes, %d edges, %d entry point(s)\n",
			wf.Name, len(wf.Nodes), len(wf.Edges), len(wf.EntryNodes()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateWorkflow(wf *core.Workflow) error {
	if len(wf.Nodes) == 0 {
		return fmt.Errorf("workflow has no nodes")
	}
	if len(wf.EntryNodes()) == 0 {
		return fmt.Errorf("workflow has no entry point")
	}

	ids := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if ids[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		ids[n.ID] = true
	}
	for _, e := range wf.Edges {
		if !ids[e.Source] {
			return fmt.Errorf("edge %q references unknown source %q", e.ID, e.Source)
		}
		if !ids[e.Target] {
			return fmt.Errorf("edge %q references unknown target %q", e.ID, e.Target)
		}
	}
	return nil
}
