package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesamahakem/gauntlet/internal/config"
	"github.com/wesamahakem/gauntlet/internal/matrix"
)

var listPairs bool

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <suite.yaml>",
		Short: "List the scenarios, models, and runners in a suite",
		Args:  cobra.ExactArgs(1),
		RunE:  listCommandE,
	}

	cmd.Flags().BoolVar(&listPairs, "pairs", false, "Also list the expanded test pairs")

	return cmd
}

func listCommandE(cmd *cobra.Command, args []string) error {
	suite, err := config.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Suite: %s\n\n", suite.Name)

	fmt.Printf("Scenarios (%d):\n", len(suite.Scenarios))
	for _, s := range suite.Scenarios {
		turns := len(s.TurnSequence())
		line := fmt.Sprintf("  %s (%d turn", s.Name, turns)
		if turns != 1 {
			line += "s"
		}
		line += ")"
		if len(s.Tags) > 0 {
			line += " [" + strings.Join(s.Tags, ", ") + "]"
		}
		fmt.Println(line)
	}

	fmt.Printf("\nModels (%d):\n", len(suite.Models))
	for _, m := range suite.Models {
		fmt.Printf("  %s (%s)\n", m.Name, m.Key())
	}

	fmt.Printf("\nRunners (%d):\n", len(suite.Runners))
	for _, r := range suite.Runners {
		fmt.Printf("  %s (%s: %s)\n", r.Name, r.Kind, r.Binary)
	}

	if listPairs {
		pairs, err := matrix.Expand(suite.Scenarios, suite.Models, suite.Runners, suite.Matrix)
		if err != nil {
			return err
		}
		fmt.Printf("\nPairs (%d):\n", len(pairs))
		for _, p := range pairs {
			fmt.Printf("  %s\n", p.ID())
		}
	}

	return nil
}
