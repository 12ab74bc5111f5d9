package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/kanopusdev/aurelis/internal/models"
	"github.com/kanopusdev/aurelis/internal/orchestrator"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models and task routing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tOWNER\tCONTEXT\tIN $/1M\tOUT $/1M\tLATENCY")
		for _, c := range models.Catalog() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%s\n",
				c.ID, c.OwnedBy, c.ContextTokens,
				c.CostPer1MInput, c.CostPer1MOutput, c.LatencyTier)
		}
		w.Flush()

		fmt.Fprintln(cmd.OutOrStdout(), "\nTask routing (primary first):")
		printRoutes(cmd, a.orch)
		return nil
	},
}

func printRoutes(cmd *cobra.Command, orch *orchestrator.Orchestrator) {
	routes := orch.Routes()
	tasks := make([]string, 0, len(routes))
	for t := range routes {
		tasks = append(tasks, string(t))
	}
	sort.Strings(tasks)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, t := range tasks {
		chain := routes[models.TaskType(t)]
		fmt.Fprintf(w, "  %s\t%v\n", t, chain)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
