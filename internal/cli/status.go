package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/kanopusdev/aurelis/internal/github"
	"github.com/kanopusdev/aurelis/internal/logger"
	"github.com/spf13/cobra"
)

var statusDays int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show usage, cache effectiveness, breaker states, and alerts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()

		if a.tracker != nil {
			summary, err := a.tracker.Summary(statusDays)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Usage (last %d day(s)):\n", statusDays)
			fmt.Fprintf(out, "  Requests:      %d (%d cached, %d failed)\n",
				summary.Requests, summary.CacheHits, summary.Failures)
			fmt.Fprintf(out, "  Tokens:        %d in / %d out\n",
				summary.InputTokens, summary.OutputTokens)
			fmt.Fprintf(out, "  Cost estimate: $%.4f\n", summary.Cost)

			if len(summary.PerModel) > 0 {
				modelIDs := make([]string, 0, len(summary.PerModel))
				for m := range summary.PerModel {
					modelIDs = append(modelIDs, m)
				}
				sort.Strings(modelIDs)

				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "\n  MODEL\tREQUESTS\tTOKENS\tFAILURES\tCOST")
				for _, m := range modelIDs {
					r := summary.PerModel[m]
					fmt.Fprintf(w, "  %s\t%d\t%d\t%d\t$%.4f\n",
						m, r.RequestCount, r.InputTokens+r.OutputTokens, r.Failures, r.Cost)
				}
				w.Flush()
			}

			today, err := a.tracker.Summary(1)
			if err == nil {
				for _, alert := range a.tracker.Alerts(today) {
					fmt.Fprintf(out, "\nALERT: %s\n", alert)
				}
			}
		} else {
			fmt.Fprintln(out, "Analytics disabled.")
		}

		if a.cache != nil {
			stats := a.cache.Stats()
			fmt.Fprintf(out, "\nCache: %d entries, %d hits, %d misses\n",
				stats.Entries, stats.Hits, stats.Misses)
		} else {
			fmt.Fprintln(out, "\nCache disabled.")
		}

		breakers := a.orch.BreakerStates()
		if len(breakers) > 0 {
			fmt.Fprintln(out, "\nCircuit breakers:")
			for model, state := range breakers {
				fmt.Fprintf(out, "  %s: %s\n", model, state)
			}
		}

		if recent := logger.GlobalBuffer.GetRecent(5); len(recent) > 0 {
			fmt.Fprintln(out, "\nRecent log entries:")
			for _, e := range recent {
				fmt.Fprintf(out, "  %s [%s] %s\n",
					e.Timestamp.Format("15:04:05"), e.Level, e.Message)
			}
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check token and endpoint reachability",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Token:    ok (source: %s)\n", a.tokenSource)

		if err := a.client.Ping(cmd.Context()); err != nil {
			fmt.Fprintf(out, "Endpoint: FAIL (%v)\n", err)
			if github.IsAuthError(err) {
				return err
			}
			return exitErr(ExitNetwork, err)
		}

		fmt.Fprintf(out, "Endpoint: ok (%s)\n", a.cfg.GitHub.Endpoint)
		fmt.Fprintln(out, "Healthy.")
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusDays, "days", 7, "usage window in days")
	rootCmd.AddCommand(statusCmd, healthCmd)
}
