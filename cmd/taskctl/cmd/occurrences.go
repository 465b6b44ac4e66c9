package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adil-adysh/plan-flow/cmd/taskctl/client"
)

var occurrencesCmd = &cobra.Command{
	Use:   "occurrences",
	Short: "Inspect and act on scheduled occurrences",
}

var occurrencesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all occurrences",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		occs, err := apiClient.ListOccurrences()
		if err != nil {
			return err
		}
		return printOccurrences(occs)
	},
}

var occurrencesGetCmd = &cobra.Command{
	Use:   "get <occurrence-id>",
	Short: "Show a single occurrence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		occ, err := apiClient.GetOccurrence(args[0])
		if err != nil {
			return err
		}
		return printOccurrences([]client.Occurrence{*occ})
	},
}

var occurrencesMarkDoneCmd = &cobra.Command{
	Use:   "mark-done <occurrence-id>",
	Short: "Mark an occurrence as completed right now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		if err := apiClient.MarkDone(args[0]); err != nil {
			return err
		}
		fmt.Printf("occurrence %s marked done\n", args[0])
		return nil
	},
}

var occurrencesRetryCmd = &cobra.Command{
	Use:   "retry <occurrence-id>",
	Short: "Force a retry attempt for a missed occurrence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		next, err := apiClient.RetryOccurrence(args[0])
		if err != nil {
			return err
		}
		if next == nil {
			fmt.Println("no retry scheduled: retries exhausted or no slot available")
			return nil
		}
		return printOccurrences([]client.Occurrence{*next})
	},
}

var occurrencesCancelCmd = &cobra.Command{
	Use:   "cancel <occurrence-id>",
	Short: "Withdraw an occurrence from scheduling without retry or recurrence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		if err := apiClient.CancelOccurrence(args[0]); err != nil {
			return err
		}
		fmt.Printf("occurrence %s cancelled\n", args[0])
		return nil
	},
}

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "List recorded execution outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		execs, err := apiClient.ListExecutions()
		if err != nil {
			return err
		}
		if getOutputFormat() == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(execs)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tOCCURRENCE\tSTATE\tRETRIES REMAINING\n")
		for _, e := range execs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.ID, e.OccurrenceID, e.State, e.RetriesRemaining)
		}
		return w.Flush()
	},
}

func printOccurrences(occs []client.Occurrence) error {
	if getOutputFormat() == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(occs)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTASK\tSCHEDULED FOR\tSLOT\n")
	for _, o := range occs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.ID, o.TaskID, o.ScheduledFor.Format("2006-01-02 15:04"), o.SlotName)
	}
	return w.Flush()
}

func init() {
	occurrencesCmd.AddCommand(occurrencesListCmd, occurrencesGetCmd, occurrencesMarkDoneCmd, occurrencesRetryCmd, occurrencesCancelCmd)
	rootCmd.AddCommand(occurrencesCmd, executionsCmd)
}
