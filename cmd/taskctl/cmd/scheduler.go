package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report daemon health and scheduled occurrence count",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		snap, err := apiClient.Health()
		if err != nil {
			return err
		}
		if getOutputFormat() == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "STATUS\tSCHEDULED\tMEM USED %%\n")
		fmt.Fprintf(w, "%s\t%d\t%.1f\n", snap.Status, snap.ScheduledOccurrences, snap.MemoryUsedPercent)
		return w.Flush()
	},
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Schedule all pending occurrences and run a recovery sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		if err := apiClient.StartScheduler(); err != nil {
			return err
		}
		fmt.Println("scheduler started")
		return nil
	},
}

var schedulerPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Cancel all armed timers and freeze scheduling",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		if err := apiClient.PauseScheduler(); err != nil {
			return err
		}
		fmt.Println("scheduler paused")
		return nil
	},
}

var schedulerResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume scheduling after a pause",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		if err := apiClient.ResumeScheduler(); err != nil {
			return err
		}
		fmt.Println("scheduler resumed")
		return nil
	},
}

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Control the scheduler lifecycle",
}

var recoveryCmd = &cobra.Command{
	Use:   "recovery",
	Short: "Run a recovery sweep on demand",
}

var recoveryRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Recover occurrences missed while the daemon was down or paused",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		if err := apiClient.RunRecovery(); err != nil {
			return err
		}
		fmt.Println("recovery sweep triggered")
		return nil
	},
}

func init() {
	schedulerCmd.AddCommand(schedulerStartCmd, schedulerPauseCmd, schedulerResumeCmd)
	recoveryCmd.AddCommand(recoveryRunCmd)
	rootCmd.AddCommand(statusCmd, schedulerCmd, recoveryCmd)
}
