package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adil-adysh/plan-flow/cmd/taskctl/client"
)

var (
	taskTitle          string
	taskDescription    string
	taskLink           string
	taskOwnerID        string
	taskRecurrenceSecs int64
	taskPriority       string
	taskMaxRetries     int
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage task definitions",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all task definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		tasks, err := apiClient.ListTasks()
		if err != nil {
			return err
		}
		return printTasks(tasks)
	},
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new task definition",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		req := client.CreateTaskRequest{
			Title:       taskTitle,
			Description: taskDescription,
			Link:        taskLink,
			OwnerID:     taskOwnerID,
			Priority:    taskPriority,
			MaxRetries:  taskMaxRetries,
		}
		if taskRecurrenceSecs > 0 {
			req.RecurrenceSeconds = &taskRecurrenceSecs
		}
		task, err := apiClient.CreateTask(req)
		if err != nil {
			return err
		}
		return printTasks([]client.Task{*task})
	},
}

var tasksGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Show a single task definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		task, err := apiClient.GetTask(args[0])
		if err != nil {
			return err
		}
		return printTasks([]client.Task{*task})
	},
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task and its occurrences and executions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initClient(); err != nil {
			return err
		}
		if err := apiClient.DeleteTask(args[0]); err != nil {
			return err
		}
		fmt.Printf("task %s deleted\n", args[0])
		return nil
	},
}

func printTasks(tasks []client.Task) error {
	if getOutputFormat() == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTITLE\tPRIORITY\tRECURRENCE (s)\tMAX RETRIES\n")
	for _, t := range tasks {
		recur := "-"
		if t.RecurrenceSeconds != nil {
			recur = fmt.Sprintf("%d", *t.RecurrenceSeconds)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", t.ID, t.Title, t.Priority, recur, t.MaxRetries)
	}
	return w.Flush()
}

func init() {
	tasksCreateCmd.Flags().StringVar(&taskTitle, "title", "", "task title (required)")
	tasksCreateCmd.Flags().StringVar(&taskDescription, "description", "", "task description")
	tasksCreateCmd.Flags().StringVar(&taskLink, "link", "", "reference link")
	tasksCreateCmd.Flags().StringVar(&taskOwnerID, "owner", "", "owning user id")
	tasksCreateCmd.Flags().Int64Var(&taskRecurrenceSecs, "recurrence-seconds", 0, "recurrence interval in seconds (0 = one-off)")
	tasksCreateCmd.Flags().StringVar(&taskPriority, "priority", "medium", "priority: low|medium|high")
	tasksCreateCmd.Flags().IntVar(&taskMaxRetries, "max-retries", 0, "maximum retry attempts on miss")
	tasksCreateCmd.MarkFlagRequired("title")

	tasksCmd.AddCommand(tasksListCmd, tasksCreateCmd, tasksGetCmd, tasksDeleteCmd)
	rootCmd.AddCommand(tasksCmd)
}
