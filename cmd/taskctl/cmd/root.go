// Package cmd implements the taskctl command tree, grounded on the
// cobra+viper root command shape used across the example pack (see
// apimgr-search's src/client/cmd/root.go): persistent --server/--token
// flags resolved through viper with env var fallback, one file per
// resource group.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adil-adysh/plan-flow/cmd/taskctl/client"
)

var (
	server  string
	token   string
	output  string
	timeout int

	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "taskctl",
	Short: "Control client for the task scheduler daemon",
	Long:  "taskctl drives a running taskschedulerd instance over its HTTP API: task CRUD, occurrence inspection, and scheduler lifecycle commands.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "taskschedulerd base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token for authenticated endpoints")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format: table|json")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 30, "request timeout in seconds")

	viper.SetEnvPrefix("TASKCTL")
	viper.AutomaticEnv()
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}

func initClient() error {
	addr := server
	if addr == "" {
		addr = viper.GetString("server")
	}
	if addr == "" {
		addr = "http://localhost:8080"
	}

	tok := token
	if tok == "" {
		tok = viper.GetString("token")
	}

	apiClient = client.New(addr, tok, time.Duration(timeout)*time.Second)
	return nil
}

func getOutputFormat() string {
	if output == "" {
		return "table"
	}
	return output
}
