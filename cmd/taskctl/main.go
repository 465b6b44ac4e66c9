// Command taskctl is the control client for taskschedulerd.
package main

import "github.com/adil-adysh/plan-flow/cmd/taskctl/cmd"

func main() {
	cmd.Execute()
}
