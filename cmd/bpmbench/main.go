package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "bpmbench",
		Short: "Exercise a buffer pool with a concurrent random page workload",
		Long: `
bpmbench builds a buffer pool over a database file (or an in-memory disk),
runs a concurrent fetch/write/unpin workload against it and reports
hit, miss and eviction counts.
`,
		SilenceUsage: true,
	}
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	rc.AddCommand(newRunCommand(stdout))
	return rc
}
