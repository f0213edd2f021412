package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "dirdup",
		Short:   "Find duplicate directory trees",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newReportCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
