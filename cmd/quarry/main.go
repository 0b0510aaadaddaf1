package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "quarry",
		Short: "Content-addressed git object store for build trees",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newCommitAllCmd())
	root.AddCommand(newKeepTagCmd())
	root.AddCommand(newFetchLocalCmd())
	root.AddCommand(newCatBlobCmd())
	root.AddCommand(newLsTreeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("quarry 0.1.0-dev")
		},
	}
}
