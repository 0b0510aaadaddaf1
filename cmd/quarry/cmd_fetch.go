package main

import (
	"fmt"

	"github.com/odvcencio/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newFetchLocalCmd() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "fetch-local <source-path> [path]",
		Short: "Fetch objects from another on-disk repository",
		Long: `Fetch objects from another repository on this machine into this
repository's object database. No refs are created locally; use keep-tag to
pin what you fetched.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 1 {
				path = args[1]
			}

			r, err := repo.OpenPath(path)
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.LocalFetchViaTmpRepo(args[0], branch); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "fetch complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "restrict the fetch to one branch or tag name")
	return cmd
}
