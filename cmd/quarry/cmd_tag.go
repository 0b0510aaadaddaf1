package main

import (
	"fmt"

	"github.com/odvcencio/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newKeepTagCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "keep-tag <commit-or-tree> [path]",
		Short: "Pin a commit or tree against garbage collection",
		Args:  cobra.RangeArgs(1, 2),
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

			if err := r.KeepTag(args[0], message); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "keep-%s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "Keep referenced object alive", "tag message")
	return cmd
}
