package main

import (
	"fmt"

	"github.com/odvcencio/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitAllCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "commit-all [path]",
		Short: "Stage the whole worktree and commit it anonymously",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			r, err := repo.OpenPath(path)
			if err != nil {
				return err
			}
			defer r.Close()

			commit, err := r.StageAndCommitAllAnonymous(message)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), commit)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
