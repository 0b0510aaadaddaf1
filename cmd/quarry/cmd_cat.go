package main

import (
	"fmt"

	"github.com/odvcencio/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newCatBlobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat-blob <hex-id> [path]",
		Short: "Print a blob's content",
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

			data, found, err := r.TryReadBlob(args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("blob %s not found", args[0])
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	return cmd
}
