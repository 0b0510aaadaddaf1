package main

import (
	"fmt"
	"path/filepath"

	"github.com/odvcencio/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var bare bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a repository, or open it if it already exists",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			r, err := repo.InitAndOpen(abs, bare)
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "repository ready at %s\n", r.GitDir())
			return nil
		},
	}
	cmd.Flags().BoolVar(&bare, "bare", false, "initialize a bare repository")
	return cmd
}
