package main

import (
	"fmt"
	"sort"

	"github.com/odvcencio/quarry/pkg/object"
	"github.com/odvcencio/quarry/pkg/repo"
	"github.com/spf13/cobra"
)

func newLsTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-tree <tree-hex> [path]",
		Short: "List a tree's immediate entries, omitting symlinks and unsupported modes",
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

			id, err := object.IDFromHex(args[0])
			if err != nil {
				return err
			}
			listing, err := r.ReadTree(id, nil, true)
			if err != nil {
				return err
			}

			type row struct {
				name string
				kind object.Kind
				id   object.ID
			}
			var rows []row
			for entryID, nodes := range listing {
				for _, n := range nodes {
					rows = append(rows, row{name: n.Name, kind: n.Kind, id: entryID})
				}
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

			for _, rw := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%06o %s %s\t%s\n",
					rw.kind.Mode(), rw.kind.Type(), rw.id.Hex(), rw.name)
			}
			return nil
		},
	}
	return cmd
}
