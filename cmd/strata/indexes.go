package main

import (
	"github.com/spf13/cobra"
)

func newIndexesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexes",
		Short: "List and create collection indexes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <collection>",
		Short: "List the secondary indexes of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			coll, err := store.Collection(ctx, args[0])
			if err != nil {
				return err
			}
			names, err := coll.ListIndexes(ctx)
			if err != nil {
				return err
			}
			if names == nil {
				names = []string{}
			}
			return c.print(cmd, names)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <collection> <name> <field>...",
		Short: "Create a secondary index over document fields",
		Long: `Create builds an index over one or more document fields. Creating an
existing index is a no-op.

Example:
  strata indexes create account by_email email
  strata indexes create account by_org_plan org plan`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			coll, err := store.Collection(ctx, args[0])
			if err != nil {
				return err
			}
			if err := coll.CreateIndex(ctx, args[1], args[2:]...); err != nil {
				return err
			}
			c.log.WithField("collection", args[0]).WithField("index", args[1]).Info("index created")
			return nil
		},
	})
	return cmd
}
