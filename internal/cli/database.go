package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

func newDatabaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"database"},
		Short:   "Create and delete databases",
	}
	cmd.AddCommand(newDatabaseCreateCmd())
	cmd.AddCommand(newDatabaseDeleteCmd())
	return cmd
}

func newDatabaseCreateCmd() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "create <account> <database>",
		Short: "Create a database",
		Long: "Create a database. MongoDB creates a database with its first collection;\n" +
			"pass --collection to create both at once.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				acct, err := a.findAccount(ctx, args[0])
				if err != nil {
					return err
				}
				db, err := acct.CreateDatabase(ctx, args[1])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if collection != "" {
					if _, err := db.CreateCollection(ctx, collection); err != nil {
						return err
					}
					fmt.Fprintf(out, "Created %s/%s\n", db.Name(), collection)
					return nil
				}
				if db.State() == tree.DatabasePending {
					fmt.Fprintf(out, "Database '%s' will be created with its first collection.\n", db.Name())
					return nil
				}
				fmt.Fprintf(out, "Created %s\n", db.Name())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "first collection to create in the database")
	return cmd
}

func newDatabaseDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <account> <database>",
		Short: "Delete a database and everything in it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				db, err := a.findDatabase(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				msg := fmt.Sprintf("Are you sure you want to delete database '%s' and its contents?", db.Name())
				if err := confirmDelete(ctx, a, msg, db); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", db.Name())
				return nil
			})
		},
	}
}

// confirmDelete asks before deleting n. Declining returns ErrCancelled.
func confirmDelete(ctx context.Context, a *app, message string, n tree.Deleter) error {
	ok, err := a.prompter.ShowConfirm(ctx, message, "Delete")
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrCancelled
	}
	return n.DeleteSelf(ctx)
}

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"coll"},
		Short:   "Create and delete collections",
	}
	cmd.AddCommand(newCollectionCreateCmd())
	cmd.AddCommand(newCollectionDeleteCmd())
	return cmd
}

func newCollectionCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <account> <database> <collection>",
		Short: "Create a collection, creating its database if needed",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				db, err := a.findDatabase(ctx, args[0], args[1])
				if errors.Is(err, errNotFound) {
					acct, aerr := a.findAccount(ctx, args[0])
					if aerr != nil {
						return aerr
					}
					db, err = acct.CreateDatabase(ctx, args[1])
				}
				if err != nil {
					return err
				}
				coll, err := db.CreateCollection(ctx, args[2])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s/%s\n", db.Name(), coll.Name())
				return nil
			})
		},
	}
}

func newCollectionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <account> <database> <collection>",
		Short: "Delete a collection and its documents",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				coll, err := a.findCollection(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				msg := fmt.Sprintf("Are you sure you want to delete collection '%s' and its contents?", coll.Name())
				if err := confirmDelete(ctx, a, msg, coll); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s\n", args[1], coll.Name())
				return nil
			})
		},
	}
}
