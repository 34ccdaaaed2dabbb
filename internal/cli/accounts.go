package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// accountView is the JSON shape of an attached account.
type accountView struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Emulator bool   `json:"emulator"`
	FullID   string `json:"fullId"`
}

func viewAccount(acct *tree.AccountNode) accountView {
	return accountView{
		ID:       acct.ID(),
		Label:    acct.Label(),
		Kind:     string(acct.ProviderKind()),
		Emulator: acct.IsEmulator(),
		FullID:   acct.FullID(),
	}
}

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Manage attached database accounts",
	}
	cmd.AddCommand(newAccountsListCmd())
	cmd.AddCommand(newAccountsAttachCmd())
	cmd.AddCommand(newAccountsAttachEmulatorCmd())
	cmd.AddCommand(newAccountsDetachCmd())
	return cmd
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List attached accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				accounts, err := a.registry.GetAttachedAccounts(ctx)
				if err != nil {
					return err
				}
				views := make([]accountView, 0, len(accounts))
				for _, acct := range accounts {
					views = append(views, viewAccount(acct))
				}
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), views)
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No attached accounts. Run 'cosmosx accounts attach' to add one.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tKIND\tEMULATOR\tLABEL")
				for _, v := range views {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", v.ID, v.Kind, v.Emulator, v.Label)
				}
				return tw.Flush()
			})
		},
	}
}

func newAccountsAttachCmd() *cobra.Command {
	var kind, connString string
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach a database account by connection string",
		Long: "Attach a database account. Without --connection-string the account type and\n" +
			"connection string are prompted for interactively.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var (
					acct *tree.AccountNode
					err  error
				)
				if connString == "" {
					acct, err = a.registry.AttachNewAccount(ctx)
				} else {
					k, perr := types.ParseProviderKind(kind)
					if perr != nil {
						return perr
					}
					acct, err = a.registry.AttachConnectionString(ctx, connString, k)
				}
				if err != nil {
					return err
				}
				return printAccount(cmd, acct)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(types.ProviderMongoDB), "account kind (mongo, sql, graph, table)")
	cmd.Flags().StringVar(&connString, "connection-string", "", "connection string of the account")
	return cmd
}

func newAccountsAttachEmulatorCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "attach-emulator",
		Short: "Attach the local database emulator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var k types.ProviderKind
				if kind != "" {
					var err error
					if k, err = types.ParseProviderKind(kind); err != nil {
						return err
					}
				}
				acct, err := a.registry.AttachEmulator(ctx, k)
				if err != nil {
					return err
				}
				return printAccount(cmd, acct)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "emulator API (mongo or sql); prompted when empty")
	return cmd
}

func newAccountsDetachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <account>",
		Short: "Detach an account and forget its connection string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				acct, err := a.findAccount(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.registry.Detach(ctx, acct); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Detached %s\n", acct.ID())
				return nil
			})
		},
	}
}

func printAccount(cmd *cobra.Command, acct *tree.AccountNode) error {
	if flags.jsonMode {
		return writeJSON(cmd.OutOrStdout(), viewAccount(acct))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Attached %s (%s)\n", acct.ID(), acct.ProviderKind())
	return nil
}
