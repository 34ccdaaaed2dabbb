package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cosmosx/internal/document"
	"github.com/mesh-intelligence/cosmosx/internal/tree"
	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

func newDocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "doc",
		Aliases: []string{"document"},
		Short:   "List, show, create, update and delete documents",
	}
	cmd.AddCommand(newDocListCmd())
	cmd.AddCommand(newDocShowCmd())
	cmd.AddCommand(newDocCreateCmd())
	cmd.AddCommand(newDocUpdateCmd())
	cmd.AddCommand(newDocDeleteCmd())
	return cmd
}

func newDocListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list <account> <database> <collection>",
		Short: "List documents one page at a time",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				coll, err := a.findCollection(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				children, err := coll.LoadChildren(ctx, false)
				if err != nil {
					return err
				}
				for all && coll.HasMoreChildren() {
					more, err := coll.LoadMoreChildren(ctx)
					if err != nil {
						return err
					}
					children = append(children, more...)
				}
				docs := make([]types.Document, 0, len(children))
				for _, c := range children {
					if d, ok := c.(*tree.DocumentNode); ok {
						docs = append(docs, d.Document())
					}
				}
				if err := printDocuments(cmd.OutOrStdout(), docs); err != nil {
					return err
				}
				if coll.HasMoreChildren() && !flags.jsonMode {
					fmt.Fprintln(cmd.ErrOrStderr(), "More documents available; pass --all to list them.")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "load every page")
	return cmd
}

func printDocuments(w io.Writer, docs []types.Document) error {
	if flags.jsonMode {
		parts := make([]string, 0, len(docs))
		for _, d := range docs {
			text, err := document.Format(d)
			if err != nil {
				return err
			}
			parts = append(parts, text)
		}
		_, err := fmt.Fprintf(w, "[%s]\n", strings.Join(parts, ",\n"))
		return err
	}
	for _, d := range docs {
		id, _ := d.ID()
		fmt.Fprintln(w, tree.FormatID(id))
	}
	return nil
}

func newDocShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <account> <database> <collection> <id>",
		Short: "Print a document as extended JSON",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				node, err := a.findDocument(ctx, args[0], args[1], args[2], args[3])
				if err != nil {
					return err
				}
				return printDocument(cmd.OutOrStdout(), node.Document())
			})
		},
	}
}

func newDocCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <account> <database> <collection> <json|->",
		Short: "Insert a document",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readDocumentArg(cmd, args[3])
			if err != nil {
				return err
			}
			doc, err := document.Parse(text)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				coll, err := a.findCollection(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				node, err := coll.CreateDocument(ctx, doc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", node.ID())
				return nil
			})
		},
	}
}

func newDocUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <account> <database> <collection> <id> <json|->",
		Short: "Replace a document; its _id must not change",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readDocumentArg(cmd, args[4])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				node, err := a.findDocument(ctx, args[0], args[1], args[2], args[3])
				if err != nil {
					return err
				}
				doc, err := a.mutator.UpdateJSON(ctx, node, text)
				if err != nil {
					return err
				}
				return printDocument(cmd.OutOrStdout(), doc)
			})
		},
	}
}

func newDocDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <account> <database> <collection> <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				node, err := a.findDocument(ctx, args[0], args[1], args[2], args[3])
				if err != nil {
					return err
				}
				id := node.ID()
				if err := a.mutator.Delete(ctx, node); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				return nil
			})
		},
	}
}

func printDocument(w io.Writer, doc types.Document) error {
	text, err := document.Format(doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}

// readDocumentArg returns arg, or standard input when arg is "-".
func readDocumentArg(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}
