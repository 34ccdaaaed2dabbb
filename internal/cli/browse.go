package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cosmosx/internal/tree"
)

const loadMoreLabel = "Load more..."

// nodeView is the JSON shape of a tree node.
type nodeView struct {
	ID       string     `json:"id"`
	FullID   string     `json:"fullId"`
	Label    string     `json:"label"`
	Kind     string     `json:"kind"`
	Icon     string     `json:"icon,omitempty"`
	HasMore  bool       `json:"hasMore,omitempty"`
	Children []nodeView `json:"children,omitempty"`
}

func newTreeCmd() *cobra.Command {
	var (
		depth   int
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "tree [account [database [collection]]]",
		Short: "Print the resource tree",
		Long: "Print the resource tree starting at the attached accounts, an account, a\n" +
			"database or a collection. Collections show one page of documents.",
		Args: cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				start, err := a.startNode(ctx, args)
				if err != nil {
					return err
				}
				view, err := a.walk(ctx, start, depth, refresh)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				printNode(cmd.OutOrStdout(), view, 0)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 2, "levels to expand below the start node")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload children from the server")
	return cmd
}

func (a *app) startNode(ctx context.Context, args []string) (tree.Node, error) {
	switch len(args) {
	case 1:
		return a.findAccount(ctx, args[0])
	case 2:
		return a.findDatabase(ctx, args[0], args[1])
	case 3:
		return a.findCollection(ctx, args[0], args[1], args[2])
	default:
		return a.registry.Root(), nil
	}
}

// walk expands n depth levels. A failure below the start node is shown
// as an error leaf so siblings still print.
func (a *app) walk(ctx context.Context, n tree.Node, depth int, refresh bool) (nodeView, error) {
	v := nodeView{
		ID:     n.ID(),
		FullID: n.FullID(),
		Label:  n.Label(),
		Kind:   string(n.Kind()),
		Icon:   n.IconHint(),
	}
	if depth <= 0 {
		return v, nil
	}
	children, err := n.LoadChildren(ctx, refresh)
	if err != nil {
		return v, err
	}
	v.HasMore = n.HasMoreChildren()
	for _, c := range children {
		cv, err := a.walk(ctx, c, depth-1, refresh)
		if err != nil {
			a.logger.Debugw("expand node", "node", c.FullID(), "error", err)
			cv.Children = []nodeView{{ID: "error", Label: err.Error(), Kind: "error"}}
		}
		v.Children = append(v.Children, cv)
	}
	return v, nil
}

func printNode(w io.Writer, v nodeView, level int) {
	indent := strings.Repeat("  ", level)
	fmt.Fprintf(w, "%s%s\n", indent, v.Label)
	for _, c := range v.Children {
		printNode(w, c, level+1)
	}
	if v.HasMore {
		fmt.Fprintf(w, "%s  %s\n", indent, loadMoreLabel)
	}
}
