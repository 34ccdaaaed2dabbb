package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/mesh-intelligence/cosmosx/pkg/types"
)

// linePrompter implements types.Prompter on the terminal with liner.
// Messages go to out; answers are read from the terminal.
type linePrompter struct {
	out       io.Writer
	assumeYes bool
}

func newLinePrompter(out io.Writer, assumeYes bool) *linePrompter {
	return &linePrompter{out: out, assumeYes: assumeYes}
}

func (p *linePrompter) ShowInput(ctx context.Context, opts types.InputOptions) (string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	prompt := opts.Prompt
	if opts.Placeholder != "" {
		prompt += " (" + opts.Placeholder + ")"
	}
	prompt += ": "

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var (
			text string
			err  error
		)
		switch {
		case opts.Password:
			text, err = line.PasswordPrompt(prompt)
		case opts.Value != "":
			text, err = line.PromptWithSuggestion(prompt, opts.Value, -1)
		default:
			text, err = line.Prompt(prompt)
		}
		if err != nil {
			return "", promptError(err)
		}
		if opts.Validate != nil {
			if msg := opts.Validate(text); msg != "" {
				fmt.Fprintln(p.out, msg)
				continue
			}
		}
		return text, nil
	}
}

func (p *linePrompter) ShowPick(ctx context.Context, prompt string, items []string) (int, error) {
	if len(items) == 0 {
		return 0, types.ErrCancelled
	}
	fmt.Fprintln(p.out, prompt)
	for i, item := range items {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, item)
	}
	answer, err := p.ShowInput(ctx, types.InputOptions{
		Prompt: "Choice",
		Validate: func(s string) string {
			if _, ok := pickIndex(s, len(items)); !ok {
				return fmt.Sprintf("Enter a number between 1 and %d.", len(items))
			}
			return ""
		},
	})
	if err != nil {
		return 0, err
	}
	i, _ := pickIndex(answer, len(items))
	return i, nil
}

// pickIndex converts a 1-based answer to a 0-based index.
func pickIndex(s string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

func (p *linePrompter) ShowConfirm(ctx context.Context, message, confirmLabel string) (bool, error) {
	if p.assumeYes {
		return true, nil
	}
	answer, err := p.ShowInput(ctx, types.InputOptions{
		Prompt: fmt.Sprintf("%s [%s/N]", message, confirmLabel),
	})
	if err != nil {
		if types.IsCancelled(err) {
			return false, nil
		}
		return false, err
	}
	return isYes(answer, confirmLabel), nil
}

func isYes(answer, confirmLabel string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return a == "y" || a == "yes" || a == strings.ToLower(confirmLabel)
}

func (p *linePrompter) ShowWarning(_ context.Context, message string) {
	fmt.Fprintln(p.out, "Warning:", message)
}

func (p *linePrompter) ShowError(_ context.Context, message string) {
	fmt.Fprintln(p.out, "Error:", message)
}

func promptError(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return types.ErrCancelled
	}
	return err
}
