package types

import "context"

// InputOptions configures Prompter.ShowInput.
type InputOptions struct {
	Prompt      string
	Placeholder string
	Value       string
	Password    bool

	// Validate returns a message describing why the input is invalid, or
	// the empty string when it is acceptable. The prompt repeats until
	// Validate accepts the input or the user cancels.
	Validate func(string) string
}

// Prompter is the narrow UI contract the core needs. Implementations return
// ErrCancelled when the user dismisses an input or pick.
type Prompter interface {
	ShowInput(ctx context.Context, opts InputOptions) (string, error)

	// ShowPick returns the index of the chosen item.
	ShowPick(ctx context.Context, prompt string, items []string) (int, error)

	// ShowConfirm asks a yes/cancel question. Declining returns false, nil.
	ShowConfirm(ctx context.Context, message, confirmLabel string) (bool, error)

	ShowWarning(ctx context.Context, message string)
	ShowError(ctx context.Context, message string)
}
