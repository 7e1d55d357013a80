package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/jamesainslie/tend/pkg/tend/reconcile"
	"github.com/mattn/go-isatty"
)

// terminalConfirm returns a yes/no prompt bound to in, or nil when in is not
// an interactive terminal so that plans needing approval are aborted.
func terminalConfirm(in io.Reader, out io.Writer) reconcile.ConfirmFunc {
	f, ok := in.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return nil
	}

	return func(ctx context.Context, prompt string) (bool, error) {
		var confirmed bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Affirmative("Yes").
				Negative("No").
				Value(&confirmed),
		)).WithInput(in).WithOutput(out)

		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return false, nil
			}
			return false, err
		}
		return confirmed, nil
	}
}
