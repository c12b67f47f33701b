package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/jobsync/internal/reconcile"
)

// ModePrompt is shown when no sync mode was given.
const ModePrompt = "refresh or append? (r/a)"

const maxPromptAttempts = 3

// PromptMode asks whether to refresh the whole sheet or only check the newest
// row, re-asking on unrecognized answers.
func PromptMode(ctx context.Context, in *NonBlockingReader, out io.Writer) (reconcile.Mode, error) {
	for attempt := 0; attempt < maxPromptAttempts; attempt++ {
		if _, err := fmt.Fprint(out, FormatPrompt(ModePrompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		answer, err := in.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("no sync mode given: %w", err)
			}
			return "", err
		}

		mode, err := reconcile.ParseMode(strings.ToLower(answer))
		if err == nil {
			return mode, nil
		}

		if _, err := fmt.Fprintln(out, FormatWarning(fmt.Sprintf("Please answer r (refresh) or a (append), got %q", answer))); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}
	}

	return "", fmt.Errorf("no valid sync mode after %d attempts", maxPromptAttempts)
}
