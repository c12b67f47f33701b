package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/jobsync/internal/reconcile"
	"github.com/schollz/progressbar/v3"
)

// NewApplyProgress returns a progress callback that draws a bar for total
// sheet writes on w.
func NewApplyProgress(w io.Writer, total int) reconcile.ProgressFunc {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Writing rows...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)

	return func(done int, m reconcile.Mutation) {
		bar.Describe(fmt.Sprintf("[cyan][bold]%s[reset]", m))
		if err := bar.Set(done); err != nil {
			slog.Debug("Failed to update progress bar", "error", err)
		}
	}
}
