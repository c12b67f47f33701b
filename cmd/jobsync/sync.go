package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/jobsync/internal/cli"
	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/config"
	"github.com/Veraticus/jobsync/internal/normalize"
	"github.com/Veraticus/jobsync/internal/notion"
	"github.com/Veraticus/jobsync/internal/reconcile"
	"github.com/Veraticus/jobsync/internal/secrets"
	"github.com/Veraticus/jobsync/internal/sheets"
	"github.com/Veraticus/jobsync/internal/storage"
	"github.com/Veraticus/jobsync/internal/syncer"
	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Bring the sheet in line with the Notion database",
		Long: `Read every application from Notion and every tracker row from the sheet,
then update stale rows and append missing ones.

Modes:
  full (r, refresh)  walk the whole sheet against the database
  tail (a, append)   only check the newest application against the last row

Without --mode (or sync.mode in the config file) you are asked which to run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return runSync(cmd, dryRun)
		},
	}

	addSyncFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "plan the changes without writing to the sheet")

	return cmd
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what sync would change without writing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, true)
		},
	}

	addSyncFlags(cmd)

	return cmd
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mode", "m", "", "sync mode: full or tail")
	cmd.Flags().String("format", cli.FormatText, "output format (text, json)")
	cmd.Flags().Bool("no-snapshot", false, "do not record this run in the snapshot database")
}

func runSync(cmd *cobra.Command, dryRun bool) error {
	format, _ := cmd.Flags().GetString("format")
	if err := cli.ValidateFormat(format); err != nil {
		return err
	}

	runCfg, err := config.LoadRunConfig()
	if err != nil {
		return err
	}
	if noSnapshot, _ := cmd.Flags().GetBool("no-snapshot"); noSnapshot {
		runCfg.Snapshots = false
	}

	profile, err := runCfg.LoadProfile()
	if err != nil {
		return err
	}

	notionCfg, err := config.LoadNotionConfig(secrets.NewKeyring())
	if err != nil {
		return err
	}

	sheetsCfg, err := config.LoadSheetsConfig()
	if err != nil {
		return err
	}

	sheetsCfg.RequiredColumns = profile.Columns.Names()

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx, stop := interrupts.HandleInterrupts(cmd.Context())
	defer stop()

	flagMode, _ := cmd.Flags().GetString("mode")
	mode, err := resolveMode(ctx, flagMode, runCfg.Mode, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	logger := slog.Default()

	source, err := notion.NewClient(*notionCfg, notion.NewExtractor(profile.Paths), logger)
	if err != nil {
		return fmt.Errorf("failed to create Notion client: %w", err)
	}

	dest, err := sheets.NewClient(ctx, *sheetsCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create Sheets client: %w", err)
	}

	var opts []syncer.Option
	if runCfg.Snapshots {
		store, err := openStorage(ctx, runCfg.DatabasePath)
		if err != nil {
			// Snapshots are optional; the sync itself can still run.
			slog.Warn("Snapshot database unavailable, continuing without it", "error", err)
		} else {
			defer func() { _ = store.Close() }()
			opts = append(opts, syncer.WithSnapshots(store))
		}
	}

	s := syncer.New(source, dest, normalize.New(profile), logger, opts...)

	runOpts := syncer.Options{
		Mode:          mode,
		DryRun:        dryRun,
		LockPath:      runCfg.LockPath(sheetsCfg.SpreadsheetID),
		SpreadsheetID: sheetsCfg.SpreadsheetID,
		DatabaseID:    notionCfg.DatabaseID,
		Progress: func(total int) reconcile.ProgressFunc {
			interrupts.SetWriting(true)
			if format != cli.FormatText {
				return nil
			}
			return cli.NewApplyProgress(cmd.ErrOrStderr(), total)
		},
	}

	report, runErr := s.Run(ctx, runOpts)
	if err := cli.RenderReport(cmd.OutOrStdout(), report, format); err != nil {
		slog.Warn("Failed to render report", "error", err)
	}
	if runErr != nil && interrupts.WasInterrupted() {
		return common.NewUserError("Sync interrupted", runErr)
	}
	return runErr
}

// resolveMode picks the sync mode from the flag, then the config file, and
// finally asks on in.
func resolveMode(ctx context.Context, flagMode, configured string, in io.Reader, out io.Writer) (reconcile.Mode, error) {
	for _, v := range []string{flagMode, configured} {
		if v != "" {
			return reconcile.ParseMode(v)
		}
	}
	return cli.PromptMode(ctx, cli.NewNonBlockingReader(in), out)
}

func openStorage(ctx context.Context, path string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Debug("Opened snapshot database", "path", store.Path())
	return store, nil
}
