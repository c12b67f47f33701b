package main

import (
	"fmt"
	"time"

	"github.com/Veraticus/jobsync/internal/cli"
	"github.com/Veraticus/jobsync/internal/config"
	"github.com/Veraticus/jobsync/internal/reconcile"
	"github.com/Veraticus/jobsync/internal/storage"
	"github.com/Veraticus/jobsync/internal/syncer"
	"github.com/spf13/cobra"
)

func snapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"runs"},
		Short:   "Inspect what past runs read",
		Long: `Every sync stores what it read from Notion and the sheet. Use these commands
to list runs, replay the plan of a stored run, or export one for debugging.
Run IDs may be given as "latest".`,
	}

	cmd.AddCommand(snapshotsListCmd())
	cmd.AddCommand(snapshotsReplayCmd())
	cmd.AddCommand(snapshotsExportCmd())
	cmd.AddCommand(snapshotsPruneCmd())

	return cmd
}

func withStorage(cmd *cobra.Command, fn func(store *storage.SQLiteStorage) error) error {
	runCfg, err := config.LoadRunConfig()
	if err != nil {
		return err
	}

	store, err := openStorage(cmd.Context(), runCfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot database: %w", err)
	}
	defer func() { _ = store.Close() }()

	return fn(store)
}

func snapshotsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("format")
			if err := cli.ValidateFormat(format); err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			return withStorage(cmd, func(store *storage.SQLiteStorage) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return cli.RenderRuns(cmd.OutOrStdout(), runs, format)
			})
		},
	}

	cmd.Flags().Int("limit", 20, "number of runs to show (0 for all)")
	cmd.Flags().String("format", cli.FormatText, "output format (text, json)")

	return cmd
}

func snapshotsReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <run>",
		Short: "Recompute the plan of a stored run",
		Long: `Recompute the plan from the records a run read. The sheet is not touched.
By default the run's own mode is used; --mode replays it the other way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if err := cli.ValidateFormat(format); err != nil {
				return err
			}
			flagMode, _ := cmd.Flags().GetString("mode")

			return withStorage(cmd, func(store *storage.SQLiteStorage) error {
				snap, err := store.LoadSnapshot(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				modeName := snap.Run.Mode
				if flagMode != "" {
					modeName = flagMode
				}
				mode, err := reconcile.ParseMode(modeName)
				if err != nil {
					return err
				}

				plan, err := syncer.Replay(snap, mode)
				if err != nil {
					return err
				}
				return cli.RenderPlan(cmd.OutOrStdout(), plan, format)
			})
		},
	}

	cmd.Flags().StringP("mode", "m", "", "replay in this mode instead of the run's own")
	cmd.Flags().String("format", cli.FormatText, "output format (text, json)")

	return cmd
}

func snapshotsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <run> <dir>",
		Short: "Write a stored run to JSON files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(cmd, func(store *storage.SQLiteStorage) error {
				snap, err := store.LoadSnapshot(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				files, err := storage.ExportSnapshot(snap, config.ExpandPath(args[1]))
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Exported run %s", snap.Run.ID)))
				for _, f := range files {
					_, _ = fmt.Fprintf(out, "  %s\n", f)
				}
				return nil
			})
		},
	}
}

func snapshotsPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a given age",
		RunE: func(cmd *cobra.Command, _ []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			return withStorage(cmd, func(store *storage.SQLiteStorage) error {
				deleted, err := store.DeleteRunsBefore(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted %d runs", deleted)))
				return err
			})
		},
	}

	cmd.Flags().Duration("older-than", 30*24*time.Hour, "age of the oldest run to keep")

	return cmd
}
