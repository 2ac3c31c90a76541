package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"shelf-go/internal/app"
)

var trashCmd = &cobra.Command{
	Use:   "trash PATH",
	Short: "Move a file or folder to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "MoveToTrash", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			f, err := a.Service().MoveToTrash(ctx, ns, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Trashed as %s\n", f.Path)
			return nil
		})
	},
}

var trashLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the trash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "ListTrash", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			n := 0
			for e, err := range a.Service().ListTrash(ctx, ns) {
				if err != nil {
					return err
				}
				n++
				from, at := "", ""
				if e.File.TrashedFrom.Valid {
					from = e.File.TrashedFrom.String
				}
				if e.File.TrashedAt.Valid {
					at = e.File.TrashedAt.Time.Format("2006-01-02 15:04")
				}
				fmt.Printf("%-16s  %s  (from %s)\n", at, entryLabel(e), from)
			}
			if n == 0 {
				fmt.Println("Trash is empty.")
			}
			return nil
		})
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore TRASH_PATH",
	Short: "Put a trash entry back where it came from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "Restore", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			f, err := a.Service().Restore(ctx, ns, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Restored %s\n", f.Path)
			return nil
		})
	},
}

var trashMvCmd = &cobra.Command{
	Use:   "mv TRASH_PATH DEST",
	Short: "Move a trash entry to a new place",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "MoveOut", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			_, err := a.Service().MoveOut(ctx, ns, args[0], args[1])
			return err
		})
	},
}

var trashPurgeCmd = &cobra.Command{
	Use:   "purge TRASH_PATH",
	Short: "Permanently delete a trash entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "Purge", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			return a.Service().Purge(ctx, ns, args[0])
		})
	},
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Permanently delete everything in the trash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "EmptyTrash", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			n, err := a.Service().EmptyTrash(ctx, ns)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d item(s)\n", n)
			return nil
		})
	},
}

func init() {
	trashCmd.AddCommand(trashLsCmd, trashRestoreCmd, trashMvCmd, trashPurgeCmd, trashEmptyCmd)
}
