package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shelf-go/internal/app"
	"shelf-go/internal/model"
	"shelf-go/internal/shelf"
)

var shareCmd = &cobra.Command{
	Use:   "share PATH GRANTEE",
	Short: "Share a file or folder with another user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("actions")
		actions, err := model.ParseAction(raw)
		if err != nil {
			return err
		}
		at, _ := cmd.Flags().GetString("at")

		return inNamespace(cmd, "Share", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			m, err := a.Service().Share(ctx, ns, args[0], args[1], shelf.ShareOptions{Actions: actions, MountAt: at})
			if err != nil {
				return err
			}
			fmt.Printf("Shared %s with %s as %s [%s]\n", m.Shared.Path, args[1], m.Point.DisplayName, m.Member.Actions)
			return nil
		})
	},
}

var unshareCmd = &cobra.Command{
	Use:   "unshare PATH GRANTEE",
	Short: "Revoke a share",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "Unshare", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			return a.Service().Unshare(ctx, ns, args[0], args[1])
		})
	},
}

var unmountCmd = &cobra.Command{
	Use:   "unmount MOUNT_PATH",
	Short: "Remove a share mounted in your namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "Unmount", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			return a.Service().Unmount(ctx, ns, args[0])
		})
	},
}

var membersCmd = &cobra.Command{
	Use:   "members PATH",
	Short: "List who a file or folder is shared with",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "ListMembers", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			members, err := a.Service().ListMembers(ctx, ns, args[0])
			if err != nil {
				return err
			}
			if len(members) == 0 {
				fmt.Println("Not shared.")
				return nil
			}
			for _, m := range members {
				fmt.Printf("%s  %s  %s\n", m.Actions, m.CreatedAt.Format("2006-01-02 15:04"), m.UserID)
			}
			return nil
		})
	},
}

var dupesCmd = &cobra.Command{
	Use:   "dupes [PATH]",
	Short: "Find duplicate files",
	Long: `Find duplicates of a file, or groups of duplicates under a folder.

For a file, exact duplicates share its content hash; with --near, images
whose fingerprints are within --distance bits are listed instead.
For a folder, images are grouped by fingerprint; without --near only
identical fingerprints are grouped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		near, _ := cmd.Flags().GetBool("near")
		distance, _ := cmd.Flags().GetInt("distance")
		if !near {
			distance = 0
		}
		p := pathArg(args, 0)

		return inNamespace(cmd, "FindDuplicates", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			svc := a.Service()
			e, err := svc.Stat(ctx, ns, p)
			if err != nil {
				return err
			}
			if e.File.IsFolder() {
				return printGroups(ctx, svc, ns, p, distance)
			}
			if near {
				return printSimilar(ctx, svc, ns, p, distance)
			}
			return printExact(ctx, svc, ns, e)
		})
	},
}

func printGroups(ctx context.Context, svc *shelf.Service, ns, folder string, distance int) error {
	groups, err := svc.FindDuplicateGroups(ctx, ns, folder, distance)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("No duplicates found.")
		return nil
	}
	for i, g := range groups {
		if i > 0 {
			fmt.Println()
		}
		for _, f := range g {
			fmt.Println(f.Path)
		}
	}
	return nil
}

func printSimilar(ctx context.Context, svc *shelf.Service, ns, p string, distance int) error {
	matches, err := svc.FindSimilar(ctx, ns, p, distance)
	if errors.Is(err, shelf.ErrNotFound) {
		return fmt.Errorf("%w (only JPEG, PNG and WebP images are fingerprinted, and indexing runs in the background)", err)
	}
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("No similar images found.")
		return nil
	}
	for _, m := range matches {
		fmt.Printf("%2d  %s\n", m.Distance, m.File.Path)
	}
	return nil
}

func printExact(ctx context.Context, svc *shelf.Service, ns string, e *shelf.Entry) error {
	if e.Grant != nil {
		return fmt.Errorf("%w: duplicate search does not cross mounts", shelf.ErrMountConflict)
	}
	files, err := svc.FindExactDuplicates(ctx, ns, e.File.ContentHash)
	if err != nil {
		return err
	}
	n := 0
	for _, f := range files {
		if f.ID == e.File.ID {
			continue
		}
		n++
		fmt.Println(f.Path)
	}
	if n == 0 {
		fmt.Println("No duplicates found.")
	}
	return nil
}

func init() {
	shareCmd.Flags().String("actions", "r", "Granted actions: r(ead), w(rite), s (re-share)")
	shareCmd.Flags().String("at", "", "Grantee folder to mount into (default their root)")

	dupesCmd.Flags().Bool("near", false, "Match visually similar images")
	dupesCmd.Flags().Int("distance", -1, "Maximum differing fingerprint bits for --near (default from config)")
}
