package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"shelf-go/internal/app"
	"shelf-go/internal/shelf"
)

// pathArg returns args[i], or the namespace root when absent.
func pathArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return shelf.RootPath
}

// entryLabel renders a listing name; folders end in "/" and mount points
// show the grant they carry.
func entryLabel(e *shelf.Entry) string {
	name := e.Name
	if e.File.IsFolder() {
		name += "/"
	}
	if e.MountPoint && e.Grant != nil {
		name += fmt.Sprintf("  -> %s [%s]", e.File.Path, e.Grant.Actions)
	}
	return name
}

var lsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "List a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "List", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			n := 0
			for e, err := range a.Service().Children(ctx, ns, pathArg(args, 0)) {
				if err != nil {
					return err
				}
				n++
				fmt.Printf("%10d  %s  %s\n", e.File.Size, e.File.ModifiedAt.Format("2006-01-02 15:04"), entryLabel(e))
			}
			if n == 0 {
				fmt.Println("Empty.")
			}
			return nil
		})
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree [PATH]",
	Short: "Show a folder and everything below it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "Tree", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			root := pathArg(args, 0)
			label := root
			if root == shelf.RootPath {
				label = ns
			}
			t := gotree.New(label)
			if err := addChildren(ctx, a.Service(), ns, root, t); err != nil {
				return err
			}
			fmt.Print(t.Print())
			return nil
		})
	},
}

// addChildren adds the subtree of dir to t. Mount points are shown but not
// expanded.
func addChildren(ctx context.Context, svc *shelf.Service, ns, dir string, t gotree.Tree) error {
	for e, err := range svc.Children(ctx, ns, dir) {
		if err != nil {
			return err
		}
		node := t.Add(entryLabel(e))
		if e.File.IsFolder() && !e.MountPoint {
			if err := addChildren(ctx, svc, ns, e.Path, node); err != nil {
				return err
			}
		}
	}
	return nil
}

var statCmd = &cobra.Command{
	Use:   "stat PATH",
	Short: "Show a file's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "Stat", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			e, err := a.Service().Stat(ctx, ns, args[0])
			if err != nil {
				return err
			}
			f := e.File
			fmt.Printf("Path:         %s\n", e.Path)
			fmt.Printf("Media type:   %s\n", f.MediaType)
			fmt.Printf("Size:         %d\n", f.Size)
			fmt.Printf("Modified:     %s\n", f.ModifiedAt.Format("2006-01-02 15:04:05"))
			if f.ContentHash != "" {
				fmt.Printf("Content hash: %s\n", f.ContentHash)
			}
			if e.Grant != nil {
				fmt.Printf("Shared from:  %s [%s]\n", f.Path, e.Grant.Actions)
			}
			return nil
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir PATH",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parents, _ := cmd.Flags().GetBool("parents")
		return inNamespace(cmd, "CreateFolder", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			create := a.Service().CreateFolder
			if parents {
				create = a.Service().MakeDirs
			}
			_, err := create(ctx, ns, args[0])
			return err
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload LOCAL_FILE [DEST]",
	Short: "Upload a local file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := filepath.Base(args[0])
		if len(args) > 1 {
			dest = args[1]
		}
		return inNamespace(cmd, "Upload", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			f, err := a.UploadFile(ctx, ns, args[0], dest)
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded %s (%d bytes, %s)\n", f.Path, f.Size, f.MediaType)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import LOCAL_DIR [DEST]",
	Short: "Upload a local directory tree",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "Import", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			res, err := a.Import(ctx, ns, args[0], pathArg(args, 1))
			if res != nil {
				fmt.Printf("Imported %d file(s) in %d folder(s), %d bytes\n", res.Files, res.Folders, res.Bytes)
				if len(res.Skipped) > 0 {
					fmt.Printf("Skipped %d existing file(s)\n", len(res.Skipped))
				}
				if res.Ignored+res.Special > 0 {
					fmt.Printf("Ignored %d path(s), %d special file(s)\n", res.Ignored, res.Special)
				}
			}
			return err
		})
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download PATH [LOCAL_FILE]",
	Short: "Download a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		local := filepath.Base(args[0])
		if len(args) > 1 {
			local = args[1]
		}
		return inNamespace(cmd, "Download", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			if err := unlock(a); err != nil {
				return err
			}
			f, err := a.Download(ctx, ns, args[0], local)
			if err != nil {
				return err
			}
			fmt.Printf("Downloaded %s to %s\n", f.Path, local)
			return nil
		})
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp FROM TO",
	Short: "Copy a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "Copy", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			_, err := a.Service().Copy(ctx, ns, args[0], args[1])
			return err
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv FROM TO",
	Short: "Move or rename a file, folder or mount point",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "Move", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			_, err := a.Service().Move(ctx, ns, args[0], args[1])
			return err
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Delete permanently, bypassing the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inNamespace(cmd, "Delete", func(ctx context.Context, a *app.ShelfApp, ns string) error {
			return a.Service().Delete(ctx, ns, args[0])
		})
	},
}

func init() {
	mkdirCmd.Flags().BoolP("parents", "p", false, "Create missing parent folders")
}
