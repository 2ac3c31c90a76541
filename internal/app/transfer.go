package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"shelf-go/internal/fs"
	"shelf-go/internal/model"
	"shelf-go/internal/shelf"
)

// ImportResult summarises a directory import.
type ImportResult struct {
	Folders int
	Files   int
	Bytes   int64
	Skipped []string // paths already present in the namespace
	Ignored int
	Special int
}

// UploadFile uploads a local file to dest in the namespace.
func (a *ShelfApp) UploadFile(ctx context.Context, nsPath, localPath, dest string) (*model.File, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory (use import)", localPath)
	}
	return a.service.Upload(ctx, nsPath, dest, f)
}

// Import copies a local directory tree into dest, creating folders as
// needed. Files whose path is already taken are skipped and reported;
// any other failure stops the import.
func (a *ShelfApp) Import(ctx context.Context, nsPath, localDir, dest string) (*ImportResult, error) {
	dest, err := shelf.NormalizePath(dest)
	if err != nil {
		return nil, err
	}
	if _, err := a.service.MakeDirs(ctx, nsPath, dest); err != nil {
		return nil, err
	}

	res := &ImportResult{}
	stats, err := fs.Walk(localDir, a.cfg.Filesystem.Ignore, func(e fs.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := shelf.JoinPath(dest, e.RelPath)

		if e.IsDir {
			if _, err := a.service.MakeDirs(ctx, nsPath, target); err != nil {
				return fmt.Errorf("creating folder %s: %w", target, err)
			}
			res.Folders++
			return nil
		}

		f, err := a.UploadFile(ctx, nsPath, e.AbsPath, target)
		switch {
		case errors.Is(err, shelf.ErrConflict):
			a.logger.Info("skipping existing file", "path", target)
			res.Skipped = append(res.Skipped, target)
			return nil
		case err != nil:
			return fmt.Errorf("uploading %s: %w", e.RelPath, err)
		}
		res.Files++
		res.Bytes += f.Size
		return nil
	})
	if stats != nil {
		res.Ignored, res.Special = stats.Ignored, stats.Special
	}
	if err != nil {
		return res, err
	}
	a.logger.Info("import finished", "files", res.Files, "folders", res.Folders, "skipped", len(res.Skipped))
	return res, nil
}

// Download writes the content of a file to localPath, refusing to replace
// an existing local file.
func (a *ShelfApp) Download(ctx context.Context, nsPath, p, localPath string) (*model.File, error) {
	rc, f, err := a.service.Open(ctx, nsPath, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	out, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", localPath, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(localPath)
		return nil, fmt.Errorf("writing %s: %w", localPath, err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing %s: %w", localPath, err)
	}
	if !f.ModifiedAt.IsZero() {
		os.Chtimes(localPath, f.ModifiedAt, f.ModifiedAt)
	}
	return f, nil
}
