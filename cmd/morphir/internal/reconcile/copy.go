package reconcile

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyTree copies every regular file under src into dest, preserving the
// relative layout and file modes. A missing src is not an error. Copied
// files are not part of any reconcile desired set, so a later reconcile of
// dest will delete them.
func CopyTree(src, dest string, out io.Writer) ([]Entry, error) {
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if out == nil {
		out = io.Discard
	}

	if !info.IsDir() {
		if err := copyFile(src, dest); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", src, err)
		}
		e := Entry{Action: ActionCopy, Path: dest}
		fmt.Fprintln(out, e)
		return []Entry{e}, nil
	}

	var copied []Entry
	err = filepath.WalkDir(src, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if err := copyFile(p, target); err != nil {
			return fmt.Errorf("failed to copy %s: %w", p, err)
		}

		e := Entry{Action: ActionCopy, Path: target}
		fmt.Fprintln(out, e)
		copied = append(copied, e)
		return nil
	})
	return copied, err
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	if err := dstFile.Close(); err != nil {
		return err
	}

	return os.Chmod(dst, srcInfo.Mode())
}
