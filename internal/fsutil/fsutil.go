// Package fsutil holds the file operations shared by jobs: copies, moves,
// decompression of leftovers and numbered tarball backups.
package fsutil

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CopyFile copies src onto dst, overwriting it and keeping the source mode.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// MoveFile renames src to dst, falling back to copy and remove across devices.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// DecompressDir expands every .gz and .bz2 file below dir in place and removes
// the compressed original. It returns the paths it produced.
func DecompressDir(dir string) ([]string, error) {
	var produced []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".gz" && ext != ".bz2" {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(path), ".tar.gz") {
			return nil
		}
		target := strings.TrimSuffix(path, filepath.Ext(path))
		if err := decompressFile(path, target, ext); err != nil {
			return err
		}
		produced = append(produced, target)
		return os.Remove(path)
	})
	return produced, err
}

func decompressFile(src, dst, ext string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	var r io.Reader
	switch ext {
	case ".gz":
		zr, err := gzip.NewReader(in)
		if err != nil {
			return fmt.Errorf("failed to open gzip %s: %w", src, err)
		}
		defer zr.Close()
		r = zr
	default:
		r = bzip2.NewReader(in)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to decompress %s: %w", src, err)
	}
	return out.Close()
}

// BackupArchive writes the files of names that exist in dir into
// <dir>/<prefix>.<n>.tar.gz, n being one past the highest existing index.
// It returns the archive path.
func BackupArchive(dir, prefix string, names []string) (string, error) {
	n, err := nextArchiveIndex(dir, prefix)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%d.tar.gz", prefix, n))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	zw := gzip.NewWriter(f)
	tw := tar.NewWriter(zw)

	for _, name := range names {
		if err := addToTar(tw, filepath.Join(dir, name), name); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			_ = f.Close()
			return "", err
		}
	}
	if err := tw.Close(); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}

func addToTar(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func nextArchiveIndex(dir, prefix string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `\.(\d+)\.tar\.gz$`)
	highest := 0
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if i, err := strconv.Atoi(m[1]); err == nil && i > highest {
			highest = i
		}
	}
	return highest + 1, nil
}
