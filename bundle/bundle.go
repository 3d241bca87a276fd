// Package bundle unpacks and builds the archive that ships the model with its dataset.
package bundle

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoArchive neither the extracted files nor the archive exist
var ErrNoArchive = errors.New("bundle archive not found")

// maxEntrySize guards against decompression bombs.
const maxEntrySize = 512 << 20

// Ensure extracts archive into dir unless dir/sentinel already exists.
// It reports whether an extraction happened.
func Ensure(archive, dir, sentinel string) (bool, error) {
	if _, err := os.Stat(filepath.Join(dir, sentinel)); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if _, err := os.Stat(archive); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", ErrNoArchive, archive)
		}
		return false, err
	}
	if _, err := Extract(archive, dir); err != nil {
		return false, err
	}
	if _, err := os.Stat(filepath.Join(dir, sentinel)); err != nil {
		return true, fmt.Errorf("archive %s does not contain %s", archive, sentinel)
	}
	return true, nil
}

// Extract writes every regular file of archive below dir and returns their paths.
func Extract(archive, dir string) ([]string, error) {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	extracted := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		target, err := entryPath(root, file.Name)
		if err != nil {
			return extracted, err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return extracted, err
			}
			continue
		}
		if !file.Mode().IsRegular() {
			continue
		}
		if err := extractFile(file, target); err != nil {
			return extracted, fmt.Errorf("extract %s: %w", file.Name, err)
		}
		extracted = append(extracted, target)
	}
	return extracted, nil
}

// entryPath resolves an archive entry below root, rejecting absolute and escaping names.
func entryPath(root, name string) (string, error) {
	clean := filepath.FromSlash(name)
	if filepath.IsAbs(clean) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("archive entry %q is absolute", name)
	}
	target := filepath.Join(root, clean)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes %s", name, root)
	}
	return target, nil
}

func extractFile(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	n, err := io.Copy(dst, io.LimitReader(src, maxEntrySize+1))
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if n > maxEntrySize {
		return fmt.Errorf("entry larger than %d bytes", maxEntrySize)
	}
	return nil
}

// Create writes a zip archive. files maps entry names to source paths.
func Create(archive string, files map[string]string) error {
	if len(files) == 0 {
		return errors.New("no files to bundle")
	}
	if dir := filepath.Dir(archive); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := os.Create(archive)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	writer := zip.NewWriter(out)
	for _, name := range names {
		if err := addFile(writer, name, files[name]); err != nil {
			writer.Close()
			out.Close()
			return fmt.Errorf("add %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func addFile(writer *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(name)
	header.Method = zip.Deflate

	dst, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

// Checksum returns the hex SHA-256 of a file.
func Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
