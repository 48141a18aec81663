package library

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractZip unpacks the archive at src into destDir, creating it as needed.
// Existing files are overwritten. Entries that would escape destDir are
// rejected.
func extractZip(src, destDir string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	for _, file := range reader.File {
		if err := extractZipEntry(file, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(file *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.Clean(file.Name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("zip entry %q escapes destination", file.Name)
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create entry directory: %w", err)
	}

	in, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip entry %q: %w", file.Name, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to extract %s: %w", target, err)
	}
	return nil
}
