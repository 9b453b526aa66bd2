package acquire

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	inboxDir     = "inbox"
	processedDir = "inbox/processed"
)

// FileInfo describes a statement file waiting in the inbox.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// InboxPath returns <root>/inbox.
func InboxPath(root string) string { return filepath.Join(root, inboxDir) }

// ProcessedPath returns <root>/inbox/processed.
func ProcessedPath(root string) string { return filepath.Join(root, processedDir) }

// Scan returns supported files in <root>/inbox/, sorted by name.
// A missing inbox yields no files.
func Scan(root string) ([]FileInfo, error) {
	dir := InboxPath(root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading inbox: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from inbox/ to inbox/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(InboxPath(root), fileName)
	dstDir := ProcessedPath(root)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	if err := os.Rename(src, filepath.Join(dstDir, fileName)); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
