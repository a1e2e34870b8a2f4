package vlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileExtension is the extension of VeriLog files.
const FileExtension = ".vlog"

// rotatedTimeLayout keeps rotated names sortable and free of ':'.
const rotatedTimeLayout = "2006-01-02T15-04-05.000Z"

// RotatedName returns the name a rotated active file is renamed to:
// <prefix>-<UTC timestamp>-<ULID>.vlog.
func RotatedName(prefix string, now time.Time) string {
	id := newULID(now)
	return fmt.Sprintf("%s-%s-%s%s", prefix, now.UTC().Format(rotatedTimeLayout), id, FileExtension)
}

// ListLogFiles returns the VeriLog files in dir sorted by name, with the
// file named active (if present) moved to the end.
func ListLogFiles(dir, active string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("vlog: read dir: %w", err)
	}

	var names []string
	hasActive := false
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileExtension) {
			continue
		}
		if active != "" && e.Name() == active {
			hasActive = true
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if hasActive {
		names = append(names, active)
	}

	files := make([]string, len(names))
	for i, n := range names {
		files[i] = filepath.Join(dir, n)
	}
	return files, nil
}

// TotalSize returns the combined size of the VeriLog files in dir.
func TotalSize(dir string) (int64, error) {
	files, err := ListLogFiles(dir, "")
	if err != nil {
		return 0, err
	}

	var total int64
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// FileCount returns the number of VeriLog files in dir.
func FileCount(dir string) (int, error) {
	files, err := ListLogFiles(dir, "")
	if err != nil {
		return 0, err
	}
	return len(files), nil
}
