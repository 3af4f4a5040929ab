package ingest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// LocalFile is a supported file found under an ingest root.
type LocalFile struct {
	// Path is the file's path on disk.
	Path string
	// Rel is the slash path beginning with the root directory's name.
	Rel string
}

// Collect walks root and returns supported files in lexical order. Hidden
// files and directories are skipped.
func Collect(root string) ([]LocalFile, error) {
	base := filepath.Base(filepath.Clean(root))
	var files []LocalFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := Extensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		files = append(files, LocalFile{Path: path, Rel: base + "/" + filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}
