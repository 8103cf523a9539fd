package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// ReadProcessed reads a named processed artifact into typed rows. Returns
// NotFoundError when the artifact is absent.
func ReadProcessed[T any](s *Store, name string) ([]T, error) {
	path := s.ProcessedPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: name, Path: path}
		}
		return nil, fmt.Errorf("failed to stat processed artifact %s: %w", path, err)
	}

	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read processed artifact %s: %w", path, err)
	}
	return rows, nil
}

// WriteProcessed writes typed rows to a named processed artifact, replacing
// any existing artifact of the same name. The write goes through a temporary
// file and a rename so a failure never leaves a partial artifact behind.
func WriteProcessed[T any](s *Store, name string, rows []T) error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}
	path := s.ProcessedPath(name)
	tmp := filepath.Join(s.ProcessedDir(), "."+name+processedExt+".tmp")

	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write processed artifact %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace processed artifact %s: %w", path, err)
	}

	s.log.Debug("dataset/store: wrote processed artifact", "name", name, "rows", len(rows))
	return nil
}
