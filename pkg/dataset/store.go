package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	rawExt       = ".csv"
	processedExt = ".parquet"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	Logger *slog.Logger

	// DataDir is the root data directory. Raw extracts live under
	// DataDir/raw, processed artifacts under DataDir/processed.
	DataDir string
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DataDir == "" {
		return errors.New("data directory is required")
	}
	return nil
}

// Store reads and writes named artifacts in the raw and processed areas.
type Store struct {
	log     *slog.Logger
	dataDir string
}

// NewStore creates a store rooted at cfg.DataDir.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		log:     cfg.Logger,
		dataDir: cfg.DataDir,
	}, nil
}

// RawDir returns the raw area directory.
func (s *Store) RawDir() string {
	return filepath.Join(s.dataDir, "raw")
}

// ProcessedDir returns the processed area directory.
func (s *Store) ProcessedDir() string {
	return filepath.Join(s.dataDir, "processed")
}

// RawPath returns the file path of a named raw artifact.
func (s *Store) RawPath(name string) string {
	return filepath.Join(s.RawDir(), name+rawExt)
}

// ProcessedPath returns the file path of a named processed artifact.
func (s *Store) ProcessedPath(name string) string {
	return filepath.Join(s.ProcessedDir(), name+processedExt)
}

// EnsureDirs creates the raw and processed directories if absent.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.RawDir(), s.ProcessedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LoadRaw reads a named raw extract into a RecordBatch. Empty CSV cells
// become nil values. Returns NotFoundError when the artifact is absent.
func (s *Store) LoadRaw(name string) (*RecordBatch, error) {
	path := s.RawPath(name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: name, Path: path}
		}
		return nil, fmt.Errorf("failed to open raw artifact %s: %w", path, err)
	}
	defer f.Close()

	batch, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw artifact %s: %w", path, err)
	}

	s.log.Debug("dataset/store: loaded raw artifact", "name", name, "rows", len(batch.Rows), "columns", len(batch.Columns))
	return batch, nil
}

// SaveRaw writes a RecordBatch to the raw area as CSV, replacing any
// existing artifact of the same name. Nil cells become empty fields.
func (s *Store) SaveRaw(name string, batch *RecordBatch) error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}
	path := s.RawPath(name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create raw artifact %s: %w", path, err)
	}
	defer f.Close()

	if err := batch.WriteCSV(f); err != nil {
		return fmt.Errorf("failed to write raw artifact %s: %w", path, err)
	}

	s.log.Debug("dataset/store: saved raw artifact", "name", name, "rows", len(batch.Rows))
	return nil
}

// ArtifactInfo describes a processed artifact in the catalog.
type ArtifactInfo struct {
	Name     string    `json:"name"`
	SizeByte int64     `json:"size_bytes"`
	Modified time.Time `json:"modified"`
}

// ListProcessed returns the catalog of processed artifacts, sorted by name.
// A missing processed directory yields an empty catalog.
func (s *Store) ListProcessed() ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(s.ProcessedDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list processed artifacts: %w", err)
	}

	var artifacts []ArtifactInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), processedExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		artifacts = append(artifacts, ArtifactInfo{
			Name:     strings.TrimSuffix(entry.Name(), processedExt),
			SizeByte: info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

// ProcessedExists reports whether a named processed artifact exists.
func (s *Store) ProcessedExists(name string) bool {
	_, err := os.Stat(s.ProcessedPath(name))
	return err == nil
}
