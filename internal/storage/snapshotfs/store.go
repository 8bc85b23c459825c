// Package snapshotfs keeps the last portfolio valuation in a single JSON file.
package snapshotfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bobmcallan/classfund/internal/common"
	"github.com/bobmcallan/classfund/internal/interfaces"
	"github.com/bobmcallan/classfund/internal/models"
)

// Store reads and atomically replaces the snapshot cache file.
type Store struct {
	path   string
	logger *common.Logger
}

// NewStore creates a snapshot store for the file at path. The parent
// directory is created on first write.
func NewStore(logger *common.Logger, path string) *Store {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the cache file location.
func (s *Store) Path() string {
	return s.path
}

// Read returns the cached snapshot. A missing, empty or corrupt file yields
// nil with no error so a broken cache never fails a valuation.
func (s *Store) Read(_ context.Context) (*models.CachedSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug().Str("path", s.path).Msg("Snapshot cache not present")
		} else {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Snapshot cache unreadable")
		}
		return nil, nil
	}
	if len(data) == 0 {
		s.logger.Warn().Str("path", s.path).Msg("Snapshot cache is empty")
		return nil, nil
	}

	var snap models.CachedSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Snapshot cache corrupt, ignoring")
		return nil, nil
	}
	return &snap, nil
}

// Write replaces the cache file via temp file and rename.
func (s *Store) Write(_ context.Context, snap *models.CachedSnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	jsonData, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(jsonData); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.logger.Debug().Str("path", s.path).Int("prices", len(snap.Prices)).Msg("Snapshot cache written")
	return nil
}

// Ensure Store implements SnapshotStore
var _ interfaces.SnapshotStore = (*Store)(nil)
