package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"doc-parser/internal/logger"
	"doc-parser/internal/models"

	"github.com/sirupsen/logrus"
)

// StagingStore is a flat directory of uploads keyed by sanitized filename.
// Same-name uploads overwrite each other; the last write wins.
type StagingStore struct {
	dir string
}

func NewStagingStore(dir string) (*StagingStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating staging directory: %v", ErrStorageFailure, err)
	}
	return &StagingStore{dir: dir}, nil
}

func (s *StagingStore) Dir() string {
	return s.dir
}

// Stage copies src into the staging directory under name. name must
// already be sanitized.
func (s *StagingStore) Stage(src io.Reader, name string) (models.StagedFile, error) {
	if name == "" || name != filepath.Base(name) {
		return models.StagedFile{}, fmt.Errorf("%w: invalid staged name %q", ErrStorageFailure, name)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return models.StagedFile{}, fmt.Errorf("%w: creating staging directory: %v", ErrStorageFailure, err)
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return models.StagedFile{}, fmt.Errorf("%w: creating file: %v", ErrStorageFailure, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return models.StagedFile{}, fmt.Errorf("%w: writing file: %v", ErrStorageFailure, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return models.StagedFile{}, fmt.Errorf("%w: closing file: %v", ErrStorageFailure, err)
	}

	logger.WithFields(logrus.Fields{
		"file": name,
		"path": path,
	}).Debug("Upload staged")

	return models.StagedFile{Path: path, OriginalName: name}, nil
}

// Clean deletes every regular file in the staging directory. Deletion is
// best-effort: a failure is recorded and the remaining files are still
// removed.
func (s *StagingStore) Clean() (models.CleanResult, error) {
	result := models.CleanResult{DeletedFiles: []string{}}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, ErrStagingMissing
		}
		return result, fmt.Errorf("%w: reading staging directory: %v", ErrStorageFailure, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		name := entry.Name()
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			logger.WithFields(logrus.Fields{
				"file":  name,
				"error": err.Error(),
			}).Error("Failed to delete staged file")
			result.FailedFiles = append(result.FailedFiles, models.FailedFile{
				Name:  name,
				Error: fmt.Errorf("%w: %v", ErrDeleteFailure, err).Error(),
			})
			continue
		}

		result.DeletedFiles = append(result.DeletedFiles, name)
		logger.WithFields(logrus.Fields{
			"file": name,
		}).Info("File deleted successfully")
	}

	return result, nil
}
