package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileStorage defines the interface for file storage operations
type FileStorage interface {
	// SaveFile writes content to the specified full path
	// Creates parent directories if needed
	SaveFile(fullPath string, content []byte) error

	// ReadFile returns the content previously saved at fullPath
	ReadFile(fullPath string) ([]byte, error)

	// ValidatePath checks path security (no traversal, within base)
	ValidatePath(fullPath string) error
}

// LocalFileStorage implements FileStorage for local filesystem
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// SaveFile writes content to the specified full path
func (s *LocalFileStorage) SaveFile(fullPath string, content []byte) error {
	if err := s.ValidatePath(fullPath); err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// Attachments can carry personal data
	if err := os.WriteFile(fullPath, content, 0600); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return nil
}

// ReadFile reads a stored file back
func (s *LocalFileStorage) ReadFile(fullPath string) ([]byte, error) {
	if err := s.ValidatePath(fullPath); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// ValidatePath checks that the path is safe and within baseDir
func (s *LocalFileStorage) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	// Path must be base itself or strictly below it
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}
