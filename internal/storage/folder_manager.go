package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	unsafeFolderChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	unsafeFileChars   = regexp.MustCompile(`[^a-zA-Z0-9\-_. ]`)
)

// FolderManager lays out one folder per submission under the storage root
type FolderManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewFolderManager creates a new FolderManager
func NewFolderManager(baseDir string, logger *zap.Logger) *FolderManager {
	return &FolderManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// CreateSubmissionFolder creates {baseDir}/{publicID}/ and returns its path
func (m *FolderManager) CreateSubmissionFolder(publicID string) (string, error) {
	if publicID == "" {
		return "", fmt.Errorf("cannot create folder: empty submission ID")
	}

	folderPath := m.SubmissionFolderPath(publicID)
	if err := os.MkdirAll(folderPath, 0755); err != nil {
		m.logger.Error("Failed to create submission folder",
			zap.String("public_id", publicID),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	return folderPath, nil
}

// SubmissionFolderPath returns the folder of a submission without creating it
func (m *FolderManager) SubmissionFolderPath(publicID string) string {
	return filepath.Join(m.baseDir, m.SanitizeFolderName(publicID))
}

// AttachmentPath returns where the attachment at position is stored. The
// position prefix keeps two uploads with the same name apart.
func (m *FolderManager) AttachmentPath(publicID string, position int, filename string) string {
	return filepath.Join(m.SubmissionFolderPath(publicID),
		fmt.Sprintf("%02d_%s", position, SanitizeFileName(filename)))
}

// DeleteSubmissionFolder removes a submission folder and all contents
func (m *FolderManager) DeleteSubmissionFolder(publicID string) error {
	folderPath := m.SubmissionFolderPath(publicID)

	if _, err := os.Stat(folderPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(folderPath); err != nil {
		m.logger.Error("Failed to delete submission folder",
			zap.String("public_id", publicID),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	return nil
}

// SanitizeFolderName keeps only alphanumerics, hyphens and underscores
func (m *FolderManager) SanitizeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	return unsafeFolderChars.ReplaceAllString(name, "")
}

// SanitizeFileName strips directories and unusual characters from an
// uploaded file name. Empty results become "anexo".
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.FromSlash(name))
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ". ")
	if name == "" {
		return "anexo"
	}
	return name
}
