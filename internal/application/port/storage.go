package port

// FileStorage defines file storage operations
type FileStorage interface {
	SaveFile(fullPath string, content []byte) error
	ReadFile(fullPath string) ([]byte, error)
}

// FolderManager lays out attachment files per submission
type FolderManager interface {
	AttachmentPath(publicID string, position int, filename string) string
	DeleteSubmissionFolder(publicID string) error
}
