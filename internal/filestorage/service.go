// File: internal/filestorage/service.go
package filestorage

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"medibook_backend/internal/common"
	"medibook_backend/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// allowedImageTypes maps sniffed content types to the stored extension.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// FileStorageService stores uploaded images on local disk and serves them
// under a public URL prefix.
type FileStorageService struct {
	storagePath string
	urlPrefix   string
	maxBytes    int64
	logger      *zap.Logger
}

// NewFileStorageService creates the storage directory if needed.
func NewFileStorageService(cfg *config.Config, logger *zap.Logger) (*FileStorageService, error) {
	logger = logger.Named("file_storage")
	if cfg.MediaStoragePath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	if err := os.MkdirAll(cfg.MediaStoragePath, 0o755); err != nil {
		logger.Error("Failed to create storage path directory", zap.String("path", cfg.MediaStoragePath), zap.Error(err))
		return nil, fmt.Errorf("failed to create storage path %s: %w", cfg.MediaStoragePath, err)
	}

	maxBytes := cfg.MaxUploadSizeMB << 20
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	prefix := "/" + strings.Trim(cfg.MediaURLPrefix, "/")

	logger.Info("FileStorageService initialized", zap.String("storagePath", cfg.MediaStoragePath), zap.String("urlPrefix", prefix))
	return &FileStorageService{storagePath: cfg.MediaStoragePath, urlPrefix: prefix, maxBytes: maxBytes, logger: logger}, nil
}

// SaveImage stores an uploaded image under subDir with a generated name and
// returns its path relative to the storage root. The type is taken from the
// file content, never from the client's filename.
func (s *FileStorageService) SaveImage(fileHeader *multipart.FileHeader, subDir string) (string, error) {
	if fileHeader == nil {
		return "", common.ErrBadRequest.WithDetails("An image file is required.")
	}
	if fileHeader.Size > s.maxBytes {
		return "", common.ErrBadRequest.WithDetails(fmt.Sprintf("The image may not be larger than %d MB.", s.maxBytes>>20))
	}

	src, err := fileHeader.Open()
	if err != nil {
		s.logger.Error("Failed to open uploaded file", zap.Error(err))
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read uploaded file: %w", err)
	}
	extension, ok := allowedImageTypes[http.DetectContentType(head[:n])]
	if !ok {
		return "", common.ErrBadRequest.WithDetails("Only JPEG, PNG, WebP and GIF images are accepted.")
	}

	cleanSubDir := filepath.Clean(subDir)
	if strings.HasPrefix(cleanSubDir, "..") || filepath.IsAbs(cleanSubDir) {
		s.logger.Error("Invalid subDir, attempts to navigate up", zap.String("subDir", subDir))
		return "", fmt.Errorf("invalid subDir path")
	}

	destinationDir := filepath.Join(s.storagePath, cleanSubDir)
	if err := os.MkdirAll(destinationDir, 0o755); err != nil {
		s.logger.Error("Failed to create sub-directory for file storage", zap.String("path", destinationDir), zap.Error(err))
		return "", fmt.Errorf("failed to create directory %s: %w", destinationDir, err)
	}

	uniqueFilename := uuid.New().String() + extension
	destinationPath := filepath.Join(destinationDir, uniqueFilename)
	dst, err := os.Create(destinationPath)
	if err != nil {
		s.logger.Error("Failed to create destination file", zap.String("path", destinationPath), zap.Error(err))
		return "", fmt.Errorf("failed to create file %s: %w", destinationPath, err)
	}
	defer dst.Close()

	if _, err = io.Copy(dst, io.MultiReader(bytes.NewReader(head[:n]), src)); err != nil {
		s.logger.Error("Failed to copy uploaded file to destination", zap.String("path", destinationPath), zap.Error(err))
		_ = os.Remove(destinationPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	s.logger.Info("File saved successfully", zap.String("path", destinationPath))
	return filepath.ToSlash(filepath.Join(cleanSubDir, uniqueFilename)), nil
}

// PublicURL is the URL path under which relativePath is served.
func (s *FileStorageService) PublicURL(relativePath string) string {
	return path.Join(s.urlPrefix, relativePath)
}

// RelativePath reverses PublicURL. ok is false for URLs this store does not own.
func (s *FileStorageService) RelativePath(publicURL string) (string, bool) {
	rel := strings.TrimPrefix(publicURL, s.urlPrefix+"/")
	if rel == publicURL || rel == "" {
		return "", false
	}
	return rel, true
}

// DeleteFile deletes a file given its path relative to the storage root.
// Missing files are not an error.
func (s *FileStorageService) DeleteFile(relativePath string) error {
	if relativePath == "" {
		return fmt.Errorf("relative path cannot be empty")
	}

	cleanRelativePath := filepath.Clean(relativePath)
	if strings.Contains(cleanRelativePath, "..") || filepath.IsAbs(cleanRelativePath) {
		s.logger.Warn("Attempt to delete file with path traversal", zap.String("relativePath", relativePath))
		return fmt.Errorf("invalid file path for deletion")
	}

	fullPath := filepath.Join(s.storagePath, cleanRelativePath)
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Attempt to delete non-existent file", zap.String("path", fullPath))
			return nil
		}
		s.logger.Error("Failed to delete file", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}

	s.logger.Info("File deleted successfully", zap.String("path", fullPath))
	return nil
}

// StoragePath is the directory served under the URL prefix.
func (s *FileStorageService) StoragePath() string { return s.storagePath }

// URLPrefix is the public path prefix of stored files.
func (s *FileStorageService) URLPrefix() string { return s.urlPrefix }
