package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lap-market/marketplace-backend/interfaces"
)

// DefaultListCount is used when List is called with a non-positive maxCount.
const DefaultListCount = 1000

// sniffLen is the number of bytes http.DetectContentType looks at.
const sniffLen = 512

// FileBackend implements a storage backend using the local file system.
// Objects are stored as plain files below a root directory; names containing
// "/" are stored in sub-directories.
type FileBackend struct {
	root        string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file storage backend rooted at root.
// The directory is created lazily on the first upload.
func NewFileBackend(root string, log *slog.Logger) (*FileBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty storage root", interfaces.ErrBackendMisconfigured)
	}

	return &FileBackend{
		root:        filepath.Clean(root),
		log:         log,
		locationURI: fmt.Sprintf("file://%s", root),
	}, nil
}

// Upload writes data to <root>/<name>, replacing any existing file.
func (b *FileBackend) Upload(ctx context.Context, data []byte, contentType, name string) (interfaces.ObjectVersion, error) {
	if name == "" {
		name = generatedName(contentType)
	}

	filePath, err := b.objectPath(name)
	if err != nil {
		return interfaces.ObjectVersion{}, err
	}

	if isDir(filePath) {
		return interfaces.ObjectVersion{}, fmt.Errorf("%w: name %q is a directory", interfaces.ErrInvalidObject, name)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return interfaces.ObjectVersion{}, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return interfaces.ObjectVersion{}, fmt.Errorf("failed to write file: %w", err)
	}

	b.log.Debug("Stored object in file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return interfaces.ObjectVersion{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Handle:      interfaces.LocalHandle{Path: filePath},
	}, nil
}

// UploadWithMetadata stores the file; the local backend has nowhere to keep
// custom fields so metadata is dropped.
func (b *FileBackend) UploadWithMetadata(ctx context.Context, data []byte, contentType, name string, metadata map[string]string) (interfaces.ObjectVersion, error) {
	if len(metadata) > 0 {
		b.log.Debug("Ignoring custom metadata on local upload",
			slog.String("name", name),
			slog.Int("fields", len(metadata)))
	}
	return b.Upload(ctx, data, contentType, name)
}

// UploadImage validates the content type and stores the file.
func (b *FileBackend) UploadImage(ctx context.Context, data []byte, contentType, name string) (interfaces.ObjectVersion, error) {
	if err := interfaces.ValidateImageContentType(contentType); err != nil {
		return interfaces.ObjectVersion{}, err
	}
	return b.Upload(ctx, data, contentType, name)
}

// Download reads the whole file.
// Returns ErrObjectNotFound if no regular file exists under name.
func (b *FileBackend) Download(ctx context.Context, name string) ([]byte, error) {
	filePath, err := b.objectPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) || (err != nil && isDir(filePath)) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrObjectNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched object from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Delete removes the file. A missing file is logged and ignored, and so is a
// directory: it is never an object and is left in place.
func (b *FileBackend) Delete(ctx context.Context, name string) error {
	filePath, err := b.objectPath(name)
	if err != nil {
		return err
	}

	if isDir(filePath) {
		err = fs.ErrNotExist
	} else {
		err = os.Remove(filePath)
	}
	if errors.Is(err, fs.ErrNotExist) {
		b.log.Warn("File not found for deletion", slog.String("name", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.log.Debug("Deleted object file", slog.String("path", filePath))
	return nil
}

// Exists reports whether a regular file is stored under name.
func (b *FileBackend) Exists(ctx context.Context, name string) (bool, error) {
	filePath, err := b.objectPath(name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// List returns the names of regular files directly below the root.
func (b *FileBackend) List(ctx context.Context, maxCount int) ([]string, error) {
	if maxCount <= 0 {
		maxCount = DefaultListCount
	}

	entries, err := os.ReadDir(b.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	names := make([]string, 0, min(len(entries), maxCount))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		names = append(names, entry.Name())
		if len(names) >= maxCount {
			break
		}
	}
	return names, nil
}

// Metadata returns filesystem facts about the file: fileName, fileSize,
// lastModified and, when it can be determined, contentType.
// Unknown or unreadable files yield an empty map.
func (b *FileBackend) Metadata(ctx context.Context, name string) (map[string]string, error) {
	metadata := map[string]string{}

	filePath, err := b.objectPath(name)
	if err != nil {
		return metadata, nil
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			b.log.Error("Error getting file metadata", slog.String("name", name), "err", err)
		}
		return metadata, nil
	}
	if !info.Mode().IsRegular() {
		return metadata, nil
	}

	metadata["fileName"] = name
	metadata["fileSize"] = strconv.FormatInt(info.Size(), 10)
	metadata["lastModified"] = info.ModTime().UTC().Format(time.RFC3339Nano)
	if contentType := probeContentType(filePath); contentType != "" {
		metadata["contentType"] = contentType
	}
	return metadata, nil
}

// Probe describes the storage directory. The local backend caches nothing so it
// is the same as Info.
func (b *FileBackend) Probe(ctx context.Context) (string, error) {
	return b.Info(ctx)
}

// Info reports the storage directory and the number of files directly below it.
func (b *FileBackend) Info(ctx context.Context) (string, error) {
	entries, err := os.ReadDir(b.root)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("Storage directory not created yet: %s", b.root), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read storage directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			count++
		}
	}
	return fmt.Sprintf("Local Storage: %s (%d files)", b.root, count), nil
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.root))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

// objectPath maps an object name to a path below the root. Names that are
// absolute or climb out of the root are rejected.
func (b *FileBackend) objectPath(name string) (string, error) {
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: name %q escapes the storage root", interfaces.ErrInvalidObject, name)
	}
	return filepath.Join(b.root, local), nil
}

func isDir(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && info.IsDir()
}

func probeContentType(filePath string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(filePath)); contentType != "" {
		return contentType
	}

	f, err := os.Open(filePath)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if n == 0 || (err != nil && !errors.Is(err, io.ErrUnexpectedEOF)) {
		return ""
	}

	// DetectContentType falls back to application/octet-stream when it cannot tell.
	contentType := http.DetectContentType(buf[:n])
	if contentType == "application/octet-stream" {
		return ""
	}
	return contentType
}
