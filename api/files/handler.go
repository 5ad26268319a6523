package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lap-market/marketplace-backend/api"
	"github.com/lap-market/marketplace-backend/interfaces"
	"github.com/lap-market/marketplace-backend/storage"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultListCount is used by GET /files/list when maxCount is absent.
	DefaultListCount = 100

	// multipartMemory is the part of a multipart body kept in memory;
	// the remainder spills to temporary files.
	multipartMemory = 8 << 20

	// uploadConcurrency bounds the parallel backend uploads of one request.
	uploadConcurrency = 4
)

var errPayloadTooLarge = errors.New("payload too large")

// FileStore is the storage surface the file API needs. *storage.Facade
// satisfies it.
type FileStore interface {
	Upload(ctx context.Context, content []byte, contentType, name string) (string, error)
	UploadImage(ctx context.Context, content []byte, contentType, name string) (string, error)
	Download(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, maxCount int) ([]string, error)
	Metadata(ctx context.Context, name string) (map[string]string, error)
	ResolveURL(name string, expiry ...time.Duration) string
	CurrentBackendLabel() string
	IsRemoteAvailable() bool
	RetryRemote(ctx context.Context) bool
	StorageInfo(ctx context.Context) string
	Health(ctx context.Context) storage.HealthStatus
}

// Handler serves the marketplace file API on top of a FileStore.
type Handler struct {
	store  FileStore
	limits api.UploadLimits
	now    func() time.Time
	log    *slog.Logger
}

// NewHandler creates a file API handler. Zero upload limits are replaced by
// the api package defaults.
func NewHandler(store FileStore, limits api.UploadLimits, log *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		limits: limits.WithDefaults(),
		now:    time.Now,
		log:    log,
	}
}

// RegisterRoutes mounts the file API under /files. Object names may contain
// slashes, so every per-object route ends in a wildcard.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/files", func(r chi.Router) {
		r.Get("/download/*", h.HandleDownload)
		r.Post("/upload", h.HandleUpload)
		r.Post("/upload/multiple", h.HandleUploadMultiple)
		r.Post("/upload/images", h.HandleUploadImages)
		r.Post("/upload/avatar/{userID}", h.HandleUploadAvatar)
		r.Delete("/delete/*", h.HandleDelete)
		r.Get("/exists/*", h.HandleExists)
		r.Get("/list", h.HandleList)
		r.Get("/info/*", h.HandleInfo)
		r.Get("/health", h.HandleHealth)
		r.Get("/storage/info", h.HandleStorageInfo)
		r.Post("/storage/retry", h.HandleRetry)
	})
}

// HandleDownload streams an object back as an attachment.
//
// Status codes:
//   - 200 OK: object bytes
//   - 400 Bad Request: invalid object name
//   - 404 Not Found: no such object on the current backend
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")

	data, err := h.store.Download(r.Context(), name)
	if err != nil {
		h.log.Error("Failed to download file", "err", err, "fileName", name)
		h.writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(name)}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Warn("Failed to write download response", "err", err, "fileName", name)
	}
}

// HandleUpload stores the multipart field "file" under file_{ms}_{original}.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	parts, ok := h.parseParts(w, r, "file")
	if !ok {
		return
	}

	uploaded, err := h.uploadPart(r.Context(), parts[0], storage.FileCategory, h.limits.MaxFileSize, h.store.Upload)
	if err != nil {
		h.log.Error("Failed to upload file", "err", err, "originalName", parts[0].Filename)
		h.writeError(w, statusFor(err), err)
		return
	}

	h.log.Info("File uploaded", "fileName", uploaded.FileName, "size", uploaded.FileSize)
	writeJSON(w, http.StatusOK, api.UploadResponse{Success: true, UploadedFile: uploaded})
}

// HandleUploadMultiple stores every part of the multipart field "files".
// Empty parts are skipped and filenames must be unique. Any failure fails the
// whole request; parts that were already stored are left in place. One part
// failing does not cancel the uploads of the others.
func (h *Handler) HandleUploadMultiple(w http.ResponseWriter, r *http.Request) {
	parts, ok := h.parseParts(w, r, "files")
	if !ok || !h.requireUniqueFilenames(w, parts) {
		return
	}

	var mu sync.Mutex
	results := make(map[string]api.UploadedFile, len(parts))

	var g errgroup.Group
	g.SetLimit(uploadConcurrency)
	for _, part := range parts {
		if part.Size == 0 {
			continue
		}
		g.Go(func() error {
			uploaded, err := h.uploadPart(r.Context(), part, storage.FileCategory, h.limits.MaxFileSize, h.store.Upload)
			if err != nil {
				return fmt.Errorf("%s: %w", part.Filename, err)
			}
			mu.Lock()
			results[part.Filename] = uploaded
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.log.Error("Failed to upload multiple files", "err", err)
		h.writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, api.MultipleUploadResponse{Success: true, Files: results})
}

// HandleUploadImages stores every part of "files" as an image and responds
// with the download URLs in request order. Filenames must be unique.
func (h *Handler) HandleUploadImages(w http.ResponseWriter, r *http.Request) {
	parts, ok := h.parseParts(w, r, "files")
	if !ok || !h.requireUniqueFilenames(w, parts) {
		return
	}

	urls := make([]string, len(parts))
	var g errgroup.Group
	g.SetLimit(uploadConcurrency)
	for i, part := range parts {
		if part.Size == 0 {
			continue
		}
		g.Go(func() error {
			uploaded, err := h.uploadPart(r.Context(), part, storage.ImageCategory, h.limits.MaxImageSize, h.store.UploadImage)
			if err != nil {
				return fmt.Errorf("%s: %w", part.Filename, err)
			}
			urls[i] = uploaded.DownloadURL
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.log.Error("Failed to upload images", "err", err)
		h.writeError(w, statusFor(err), err)
		return
	}

	compacted := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			compacted = append(compacted, u)
		}
	}
	writeJSON(w, http.StatusOK, compacted)
}

// requireUniqueFilenames answers 400 when two non-empty parts share a filename.
// Stored names only carry millisecond precision, so such parts would land on
// the same object.
func (h *Handler) requireUniqueFilenames(w http.ResponseWriter, parts []*multipart.FileHeader) bool {
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		if part.Size == 0 {
			continue
		}
		if _, dup := seen[part.Filename]; dup {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: duplicate filename %q", interfaces.ErrInvalidObject, part.Filename))
			return false
		}
		seen[part.Filename] = struct{}{}
	}
	return true
}

// HandleUploadAvatar stores the "file" part as avatars/{userID}_{uuid}{ext}.
func (h *Handler) HandleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	parts, ok := h.parseParts(w, r, "file")
	if !ok {
		return
	}
	part := parts[0]

	content, err := readPart(part, h.limits.MaxImageSize)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}

	name, err := h.store.UploadImage(r.Context(), content, part.Header.Get("Content-Type"), storage.AvatarName(userID, part.Filename))
	if err != nil {
		h.log.Error("Failed to upload avatar", "err", err, "userID", userID)
		h.writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, api.AvatarResponse{Success: true, FileName: name, AvatarURL: h.store.ResolveURL(name)})
}

// HandleDelete removes an object. Unlike the facade, the API reports a
// missing object as 404.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if !h.requireExisting(w, r, name) {
		return
	}

	if err := h.store.Delete(r.Context(), name); err != nil {
		h.log.Error("Failed to delete file", "err", err, "fileName", name)
		h.writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, api.DeleteResponse{Success: true, Message: "File deleted successfully"})
}

func (h *Handler) HandleExists(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	exists, err := h.store.Exists(r.Context(), name)
	if err != nil {
		h.log.Error("Failed to check file existence", "err", err, "fileName", name)
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, api.ExistsResponse{Success: true, Exists: exists, FileName: name})
}

// HandleList returns up to maxCount (default 100) object names.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	maxCount := DefaultListCount
	if raw := r.URL.Query().Get("maxCount"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid maxCount %q", raw))
			return
		}
		maxCount = n
	}

	names, err := h.store.List(r.Context(), maxCount)
	if err != nil {
		h.log.Error("Failed to list files", "err", err)
		h.writeError(w, statusFor(err), err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, api.ListResponse{Success: true, Files: names, Count: len(names)})
}

func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if !h.requireExisting(w, r, name) {
		return
	}

	md, err := h.store.Metadata(r.Context(), name)
	if err != nil {
		h.log.Error("Failed to get file metadata", "err", err, "fileName", name)
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, api.InfoResponse{Success: true, FileName: name, Metadata: md})
}

// HandleHealth always answers 200; the body carries the verdict.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Health(r.Context()))
}

func (h *Handler) HandleStorageInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.StorageInfoResponse{
		Success:         true,
		StorageType:     h.store.CurrentBackendLabel(),
		RemoteAvailable: h.store.IsRemoteAvailable(),
		Info:            h.store.StorageInfo(r.Context()),
	})
}

// HandleRetry re-probes the remote backend. A failed probe is still a 200;
// remoteAvailable reports the outcome.
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	available := h.store.RetryRemote(r.Context())
	h.log.Info("Remote storage retry requested", "remoteAvailable", available)

	writeJSON(w, http.StatusOK, api.RetryResponse{
		Success:         true,
		Message:         "Remote storage connection retry completed",
		RemoteAvailable: available,
		CurrentStorage:  h.store.CurrentBackendLabel(),
	})
}

func (h *Handler) requireExisting(w http.ResponseWriter, r *http.Request, name string) bool {
	exists, err := h.store.Exists(r.Context(), name)
	if err != nil {
		h.log.Error("Failed to check file existence", "err", err, "fileName", name)
		h.writeError(w, statusFor(err), err)
		return false
	}
	if !exists {
		h.writeError(w, http.StatusNotFound, fmt.Errorf("file not found: %s", name))
		return false
	}
	return true
}

// parseParts reads the multipart form and returns the parts of field. It
// writes the error response itself and reports false when there is nothing
// to store.
func (h *Handler) parseParts(w http.ResponseWriter, r *http.Request, field string) ([]*multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxRequestSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return nil, false
	}

	parts := r.MultipartForm.File[field]
	if len(parts) == 0 {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("no %q part provided", field))
		return nil, false
	}
	if len(parts) == 1 && parts[0].Size == 0 {
		h.writeError(w, http.StatusBadRequest, errors.New("file is empty"))
		return nil, false
	}
	return parts, true
}

type uploadFunc func(ctx context.Context, content []byte, contentType, name string) (string, error)

func (h *Handler) uploadPart(ctx context.Context, part *multipart.FileHeader, category string, limit int64, upload uploadFunc) (api.UploadedFile, error) {
	content, err := readPart(part, limit)
	if err != nil {
		return api.UploadedFile{}, err
	}

	name, err := upload(ctx, content, part.Header.Get("Content-Type"), storage.CategoryName(category, part.Filename, h.now()))
	if err != nil {
		return api.UploadedFile{}, err
	}

	return api.UploadedFile{
		FileName:    name,
		DownloadURL: h.store.ResolveURL(name),
		FileSize:    int64(len(content)),
	}, nil
}

func readPart(part *multipart.FileHeader, limit int64) ([]byte, error) {
	if part.Size > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", errPayloadTooLarge, part.Filename, part.Size, limit)
	}
	f, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("opening part %s: %w", part.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrInvalidObject):
		return http.StatusBadRequest
	case errors.Is(err, errPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, api.ErrorResponse{Success: false, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
