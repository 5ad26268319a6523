package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ImageContentTypePrefix is the content type prefix every image upload must carry.
const ImageContentTypePrefix = "image/"

var (
	// ErrObjectNotFound is returned when the requested object does not exist in the backend.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrBackendMisconfigured is returned when the backend's container (bucket or root
	// directory) cannot be resolved at all.
	ErrBackendMisconfigured = errors.New("storage backend misconfigured")

	// ErrInvalidObject is returned when an object is rejected before any I/O,
	// e.g. a non-image content type passed to an image upload.
	ErrInvalidObject = errors.New("invalid object")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// IsConnectivityError reports whether err means the backend itself could not serve
// the request, as opposed to a problem with the request.
func IsConnectivityError(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrBackendMisconfigured)
}

// ValidateImageContentType fails with ErrInvalidObject unless contentType is image/*.
func ValidateImageContentType(contentType string) error {
	if !strings.HasPrefix(contentType, ImageContentTypePrefix) {
		return fmt.Errorf("%w: content type %q is not an image", ErrInvalidObject, contentType)
	}
	return nil
}

// ObjectHandle is a backend's reference to one stored object.
// It is implemented only by LocalHandle and RemoteHandle.
type ObjectHandle interface {
	// ID returns the opaque backend identifier of the object.
	ID() string

	isObjectHandle()
}

// LocalHandle identifies an object stored on the local disk.
type LocalHandle struct {
	Path string
}

func (h LocalHandle) ID() string    { return h.Path }
func (LocalHandle) isObjectHandle() {}

// RemoteHandle identifies one revision of an object in the remote bucket.
// Deleting a remote object requires its VersionID.
type RemoteHandle struct {
	Bucket    string
	Key       string
	VersionID string
	ETag      string
}

func (h RemoteHandle) ID() string    { return h.VersionID }
func (RemoteHandle) isObjectHandle() {}

// ObjectVersion is what a backend reports about a stored object.
type ObjectVersion struct {
	Name        string
	Size        int64
	ContentType string
	Metadata    map[string]string
	Handle      ObjectHandle
}

// ID returns the backend identifier of the version, or "" if it has no handle.
func (v ObjectVersion) ID() string {
	if v.Handle == nil {
		return ""
	}
	return v.Handle.ID()
}

// ObjectBackend stores named binary objects.
type ObjectBackend interface {
	// Upload stores data under name. An empty name makes the backend generate one.
	Upload(ctx context.Context, data []byte, contentType, name string) (ObjectVersion, error)

	// UploadWithMetadata stores data along with custom key/value fields.
	UploadWithMetadata(ctx context.Context, data []byte, contentType, name string, metadata map[string]string) (ObjectVersion, error)

	// UploadImage is Upload restricted to image/* content types.
	UploadImage(ctx context.Context, data []byte, contentType, name string) (ObjectVersion, error)

	// Download returns the full content of the object.
	Download(ctx context.Context, name string) ([]byte, error)

	// Delete removes the object. Deleting an absent object is a no-op.
	Delete(ctx context.Context, name string) error

	// Exists reports whether the object is present.
	Exists(ctx context.Context, name string) (bool, error)

	// List returns up to maxCount object names in backend-native order.
	List(ctx context.Context, maxCount int) ([]string, error)

	// Metadata returns descriptive fields of the object. It returns an empty map
	// when nothing is known about the object.
	Metadata(ctx context.Context, name string) (map[string]string, error)

	// Probe checks that the backend can be reached, re-resolving any cached
	// container handle, and returns a short description of it.
	Probe(ctx context.Context) (string, error)

	// Info describes the backend using cached state where possible.
	Info(ctx context.Context) (string, error)

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   *url.Userinfo
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   parsed.User,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// IsFile checks if this is a file system storage location.
func (loc StorageBackendLocation) IsFile() bool {
	return loc.Scheme == "file"
}

// IsS3 checks if this is an S3 storage location.
func (loc StorageBackendLocation) IsS3() bool {
	return loc.Scheme == "s3"
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}
