package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lap-market/marketplace-backend/interfaces"
)

const defaultS3Region = "us-east-1"

// StorageBackendFactory creates storage backends from location URIs.
type StorageBackendFactory struct {
	log         *slog.Logger
	credentials *S3Credentials
}

// NewStorageBackendFactory creates a new factory. credentials, if not nil, are
// used for s3 locations that carry no user info.
func NewStorageBackendFactory(logger *slog.Logger, credentials *S3Credentials) *StorageBackendFactory {
	return &StorageBackendFactory{
		log:         logger,
		credentials: credentials,
	}
}

// StorageBackendFor creates a storage backend from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage (Backblaze B2, MinIO, SeaweedFS)
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (sf *StorageBackendFactory) StorageBackendFor(location interfaces.StorageBackendLocation) (interfaces.ObjectBackend, error) {
	switch {
	case location.IsS3():
		return sf.createS3Backend(location)
	case location.IsFile():
		return sf.createFileBackend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme: %s", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// ParseAndCreate parses uri and creates the backend it names.
func (sf *StorageBackendFactory) ParseAndCreate(uri string) (interfaces.ObjectBackend, error) {
	location, err := interfaces.NewStorageBackendLocation(uri)
	if err != nil {
		return nil, err
	}
	return sf.StorageBackendFor(location)
}

// createS3Backend creates an S3 or S3-compatible storage backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name?region=us-west-2&endpoint=https://s3.example.com&path_style=true
func (sf *StorageBackendFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.ObjectBackend, error) {
	sf.log.Debug("Creating S3 backend", slog.String("bucket", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in %s", interfaces.ErrInvalidLocationURI, location.Scheme+"://")
	}

	cfg := S3Config{
		Bucket:         location.Host,
		Region:         location.GetParam("region"),
		Endpoint:       location.GetParam("endpoint"),
		ForcePathStyle: location.GetParamBool("path_style"),
	}
	if cfg.Region == "" {
		cfg.Region = defaultS3Region
	}

	switch {
	case location.Auth != nil:
		cfg.AccessKeyID = location.Auth.Username()
		cfg.SecretAccessKey, _ = location.Auth.Password()
		sf.log.Debug("Using embedded S3 credentials")
	case sf.credentials != nil:
		cfg.AccessKeyID = sf.credentials.AccessKeyID
		cfg.SecretAccessKey = sf.credentials.SecretAccessKey
	}

	return NewS3Backend(cfg, sf.log)
}

// createFileBackend creates a file system storage backend.
// URI format: file:///absolute/path or file://./relative/path
func (sf *StorageBackendFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.ObjectBackend, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", location.String()))

	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI: %s", interfaces.ErrInvalidLocationURI, location.String())
	}

	return NewFileBackend(path, sf.log)
}
