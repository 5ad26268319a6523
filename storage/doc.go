// Package storage stores marketplace objects (item photos, avatars) on a remote
// S3-compatible bucket with a local-disk fallback.
//
// # Backends
//
//   - FileBackend: plain files below a root directory, created on first upload
//   - S3Backend: an S3 or S3-compatible bucket (Backblaze B2, MinIO, SeaweedFS)
//     through aws-sdk-go; the bucket is resolved once and memoized
//
// Both implement interfaces.ObjectBackend and can be created from location URIs:
//
//	file:///var/lib/marketplace/uploads
//	s3://KEY:SECRET@bucket-name?region=us-west-004&endpoint=https://s3.us-west-004.backblazeb2.com
//
// Bucket credentials may also be read from a Vault KV v2 secret with
// LoadS3CredentialsFromVault.
//
// # Facade
//
// Facade is what the rest of the application talks to. It starts on the remote
// backend if the startup probe succeeds. The first connectivity failure
// (ErrBackendUnavailable or ErrBackendMisconfigured) on the remote backend demotes
// it: the call is re-issued on local disk and every later call goes to local
// disk until RetryRemote succeeds. Other errors (ErrObjectNotFound,
// ErrInvalidObject) are returned as they are and leave the state alone.
//
// Nothing is copied between backends, so objects written to one are not visible
// through the other.
//
// # URLs
//
// Clients are only ever given application URLs of the form
// /files/download/{name}; the bucket stays private.
package storage
