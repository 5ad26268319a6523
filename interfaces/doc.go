// Package interfaces defines the storage contract shared by the marketplace
// backend, separating interface definitions from implementations.
//
// # Storage Interfaces
//
// ObjectBackend: Stores named binary objects (item photos, avatars). Implemented by
// the local disk backend and the remote S3-compatible backend in package storage.
//
// # Types
//
//   - ObjectVersion: what a backend reports about a stored object
//   - ObjectHandle: backend reference to an object, either LocalHandle (a path) or
//     RemoteHandle (bucket, key and revision id)
//   - StorageBackendLocation: parsed backend URI (file://, s3://)
//
// # Error Types
//
// Standard errors returned by storage operations:
//
//   - ErrObjectNotFound: object is absent
//   - ErrBackendUnavailable: backend could not be reached
//   - ErrBackendMisconfigured: bucket or root directory cannot be resolved
//   - ErrInvalidObject: request rejected before any I/O
//   - ErrInvalidLocationURI: storage location URI is malformed
//
// Components should depend on interfaces rather than concrete implementations.
package interfaces
