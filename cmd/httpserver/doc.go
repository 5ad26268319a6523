// Package main (cmd/httpserver) runs the marketplace file server.
//
// The server stores uploads in a remote S3-compatible bucket (AWS S3, Backblaze
// B2, MinIO) while it is reachable and in a local directory otherwise. The first
// connectivity failure on the bucket moves all traffic to local storage until an
// operator calls POST /files/storage/retry. Objects written while on one backend
// are not copied to the other.
//
// Configuration is read from command-line flags, each of which also has an
// environment variable. A .env file in the working directory is loaded first.
// Remote credentials come from the S3 flags, the userinfo of --storage-remote-uri,
// or a Vault KV v2 secret when --vault-addr is set.
//
// Example usage against Backblaze B2:
//
//	marketplace-server --listen-addr=0.0.0.0:8080 \
//	    --storage-local-dir=/var/lib/marketplace/uploads \
//	    --s3-bucket=marketplace-uploads \
//	    --s3-region=us-west-004 \
//	    --s3-endpoint=https://s3.us-west-004.backblazeb2.com
//
// Example usage with local storage only:
//
//	marketplace-server --storage-local-dir=./uploads
package main
