/*
Package api holds the configuration and wire types shared by the marketplace
file server and its clients.

Subpackages:

  - files   - chi handlers for the /files routes
  - clients - Go client for the same routes, used by cmd/filesctl

# Wire format

Every JSON response carries a success field. Failures use ErrorResponse:

	{"success": false, "error": "file not found: item_1.jpg"}

Status codes follow the storage error kinds: a missing object is 404, an
invalid object (bad name, non-image content type) is 400, an oversized upload
is 413 and anything else is 500. Downloads are raw bytes sent as
application/octet-stream attachments.

# Upload limits

UploadLimits bounds single files (10 MiB), images (5 MiB) and the whole
multipart body (50 MiB). Zero values select those defaults.
*/
package api
