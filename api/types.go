package api

// ErrorResponse is returned by the file API whenever a request fails.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// UploadedFile describes a single stored object.
type UploadedFile struct {
	FileName    string `json:"fileName"`
	DownloadURL string `json:"downloadUrl"`
	FileSize    int64  `json:"fileSize"`
}

// UploadResponse is returned by POST /files/upload.
type UploadResponse struct {
	Success bool `json:"success"`
	UploadedFile
}

// MultipleUploadResponse is returned by POST /files/upload/multiple.
// Files is keyed by the client's original filename.
type MultipleUploadResponse struct {
	Success bool                    `json:"success"`
	Files   map[string]UploadedFile `json:"files"`
}

// AvatarResponse is returned by POST /files/upload/avatar/{userID}.
type AvatarResponse struct {
	Success   bool   `json:"success"`
	FileName  string `json:"fileName"`
	AvatarURL string `json:"avatarUrl"`
}

// DeleteResponse is returned by DELETE /files/delete/*.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ExistsResponse is returned by GET /files/exists/*.
type ExistsResponse struct {
	Success  bool   `json:"success"`
	Exists   bool   `json:"exists"`
	FileName string `json:"fileName"`
}

// ListResponse is returned by GET /files/list.
type ListResponse struct {
	Success bool     `json:"success"`
	Files   []string `json:"files"`
	Count   int      `json:"count"`
}

// InfoResponse is returned by GET /files/info/*.
type InfoResponse struct {
	Success  bool              `json:"success"`
	FileName string            `json:"fileName"`
	Metadata map[string]string `json:"metadata"`
}

// StorageInfoResponse is returned by GET /files/storage/info.
type StorageInfoResponse struct {
	Success         bool   `json:"success"`
	StorageType     string `json:"storageType"`
	RemoteAvailable bool   `json:"remoteAvailable"`
	Info            string `json:"info"`
}

// RetryResponse is returned by POST /files/storage/retry.
type RetryResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	RemoteAvailable bool   `json:"remoteAvailable"`
	CurrentStorage  string `json:"currentStorage"`
}

// HealthResponse mirrors storage.HealthStatus for clients that do not import
// the storage package.
type HealthResponse struct {
	CurrentStorage  string `json:"currentStorage"`
	RemoteAvailable bool   `json:"remoteAvailable"`
	StorageInfo     string `json:"storageInfo"`
	Healthy         bool   `json:"healthy"`
	Error           string `json:"error,omitempty"`
}
