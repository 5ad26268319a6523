package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/lap-market/marketplace-backend/api"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("file not found")

// FilesClient talks to the marketplace file API.
type FilesClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFilesClient creates a client for the server at baseURL, e.g.
// "http://localhost:8080". The optional timeout defaults to 60 seconds.
func NewFilesClient(baseURL string, timeout ...time.Duration) *FilesClient {
	clientTimeout := 60 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &FilesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// Upload sends a single file. An empty contentType lets the server treat the
// part as application/octet-stream.
func (c *FilesClient) Upload(ctx context.Context, filename, contentType string, content []byte) (*api.UploadResponse, error) {
	var resp api.UploadResponse
	if err := c.postMultipart(ctx, "/files/upload", "file", filename, contentType, content, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadImage sends a single image through the image endpoint and returns its
// download URL.
func (c *FilesClient) UploadImage(ctx context.Context, filename, contentType string, content []byte) (string, error) {
	var urls []string
	if err := c.postMultipart(ctx, "/files/upload/images", "files", filename, contentType, content, &urls); err != nil {
		return "", err
	}
	if len(urls) != 1 {
		return "", fmt.Errorf("expected one image URL, got %d", len(urls))
	}
	return urls[0], nil
}

// Download fetches the object bytes.
func (c *FilesClient) Download(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL("/files/download/", name), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (c *FilesClient) Delete(ctx context.Context, name string) (*api.DeleteResponse, error) {
	var resp api.DeleteResponse
	if err := c.doJSON(ctx, http.MethodDelete, c.objectURL("/files/delete/", name), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *FilesClient) Exists(ctx context.Context, name string) (bool, error) {
	var resp api.ExistsResponse
	if err := c.doJSON(ctx, http.MethodGet, c.objectURL("/files/exists/", name), &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// List returns up to maxCount names; maxCount <= 0 uses the server default.
func (c *FilesClient) List(ctx context.Context, maxCount int) (*api.ListResponse, error) {
	target := c.baseURL + "/files/list"
	if maxCount > 0 {
		target += "?maxCount=" + strconv.Itoa(maxCount)
	}

	var resp api.ListResponse
	if err := c.doJSON(ctx, http.MethodGet, target, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *FilesClient) Info(ctx context.Context, name string) (*api.InfoResponse, error) {
	var resp api.InfoResponse
	if err := c.doJSON(ctx, http.MethodGet, c.objectURL("/files/info/", name), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *FilesClient) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/files/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *FilesClient) StorageInfo(ctx context.Context) (*api.StorageInfoResponse, error) {
	var resp api.StorageInfoResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/files/storage/info", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetryRemote asks the server to probe its remote storage again.
func (c *FilesClient) RetryRemote(ctx context.Context) (*api.RetryResponse, error) {
	var resp api.RetryResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/files/storage/retry", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// objectURL escapes each segment of name and keeps the separating slashes.
func (c *FilesClient) objectURL(prefix, name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + path.Clean(prefix) + "/" + strings.Join(segments, "/")
}

func (c *FilesClient) doJSON(ctx context.Context, method, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *FilesClient) postMultipart(ctx context.Context, route, field, filename, contentType string, content []byte, out any) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

func (c *FilesClient) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	message := strings.TrimSpace(string(body))
	var apiErr api.ErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		message = apiErr.Error
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	}
	return fmt.Errorf("request failed with code %d: %s", resp.StatusCode, message)
}
