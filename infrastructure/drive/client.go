package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gdrive-backup/domain/remote"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"

	// DefaultUploadURL is the media upload endpoint for resumable sessions
	DefaultUploadURL = "https://www.googleapis.com/upload/drive/v3/files"
)

// DriveService defines the interface for Google Drive API operations
// This allows mocking the Google Drive API in tests
type DriveService interface {
	ListFiles(ctx context.Context, query, fields, orderBy string, pageSize int64) ([]*drive.File, error)
	GetAbout(ctx context.Context, fields string) (*drive.About, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// GoogleDriveService is the production implementation using the Google Drive API
type GoogleDriveService struct {
	service *drive.Service
}

// ListFiles lists one page of files matching the query
func (s *GoogleDriveService) ListFiles(ctx context.Context, query, fields, orderBy string, pageSize int64) ([]*drive.File, error) {
	r, err := s.service.Files.List().
		Q(query).
		Fields(googleapi.Field("files(" + fields + ")")).
		OrderBy(orderBy).
		PageSize(pageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return r.Files, nil
}

// GetAbout returns account information
func (s *GoogleDriveService) GetAbout(ctx context.Context, fields string) (*drive.About, error) {
	return s.service.About.Get().Fields(googleapi.Field(fields)).Context(ctx).Do()
}

// DeleteFile permanently deletes a file, bypassing the trash
func (s *GoogleDriveService) DeleteFile(ctx context.Context, fileID string) error {
	return s.service.Files.Delete(fileID).Context(ctx).Do()
}

// Client implements remote.Store using Google Drive
type Client struct {
	driveService DriveService
	httpClient   *http.Client
	uploadURL    string
	folderID     string
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithDriveService sets a custom drive service (for testing)
func WithDriveService(svc DriveService) ClientOption {
	return func(c *Client) {
		c.driveService = svc
	}
}

// WithUploadURL overrides the resumable upload endpoint (for testing)
func WithUploadURL(url string) ClientOption {
	return func(c *Client) {
		c.uploadURL = url
	}
}

// WithFolderID restricts listing to, and places uploads in, the given folder
func WithFolderID(id string) ClientOption {
	return func(c *Client) {
		c.folderID = id
	}
}

// NewClient creates a new Google Drive client on top of an authorised HTTP client.
// If no drive service is provided, it initializes a real one.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient: httpClient,
		uploadURL:  DefaultUploadURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.driveService == nil {
		srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("unable to create drive service: %w", err)
		}
		c.driveService = &GoogleDriveService{service: srv}
	}

	return c, nil
}

// GetQuota implements remote.Store
func (c *Client) GetQuota(ctx context.Context) (remote.Quota, error) {
	about, err := c.driveService.GetAbout(ctx, "storageQuota")
	if err != nil {
		return remote.Quota{}, fmt.Errorf("%w: %v", remote.ErrQuotaUnavailable, err)
	}
	if about.StorageQuota == nil {
		return remote.Quota{}, fmt.Errorf("%w: response has no storage quota", remote.ErrQuotaUnavailable)
	}

	q := about.StorageQuota
	return remote.Quota{
		TotalBytes: q.Limit,
		UsedBytes:  q.Usage,
		Unlimited:  q.Limit == 0, // limit is omitted for unlimited accounts
	}, nil
}

// ListObjects implements remote.Store
func (c *Client) ListObjects(ctx context.Context, pageSize int) ([]remote.Object, error) {
	query := fmt.Sprintf("trashed = false and mimeType != '%s'", folderMimeType)
	if c.folderID != "" {
		query += fmt.Sprintf(" and '%s' in parents", c.folderID)
	}

	files, err := c.driveService.ListFiles(ctx, query, "id, name, size, createdTime", "createdTime", int64(pageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	result := make([]remote.Object, 0, len(files))
	for _, f := range files {
		result = append(result, remote.Object{
			ID:          f.Id,
			Name:        f.Name,
			Size:        f.Size,
			CreatedTime: parseTime(f.CreatedTime),
		})
	}
	return result, nil
}

// DeleteObject implements remote.Store
func (c *Client) DeleteObject(ctx context.Context, id string) error {
	if err := c.driveService.DeleteFile(ctx, id); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return fmt.Errorf("%w: %s", remote.ErrObjectNotFound, id)
		}
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	return nil
}

// CreateUploadSession implements remote.Store
func (c *Client) CreateUploadSession(ctx context.Context, name string, size int64) (remote.UploadSession, error) {
	var parents []string
	if c.folderID != "" {
		parents = []string{c.folderID}
	}
	session, err := startResumable(ctx, c.httpClient, c.uploadURL, &drive.File{Name: name, Parents: parents}, size)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// parseTime parses a Google Drive timestamp string
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Ensure Client implements remote.Store
var _ remote.Store = (*Client)(nil)
