// Package s3 implements remote.Store on an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gdrive-backup/domain/remote"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MinPartSize is the smallest part S3 accepts, except for the last one
const MinPartSize = 5 * 1024 * 1024

// API is the subset of *s3.Client used by Store
type API interface {
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Config holds S3-specific configuration
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional custom endpoint for S3-compatible services
	Prefix          string // Optional key prefix
	AccessKeyID     string // Empty uses the default credential chain
	SecretAccessKey string
	CapacityBytes   int64 // Storage budget; 0 means unlimited
	UsePathStyle    bool
}

// Store implements remote.Store. S3 has no account quota, so the total is the
// configured capacity and used bytes is the size of everything under the prefix.
type Store struct {
	api      API
	bucket   string
	prefix   string
	capacity int64
}

// StoreOption is a functional option for configuring Store
type StoreOption func(*Store)

// WithAPI sets a custom S3 API (for testing)
func WithAPI(api API) StoreOption {
	return func(s *Store) {
		s.api = api
	}
}

// NewStore creates a new S3 store
func NewStore(ctx context.Context, cfg Config, opts ...StoreOption) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	s := &Store{
		bucket:   cfg.Bucket,
		prefix:   normalizePrefix(cfg.Prefix),
		capacity: cfg.CapacityBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.api == nil {
		client, err := newClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.api = client
	}

	return s, nil
}

func newClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// GetQuota implements remote.Store
func (s *Store) GetQuota(ctx context.Context) (remote.Quota, error) {
	objects, err := s.listAll(ctx)
	if err != nil {
		return remote.Quota{}, fmt.Errorf("%w: %v", remote.ErrQuotaUnavailable, err)
	}

	var used int64
	for _, o := range objects {
		used += o.Size
	}

	return remote.Quota{
		TotalBytes: s.capacity,
		UsedBytes:  used,
		Unlimited:  s.capacity == 0,
	}, nil
}

// ListObjects implements remote.Store. All keys are listed since S3 cannot sort server-side.
func (s *Store) ListObjects(ctx context.Context, pageSize int) ([]remote.Object, error) {
	objects, err := s.listAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].CreatedTime.Before(objects[j].CreatedTime)
	})

	if pageSize > 0 && len(objects) > pageSize {
		objects = objects[:pageSize]
	}
	return objects, nil
}

func (s *Store) listAll(ctx context.Context) ([]remote.Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	var objects []remote.Object
	paginator := s3.NewListObjectsV2Paginator(s.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, remote.Object{
				ID:          key,
				Name:        strings.TrimPrefix(key, s.prefix),
				Size:        aws.ToInt64(obj.Size),
				CreatedTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// DeleteObject implements remote.Store
func (s *Store) DeleteObject(ctx context.Context, id string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %s", remote.ErrObjectNotFound, id)
		}
		return fmt.Errorf("failed to delete object %s: %w", id, err)
	}
	return nil
}

// CreateUploadSession implements remote.Store
func (s *Store) CreateUploadSession(ctx context.Context, name string, size int64) (remote.UploadSession, error) {
	key := s.prefix + name
	out, err := s.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart upload: %w", err)
	}

	return &multipartSession{
		api:      s.api,
		bucket:   s.bucket,
		key:      key,
		uploadID: aws.ToString(out.UploadId),
		total:    size,
	}, nil
}

// multipartSession sends one part per chunk and completes the upload once every byte is sent
type multipartSession struct {
	api      API
	bucket   string
	key      string
	uploadID string
	total    int64
	sent     int64
	parts    []types.CompletedPart
	closed   bool
}

// UploadChunk implements remote.UploadSession
func (m *multipartSession) UploadChunk(ctx context.Context, chunk []byte) (bool, error) {
	if m.closed {
		return false, remote.ErrSessionClosed
	}

	partNumber := int32(len(m.parts) + 1)
	out, err := m.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key),
		UploadId:      aws.String(m.uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(chunk),
		ContentLength: aws.Int64(int64(len(chunk))),
	})
	if err != nil {
		return false, fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}

	m.parts = append(m.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	m.sent += int64(len(chunk))
	if m.sent < m.total {
		return false, nil
	}

	_, err = m.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(m.bucket),
		Key:      aws.String(m.key),
		UploadId: aws.String(m.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: m.parts,
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	m.closed = true
	return true, nil
}

// Abort implements remote.UploadSession
func (m *multipartSession) Abort(ctx context.Context) error {
	if m.closed {
		return nil
	}
	m.closed = true

	_, err := m.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(m.bucket),
		Key:      aws.String(m.key),
		UploadId: aws.String(m.uploadID),
	})
	if err != nil {
		return fmt.Errorf("failed to abort multipart upload: %w", err)
	}
	return nil
}

func normalizePrefix(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

var (
	_ remote.Store         = (*Store)(nil)
	_ remote.UploadSession = (*multipartSession)(nil)
	_ API                  = (*s3.Client)(nil)
)
