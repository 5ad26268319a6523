package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/lap-market/marketplace-backend/interfaces"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
)

const (
	traceName = "S3-Backend"

	// versionScanLimit bounds the listing scanned when looking up an object's current version.
	versionScanLimit = 100

	// listPageSize is the largest page ListObjectsV2 returns.
	listPageSize = 1000

	defaultContentType = "application/octet-stream"
)

// S3Config holds the settings for an S3-compatible bucket, such as Backblaze B2's S3 API.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// bucketHandle is the resolved remote container.
type bucketHandle struct {
	Name      string
	CreatedAt time.Time
}

func (h *bucketHandle) String() string {
	return fmt.Sprintf("Bucket: %s (created: %s)", h.Name, h.CreatedAt.UTC().Format(time.RFC3339))
}

// S3Backend implements a storage backend on Amazon S3 or a compatible service.
// The bucket is resolved lazily on first use and memoized; Probe resolves it again.
type S3Backend struct {
	client      s3iface.S3API
	bucketName  string
	bucket      atomic.Pointer[bucketHandle]
	log         *slog.Logger
	locationURI string
}

// NewS3Backend creates a new S3 storage backend. Without an access key the SDK's
// default credential chain is used.
func NewS3Backend(cfg S3Config, log *slog.Logger) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: empty bucket name", interfaces.ErrBackendMisconfigured)
	}

	awsCfg := aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		log.Warn("No S3 credentials provided - falling back to the default AWS credential chain")
	}

	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return newS3BackendWithClient(s3.New(sess), cfg, log), nil
}

func newS3BackendWithClient(client s3iface.S3API, cfg S3Config, log *slog.Logger) *S3Backend {
	return &S3Backend{
		client:      client,
		bucketName:  cfg.Bucket,
		log:         log,
		locationURI: s3LocationURI(cfg),
	}
}

func s3LocationURI(cfg S3Config) string {
	auth := ""
	if cfg.AccessKeyID != "" {
		auth = cfg.AccessKeyID + ":***@"
	}
	uri := fmt.Sprintf("s3://%s%s?region=%s", auth, cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", cfg.Endpoint)
	}
	if cfg.ForcePathStyle {
		uri += "&path_style=true"
	}
	return uri
}

// Upload stores data under name.
func (b *S3Backend) Upload(ctx context.Context, data []byte, contentType, name string) (interfaces.ObjectVersion, error) {
	return b.UploadWithMetadata(ctx, data, contentType, name, nil)
}

// UploadWithMetadata stores data with custom metadata fields.
func (b *S3Backend) UploadWithMetadata(ctx context.Context, data []byte, contentType, name string, metadata map[string]string) (interfaces.ObjectVersion, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "UploadObject", trace.WithAttributes(attribute.String("object.name", name)))
	defer span.End()

	start := time.Now()

	bucket, err := b.resolveBucket(ctx)
	if err != nil {
		span.RecordError(err)
		return interfaces.ObjectVersion{}, err
	}

	if name == "" {
		name = generatedName(contentType)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket.Name),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if len(metadata) > 0 {
		input.Metadata = aws.StringMap(metadata)
	}

	out, err := b.client.PutObjectWithContext(ctx, input)
	if err != nil {
		err = mapS3Error(err)
		span.RecordError(err)
		b.log.Error("Failed to upload object to S3",
			slog.String("bucket", bucket.Name),
			slog.String("key", name),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return interfaces.ObjectVersion{}, fmt.Errorf("failed to upload object to S3: %w", err)
	}

	b.log.Info("Uploaded object to S3",
		slog.String("bucket", bucket.Name),
		slog.String("key", name),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return interfaces.ObjectVersion{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Metadata:    metadata,
		Handle: interfaces.RemoteHandle{
			Bucket:    bucket.Name,
			Key:       name,
			VersionID: aws.StringValue(out.VersionId),
			ETag:      strings.Trim(aws.StringValue(out.ETag), `"`),
		},
	}, nil
}

// UploadImage validates the content type before any request is made.
func (b *S3Backend) UploadImage(ctx context.Context, data []byte, contentType, name string) (interfaces.ObjectVersion, error) {
	if err := interfaces.ValidateImageContentType(contentType); err != nil {
		return interfaces.ObjectVersion{}, err
	}
	return b.Upload(ctx, data, contentType, name)
}

// Download reads the whole object into memory.
// Returns ErrObjectNotFound if the object doesn't exist.
func (b *S3Backend) Download(ctx context.Context, name string) ([]byte, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "DownloadObject", trace.WithAttributes(attribute.String("object.name", name)))
	defer span.End()

	start := time.Now()

	bucket, err := b.resolveBucket(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket.Name),
		Key:    aws.String(name),
	})
	if err != nil {
		err = mapS3Error(err)
		span.RecordError(err)
		if errors.Is(err, interfaces.ErrObjectNotFound) {
			b.log.Debug("Object not found in S3",
				slog.String("bucket", bucket.Name),
				slog.String("key", name),
				slog.Duration("duration", time.Since(start)))
			return nil, err
		}

		b.log.Error("Failed to get object from S3",
			slog.String("bucket", bucket.Name),
			slog.String("key", name),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		span.RecordError(err)
		b.log.Error("Failed to read object body",
			slog.String("bucket", bucket.Name),
			slog.String("key", name),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: failed to read object body: %v", ctxErr, err)
		}
		return nil, fmt.Errorf("%w: failed to read object body: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Fetched object from S3",
		slog.String("bucket", bucket.Name),
		slog.String("key", name),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Delete removes the current version of the object. A missing object is logged and ignored.
func (b *S3Backend) Delete(ctx context.Context, name string) error {
	ctx, span := otel.Tracer(traceName).Start(ctx, "DeleteObject", trace.WithAttributes(attribute.String("object.name", name)))
	defer span.End()

	version, err := b.currentVersion(ctx, name)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if version == nil {
		b.log.Warn("Object not found for deletion",
			slog.String("bucket", b.bucketName),
			slog.String("key", name))
		return nil
	}

	_, err = b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket:    aws.String(b.bucketName),
		Key:       aws.String(name),
		VersionId: version.VersionId,
	})
	if err != nil {
		err = mapS3Error(err)
		span.RecordError(err)
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	b.log.Info("Deleted object from S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", name),
		slog.String("version", aws.StringValue(version.VersionId)))
	return nil
}

// Exists reports whether the object has a live current version.
func (b *S3Backend) Exists(ctx context.Context, name string) (bool, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "ObjectExists", trace.WithAttributes(attribute.String("object.name", name)))
	defer span.End()

	version, err := b.currentVersion(ctx, name)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return version != nil, nil
}

// List pages through the bucket until maxCount keys are collected.
func (b *S3Backend) List(ctx context.Context, maxCount int) ([]string, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "ListObjects")
	defer span.End()

	if maxCount <= 0 {
		maxCount = DefaultListCount
	}

	bucket, err := b.resolveBucket(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	names := []string{}
	var token *string
	for len(names) < maxCount {
		out, err := b.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket.Name),
			ContinuationToken: token,
			MaxKeys:           aws.Int64(int64(min(maxCount-len(names), listPageSize))),
		})
		if err != nil {
			err = mapS3Error(err)
			span.RecordError(err)
			return nil, fmt.Errorf("failed to list objects in S3: %w", err)
		}

		for _, obj := range out.Contents {
			names = append(names, aws.StringValue(obj.Key))
			if len(names) >= maxCount {
				break
			}
		}

		if !aws.BoolValue(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}

	span.SetAttributes(attribute.Int("object.count", len(names)))
	return names, nil
}

// Metadata returns the custom metadata declared on the object's current version.
// Metadata keys are lower-cased.
func (b *S3Backend) Metadata(ctx context.Context, name string) (map[string]string, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "ObjectMetadata", trace.WithAttributes(attribute.String("object.name", name)))
	defer span.End()

	metadata := map[string]string{}

	version, err := b.currentVersion(ctx, name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if version == nil {
		return metadata, nil
	}

	out, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket:    aws.String(b.bucketName),
		Key:       aws.String(name),
		VersionId: version.VersionId,
	})
	if err != nil {
		err = mapS3Error(err)
		if errors.Is(err, interfaces.ErrObjectNotFound) {
			return metadata, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to head object in S3: %w", err)
	}

	for k, v := range out.Metadata {
		metadata[strings.ToLower(k)] = aws.StringValue(v)
	}
	return metadata, nil
}

// Probe resolves the bucket again, replacing the memoized handle.
func (b *S3Backend) Probe(ctx context.Context) (string, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "ProbeBucket")
	defer span.End()

	bucket, err := b.lookupBucket(ctx)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return bucket.String(), nil
}

// Info describes the memoized bucket, resolving it first if needed.
func (b *S3Backend) Info(ctx context.Context) (string, error) {
	bucket, err := b.resolveBucket(ctx)
	if err != nil {
		return "", err
	}
	return bucket.String(), nil
}

// Name returns a unique identifier for this storage backend.
func (b *S3Backend) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *S3Backend) LocationURI() string {
	return b.locationURI
}

func (b *S3Backend) resolveBucket(ctx context.Context) (*bucketHandle, error) {
	if h := b.bucket.Load(); h != nil {
		return h, nil
	}
	return b.lookupBucket(ctx)
}

// lookupBucket lists the buckets visible to the credentials and picks the configured one.
func (b *S3Backend) lookupBucket(ctx context.Context) (*bucketHandle, error) {
	start := time.Now()
	b.log.Info("Initializing bucket", slog.String("bucket", b.bucketName))

	out, err := b.client.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
	if err != nil {
		err = mapS3Error(err)
		b.log.Warn("S3 backend unavailable",
			slog.String("bucket", b.bucketName),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	for _, bkt := range out.Buckets {
		if aws.StringValue(bkt.Name) != b.bucketName {
			continue
		}
		h := &bucketHandle{
			Name:      b.bucketName,
			CreatedAt: aws.TimeValue(bkt.CreationDate),
		}
		b.bucket.Store(h)
		b.log.Info("Bucket initialized",
			slog.String("bucket", h.Name),
			slog.Duration("duration", time.Since(start)))
		return h, nil
	}

	return nil, fmt.Errorf("%w: bucket not found: %s", interfaces.ErrBackendMisconfigured, b.bucketName)
}

// currentVersion scans a name-prefixed version listing for the latest live
// version of name. It returns nil when the object is absent or deleted.
func (b *S3Backend) currentVersion(ctx context.Context, name string) (*s3.ObjectVersion, error) {
	bucket, err := b.resolveBucket(ctx)
	if err != nil {
		return nil, err
	}

	out, err := b.client.ListObjectVersionsWithContext(ctx, &s3.ListObjectVersionsInput{
		Bucket:  aws.String(bucket.Name),
		Prefix:  aws.String(name),
		MaxKeys: aws.Int64(versionScanLimit),
	})
	if err != nil {
		err = mapS3Error(err)
		if errors.Is(err, interfaces.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list object versions: %w", err)
	}

	for _, marker := range out.DeleteMarkers {
		if aws.StringValue(marker.Key) == name && aws.BoolValue(marker.IsLatest) {
			return nil, nil
		}
	}

	var found *s3.ObjectVersion
	for _, v := range out.Versions {
		if aws.StringValue(v.Key) != name {
			continue
		}
		if aws.BoolValue(v.IsLatest) {
			return v, nil
		}
		if found == nil {
			found = v
		}
	}
	return found, nil
}

// mapS3Error translates SDK errors into the storage error classes. A request
// aborted by its caller's context keeps the context error and says nothing
// about the remote's reachability.
func mapS3Error(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case request.CanceledErrorCode:
			if errors.Is(aerr.OrigErr(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
			}
			return fmt.Errorf("%w: %v", context.Canceled, err)
		case s3.ErrCodeNoSuchKey, "NotFound", "NoSuchVersion":
			return fmt.Errorf("%w: %v", interfaces.ErrObjectNotFound, err)
		case s3.ErrCodeNoSuchBucket:
			return fmt.Errorf("%w: %v", interfaces.ErrBackendMisconfigured, err)
		}
	}

	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %v", interfaces.ErrObjectNotFound, err)
	}

	return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
}
