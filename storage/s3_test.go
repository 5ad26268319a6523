package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/lap-market/marketplace-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockS3Client implements the subset of s3iface.S3API used by S3Backend.
type mockS3Client struct {
	s3iface.S3API
	mock.Mock
}

func (m *mockS3Client) ListBucketsWithContext(ctx aws.Context, input *s3.ListBucketsInput, _ ...request.Option) (*s3.ListBucketsOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*s3.ListBucketsOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) ListObjectVersionsWithContext(ctx aws.Context, input *s3.ListObjectVersionsInput, _ ...request.Option) (*s3.ListObjectVersionsOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*s3.ListObjectVersionsOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) DeleteObjectWithContext(ctx aws.Context, input *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) ListObjectsV2WithContext(ctx aws.Context, input *s3.ListObjectsV2Input, _ ...request.Option) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *mockS3Client) HeadObjectWithContext(ctx aws.Context, input *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

var bucketCreated = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestS3Backend(t *testing.T) (*S3Backend, *mockS3Client) {
	t.Helper()
	client := &mockS3Client{}
	b := newS3BackendWithClient(client, S3Config{Bucket: "photos", Region: "us-west-004"}, testLogger())
	return b, client
}

func expectBuckets(client *mockS3Client, names ...string) *mock.Call {
	out := &s3.ListBucketsOutput{}
	for _, name := range names {
		out.Buckets = append(out.Buckets, &s3.Bucket{Name: aws.String(name), CreationDate: aws.Time(bucketCreated)})
	}
	return client.On("ListBucketsWithContext", mock.Anything, mock.Anything).Return(out, nil)
}

func versionsInput(name string) interface{} {
	return mock.MatchedBy(func(in *s3.ListObjectVersionsInput) bool {
		return aws.StringValue(in.Bucket) == "photos" &&
			aws.StringValue(in.Prefix) == name &&
			aws.Int64Value(in.MaxKeys) == versionScanLimit
	})
}

func TestS3Backend_BucketResolvedOnce(t *testing.T) {
	b, client := newTestS3Backend(t)
	ctx := context.Background()
	expectBuckets(client, "other", "photos").Once()

	client.On("PutObjectWithContext", mock.Anything, mock.Anything).
		Return(&s3.PutObjectOutput{VersionId: aws.String("v1"), ETag: aws.String(`"etag"`)}, nil).Twice()

	_, err := b.Upload(ctx, []byte("a"), "image/png", "a.png")
	require.NoError(t, err)
	_, err = b.Upload(ctx, []byte("b"), "image/png", "b.png")
	require.NoError(t, err)

	client.AssertNumberOfCalls(t, "ListBucketsWithContext", 1)

	// Probe always resolves again.
	expectBuckets(client, "photos").Once()
	info, err := b.Probe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bucket: photos (created: 2024-01-02T03:04:05Z)", info)
	client.AssertNumberOfCalls(t, "ListBucketsWithContext", 2)

	info, err = b.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bucket: photos (created: 2024-01-02T03:04:05Z)", info)
	client.AssertNumberOfCalls(t, "ListBucketsWithContext", 2)
}

func TestS3Backend_BucketMissing(t *testing.T) {
	b, client := newTestS3Backend(t)
	expectBuckets(client, "other")

	_, err := b.Probe(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrBackendMisconfigured)

	_, err = b.Download(context.Background(), "a.png")
	assert.ErrorIs(t, err, interfaces.ErrBackendMisconfigured)
	assert.Nil(t, b.bucket.Load())
}

func TestS3Backend_ListBucketsFailure(t *testing.T) {
	b, client := newTestS3Backend(t)
	client.On("ListBucketsWithContext", mock.Anything, mock.Anything).
		Return(nil, awserr.New(request.ErrCodeRequestError, "send request failed", errors.New("dial tcp: connection refused")))

	_, err := b.Probe(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestS3Backend_UploadWithMetadata(t *testing.T) {
	b, client := newTestS3Backend(t)
	expectBuckets(client, "photos")

	client.On("PutObjectWithContext", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return aws.StringValue(in.Bucket) == "photos" &&
			aws.StringValue(in.Key) == "item.jpg" &&
			aws.StringValue(in.ContentType) == "image/jpeg" &&
			aws.StringValue(in.Metadata["width"]) == "640" &&
			bytes.Equal(body, []byte("jpeg"))
	})).Return(&s3.PutObjectOutput{VersionId: aws.String("4_z27c88"), ETag: aws.String(`"abc"`)}, nil).Once()

	version, err := b.UploadWithMetadata(context.Background(), []byte("jpeg"), "image/jpeg", "item.jpg", map[string]string{"width": "640"})
	require.NoError(t, err)
	assert.Equal(t, "item.jpg", version.Name)
	assert.Equal(t, int64(4), version.Size)
	assert.Equal(t, "4_z27c88", version.ID())
	assert.Equal(t, interfaces.RemoteHandle{Bucket: "photos", Key: "item.jpg", VersionID: "4_z27c88", ETag: "abc"}, version.Handle)

	client.AssertExpectations(t)
}

func TestS3Backend_UploadDefaultsContentType(t *testing.T) {
	b, client := newTestS3Backend(t)
	expectBuckets(client, "photos")

	client.On("PutObjectWithContext", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.StringValue(in.ContentType) == defaultContentType && in.Metadata == nil
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	_, err := b.Upload(context.Background(), []byte("x"), "", "x.bin")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestS3Backend_UploadImageValidatesBeforeIO(t *testing.T) {
	b, client := newTestS3Backend(t)

	_, err := b.UploadImage(context.Background(), []byte("x"), "text/plain", "x.txt")
	assert.ErrorIs(t, err, interfaces.ErrInvalidObject)
	assert.Empty(t, client.Calls)
}

func TestS3Backend_Download(t *testing.T) {
	b, client := newTestS3Backend(t)
	expectBuckets(client, "photos")

	client.On("GetObjectWithContext", mock.Anything, &s3.GetObjectInput{Bucket: aws.String("photos"), Key: aws.String("a.jpg")}).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("content")))}, nil).Once()

	data, err := b.Download(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)
}

func TestS3Backend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect error
	}{
		{
			name:   "no such key",
			err:    awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil),
			expect: interfaces.ErrObjectNotFound,
		},
		{
			name:   "head not found",
			err:    awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), http.StatusNotFound, "req"),
			expect: interfaces.ErrObjectNotFound,
		},
		{
			name:   "bare 404",
			err:    awserr.NewRequestFailure(awserr.New("Unknown", "", nil), http.StatusNotFound, "req"),
			expect: interfaces.ErrObjectNotFound,
		},
		{
			name:   "no such bucket",
			err:    awserr.NewRequestFailure(awserr.New(s3.ErrCodeNoSuchBucket, "gone", nil), http.StatusNotFound, "req"),
			expect: interfaces.ErrBackendMisconfigured,
		},
		{
			name:   "access denied",
			err:    awserr.NewRequestFailure(awserr.New("AccessDenied", "denied", nil), http.StatusForbidden, "req"),
			expect: interfaces.ErrBackendUnavailable,
		},
		{
			name:   "network",
			err:    awserr.New(request.ErrCodeRequestError, "send request failed", errors.New("timeout")),
			expect: interfaces.ErrBackendUnavailable,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			expect: interfaces.ErrBackendUnavailable,
		},
		{
			name:   "request canceled",
			err:    awserr.New(request.CanceledErrorCode, "request context canceled", context.Canceled),
			expect: context.Canceled,
		},
		{
			name:   "request deadline",
			err:    awserr.New(request.CanceledErrorCode, "request context canceled", context.DeadlineExceeded),
			expect: context.DeadlineExceeded,
		},
		{
			name:   "bare context error",
			err:    context.Canceled,
			expect: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client := newTestS3Backend(t)
			expectBuckets(client, "photos")
			client.On("GetObjectWithContext", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			_, err := b.Download(context.Background(), "a.jpg")
			assert.ErrorIs(t, err, tt.expect)
			if tt.expect == context.Canceled || tt.expect == context.DeadlineExceeded {
				assert.False(t, interfaces.IsConnectivityError(err))
			}
		})
	}
}

func TestS3Backend_CurrentVersionScan(t *testing.T) {
	tests := []struct {
		name        string
		versions    *s3.ListObjectVersionsOutput
		expectFound bool
		expectID    string
	}{
		{
			name: "latest version of exact key",
			versions: &s3.ListObjectVersionsOutput{Versions: []*s3.ObjectVersion{
				{Key: aws.String("a.jpg.bak"), VersionId: aws.String("x"), IsLatest: aws.Bool(true)},
				{Key: aws.String("a.jpg"), VersionId: aws.String("old"), IsLatest: aws.Bool(false)},
				{Key: aws.String("a.jpg"), VersionId: aws.String("new"), IsLatest: aws.Bool(true)},
			}},
			expectFound: true,
			expectID:    "new",
		},
		{
			name: "only prefix matches",
			versions: &s3.ListObjectVersionsOutput{Versions: []*s3.ObjectVersion{
				{Key: aws.String("a.jpg.bak"), VersionId: aws.String("x"), IsLatest: aws.Bool(true)},
			}},
		},
		{
			name: "deleted",
			versions: &s3.ListObjectVersionsOutput{
				Versions: []*s3.ObjectVersion{
					{Key: aws.String("a.jpg"), VersionId: aws.String("old"), IsLatest: aws.Bool(false)},
				},
				DeleteMarkers: []*s3.DeleteMarkerEntry{
					{Key: aws.String("a.jpg"), VersionId: aws.String("dm"), IsLatest: aws.Bool(true)},
				},
			},
		},
		{
			name: "store without latest flags",
			versions: &s3.ListObjectVersionsOutput{Versions: []*s3.ObjectVersion{
				{Key: aws.String("a.jpg"), VersionId: aws.String("only")},
			}},
			expectFound: true,
			expectID:    "only",
		},
		{
			name:     "empty",
			versions: &s3.ListObjectVersionsOutput{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client := newTestS3Backend(t)
			expectBuckets(client, "photos")
			client.On("ListObjectVersionsWithContext", mock.Anything, versionsInput("a.jpg")).Return(tt.versions, nil)

			exists, err := b.Exists(context.Background(), "a.jpg")
			require.NoError(t, err)
			assert.Equal(t, tt.expectFound, exists)

			if tt.expectFound {
				client.On("DeleteObjectWithContext", mock.Anything, &s3.DeleteObjectInput{
					Bucket:    aws.String("photos"),
					Key:       aws.String("a.jpg"),
					VersionId: aws.String(tt.expectID),
				}).Return(&s3.DeleteObjectOutput{}, nil).Once()
			}

			require.NoError(t, b.Delete(context.Background(), "a.jpg"))
			client.AssertExpectations(t)
			if !tt.expectFound {
				client.AssertNumberOfCalls(t, "DeleteObjectWithContext", 0)
			}
		})
	}
}

func TestS3Backend_ExistsPropagatesConnectivityErrors(t *testing.T) {
	b, client := newTestS3Backend(t)
	expectBuckets(client, "photos")
	client.On("ListObjectVersionsWithContext", mock.Anything, mock.Anything).
		Return(nil, awserr.New(request.ErrCodeRequestError, "send request failed", nil))

	_, err := b.Exists(context.Background(), "a.jpg")
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestS3Backend_ListPaginates(t *testing.T) {
	b, client := newTestS3Backend(t)
	expectBuckets(client, "photos")

	client.On("ListObjectsV2WithContext", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && aws.Int64Value(in.MaxKeys) == 5
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []*s3.Object{{Key: aws.String("a")}, {Key: aws.String("b")}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("page2"),
	}, nil).Once()

	client.On("ListObjectsV2WithContext", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.StringValue(in.ContinuationToken) == "page2" && aws.Int64Value(in.MaxKeys) == 3
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []*s3.Object{{Key: aws.String("c")}, {Key: aws.String("d")}, {Key: aws.String("e")}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("page3"),
	}, nil).Once()

	names, err := b.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names)
	client.AssertExpectations(t)
}

func TestS3Backend_ListStopsWhenNotTruncated(t *testing.T) {
	b, client := newTestS3Backend(t)
	expectBuckets(client, "photos")

	client.On("ListObjectsV2WithContext", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.Int64Value(in.MaxKeys) == listPageSize
	})).Return(&s3.ListObjectsV2Output{
		Contents:    []*s3.Object{{Key: aws.String("only")}},
		IsTruncated: aws.Bool(false),
	}, nil).Once()

	names, err := b.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, names)
}

func TestS3Backend_Metadata(t *testing.T) {
	b, client := newTestS3Backend(t)
	expectBuckets(client, "photos")

	client.On("ListObjectVersionsWithContext", mock.Anything, versionsInput("a.jpg")).
		Return(&s3.ListObjectVersionsOutput{Versions: []*s3.ObjectVersion{
			{Key: aws.String("a.jpg"), VersionId: aws.String("v2"), IsLatest: aws.Bool(true)},
		}}, nil)
	client.On("HeadObjectWithContext", mock.Anything, &s3.HeadObjectInput{
		Bucket:    aws.String("photos"),
		Key:       aws.String("a.jpg"),
		VersionId: aws.String("v2"),
	}).Return(&s3.HeadObjectOutput{Metadata: map[string]*string{
		"Width":  aws.String("640"),
		"Height": aws.String("480"),
	}}, nil).Once()

	md, err := b.Metadata(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"width": "640", "height": "480"}, md)

	client.On("ListObjectVersionsWithContext", mock.Anything, versionsInput("missing.jpg")).
		Return(&s3.ListObjectVersionsOutput{}, nil)
	md, err = b.Metadata(context.Background(), "missing.jpg")
	require.NoError(t, err)
	assert.Empty(t, md)
}

func TestS3LocationURI(t *testing.T) {
	assert.Equal(t, "s3://photos?region=us-east-1", s3LocationURI(S3Config{Bucket: "photos", Region: "us-east-1"}))
	assert.Equal(t,
		"s3://KEY:***@photos?region=us-west-004&endpoint=https://s3.us-west-004.backblazeb2.com&path_style=true",
		s3LocationURI(S3Config{
			Bucket:          "photos",
			Region:          "us-west-004",
			Endpoint:        "https://s3.us-west-004.backblazeb2.com",
			AccessKeyID:     "KEY",
			SecretAccessKey: "SECRET",
			ForcePathStyle:  true,
		}))
}
