package storage

import (
	"context"

	"github.com/lap-market/marketplace-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockObjectBackend implements interfaces.ObjectBackend for testing
type MockObjectBackend struct {
	mock.Mock
	name string
}

func (m *MockObjectBackend) Upload(ctx context.Context, data []byte, contentType, name string) (interfaces.ObjectVersion, error) {
	args := m.Called(ctx, data, contentType, name)
	return args.Get(0).(interfaces.ObjectVersion), args.Error(1)
}

func (m *MockObjectBackend) UploadWithMetadata(ctx context.Context, data []byte, contentType, name string, metadata map[string]string) (interfaces.ObjectVersion, error) {
	args := m.Called(ctx, data, contentType, name, metadata)
	return args.Get(0).(interfaces.ObjectVersion), args.Error(1)
}

func (m *MockObjectBackend) UploadImage(ctx context.Context, data []byte, contentType, name string) (interfaces.ObjectVersion, error) {
	args := m.Called(ctx, data, contentType, name)
	return args.Get(0).(interfaces.ObjectVersion), args.Error(1)
}

func (m *MockObjectBackend) Download(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectBackend) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockObjectBackend) Exists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectBackend) List(ctx context.Context, maxCount int) ([]string, error) {
	args := m.Called(ctx, maxCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockObjectBackend) Metadata(ctx context.Context, name string) (map[string]string, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockObjectBackend) Probe(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockObjectBackend) Info(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockObjectBackend) Name() string {
	return m.name
}

func (m *MockObjectBackend) LocationURI() string {
	return "mock:"
}
