package storage

import (
	"path/filepath"
	"testing"

	"github.com/lap-market/marketplace-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageBackendFactory(t *testing.T) {
	dir := t.TempDir()
	factory := NewStorageBackendFactory(testLogger(), &S3Credentials{AccessKeyID: "VAULTKEY", SecretAccessKey: "VAULTSECRET"})

	tests := []struct {
		name        string
		uri         string
		expectType  interface{}
		expectURI   string
		expectError error
	}{
		{
			name:       "file absolute",
			uri:        "file://" + dir,
			expectType: &FileBackend{},
			expectURI:  "file://" + dir,
		},
		{
			name:       "s3 with embedded credentials",
			uri:        "s3://KEY:SECRET@photos?region=us-west-004&endpoint=https://s3.us-west-004.backblazeb2.com",
			expectType: &S3Backend{},
			expectURI:  "s3://KEY:***@photos?region=us-west-004&endpoint=https://s3.us-west-004.backblazeb2.com",
		},
		{
			name:       "s3 with factory credentials and defaults",
			uri:        "s3://photos?path_style=true",
			expectType: &S3Backend{},
			expectURI:  "s3://VAULTKEY:***@photos?region=us-east-1&path_style=true",
		},
		{
			name:        "s3 without bucket",
			uri:         "s3://",
			expectError: interfaces.ErrInvalidLocationURI,
		},
		{
			name:        "unsupported scheme",
			uri:         "ipfs://localhost:5001",
			expectError: interfaces.ErrInvalidLocationURI,
		},
		{
			name:        "malformed",
			uri:         "://nope",
			expectError: interfaces.ErrInvalidLocationURI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := factory.ParseAndCreate(tt.uri)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.expectType, backend)
			assert.Equal(t, tt.expectURI, backend.LocationURI())
		})
	}
}

func TestStorageBackendFactory_RelativeFilePath(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger(), nil)

	backend, err := factory.ParseAndCreate("file://./uploads")
	require.NoError(t, err)

	fb, ok := backend.(*FileBackend)
	require.True(t, ok)
	assert.Equal(t, filepath.Clean("./uploads"), fb.root)
}
