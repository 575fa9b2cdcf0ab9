package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/apiserver/config"
)

func TestOpenWithoutBackend(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpenUnsupportedBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "s3fs"})
	require.Error(t, err)
}

func TestNewMinioClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MinioConfig
	}{
		{"missing endpoint", config.MinioConfig{AccessKey: "a", SecretKey: "s", Bucket: "b"}},
		{"missing keys", config.MinioConfig{Endpoint: "localhost:9000", Bucket: "b"}},
		{"missing bucket", config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMinioClient(tc.cfg)
			require.Error(t, err)
		})
	}

	client, err := NewMinioClient(config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "a",
		SecretKey: "s",
		Bucket:    "covers",
	})
	require.NoError(t, err)
	assert.Equal(t, "covers", client.Bucket())
}

func TestNewGCSClientRequiresBucket(t *testing.T) {
	_, err := NewGCSClient(context.Background(), config.GCSConfig{})
	require.Error(t, err)
}

func TestMapMinioError(t *testing.T) {
	assert.NoError(t, mapMinioError(nil))
	assert.ErrorIs(t, mapMinioError(minio.ErrorResponse{Code: "NoSuchKey"}), ErrObjectNotFound)

	other := errors.New("connection refused")
	assert.Equal(t, other, mapMinioError(other))
}
