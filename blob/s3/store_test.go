package s3

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/dircount/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	store, err := NewS3Store(S3Config{Endpoint: "localhost:9000", Bucket: "objects"})
	require.NoError(t, err)
	assert.Equal(t, "s3", store.Name())
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "a/b.txt", objectName("/a/b.txt"))
	assert.Equal(t, "a", objectName("a"))
}

func TestConvertError(t *testing.T) {
	assert.ErrorIs(t, convertError(minio.ErrorResponse{Code: "NoSuchKey"}), data.ErrNotExist)

	other := errors.New("boom")
	assert.Equal(t, other, convertError(other))
}
