package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "prices-a.json", ObjectKey("", "prices-a.json"))
	assert.Equal(t, "menu/prices-a.json", ObjectKey("menu", "prices-a.json"))
	assert.Equal(t, "menu/backups/prices-a.json", ObjectKey("/menu/backups/", "prices-a.json"))
}

func TestNewUploaderRequiresBucket(t *testing.T) {
	_, err := NewUploader(context.Background(), Config{Endpoint: "http://localhost:9000"})
	assert.Error(t, err)
}

func TestNewUploaderStaticCredentials(t *testing.T) {
	u, err := NewUploader(context.Background(), Config{
		Endpoint:  "http://localhost:9000",
		Bucket:    "menu",
		Prefix:    "backups",
		AccessKey: "key",
		SecretKey: "secret",
	})

	require.NoError(t, err)
	assert.Equal(t, "menu", u.bucket)
	assert.Equal(t, "backups", u.prefix)
}
