package localfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posterforge/internal/ports"
)

func TestPutGetDelete(t *testing.T) {
	root := t.TempDir()
	l := New(root)
	ctx := context.Background()

	body := []byte("not really a png")
	out, err := l.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   "posters/job_abc/poster.png",
		ContentType: "image/png",
		Reader:      bytes.NewReader(body),
		Size:        int64(len(body)),
	})
	require.NoError(t, err)
	assert.Equal(t, "posters/job_abc/poster.png", out.ObjectKey)
	assert.Equal(t, int64(len(body)), out.Size)

	rc, contentType, size, err := l.GetObject(ctx, out.ObjectKey)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, int64(len(body)), size)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	require.NoError(t, l.DeleteObject(ctx, out.ObjectKey))
	_, err = os.Stat(filepath.Join(root, "posters", "job_abc", "poster.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestPutObjectRequiresKey(t *testing.T) {
	l := New(t.TempDir())
	_, err := l.PutObject(context.Background(), ports.PutObjectInput{
		Reader: bytes.NewReader(nil),
	})
	assert.Error(t, err)
}

func TestGetObjectMissing(t *testing.T) {
	l := New(t.TempDir())
	_, _, _, err := l.GetObject(context.Background(), "posters/none/poster.png")
	assert.Error(t, err)
}

func TestSignedURLFallsBackEmpty(t *testing.T) {
	l := New(t.TempDir())
	out, err := l.GetSignedURL(context.Background(), "posters/x/poster.png", 0)
	require.NoError(t, err)
	assert.Empty(t, out.URL)
}
