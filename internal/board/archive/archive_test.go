package archive

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/sparkboard/internal/board"
)

type putCall struct {
	bucket, key, contentType string
	body                     []byte
}

type fakePutter struct {
	mu    sync.Mutex
	calls map[string]putCall
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, r io.Reader,
	size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(body)) != size {
		return minio.UploadInfo{}, errors.Errorf("size mismatch %d != %d", len(body), size)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]putCall{}
	}
	f.calls[key] = putCall{bucket: bucket, key: key, contentType: opts.ContentType, body: body}
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, f.err
}

func TestArchive(t *testing.T) {
	putter := &fakePutter{}
	m, err := NewMinio(putter, "board", "/images/", nil)
	require.NoError(t, err)

	post := board.Post{
		ID:        "ab12cd34",
		Nickname:  "alice",
		CreatedAt: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC).UnixMilli(),
	}
	img := &board.EncodedImage{MediaType: "image/png", Data: []byte("png-bytes")}
	require.NoError(t, m.Archive(context.Background(), post, img))

	require.Len(t, putter.calls, 2)
	raw := putter.calls["images/2026/03/ab12cd34.png"]
	require.Equal(t, "board", raw.bucket)
	require.Equal(t, "image/png", raw.contentType)
	require.Equal(t, []byte("png-bytes"), raw.body)

	metaCall := putter.calls["images/2026/03/ab12cd34.png.json"]
	require.Equal(t, "application/json", metaCall.contentType)
	var meta postMeta
	require.NoError(t, json.Unmarshal(metaCall.body, &meta))
	require.Equal(t, "ab12cd34", meta.PostID)
	require.Equal(t, len("png-bytes"), meta.Size)
}

func TestArchiveNothing(t *testing.T) {
	putter := &fakePutter{}
	m, err := NewMinio(putter, "board", "", nil)
	require.NoError(t, err)

	require.NoError(t, m.Archive(context.Background(), board.Post{ID: "x"}, nil))
	require.Empty(t, putter.calls)
}

func TestArchiveUploadError(t *testing.T) {
	m, err := NewMinio(&fakePutter{err: errors.New("access denied")}, "board", "", nil)
	require.NoError(t, err)

	err = m.Archive(context.Background(), board.Post{ID: "x"},
		&board.EncodedImage{MediaType: "image/webp", Data: []byte("w")})
	require.ErrorContains(t, err, "access denied")
}

func TestNewMinioValidation(t *testing.T) {
	_, err := NewMinio(nil, "board", "", nil)
	require.Error(t, err)
	_, err = NewMinio(&fakePutter{}, "", "", nil)
	require.Error(t, err)
	_, err = NewMinioClient(Config{})
	require.Error(t, err)

	cli, err := NewMinioClient(Config{Endpoint: "localhost:9000", AccessKey: "ak", SecretKey: "sk"})
	require.NoError(t, err)
	require.NotNil(t, cli)
}

func TestObjectKeyWithoutPrefix(t *testing.T) {
	m, err := NewMinio(&fakePutter{}, "board", "", nil)
	require.NoError(t, err)

	post := board.Post{ID: "p1", CreatedAt: time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC).UnixMilli()}
	require.Equal(t, "2025/12/p1.jpg", m.ObjectKey(post, "image/jpeg"))
	require.Equal(t, "2025/12/p1", m.ObjectKey(post, "image/bmp"))
}
