package board

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataURIEncoder(t *testing.T) {
	ctx := context.Background()

	img, err := DataURIEncoder{}.Encode(ctx, NewImageFile("a.webp", "image/webp", []byte("RIFF")))
	require.NoError(t, err)
	require.Equal(t, "data:image/webp;base64,UklGRg==", img.DataURI)
	require.Equal(t, []byte("RIFF"), img.Data)

	// declared size lies, the bytes actually read are bounded
	lying := NewImageFile("a.png", "image/png", make([]byte, 11))
	lying.Size = 1
	_, err = DataURIEncoder{MaxBytes: 10}.Encode(ctx, lying)
	typed := requireKind(t, err, KindValidation)
	require.Equal(t, MsgImageTooLarge, typed.Message)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = DataURIEncoder{}.Encode(canceled, NewImageFile("a.png", "image/png", []byte("x")))
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenImageFile(t *testing.T) {
	dir := t.TempDir()

	jpg := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(jpg, []byte{0xff, 0xd8, 0xff, 0xe0}, 0o600))
	img, err := OpenImageFile(jpg)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", img.MediaType)
	require.EqualValues(t, 4, img.Size)
	require.Equal(t, "photo.jpg", img.Name)

	// no extension, sniffed from the PNG signature
	noext := filepath.Join(dir, "upload")
	require.NoError(t, os.WriteFile(noext, []byte("\x89PNG\r\n\x1a\n0000"), 0o600))
	img, err = OpenImageFile(noext)
	require.NoError(t, err)
	require.Equal(t, "image/png", img.MediaType)

	encoded, err := DataURIEncoder{}.Encode(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, encoded.Data, 12)

	_, err = OpenImageFile(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
	_, err = OpenImageFile(dir)
	require.Error(t, err)
}
