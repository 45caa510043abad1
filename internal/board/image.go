package board

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	errors "github.com/Laisky/errors/v2"
)

// ImageFile is an image attached to a submission.
type ImageFile struct {
	Name string
	// MediaType is the declared type, e.g. "image/png".
	MediaType string
	// Size is the declared size in bytes.
	Size int64
	// Open returns a fresh reader over the image bytes.
	Open func() (io.ReadCloser, error)
}

// NewImageFile wraps in-memory bytes
func NewImageFile(name, mediaType string, data []byte) *ImageFile {
	return &ImageFile{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// OpenImageFile describes a file on disk. The media type comes from the
// extension, or from sniffing the first bytes when the extension is unknown.
func OpenImageFile(path string) (*ImageFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if st.IsDir() {
		return nil, errors.Errorf("%s is a directory", path)
	}

	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType, err = sniffMediaType(path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return &ImageFile{
		Name:      filepath.Base(path),
		MediaType: normalizeMediaType(mediaType),
		Size:      st.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func sniffMediaType(path string) (string, error) {
	fp, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", path)
	}
	defer fp.Close() // nolint: errcheck

	head := make([]byte, 512)
	n, err := io.ReadFull(fp, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", errors.Wrapf(err, "read %s", path)
	}

	return http.DetectContentType(head[:n]), nil
}

// EncodedImage is an image ready to be stored in a post.
type EncodedImage struct {
	DataURI   string
	MediaType string
	// Data holds the raw bytes, handed to the archiver.
	Data []byte
}

// ImageEncoder turns an attached image into a data URI.
type ImageEncoder interface {
	Encode(ctx context.Context, img *ImageFile) (*EncodedImage, error)
}

// DataURIEncoder reads the whole image and base64-encodes it.
type DataURIEncoder struct {
	// MaxBytes bounds the bytes actually read, independent of the declared size.
	MaxBytes int64
}

// Encode implements ImageEncoder
func (e DataURIEncoder) Encode(ctx context.Context, img *ImageFile) (*EncodedImage, error) {
	if img == nil || img.Open == nil {
		return nil, errors.New("no image to encode")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	maxBytes := e.MaxBytes
	if maxBytes <= 0 {
		maxBytes = MaxImageBytes
	}

	rc, err := img.Open()
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer rc.Close() // nolint: errcheck

	data, err := io.ReadAll(io.LimitReader(rc, maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	if int64(len(data)) > maxBytes {
		return nil, NewValidationError(MsgImageTooLarge)
	}

	mediaType := normalizeMediaType(img.MediaType)
	return &EncodedImage{
		DataURI:   "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data),
		MediaType: mediaType,
		Data:      data,
	}, nil
}

// ImageArchiver keeps a copy of the raw image of a stored post.
type ImageArchiver interface {
	Archive(ctx context.Context, post Post, img *EncodedImage) error
}
