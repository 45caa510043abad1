// Package archive keeps raw copies of post images in an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/Laisky/sparkboard/internal/board"
	"github.com/Laisky/sparkboard/library/log"
)

var _ board.ImageArchiver = (*Minio)(nil)

// ObjectPutter is the subset of *minio.Client used by the archiver.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader,
		objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Config describes the bucket the images go to.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Secure    bool
}

// Minio uploads every archived image next to a small JSON description of its post.
type Minio struct {
	cli    ObjectPutter
	bucket string
	prefix string
	logger logSDK.Logger
}

// NewMinioClient connects to an S3-compatible endpoint
func NewMinioClient(cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new minio client")
	}

	return cli, nil
}

// NewMinio creates an archiver writing into bucket under prefix
func NewMinio(cli ObjectPutter, bucket, prefix string, logger logSDK.Logger) (*Minio, error) {
	if cli == nil {
		return nil, errors.New("minio client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if logger == nil {
		logger = log.Logger.Named("image_archive")
	}

	return &Minio{
		cli:    cli,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}, nil
}

type postMeta struct {
	PostID    string `json:"post_id"`
	Nickname  string `json:"nickname"`
	MediaType string `json:"media_type"`
	Size      int    `json:"size"`
	CreatedAt int64  `json:"created_at"`
}

// Archive implements board.ImageArchiver
func (m *Minio) Archive(ctx context.Context, post board.Post, img *board.EncodedImage) error {
	if img == nil || len(img.Data) == 0 {
		return nil
	}

	meta, err := json.Marshal(postMeta{
		PostID:    post.ID,
		Nickname:  post.Nickname,
		MediaType: img.MediaType,
		Size:      len(img.Data),
		CreatedAt: post.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "marshal image meta")
	}

	imgKey := m.ObjectKey(post, img.MediaType)
	var pool errgroup.Group

	pool.Go(func() error {
		_, err := m.cli.PutObject(ctx, m.bucket, imgKey,
			bytes.NewReader(img.Data), int64(len(img.Data)),
			minio.PutObjectOptions{ContentType: img.MediaType},
		)
		return errors.Wrapf(err, "upload %s", imgKey)
	})

	pool.Go(func() error {
		metaKey := imgKey + ".json"
		_, err := m.cli.PutObject(ctx, m.bucket, metaKey,
			bytes.NewReader(meta), int64(len(meta)),
			minio.PutObjectOptions{ContentType: "application/json"},
		)
		return errors.Wrapf(err, "upload %s", metaKey)
	})

	if err = pool.Wait(); err != nil {
		return errors.WithStack(err)
	}

	m.logger.Info("archived post image",
		zap.String("post", post.ID),
		zap.String("objkey", imgKey))
	return nil
}

// ObjectKey returns "<prefix>/<yyyy>/<mm>/<post id>.<ext>"
func (m *Minio) ObjectKey(post board.Post, mediaType string) string {
	created := post.CreatedTime()
	key := fmt.Sprintf("%04d/%02d/%s%s", created.Year(), created.Month(), post.ID, extension(mediaType))
	if m.prefix == "" {
		return key
	}
	return m.prefix + "/" + key
}

func extension(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
