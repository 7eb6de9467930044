package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	UseSSL   bool
	MaxBytes int64
}

// Client reads source objects straight from an S3-compatible bucket.
type Client struct {
	minio    *minio.Client
	bucket   string
	maxBytes int64
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Client{
		minio:    mc,
		bucket:   cfg.Bucket,
		maxBytes: maxBytes,
	}, nil
}

// Ping reports an error unless the bucket exists and is reachable.
func (c *Client) Ping(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", c.bucket)
	}
	return nil
}

// Fetch stats the object first so oversized objects are refused before any
// body bytes are transferred.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	info, err := c.minio.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, classifyMinioError(key, err)
	}
	if info.Size > c.maxBytes {
		return nil, tooLarge(key, c.maxBytes)
	}

	obj, err := c.minio.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinioError(key, err)
	}
	defer obj.Close()

	data, err := readLimited(key, obj, info.Size, c.maxBytes)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && fe.Kind == ErrTransport && fe.Err != nil {
			return nil, classifyMinioError(key, fe.Err)
		}
		return nil, err
	}
	return data, nil
}

func classifyMinioError(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchObject", "NoSuchBucket":
		return notFound(key, resp.StatusCode)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return forbidden(key, resp.StatusCode)
	default:
		return transport(key, resp.StatusCode, err)
	}
}
