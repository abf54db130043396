package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/storagekit/storagekit/internal/config"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client is the minio-go backed Store.
type Client struct{ mc *minio.Client }

var _ Store = (*Client)(nil)

func NewMinio(cfg config.S3Config) (*Client, error) {
	host, secure := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	}
	mc, err := minio.New(endpointWithPort(host, cfg.Port), opts)
	if err != nil {
		return nil, err
	}
	return &Client{mc: mc}, nil
}

// mapMinioErr translates minio error responses into the package sentinels.
func mapMinioErr(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	case "NoSuchBucket":
		return fmt.Errorf("%w: %w", ErrBucketNotFound, err)
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return fmt.Errorf("%w: %w", ErrBucketExists, err)
	case "BucketNotEmpty":
		return fmt.Errorf("%w: %w", ErrBucketNotEmpty, err)
	case "InvalidBucketName":
		return fmt.Errorf("%w: %w", ErrInvalidBucketName, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	}
	return err
}

// missingObject refines an object 404. HEAD responses carry no error body,
// so a missing bucket looks like a missing key until the bucket is checked.
func (c *Client) missingObject(ctx context.Context, bucket string, err error) error {
	if !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	if ok, berr := c.BucketExists(ctx, bucket); berr == nil && !ok {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	return err
}

func (c *Client) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	items, err := c.mc.ListBuckets(ctx)
	if err != nil {
		return nil, mapMinioErr(err)
	}
	out := make([]BucketInfo, 0, len(items))
	for _, b := range items {
		out = append(out, BucketInfo{Name: b.Name, CreationDate: b.CreationDate})
	}
	return out, nil
}

func (c *Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ok, err := c.mc.BucketExists(ctx, bucket)
	return ok, mapMinioErr(err)
}

func (c *Client) CreateBucket(ctx context.Context, bucket, region string) error {
	return mapMinioErr(c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}))
}

func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	return mapMinioErr(c.mc.RemoveBucket(ctx, bucket))
}

func (c *Client) ListObjects(ctx context.Context, bucket, prefix string, recursive bool) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: recursive}) {
		if obj.Err != nil {
			return nil, mapMinioErr(obj.Err)
		}
		out = append(out, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ContentType:  obj.ContentType,
			// minio-go reports common prefixes as bare keys; the prefix
			// itself is a directory marker object
			IsPrefix: !recursive && strings.HasSuffix(obj.Key, "/") && obj.Key != prefix,
		})
	}
	return out, nil
}

// Stat returns object info (size, content type) if available.
func (c *Client) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	info, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, c.missingObject(ctx, bucket, mapMinioErr(err))
	}
	return ObjectInfo{Key: info.Key, Size: info.Size, LastModified: info.LastModified, ContentType: info.ContentType}, nil
}

func (c *Client) Upload(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := c.mc.PutObject(ctx, bucket, key, reader, size, opts)
	return mapMinioErr(err)
}

func (c *Client) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.missingObject(ctx, bucket, mapMinioErr(err))
	}
	return obj, nil
}

func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	return mapMinioErr(c.mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}))
}

func (c *Client) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	objCh := make(chan minio.ObjectInfo)
	go func() {
		defer close(objCh)
		for _, k := range keys {
			select {
			case objCh <- minio.ObjectInfo{Key: k}:
			case <-ctx.Done():
				return
			}
		}
	}()
	var errs []error
	for e := range c.mc.RemoveObjects(ctx, bucket, objCh, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("%s: %w", e.ObjectName, mapMinioErr(e.Err)))
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Client) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	u, err := c.mc.PresignedGetObject(ctx, bucket, key, expiry, nil)
	if err != nil {
		return "", mapMinioErr(err)
	}
	return u.String(), nil
}
