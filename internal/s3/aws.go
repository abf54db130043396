package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/storagekit/storagekit/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// deleteBatch is the DeleteObjects request limit.
const deleteBatch = 1000

// AWSClient is the aws-sdk-go-v2 backed Store.
type AWSClient struct {
	client  *s3v2.Client
	presign *s3v2.PresignClient
}

var _ Store = (*AWSClient)(nil)

func NewAWS(cfg config.S3Config) (*AWSClient, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	opts := s3v2.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		Retryer:     aws.NopRetryer{},
	}
	if ep := EndpointURL(cfg); ep != "" {
		// custom endpoints (MinIO, Spaces, ...) are addressed path-style
		opts.BaseEndpoint = aws.String(ep)
		opts.UsePathStyle = true
	}
	client := s3v2.New(opts)
	return &AWSClient{client: client, presign: s3v2.NewPresignClient(client)}, nil
}

// mapAWSErr translates smithy API error codes into the package sentinels.
func mapAWSErr(err error) error {
	if err == nil {
		return nil
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
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
	}
	return err
}

// missingObject resolves HeadObject's bodiless 404 into a missing bucket
// when the bucket itself is gone.
func (c *AWSClient) missingObject(ctx context.Context, bucket string, err error) error {
	if !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	if ok, berr := c.BucketExists(ctx, bucket); berr == nil && !ok {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	return err
}

func (c *AWSClient) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	out, err := c.client.ListBuckets(ctx, &s3v2.ListBucketsInput{})
	if err != nil {
		return nil, mapAWSErr(err)
	}
	items := make([]BucketInfo, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		items = append(items, BucketInfo{Name: aws.ToString(b.Name), CreationDate: aws.ToTime(b.CreationDate)})
	}
	return items, nil
}

func (c *AWSClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := c.client.HeadBucket(ctx, &s3v2.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return true, nil
	}
	var ae smithy.APIError
	if errors.As(err, &ae) && (ae.ErrorCode() == "NotFound" || ae.ErrorCode() == "NoSuchBucket") {
		return false, nil
	}
	return false, mapAWSErr(err)
}

func (c *AWSClient) CreateBucket(ctx context.Context, bucket, region string) error {
	in := &s3v2.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 must not be sent as a location constraint
	if region != "" && region != DefaultRegion {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	_, err := c.client.CreateBucket(ctx, in)
	return mapAWSErr(err)
}

func (c *AWSClient) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := c.client.DeleteBucket(ctx, &s3v2.DeleteBucketInput{Bucket: aws.String(bucket)})
	return mapAWSErr(err)
}

func (c *AWSClient) ListObjects(ctx context.Context, bucket, prefix string, recursive bool) ([]ObjectInfo, error) {
	in := &s3v2.ListObjectsV2Input{Bucket: aws.String(bucket), Prefix: aws.String(prefix)}
	if !recursive {
		in.Delimiter = aws.String("/")
	}
	var out []ObjectInfo
	p := s3v2.NewListObjectsV2Paginator(c.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, mapAWSErr(err)
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, ObjectInfo{Key: aws.ToString(cp.Prefix), IsPrefix: true})
		}
		for _, o := range page.Contents {
			out = append(out, ObjectInfo{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
	}
	return out, nil
}

func (c *AWSClient) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	out, err := c.client.HeadObject(ctx, &s3v2.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return ObjectInfo{}, c.missingObject(ctx, bucket, mapAWSErr(err))
	}
	return ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ContentType:  aws.ToString(out.ContentType),
	}, nil
}

func (c *AWSClient) Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	in := &s3v2.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	_, err := c.client.PutObject(ctx, in)
	return mapAWSErr(err)
}

func (c *AWSClient) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := c.client.GetObject(ctx, &s3v2.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, c.missingObject(ctx, bucket, mapAWSErr(err))
	}
	return out.Body, nil
}

func (c *AWSClient) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3v2.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	return mapAWSErr(err)
}

func (c *AWSClient) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	var errs []error
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := c.client.DeleteObjects(ctx, &s3v2.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			errs = append(errs, mapAWSErr(err))
			continue
		}
		for _, e := range out.Errors {
			errs = append(errs, fmt.Errorf("%s: %s: %s", aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message)))
		}
	}
	return errors.Join(errs...)
}

func (c *AWSClient) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3v2.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}, s3v2.WithPresignExpires(expiry))
	if err != nil {
		return "", mapAWSErr(err)
	}
	return req.URL, nil
}
