package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/storagekit/storagekit/internal/logging"
	"github.com/storagekit/storagekit/internal/models"
	"github.com/storagekit/storagekit/internal/s3"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// MaxPresignExpiry is the longest lifetime S3 accepts for a signed URL.
const MaxPresignExpiry = 7 * 24 * time.Hour

const (
	defaultURLExpiry = time.Hour
	urlWorkers       = 16
)

// ErrInvalidExpiry is returned for presign lifetimes S3 rejects.
var ErrInvalidExpiry = errors.New("invalid expiry")

var tracer = otel.Tracer("github.com/storagekit/storagekit/internal/storage")

type Options struct {
	// PublicURL prefixes the proxied download links.
	PublicURL string
	// Region is used for buckets created by CreateBucket and Upload.
	Region string
	// FileURLs enables url/directUrl on file records.
	FileURLs bool
	// URLExpiry is the lifetime of the directUrl on file records.
	URLExpiry time.Duration
	// Observer, when set, receives one call per operation.
	Observer Observer
}

// Observer is notified when an operation completes.
type Observer interface {
	Observe(op string, bytes int64, err error, dur time.Duration)
}

// Service turns gateway operations into backend calls. It keeps no state
// besides its configuration; every result is read from the backend.
type Service struct {
	store  s3.Store
	opts   Options
	logger logging.Logger
}

func New(store s3.Store, opts Options, logger logging.Logger) *Service {
	if opts.Region == "" {
		opts.Region = s3.DefaultRegion
	}
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = defaultURLExpiry
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	return &Service{store: store, opts: opts, logger: logger}
}

// op is the tracing and metrics scope of one Service call.
type op struct {
	name  string
	span  trace.Span
	begin time.Time
	bytes int64
	obs   Observer
}

func (s *Service) start(ctx context.Context, name, bucket, key string) (context.Context, *op) {
	attrs := []attribute.KeyValue{attribute.String("storage.op", name)}
	if bucket != "" {
		attrs = append(attrs, attribute.String("storage.bucket", bucket))
	}
	if key != "" {
		attrs = append(attrs, attribute.String("storage.key", key))
	}
	ctx, span := tracer.Start(ctx, "storage."+name, trace.WithAttributes(attrs...))
	return ctx, &op{name: name, span: span, begin: time.Now(), obs: s.opts.Observer}
}

func (o *op) end(err error) {
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	}
	if o.bytes > 0 {
		o.span.SetAttributes(attribute.Int64("storage.bytes", o.bytes))
	}
	o.span.End()
	if o.obs != nil {
		o.obs.Observe(o.name, o.bytes, err, time.Since(o.begin))
	}
}

func (s *Service) ListBuckets(ctx context.Context) (_ []models.Bucket, err error) {
	ctx, o := s.start(ctx, "list_buckets", "", "")
	defer func() { o.end(err) }()

	items, err := s.store.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	out := make([]models.Bucket, 0, len(items))
	for _, b := range items {
		out = append(out, models.Bucket{Name: b.Name, CreatedAt: b.CreationDate})
	}
	return out, nil
}

func (s *Service) CreateBucket(ctx context.Context, bucket string) (err error) {
	ctx, o := s.start(ctx, "create_bucket", bucket, "")
	defer func() { o.end(err) }()

	if err := s.store.CreateBucket(ctx, bucket, s.opts.Region); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	s.logger.Info("bucket created", "bucket", bucket, "region", s.opts.Region)
	return nil
}

func (s *Service) DeleteBucket(ctx context.Context, bucket string) (err error) {
	ctx, o := s.start(ctx, "delete_bucket", bucket, "")
	defer func() { o.end(err) }()

	if err := s.store.DeleteBucket(ctx, bucket); err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}
	s.logger.Info("bucket deleted", "bucket", bucket)
	return nil
}

// List returns the immediate folders and files under path.
func (s *Service) List(ctx context.Context, bucket, path string) (_ models.Listing, err error) {
	ctx, o := s.start(ctx, "list", bucket, path)
	defer func() { o.end(err) }()

	prefix := ListPrefix(path)
	entries, err := s.store.ListObjects(ctx, bucket, prefix, false)
	if err != nil {
		return models.Listing{}, fmt.Errorf("failed to list files: %w", err)
	}
	folders, files := FormatListing(prefix, entries)
	s.attachURLs(ctx, bucket, files)

	shown := path
	if shown == "" {
		shown = "/"
	}
	o.span.SetAttributes(attribute.Int("storage.folders", len(folders)), attribute.Int("storage.files", len(files)))
	return models.Listing{Bucket: bucket, Path: shown, Folders: folders, Files: files}, nil
}

// Upload stores r under dir/filename, creating the bucket first if needed.
func (s *Service) Upload(ctx context.Context, bucket, dir, filename string, r io.Reader, size int64, contentType string) (_ models.UploadResult, err error) {
	key := UploadKey(dir, filename)
	ctx, o := s.start(ctx, "upload", bucket, key)
	defer func() { o.end(err) }()

	if err := s.ensureBucket(ctx, bucket); err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to upload file: %w", err)
	}
	if err := s.store.Upload(ctx, bucket, key, r, size, contentType); err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to upload file: %w", err)
	}
	o.bytes = size
	s.logger.Info("file uploaded", "bucket", bucket, "path", key, "size", size)
	return models.UploadResult{Bucket: bucket, Path: key, Size: size, FileURLs: s.fileURLs(ctx, bucket, key)}, nil
}

// Update overwrites an existing object. Missing objects are not created.
func (s *Service) Update(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (_ models.UploadResult, err error) {
	ctx, o := s.start(ctx, "update", bucket, key)
	defer func() { o.end(err) }()

	if _, err := s.store.Stat(ctx, bucket, key); err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to update file: %w", err)
	}
	if err := s.store.Upload(ctx, bucket, key, r, size, contentType); err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to update file: %w", err)
	}
	o.bytes = size
	s.logger.Info("file updated", "bucket", bucket, "path", key, "size", size)
	return models.UploadResult{Bucket: bucket, Path: key, Size: size, FileURLs: s.fileURLs(ctx, bucket, key)}, nil
}

// Download returns the object metadata together with its content; the
// caller closes the reader.
func (s *Service) Download(ctx context.Context, bucket, key string) (_ io.ReadCloser, _ models.File, err error) {
	ctx, o := s.start(ctx, "download", bucket, key)
	defer func() { o.end(err) }()

	info, err := s.store.Stat(ctx, bucket, key)
	if err != nil {
		return nil, models.File{}, fmt.Errorf("failed to download file: %w", err)
	}
	rc, err := s.store.Download(ctx, bucket, key)
	if err != nil {
		return nil, models.File{}, fmt.Errorf("failed to download file: %w", err)
	}
	o.bytes = info.Size
	return rc, fileRecord(key, info), nil
}

func (s *Service) Info(ctx context.Context, bucket, key string) (_ models.File, err error) {
	ctx, o := s.start(ctx, "info", bucket, key)
	defer func() { o.end(err) }()

	info, err := s.store.Stat(ctx, bucket, key)
	if err != nil {
		return models.File{}, fmt.Errorf("failed to get file info: %w", err)
	}
	f := fileRecord(key, info)
	f.FileURLs = s.fileURLs(ctx, bucket, key)
	return f, nil
}

// Delete removes one object. Like S3, deleting a missing key succeeds.
func (s *Service) Delete(ctx context.Context, bucket, key string) (_ models.ObjectRef, err error) {
	ctx, o := s.start(ctx, "delete", bucket, key)
	defer func() { o.end(err) }()

	if err := s.store.DeleteObject(ctx, bucket, key); err != nil {
		return models.ObjectRef{}, fmt.Errorf("failed to delete file: %w", err)
	}
	s.logger.Info("file deleted", "bucket", bucket, "path", key)
	return models.ObjectRef{Bucket: bucket, Path: key}, nil
}

// DeleteFolder removes every object below path. The count reports the keys
// that were enumerated; per-key failures from the bulk delete are logged.
func (s *Service) DeleteFolder(ctx context.Context, bucket, path string) (_ models.FolderDeleteResult, err error) {
	prefix := FolderPrefix(path)
	ctx, o := s.start(ctx, "delete_folder", bucket, prefix)
	defer func() { o.end(err) }()

	entries, err := s.store.ListObjects(ctx, bucket, prefix, true)
	if err != nil {
		return models.FolderDeleteResult{}, fmt.Errorf("failed to delete folder: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsPrefix {
			keys = append(keys, e.Key)
		}
	}
	if len(keys) > 0 {
		if derr := s.store.DeleteObjects(ctx, bucket, keys); derr != nil {
			s.logger.Error("folder delete incomplete", "bucket", bucket, "prefix", prefix, "error", derr)
			o.span.AddEvent("partial_delete", trace.WithAttributes(attribute.String("error", derr.Error())))
		}
	}
	o.span.SetAttributes(attribute.Int("storage.deleted", len(keys)))
	s.logger.Info("folder deleted", "bucket", bucket, "prefix", prefix, "deleted", len(keys))
	return models.FolderDeleteResult{Bucket: bucket, Path: prefix, Deleted: len(keys)}, nil
}

// PresignedURL signs a GET for an existing object.
func (s *Service) PresignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (_ models.PresignedURL, err error) {
	ctx, o := s.start(ctx, "presign", bucket, key)
	defer func() { o.end(err) }()

	if expiry < 0 || expiry > MaxPresignExpiry {
		return models.PresignedURL{}, fmt.Errorf("%w: must be between 1 and %d seconds", ErrInvalidExpiry, int(MaxPresignExpiry.Seconds()))
	}
	if expiry == 0 {
		expiry = defaultURLExpiry
	}
	if _, err := s.store.Stat(ctx, bucket, key); err != nil {
		return models.PresignedURL{}, fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	u, err := s.store.PresignGet(ctx, bucket, key, expiry)
	if err != nil {
		return models.PresignedURL{}, fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return models.PresignedURL{Bucket: bucket, Path: key, URL: u, ExpiresIn: int(expiry.Seconds())}, nil
}

func (s *Service) ensureBucket(ctx context.Context, bucket string) error {
	ok, err := s.store.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	err = s.store.CreateBucket(ctx, bucket, s.opts.Region)
	if err != nil && !errors.Is(err, s3.ErrBucketExists) {
		return err
	}
	s.logger.Info("bucket created on upload", "bucket", bucket, "region", s.opts.Region)
	return nil
}

// DownloadURL is the proxied link served by this gateway for key.
func (s *Service) DownloadURL(bucket, key string) string {
	return fmt.Sprintf("%s/api/%s/download?path=%s", s.opts.PublicURL, url.PathEscape(bucket), url.QueryEscape(key))
}

func (s *Service) fileURLs(ctx context.Context, bucket, key string) models.FileURLs {
	if !s.opts.FileURLs {
		return models.FileURLs{}
	}
	out := models.FileURLs{URL: s.DownloadURL(bucket, key)}
	direct, err := s.store.PresignGet(ctx, bucket, key, s.opts.URLExpiry)
	if err != nil {
		s.logger.Debug("direct url unavailable", "bucket", bucket, "path", key, "error", err)
		return out
	}
	secs := int(s.opts.URLExpiry.Seconds())
	out.DirectURL = &direct
	out.URLExpiresIn = &secs
	return out
}

// attachURLs signs the listed files concurrently.
func (s *Service) attachURLs(ctx context.Context, bucket string, files []models.File) {
	if !s.opts.FileURLs || len(files) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(urlWorkers)
	for i := range files {
		g.Go(func() error {
			files[i].FileURLs = s.fileURLs(ctx, bucket, files[i].Path)
			return nil
		})
	}
	_ = g.Wait()
}

func fileRecord(key string, info s3.ObjectInfo) models.File {
	return models.File{
		Name:        BaseName(key),
		Path:        key,
		Size:        info.Size,
		Modified:    info.LastModified,
		ContentType: info.ContentType,
		Type:        "file",
	}
}
