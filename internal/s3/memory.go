package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store. It backs the "memory" driver and the tests.
type Memory struct {
	baseURL string
	now     func() time.Time

	mu      sync.RWMutex
	buckets map[string]*memBucket
}

type memBucket struct {
	created time.Time
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

var _ Store = (*Memory)(nil)

var bucketNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// NewMemory returns an empty store whose presigned URLs are rooted at baseURL.
func NewMemory(baseURL string) *Memory {
	return &Memory{
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		buckets: map[string]*memBucket{},
	}
}

func (m *Memory) bucket(name string) (*memBucket, error) {
	b, ok := m.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, name)
	}
	return b, nil
}

func (m *Memory) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BucketInfo, 0, len(m.buckets))
	for name, b := range m.buckets {
		out = append(out, BucketInfo{Name: name, CreationDate: b.created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) BucketExists(ctx context.Context, bucket string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucket]
	return ok, nil
}

func (m *Memory) CreateBucket(ctx context.Context, bucket, region string) error {
	if !bucketNameRe.MatchString(bucket) {
		return fmt.Errorf("%w: %q", ErrInvalidBucketName, bucket)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; ok {
		return fmt.Errorf("%w: %s", ErrBucketExists, bucket)
	}
	m.buckets[bucket] = &memBucket{created: m.now(), objects: map[string]memObject{}}
	return nil
}

func (m *Memory) DeleteBucket(ctx context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return err
	}
	if len(b.objects) > 0 {
		return fmt.Errorf("%w: %s", ErrBucketNotEmpty, bucket)
	}
	delete(m.buckets, bucket)
	return nil
}

// ListObjects enumerates keys in lexical order. Non-recursive listings fold
// everything below the next "/" into one common prefix, as S3 does.
func (m *Memory) ListObjects(ctx context.Context, bucket, prefix string, recursive bool) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var out []ObjectInfo
	seen := map[string]bool{}
	for _, k := range keys {
		if !recursive {
			if i := strings.Index(k[len(prefix):], "/"); i >= 0 {
				cp := k[:len(prefix)+i+1]
				if !seen[cp] {
					seen[cp] = true
					out = append(out, ObjectInfo{Key: cp, IsPrefix: true})
				}
				continue
			}
		}
		o := b.objects[k]
		out = append(out, ObjectInfo{Key: k, Size: int64(len(o.data)), LastModified: o.modified, ContentType: o.contentType})
	}
	return out, nil
}

func (m *Memory) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return ObjectInfo{}, err
	}
	o, ok := b.objects[key]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return ObjectInfo{Key: key, Size: int64(len(o.data)), LastModified: o.modified, ContentType: o.contentType}, nil
}

func (m *Memory) Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("short upload: read %d of %d bytes", len(data), size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return err
	}
	b.objects[key] = memObject{data: data, contentType: contentType, modified: m.now()}
	return nil
}

func (m *Memory) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return nil, err
	}
	o, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

// DeleteObject follows S3 semantics: deleting a missing key succeeds.
func (m *Memory) DeleteObject(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return err
	}
	delete(b.objects, key)
	return nil
}

func (m *Memory) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.bucket(bucket)
	if err != nil {
		return err
	}
	var errs []error
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		delete(b.objects, k)
	}
	return errors.Join(errs...)
}

// PresignGet mimics a signed URL; like real signing it does not check existence.
func (m *Memory) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		return "", errors.New("presign expiry must be positive")
	}
	q := url.Values{}
	q.Set("X-Amz-Expires", fmt.Sprint(int(expiry.Seconds())))
	q.Set("X-Amz-Date", m.now().UTC().Format("20060102T150405Z"))
	return fmt.Sprintf("%s/%s/%s?%s", m.baseURL, bucket, (&url.URL{Path: key}).EscapedPath(), q.Encode()), nil
}
