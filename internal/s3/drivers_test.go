package s3

import (
	"context"
	"io"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagekit/storagekit/internal/config"
)

// fakeS3 serves an in-memory S3 API for the wire drivers.
func fakeS3(t *testing.T) config.S3Config {
	t.Helper()
	faker := gofakes3.New(s3mem.New(), gofakes3.WithoutVersioning())
	ts := httptest.NewServer(faker.Server())
	t.Cleanup(ts.Close)
	return config.S3Config{
		Endpoint:  ts.URL,
		AccessKey: "storagekit",
		SecretKey: "storagekit-secret",
		Region:    DefaultRegion,
	}
}

var drivers = []struct {
	name string
	open func(t *testing.T) Store
}{
	{"minio", func(t *testing.T) Store {
		st, err := NewMinio(fakeS3(t))
		require.NoError(t, err)
		return st
	}},
	{"aws", func(t *testing.T) Store {
		st, err := NewAWS(fakeS3(t))
		require.NoError(t, err)
		return st
	}},
	{"memory", func(t *testing.T) Store { return NewMemory("http://localhost:9000") }},
}

func putObject(t *testing.T, st Store, bucket, key, body string) {
	t.Helper()
	require.NoError(t, st.Upload(context.Background(), bucket, key, strings.NewReader(body), int64(len(body)), "text/plain"))
}

// listed maps each returned key to its IsPrefix flag, since drivers order
// common prefixes and objects differently.
func listed(t *testing.T, st Store, bucket, prefix string, recursive bool) map[string]bool {
	t.Helper()
	items, err := st.ListObjects(context.Background(), bucket, prefix, recursive)
	require.NoError(t, err)
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it.Key] = it.IsPrefix
	}
	return out
}

func TestDriversBucketLifecycle(t *testing.T) {
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			st := d.open(t)

			ok, err := st.BucketExists(ctx, "docs")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, st.CreateBucket(ctx, "docs", DefaultRegion))
			ok, err = st.BucketExists(ctx, "docs")
			require.NoError(t, err)
			assert.True(t, ok)

			buckets, err := st.ListBuckets(ctx)
			require.NoError(t, err)
			names := make([]string, 0, len(buckets))
			for _, b := range buckets {
				names = append(names, b.Name)
			}
			assert.Contains(t, names, "docs")

			assert.ErrorIs(t, st.CreateBucket(ctx, "docs", DefaultRegion), ErrBucketExists)
			assert.ErrorIs(t, st.CreateBucket(ctx, "ab", DefaultRegion), ErrInvalidBucketName)

			putObject(t, st, "docs", "keep.txt", "x")
			assert.ErrorIs(t, st.DeleteBucket(ctx, "docs"), ErrBucketNotEmpty)

			require.NoError(t, st.DeleteObject(ctx, "docs", "keep.txt"))
			require.NoError(t, st.DeleteObject(ctx, "docs", "keep.txt"), "deleting a missing key succeeds")
			require.NoError(t, st.DeleteBucket(ctx, "docs"))

			ok, err = st.BucketExists(ctx, "docs")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDriversListing(t *testing.T) {
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			st := d.open(t)
			require.NoError(t, st.CreateBucket(ctx, "docs", DefaultRegion))
			putObject(t, st, "docs", "a/", "")
			putObject(t, st, "docs", "a/x.txt", "hello")
			putObject(t, st, "docs", "a/b/c/y.txt", "y")
			putObject(t, st, "docs", "a/b/z.txt", "z")

			assert.Equal(t, map[string]bool{"a/": true}, listed(t, st, "docs", "", false))
			assert.Equal(t, map[string]bool{
				"a/":      false,
				"a/b/":    true,
				"a/x.txt": false,
			}, listed(t, st, "docs", "a/", false))
			assert.Equal(t, map[string]bool{
				"a/":          false,
				"a/b/c/y.txt": false,
				"a/b/z.txt":   false,
				"a/x.txt":     false,
			}, listed(t, st, "docs", "a/", true))
			assert.Empty(t, listed(t, st, "docs", "nothing/", false))
		})
	}
}

func TestDriversObjects(t *testing.T) {
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			st := d.open(t)
			require.NoError(t, st.CreateBucket(ctx, "docs", DefaultRegion))
			putObject(t, st, "docs", "a/x.txt", "hello")

			info, err := st.Stat(ctx, "docs", "a/x.txt")
			require.NoError(t, err)
			assert.Equal(t, int64(5), info.Size)
			assert.Equal(t, "text/plain", info.ContentType)
			assert.False(t, info.LastModified.IsZero())

			rc, err := st.Download(ctx, "docs", "a/x.txt")
			require.NoError(t, err)
			body, err := io.ReadAll(rc)
			require.NoError(t, rc.Close())
			require.NoError(t, err)
			assert.Equal(t, "hello", string(body))

			_, err = st.Stat(ctx, "docs", "a/missing.txt")
			assert.ErrorIs(t, err, ErrObjectNotFound)

			_, err = st.Stat(ctx, "ghost", "a/x.txt")
			assert.ErrorIs(t, err, ErrBucketNotFound)
			assert.NotErrorIs(t, err, ErrObjectNotFound)

			u, err := st.PresignGet(ctx, "docs", "a/x.txt", time.Minute)
			require.NoError(t, err)
			assert.Contains(t, u, "/docs/a/x.txt?")
			assert.Contains(t, u, "X-Amz-Expires=60")
		})
	}
}

func TestDriversDeleteObjects(t *testing.T) {
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			st := d.open(t)
			require.NoError(t, st.CreateBucket(ctx, "docs", DefaultRegion))
			keys := []string{"a/", "a/x.txt", "a/b/c/y.txt", "a/b/z.txt", "other.txt"}
			for _, k := range keys {
				putObject(t, st, "docs", k, k)
			}

			doomed := slices.DeleteFunc(slices.Clone(keys), func(k string) bool { return !strings.HasPrefix(k, "a/") })
			require.NoError(t, st.DeleteObjects(ctx, "docs", doomed))
			assert.Equal(t, map[string]bool{"other.txt": false}, listed(t, st, "docs", "", true))

			require.NoError(t, st.DeleteObjects(ctx, "docs", nil))
		})
	}
}
