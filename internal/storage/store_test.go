package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *ScriptStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewScriptStore(client)
}

type fakeS3 struct {
	manager.UploadAPIClient

	mu       sync.Mutex
	objects  map[string]string
	pageSize int
}

func newFakeS3(pageSize int) *fakeS3 {
	return &fakeS3{objects: map[string]string{}, pageSize: pageSize}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(v)))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]string, 0, len(f.objects))
	for k := range f.objects {
		all = append(all, k)
	}
	sort.Strings(all)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, err
		}
		start = n
	}
	end := min(start+f.pageSize, len(all))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(all))}
	for _, k := range all[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(all) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, script := newTestRedis(t)
	return map[string]Backend{
		TypeLocal:  local,
		TypeScript: script,
		TypeS3:     NewS3Store("bucket", newFakeS3(2)),
	}
}

func TestBackendContract(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Get(ctx, "gmlib|missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Set(ctx, "gmlib|a", `{"stored":1,"value":"x"}`))
			require.NoError(t, b.Set(ctx, "gmlib|b/c d", "two"))
			require.NoError(t, b.Set(ctx, "other", "three"))

			v, err := b.Get(ctx, "gmlib|a")
			require.NoError(t, err)
			assert.Equal(t, `{"stored":1,"value":"x"}`, v)

			v, err = b.Get(ctx, "gmlib|b/c d")
			require.NoError(t, err)
			assert.Equal(t, "two", v)

			require.NoError(t, b.Set(ctx, "gmlib|a", "overwritten"))
			v, err = b.Get(ctx, "gmlib|a")
			require.NoError(t, err)
			assert.Equal(t, "overwritten", v)

			keys, err := b.Keys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"gmlib|a", "gmlib|b/c d", "other"}, keys)

			require.NoError(t, b.Delete(ctx, "gmlib|a"))
			require.NoError(t, b.Delete(ctx, "gmlib|a"))
			_, err = b.Get(ctx, "gmlib|a")
			assert.ErrorIs(t, err, ErrNotFound)

			keys, err = b.Keys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"gmlib|b/c d", "other"}, keys)

			long := "gmlib|get:https://example.com/search?q=" + strings.Repeat("a", 600)
			require.NoError(t, b.Set(ctx, long, "long"))
			v, err = b.Get(ctx, long)
			require.NoError(t, err)
			assert.Equal(t, "long", v)

			keys, err = b.Keys(ctx)
			require.NoError(t, err)
			assert.Contains(t, keys, long)

			require.NoError(t, b.Delete(ctx, long))
			_, err = b.Get(ctx, long)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLocalStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "gmlib|k", "v"))

	second, err := NewLocalStore(dir)
	require.NoError(t, err)
	v, err := second.Get(ctx, "gmlib|k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestScriptStoreSurfacesConnectionErrors(t *testing.T) {
	mr, store := newTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), "gmlib|k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestSelect(t *testing.T) {
	_, script := newTestRedis(t)

	b, err := Select(TypeLocal, Host{LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, b)
	assert.Equal(t, TypeLocal, TypeOf(b))

	b, err = Select(TypeScript, Host{Redis: script.client})
	require.NoError(t, err)
	assert.IsType(t, &ScriptStore{}, b)
	assert.Equal(t, TypeScript, TypeOf(b))

	b, err = Select(TypeS3, Host{S3: newFakeS3(10), S3Bucket: "b"})
	require.NoError(t, err)
	assert.IsType(t, &S3Store{}, b)

	_, err = Select(TypeScript, Host{})
	assert.ErrorIs(t, err, ErrHostUnavailable)

	_, err = Select("session", Host{LocalDir: t.TempDir()})
	require.ErrorIs(t, err, ErrInvalidStorageType)
	var invalid *InvalidStorageTypeError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "session", invalid.Type)
}
