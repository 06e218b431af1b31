package integrationtests

import (
	"bytes"
	"context"
	"sort"
	"testing"
	"time"

	"batch-predict/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objectNames(objs []storage.Object) []string {
	names := make([]string, 0, len(objs))
	for _, obj := range objs {
		names = append(names, obj.Name)
	}
	sort.Strings(names)
	return names
}

func TestS3Provider_PutGetObject(t *testing.T) {
	skipInShortMode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)

	content := []byte("id,prediction\n1,2\n")
	require.NoError(t, provider.PutObject(ctx, bucketName, "data/predictions/out.csv", bytes.NewReader(content)))

	data, err := provider.GetObject(ctx, bucketName, "data/predictions/out.csv")
	require.NoError(t, err)
	assert.Equal(t, content, data)

	_, err = provider.GetObject(ctx, bucketName, "data/predictions/missing.csv")
	assert.Error(t, err)
}

func TestS3Provider_CreateBucketTwice(t *testing.T) {
	skipInShortMode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)
	assert.NoError(t, provider.CreateBucket(ctx, bucketName))
}

func TestS3Provider_ListObjects(t *testing.T) {
	skipInShortMode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)

	putObjects(t, ctx, provider, map[string]string{
		"data/test/1.json":        "{}",
		"data/test/2.json":        `{"a": 1}`,
		"data/test/nested/3.json": "{}",
		"data/testing/4.json":     "{}",
		"root.json":               "{}",
	})

	objs, err := provider.ListObjects(ctx, bucketName, "data/test")
	require.NoError(t, err)
	assert.Equal(t, []string{"data/test/1.json", "data/test/2.json"}, objectNames(objs))

	objs, err = provider.ListObjects(ctx, bucketName, "data/test/")
	require.NoError(t, err)
	assert.Len(t, objs, 2)

	objs, err = provider.ListObjects(ctx, bucketName, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"root.json"}, objectNames(objs))

	objs, err = provider.ListObjects(ctx, bucketName, "data/missing")
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestS3Provider_IterObjectsStopsEarly(t *testing.T) {
	skipInShortMode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)

	putObjects(t, ctx, provider, map[string]string{
		"models/a.model": "a",
		"models/b.model": "b",
		"models/c.model": "c",
	})

	seen := 0
	for obj, err := range provider.IterObjects(ctx, bucketName, "models") {
		require.NoError(t, err)
		assert.Equal(t, int64(1), obj.Size)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}
