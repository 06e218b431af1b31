package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

type Object struct {
	Name string
	Size int64
}

// BaseName returns the last element of the object key.
func (o Object) BaseName() string {
	return path.Base(o.Name)
}

type ObjectIterator func(yield func(obj Object, err error) bool)

// Provider is the storage surface the batch runner needs. Keys are
// slash-separated and relative to the bucket. ListObjects and IterObjects treat
// prefix as a directory: they return only the objects directly under it, and a
// directory that does not exist lists as empty.
type Provider interface {
	CreateBucket(ctx context.Context, bucket string) error

	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)

	IterObjects(ctx context.Context, bucket, prefix string) ObjectIterator
}

func dirPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" || prefix == "." {
		return ""
	}
	return prefix + "/"
}

// Key joins a directory prefix and a file name into an object key.
func Key(prefix, name string) string {
	return dirPrefix(prefix) + name
}
