package storage

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore is the accessor contract the prefetcher and the sink depend
// on. Fetch streams (a range of) one object; Put uploads a local file to
// the location named by the descriptor.
type ObjectStore interface {
	// Fetch returns a stream over the object at key. When length > -1 a
	// byte-range request covers offset..offset+length-1. When offset > 0
	// with length == -1 the full object is opened and offset bytes are
	// discarded, tolerating providers that reject open-ended ranges.
	Fetch(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)

	// Put uploads the file at localPath to the descriptor's bucket/path.
	// The remote object size is taken from the local file before streaming.
	Put(ctx context.Context, localPath string, desc Descriptor) (int64, error)
}

// S3API is the narrow slice of the S3 client the store needs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Compile-time interface checks.
var (
	_ ObjectStore = (*S3Store)(nil)
	_ ObjectStore = (*FileStore)(nil)
	_ S3API       = (*s3.Client)(nil)
)
