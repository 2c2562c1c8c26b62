package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// seekChunkSize is the read-and-discard chunk used when an offset is known
// but no length, so range headers cannot be set.
const seekChunkSize = 64 * 1024 * 1024

// S3Store implements ObjectStore against one S3 bucket.
type S3Store struct {
	api    S3API
	bucket string
	logger zerolog.Logger
}

// NewS3Store creates a store reading archive objects from the given bucket.
func NewS3Store(api S3API, bucket string, logger zerolog.Logger) *S3Store {
	return &S3Store{api: api, bucket: bucket, logger: logger}
}

// NewS3Client builds an S3 client for the region using the static
// credential pair resolved from the environment.
func NewS3Client(ctx context.Context, creds Credentials, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Fetch implements the range semantics of the accessor contract.
func (s *S3Store) Fetch(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}
	if length > -1 {
		input.Range = awssdk.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	}

	resp, err := s.api.GetObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if length == -1 && offset > 0 {
		// No length means no range header; seek by discarding.
		if err := discard(resp.Body, offset); err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("failed to seek %s to %d: %w", key, offset, err)
		}
	}
	return resp.Body, nil
}

// discard reads and drops n bytes in seekChunkSize chunks.
func discard(r io.Reader, n int64) error {
	remaining := n
	for remaining > 0 {
		chunk := int64(seekChunkSize)
		if chunk > remaining {
			chunk = remaining
		}
		copied, err := io.CopyN(io.Discard, r, chunk)
		remaining -= copied
		if err != nil {
			return err
		}
	}
	return nil
}

// Put uploads a local file to the descriptor's bucket/path. The object
// size is taken from the local file so the upload streams without
// buffering the whole artifact.
func (s *S3Store) Put(ctx context.Context, localPath string, desc Descriptor) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	s.logger.Info().Msgf("Flushing %s to %s", localPath, desc.Raw)
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &desc.Bucket,
		Key:           &desc.Path,
		Body:          f,
		ContentLength: awssdk.Int64(info.Size()),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put %s: %w", desc.Raw, err)
	}
	return info.Size(), nil
}

// IsTransient reports whether a transport error is worth retrying:
// connection resets and truncated chunked bodies. Everything else is fatal
// to the entry being fetched.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
