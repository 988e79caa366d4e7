package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the source needs. Satisfied by
// *s3.Client.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source fetches pre-rendered fragment content from an S3 bucket.
// Fragment ids map to object keys as prefix + id + ".html".
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	src := source.NewS3Source(s3.NewFromConfig(cfg), "my-bucket", "fragments/")
type S3Source struct {
	client  S3API
	bucket  string
	prefix  string
	maxSize int64
}

// NewS3Source builds an S3Source over the given client, bucket, and key
// prefix.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		maxSize: DefaultMaxFragmentSize,
	}
}

// WithMaxSize caps the object size read per fragment.
func (s *S3Source) WithMaxSize(n int64) *S3Source {
	if n > 0 {
		s.maxSize = n
	}
	return s
}

// Fetch retrieves the fragment's object from S3.
func (s *S3Source) Fetch(ctx context.Context, fragmentID string) ([]byte, error) {
	key := s.prefix + fragmentID + ".html"

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fragmentID)
		}
		return nil, fmt.Errorf("source: s3 fetch %s: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", key, err)
	}
	if int64(len(body)) > s.maxSize {
		return nil, fmt.Errorf("source: fragment %s exceeds %d bytes", fragmentID, s.maxSize)
	}
	return body, nil
}
