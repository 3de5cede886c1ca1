package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Fetcher streams objects from S3 to local files.
type S3Fetcher struct {
	client *s3.Client
}

var _ Fetcher = &S3Fetcher{}

// NewS3 builds a fetcher from the ambient AWS configuration (environment,
// shared config, or the function's execution role).
func NewS3(ctx context.Context) (*S3Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &S3Fetcher{client: s3.NewFromConfig(cfg)}, nil
}

// NewS3WithClient builds a fetcher around an existing client.
func NewS3WithClient(client *s3.Client) *S3Fetcher {
	return &S3Fetcher{client: client}
}

func (f *S3Fetcher) Fetch(ctx context.Context, objectURL, dest string) error {
	bucket, key, err := splitObjectURL(objectURL)
	if err != nil {
		return &Error{URL: objectURL, Err: err}
	}

	out, err := os.Create(dest)
	if err != nil {
		return &Error{URL: objectURL, Err: err}
	}
	defer out.Close()

	downloader := manager.NewDownloader(f.client)
	if _, err := downloader.Download(ctx, out, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		os.Remove(dest)
		return &Error{URL: objectURL, Err: err}
	}
	return nil
}

// Upload streams a local file to an s3:// URL. It backs the CLI helper used
// to publish privately hosted package tarballs.
func (f *S3Fetcher) Upload(ctx context.Context, src, objectURL string) error {
	bucket, key, err := splitObjectURL(objectURL)
	if err != nil {
		return &Error{URL: objectURL, Err: err}
	}

	in, err := os.Open(src)
	if err != nil {
		return &Error{URL: objectURL, Err: err}
	}
	defer in.Close()

	uploader := manager.NewUploader(f.client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   in,
	}); err != nil {
		return &Error{URL: objectURL, Err: err}
	}
	return nil
}

// LazyS3 defers AWS client construction until the first fetch, so loading a
// spec with no s3: references never touches AWS configuration.
type LazyS3 struct {
	once    sync.Once
	fetcher *S3Fetcher
	err     error
}

var _ Fetcher = &LazyS3{}

func (l *LazyS3) Fetch(ctx context.Context, objectURL, dest string) error {
	l.once.Do(func() {
		l.fetcher, l.err = NewS3(ctx)
	})
	if l.err != nil {
		return &Error{URL: objectURL, Err: l.err}
	}
	return l.fetcher.Fetch(ctx, objectURL, dest)
}

func splitObjectURL(objectURL string) (bucket, key string, err error) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("not an s3 URL: %q", objectURL)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("s3 URL %q must name a bucket and key", objectURL)
	}
	return u.Host, key, nil
}
