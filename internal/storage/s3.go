package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 streams artifacts into a bucket via multipart upload. Writes never
// buffer the whole artifact: the writer side of a pipe feeds an uploader
// goroutine chunk by chunk.
type S3 struct {
	client *s3.Client
	bucket string
}

func NewS3(client *s3.Client, bucket string) *S3 {
	return &S3{client: client, bucket: bucket}
}

func (p *S3) NewWriter(ctx context.Context, key string) (io.WriteCloser, <-chan error) {
	reader, writer := io.Pipe()
	done := make(chan error, 1)

	go func() {
		defer close(done)

		uploader := manager.NewUploader(p.client, func(u *manager.Uploader) {
			u.PartSize = 10 * 1024 * 1024
			u.Concurrency = 5
		})

		slog.Info("starting upload", "bucket", p.bucket, "key", key)
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
			Body:   reader,
		})
		if err != nil {
			// Fail pending writes with the real cause instead of a bare
			// closed-pipe error.
			_ = reader.CloseWithError(err)
			slog.Error("upload failed", "key", key, "error", err)
			done <- fmt.Errorf("upload %s: %w", key, err)
			return
		}
		_ = reader.Close()
		slog.Info("upload finished", "bucket", p.bucket, "key", key)
		done <- nil
	}()

	return writer, done
}

func (p *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("open s3://%s/%s: %w", p.bucket, key, err)
	}
	return out.Body, nil
}

func (p *S3) DownloadURL(key string) string {
	return fmt.Sprintf("s3://%s/%s", p.bucket, key)
}
