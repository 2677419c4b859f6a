// Package publish uploads finished videos to an S3-compatible bucket.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"reframe/internal/config"
	"reframe/internal/logging"
	"reframe/internal/services"
)

// Uploader is the subset of the S3 upload manager used here.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Publisher copies output videos into a bucket under a key prefix.
type Publisher struct {
	bucket   string
	prefix   string
	uploader Uploader
	logger   *slog.Logger
}

// New builds a Publisher from cfg. It returns nil when publishing is disabled.
func New(cfg config.Publish, logger *slog.Logger) *Publisher {
	if !cfg.Enabled {
		return nil
	}
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
		BaseEndpoint: optionalString(cfg.Endpoint),
	})
	return NewWithUploader(cfg, manager.NewUploader(client), logger)
}

// NewWithUploader builds a Publisher around an existing uploader.
func NewWithUploader(cfg config.Publish, uploader Uploader, logger *slog.Logger) *Publisher {
	return &Publisher{
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		uploader: uploader,
		logger:   logging.NewComponentLogger(logger, "publish"),
	}
}

// Key returns the object key used for a job's output file.
func (p *Publisher) Key(jobKey, filePath string) string {
	return path.Join(strings.Trim(p.prefix, "/"), jobKey, filepath.Base(filePath))
}

// Publish uploads filePath and returns its s3:// location.
func (p *Publisher) Publish(ctx context.Context, jobKey, filePath string) (string, error) {
	if p == nil {
		return "", nil
	}
	file, err := os.Open(filePath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "publish", "open output", filePath, err)
	}
	defer file.Close()

	key := p.Key(jobKey, filePath)
	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "upload",
			fmt.Sprintf("s3://%s/%s", p.bucket, key), err)
	}
	location := fmt.Sprintf("s3://%s/%s", p.bucket, key)
	p.logger.Info("output published",
		logging.String(logging.FieldEventType, "publish_complete"),
		logging.String("location", location),
	)
	return location, nil
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return aws.String(value)
}
