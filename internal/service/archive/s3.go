// Package archive stores raw cycle logs in an S3 compatible bucket.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ZigmaPulse/pkg/config"
	"ZigmaPulse/pkg/util"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver implements service.Archiver.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Archiver builds the client from static credentials when given, else
// from the default AWS chain. Endpoint and path style support MinIO and R2.
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return newArchiver(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

func newArchiver(c objectPutter, bucket, prefix string) *S3Archiver {
	if prefix == "" {
		prefix = "logs"
	}
	return &S3Archiver{client: c, bucket: bucket, prefix: strings.Trim(prefix, "/"), now: time.Now}
}

// Archive uploads text under <prefix>/<source>/<yyyy>/<mm>/<dd>/<unix>.log.
func (a *S3Archiver) Archive(ctx context.Context, source, text string) (string, error) {
	key := a.key(source, a.now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: put object %s: %w", key, err)
	}
	return key, nil
}

func (a *S3Archiver) key(source string, t time.Time) string {
	return path.Join(a.prefix, source, util.DayPath(t), strconv.FormatInt(t.Unix(), 10)+".log")
}

func normaliseEndpoint(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		return endpoint
	}
	return "https://" + endpoint
}
