// Package archive ships exported snapshots to S3 as gzip objects.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/uniplaces/carbon"

	"DataPaperIndex/internal/config"
	"DataPaperIndex/internal/ports"
)

const (
	defaultRegion = "us-east-1"
	keyLayout     = "20060102-150405"
)

// S3Archiver uploads compressed snapshots under a timestamped key.
type S3Archiver struct {
	client s3iface.S3API
	bucket string
	prefix string
}

var _ ports.Archiver = (*S3Archiver)(nil)

// NewS3Archiver creates an AWS session from the default credential chain.
func NewS3Archiver(cfg config.ArchiveConfig) (*S3Archiver, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	awsCfg := &aws.Config{Region: aws.String(region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewS3ArchiverWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix), nil
}

// NewS3ArchiverWithClient uses an existing S3 client.
func NewS3ArchiverWithClient(client s3iface.S3API, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Upload gzips the file at path and returns the object key.
func (a *S3Archiver) Upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}

	compressed, err := compress(data)
	if err != nil {
		return "", fmt.Errorf("failed to compress snapshot: %w", err)
	}

	key := a.objectKey(path)
	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(compressed),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
		Metadata: map[string]*string{
			"original-size": aws.String(fmt.Sprintf("%d", len(data))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}

func (a *S3Archiver) objectKey(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := fmt.Sprintf("%s-%s.json.gz", base, carbon.Now().Format(keyLayout))
	if a.prefix == "" {
		return name
	}
	return strings.TrimRight(a.prefix, "/") + "/" + name
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
