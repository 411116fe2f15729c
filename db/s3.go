package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/Tk21111/whiteboard_sync/internal/logx"
)

// S3API is the part of *s3.Client the snapshot store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client loads the default AWS credential chain. A non-empty endpoint
// points the client at an S3 compatible store such as R2.
func NewS3Client(ctx context.Context, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Snapshots keeps one object per room holding the snapshot data URL.
type S3Snapshots struct {
	client S3API
	bucket string
	log    *zap.Logger
}

func NewS3Snapshots(client S3API, bucket string, log *zap.Logger) *S3Snapshots {
	return &S3Snapshots{client: client, bucket: bucket, log: logx.Or(log)}
}

func snapshotKey(roomID string) string {
	return "rooms/" + roomID + "/snapshot"
}

func (s *S3Snapshots) SaveSnapshot(ctx context.Context, roomID, imageData string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(snapshotKey(roomID)),
		Body:        strings.NewReader(imageData),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", roomID, err)
	}

	s.log.Info("snapshot stored", zap.String("room", roomID), zap.String("bucket", s.bucket),
		zap.String("size", humanize.Bytes(uint64(len(imageData)))))
	return nil
}

func (s *S3Snapshots) Snapshot(ctx context.Context, roomID string) (string, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(snapshotKey(roomID)),
	})
	var missing *types.NoSuchKey
	if errors.As(err, &missing) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get snapshot %s: %w", roomID, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("read snapshot %s: %w", roomID, err)
	}
	return string(b), true, nil
}
