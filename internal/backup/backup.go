// Package backup copies JSON backups to an S3-compatible bucket (AWS S3 or
// MinIO) and restores them.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hpungsan/atlas/internal/config"
	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/transfer"
)

// KeyPrefix is prepended to every object key written by Upload.
const KeyPrefix = "atlas/"

const defaultRegion = "us-east-1"

// Config holds the bucket connection parameters.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; set for MinIO and other S3-compatible servers
	PathStyle bool

	// Static credentials are optional; the default AWS chain is used otherwise.
	AccessKeyID     string
	SecretAccessKey string
}

// ConfigFrom extracts the backup settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Bucket:    cfg.BackupBucket,
		Region:    cfg.BackupRegion,
		Endpoint:  cfg.BackupEndpoint,
		PathStyle: cfg.BackupPathStyle,
	}
}

// Object describes one stored backup.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Result describes a completed upload.
type Result struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Bytes    int    `json:"bytes"`
	Memories int    `json:"memories"`
	Groups   int    `json:"groups"`
}

// Bucket is a single S3 bucket holding backups.
type Bucket struct {
	client *s3.Client
	bucket string
}

// New creates a Bucket. Extra options are applied to the S3 client after the
// endpoint settings.
func New(ctx context.Context, cfg Config, optFns ...func(*s3.Options)) (*Bucket, error) {
	if cfg.Bucket == "" {
		return nil, errors.NewInvalidRequest("backup bucket is not configured (set backup_bucket or ATLAS_BACKUP_BUCKET)")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.NewStorageUnavailable(fmt.Errorf("load aws config: %w", err))
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return &Bucket{client: client, bucket: cfg.Bucket}, nil
}

// Name returns the bucket name.
func (b *Bucket) Name() string { return b.bucket }

// Upload writes data as a JSON backup under a timestamped key.
func (b *Bucket) Upload(ctx context.Context, data transfer.Data, now time.Time) (*Result, error) {
	body, err := transfer.Marshal(transfer.FormatJSON, data, now)
	if err != nil {
		return nil, err
	}
	key := ObjectKey(now)
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, errors.NewStorageUnavailable(fmt.Errorf("put %s: %w", key, err))
	}
	return &Result{
		Bucket:   b.bucket,
		Key:      key,
		Bytes:    len(body),
		Memories: len(data.Memories),
		Groups:   len(data.Groups),
	}, nil
}

// List returns stored backups, newest first.
func (b *Bucket) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(KeyPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.NewStorageUnavailable(fmt.Errorf("list: %w", err))
		}
		for _, obj := range out.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	// Keys embed the upload time, so key order is time order.
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })
	return objects, nil
}

// Download fetches a backup and decodes it. key may omit KeyPrefix.
func (b *Bucket) Download(ctx context.Context, key string) (*transfer.Decoded, error) {
	if !strings.HasPrefix(key, KeyPrefix) {
		key = KeyPrefix + key
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.NewStorageUnavailable(fmt.Errorf("get %s: %w", key, err))
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.NewStorageUnavailable(fmt.Errorf("read %s: %w", key, err))
	}
	return transfer.DecodeJSON(bytes.NewReader(body))
}

// ObjectKey is atlas/memory-atlas-backup-<UTC timestamp>.json.
func ObjectKey(now time.Time) string {
	return fmt.Sprintf("%smemory-atlas-backup-%s.json", KeyPrefix, now.UTC().Format("20060102T150405.000Z"))
}
