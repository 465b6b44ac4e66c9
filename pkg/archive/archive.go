// Package archive is the execution-record archival side-effect invoked
// after a trigger completes. Adapted from the teacher's
// pkg/storage/log_store.go, repurposed from storing raw stdout/stderr
// bytes to storing a JSON snapshot of a completed TaskExecution.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/adil-adysh/plan-flow/pkg/models"
)

// Archiver persists a completed execution's JSON snapshot and returns a
// reference string it can later be retrieved by.
type Archiver interface {
	Archive(ctx context.Context, exec models.TaskExecution) (reference string, err error)
	Retrieve(ctx context.Context, reference string) (models.TaskExecution, error)
}

// S3Archiver stores execution snapshots in S3-compatible storage.
type S3Archiver struct {
	client     *s3.Client
	bucket     string
	prefix     string
	localCache string
}

// S3ArchiverConfig configures an S3Archiver.
type S3ArchiverConfig struct {
	Bucket          string
	Prefix          string // e.g. "executions/"
	Region          string
	Endpoint        string // MinIO/local S3 endpoint override
	AccessKeyID     string
	SecretAccessKey string
	LocalCacheDir   string
}

// NewS3Archiver builds an S3-backed archiver, with an optional local
// read-through cache for frequently retrieved executions.
func NewS3Archiver(cfg S3ArchiverConfig) (*S3Archiver, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	if cfg.LocalCacheDir != "" {
		if err := os.MkdirAll(cfg.LocalCacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	return &S3Archiver{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		localCache: cfg.LocalCacheDir,
	}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, exec models.TaskExecution) (string, error) {
	payload, err := json.Marshal(exec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal execution: %w", err)
	}

	key := a.buildKey(exec)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload execution record: %w", err)
	}

	if a.localCache != "" {
		cachePath := filepath.Join(a.localCache, exec.ID.String()+".json")
		_ = os.WriteFile(cachePath, payload, 0644)
	}

	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

func (a *S3Archiver) Retrieve(ctx context.Context, reference string) (models.TaskExecution, error) {
	key := a.extractKey(reference)

	if a.localCache != "" {
		cachePath := filepath.Join(a.localCache, filepath.Base(key))
		if data, err := os.ReadFile(cachePath); err == nil {
			var exec models.TaskExecution
			if err := json.Unmarshal(data, &exec); err == nil {
				return exec, nil
			}
		}
	}

	output, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return models.TaskExecution{}, fmt.Errorf("failed to get execution record: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return models.TaskExecution{}, fmt.Errorf("failed to read execution record: %w", err)
	}

	var exec models.TaskExecution
	if err := json.Unmarshal(data, &exec); err != nil {
		return models.TaskExecution{}, fmt.Errorf("failed to unmarshal execution record: %w", err)
	}

	if a.localCache != "" {
		cachePath := filepath.Join(a.localCache, filepath.Base(key))
		_ = os.WriteFile(cachePath, data, 0644)
	}

	return exec, nil
}

func (a *S3Archiver) buildKey(exec models.TaskExecution) string {
	timestamp := time.Now().Format("2006/01/02")
	return fmt.Sprintf("%s%s/%s.json", a.prefix, timestamp, exec.ID.String())
}

func (a *S3Archiver) extractKey(reference string) string {
	if len(reference) > 5 && reference[:5] == "s3://" {
		parts := reference[5:]
		for i, c := range parts {
			if c == '/' {
				return parts[i+1:]
			}
		}
	}
	return reference
}

// LocalArchiver stores execution snapshots on the local filesystem, for
// development and single-node deployments.
type LocalArchiver struct {
	basePath string
}

// NewLocalArchiver creates a local filesystem archiver.
func NewLocalArchiver(basePath string) (*LocalArchiver, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchiver{basePath: basePath}, nil
}

func (l *LocalArchiver) Archive(ctx context.Context, exec models.TaskExecution) (string, error) {
	payload, err := json.Marshal(exec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal execution: %w", err)
	}
	path := filepath.Join(l.basePath, exec.ID.String()+".json")
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return "", fmt.Errorf("failed to write execution record: %w", err)
	}
	return path, nil
}

func (l *LocalArchiver) Retrieve(ctx context.Context, reference string) (models.TaskExecution, error) {
	data, err := os.ReadFile(reference)
	if err != nil {
		return models.TaskExecution{}, err
	}
	var exec models.TaskExecution
	if err := json.Unmarshal(data, &exec); err != nil {
		return models.TaskExecution{}, err
	}
	return exec, nil
}
