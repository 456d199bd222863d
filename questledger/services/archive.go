package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wayfarerlabs/questledger/questledger/database/models"
	"github.com/wayfarerlabs/questledger/questledger/database/repositories"
	"github.com/wayfarerlabs/questledger/questledger/logger"
)

// ArchiveService exports the reward ledger to S3-compatible object storage
// for offline audit. The ledger itself stays the source of truth; exports are
// snapshots and may be regenerated at any time.
type ArchiveService struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewArchiveService(key, secret, region, bucket, prefix string) (*ArchiveService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive storage config: %w", err)
	}

	return &ArchiveService{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// ExportSince uploads every ledger entry committed at or after since as one
// JSON-lines object. Returns the object key.
func (s *ArchiveService) ExportSince(ctx context.Context, rewardRepo repositories.RewardRepository, since time.Time) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0

	err := rewardRepo.ScanSince(ctx, since, func(tx *models.RewardTransaction) error {
		count++
		return enc.Encode(tx)
	})
	if err != nil {
		return "", fmt.Errorf("failed to export ledger: %w", err)
	}

	key := fmt.Sprintf("%s/ledger-%s.jsonl", s.prefix, time.Now().UTC().Format("20060102T150405"))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload ledger export: %w", err)
	}

	slog.Info("Ledger export uploaded",
		slog.String("key", key),
		slog.Int("entries", count))
	return key, nil
}

// Run exports on the given interval until the context is canceled. Each pass
// covers the window since the previous successful export.
func (s *ArchiveService) Run(ctx context.Context, rewardRepo repositories.RewardRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if _, err := s.ExportSince(ctx, rewardRepo, last); err != nil {
				if ctx.Err() == nil {
					logger.LogError("Ledger export failed", err)
				}
				continue
			}
			last = start
		}
	}
}
