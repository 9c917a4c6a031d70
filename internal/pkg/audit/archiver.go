package audit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// Archiver writes raw payment provider payloads to object storage. The
// database ledger keeps the settlement facts; the archive keeps the full
// provider payloads for later reconciliation.
type Archiver struct {
	s3Client *s3.Client
	config   *Config
}

// NewArchiver creates a new payment audit archiver
func NewArchiver(cfg *Config) (*Archiver, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("audit archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[Audit] Initialized archive client for bucket: %s", cfg.GetBucketName())
	return &Archiver{
		s3Client: s3Client,
		config:   cfg,
	}, nil
}

// ArchiveEvent stores a raw provider payload under payments/YYYY/MM/EVENT_ID.json
func (a *Archiver) ArchiveEvent(ctx context.Context, eventID string, occurredAt time.Time, payload []byte) error {
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	objectKey := a.config.GetObjectKey(eventID, occurredAt)

	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.config.GetBucketName()),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
		Metadata: map[string]string{
			"event-id": eventID,
			"source":   "codelens-webhook",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive event %s: %w", eventID, err)
	}

	log.Infof("[Audit] Archived payment event: s3://%s/%s", a.config.GetBucketName(), objectKey)
	return nil
}

// SetupFromEnv builds the archiver from environment config; a disabled
// archive returns nil without error so callers can skip archiving.
func SetupFromEnv() (*Archiver, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsEnabled() {
		return nil, nil
	}
	return NewArchiver(cfg)
}
