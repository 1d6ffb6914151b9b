package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "github.com/PublicLifeLab/gehl-backend/internal/config"
)

// S3 mirrors study documents into a single bucket.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 builds an S3 mirror. Credentials come from the default AWS chain.
func NewS3(ctx context.Context, cfg appconfig.Mirror, optFns ...func(*s3.Options)) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
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
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

// New returns an S3 mirror when a bucket is configured and Noop otherwise.
func New(ctx context.Context, cfg appconfig.Mirror) (Mirror, error) {
	if cfg.Bucket == "" {
		logf("no bucket configured, study mirroring disabled")
		return Noop{}, nil
	}
	return NewS3(ctx, cfg)
}

func (m *S3) PutStudy(ctx context.Context, doc StudyDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode study document: %w", err)
	}
	key := Key(doc.StudyID)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logf("put %s failed: %v", key, err)
		return fmt.Errorf("mirror study %s: %w", doc.StudyID, err)
	}
	return nil
}

func (m *S3) DeleteStudy(ctx context.Context, studyID uuid.UUID) error {
	key := Key(studyID)
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logf("delete %s failed: %v", key, err)
		return fmt.Errorf("remove mirrored study %s: %w", studyID, err)
	}
	return nil
}
