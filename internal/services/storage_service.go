// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront/internal/apperrors"
	"github.com/javajoker/storefront/internal/config"
	"github.com/javajoker/storefront/internal/models"
)

const auditPrefix = "inventory-audits"

// StorageService archives inventory audit reports to S3.
type StorageService struct {
	s3Client s3iface.S3API
	bucket   string
	now      func() time.Time
}

type AuditReport struct {
	GeneratedAt   time.Time            `json:"generated_at"`
	Discrepancies []models.Discrepancy `json:"discrepancies"`
}

type ArchiveResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
}

func NewStorageService(cfg config.AWSConfig) (*StorageService, error) {
	if cfg.AccessKeyID == "" {
		// Archiving is disabled for local development
		return &StorageService{bucket: cfg.AuditBucket, now: time.Now}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		bucket:   cfg.AuditBucket,
		now:      time.Now,
	}, nil
}

func (s *StorageService) Enabled() bool {
	return s.s3Client != nil
}

// ArchiveAudit stores the audit result as JSON under
// inventory-audits/<date>/<timestamp>.json.
func (s *StorageService) ArchiveAudit(ctx context.Context, discrepancies []models.Discrepancy) (*ArchiveResult, error) {
	if !s.Enabled() {
		return nil, apperrors.NewInvalidInput("audit archiving is not configured", nil)
	}

	generatedAt := s.now().UTC()
	body, err := json.Marshal(AuditReport{GeneratedAt: generatedAt, Discrepancies: discrepancies})
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit report: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%s.json", auditPrefix, generatedAt.Format("2006-01-02"), generatedAt.Format("20060102T150405Z"))

	_, err = s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return nil, apperrors.NewPersistence("failed to upload audit report", err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket":        s.bucket,
		"key":           key,
		"discrepancies": len(discrepancies),
	}).Info("Inventory audit archived")

	return &ArchiveResult{Bucket: s.bucket, Key: key, Size: int64(len(body))}, nil
}
