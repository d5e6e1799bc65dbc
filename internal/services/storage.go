package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/chachabrian/mooveit-dispatch/internal/config"
	"github.com/chachabrian/mooveit-dispatch/internal/models"
)

// Receipt is the archived record of a settled payment.
type Receipt struct {
	PaymentID     uint                 `json:"paymentId"`
	BookingID     uint                 `json:"bookingId"`
	Amount        float64              `json:"amount"`
	Method        models.PaymentMethod `json:"method"`
	Status        models.PaymentStatus `json:"status"`
	TransactionID string               `json:"transactionId,omitempty"`
	PaidAt        *time.Time           `json:"paidAt,omitempty"`
	IssuedAt      time.Time            `json:"issuedAt"`
}

// NewReceipt snapshots a payment.
func NewReceipt(p *models.Payment, issuedAt time.Time) Receipt {
	r := Receipt{
		PaymentID: p.ID,
		BookingID: p.BookingID,
		Amount:    p.Amount,
		Method:    p.Method,
		Status:    p.Status,
		PaidAt:    p.PaidAt,
		IssuedAt:  issuedAt.UTC(),
	}
	if p.TransactionID != nil {
		r.TransactionID = *p.TransactionID
	}
	return r
}

// Key is the object path of the receipt. A refund overwrites the completed receipt.
func (r Receipt) Key() string {
	return fmt.Sprintf("receipts/%d.json", r.PaymentID)
}

// ReceiptStore archives receipts and returns where they landed.
type ReceiptStore interface {
	Save(ctx context.Context, receipt Receipt) (string, error)
}

// NewReceiptStore uses S3 when the AWS settings are complete and falls back
// to local files otherwise.
func NewReceiptStore(aws config.AWSConfig, localDir string) (ReceiptStore, error) {
	if aws.Complete() {
		return NewS3ReceiptStore(aws)
	}
	return NewLocalReceiptStore(localDir)
}

// S3ReceiptStore uploads receipts to a bucket.
type S3ReceiptStore struct {
	bucket   string
	uploader *s3manager.Uploader
}

// NewS3ReceiptStore creates an S3-backed store with static credentials.
func NewS3ReceiptStore(cfg config.AWSConfig) (*S3ReceiptStore, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // Token (optional)
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &S3ReceiptStore{bucket: cfg.Bucket, uploader: s3manager.NewUploader(sess)}, nil
}

func (s *S3ReceiptStore) Save(ctx context.Context, receipt Receipt) (string, error) {
	body, err := json.Marshal(receipt)
	if err != nil {
		return "", err
	}

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(receipt.Key()),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload receipt: %w", err)
	}
	return out.Location, nil
}

// LocalReceiptStore writes receipts under a directory.
type LocalReceiptStore struct {
	dir string
}

// NewLocalReceiptStore creates dir if needed.
func NewLocalReceiptStore(dir string) (*LocalReceiptStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "receipts"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create receipt directory: %w", err)
	}
	return &LocalReceiptStore{dir: dir}, nil
}

func (s *LocalReceiptStore) Save(_ context.Context, receipt Receipt) (string, error) {
	body, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, filepath.FromSlash(receipt.Key()))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to save receipt: %w", err)
	}
	return path, nil
}
