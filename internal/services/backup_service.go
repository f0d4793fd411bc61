package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"

	"pos-backend/internal/config"
	"pos-backend/internal/models"
	"pos-backend/internal/repositories"
	"pos-backend/internal/timeutil"
)

// ObjectUploader is the part of the S3 client the exporter needs.
type ObjectUploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds a client for any S3-compatible endpoint (R2, MinIO, AWS).
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	if cfg.Backup.AccessKey == "" || cfg.Backup.SecretKey == "" {
		return nil, errors.New("backup credentials are not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Backup.AccessKey,
			cfg.Backup.SecretKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Backup.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure S3 client: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Backup.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Backup.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// BackupService exports the sale log to object storage.
type BackupService struct {
	Store    repositories.Store
	Uploader ObjectUploader
	Bucket   string
}

func NewBackupService(store repositories.Store, uploader ObjectUploader, bucket string) *BackupService {
	return &BackupService{Store: store, Uploader: uploader, Bucket: bucket}
}

var saleCSVHeader = []string{
	"invoice_number", "date", "customer_id", "customer_name", "status", "payment_method",
	"subtotal", "discount_amount", "total_amount", "amount_paid", "remaining", "cost", "profit", "items",
}

// ExportSales uploads a CSV of the branch's sales in [from, to] and returns
// the object key.
func (s *BackupService) ExportSales(ctx context.Context, branchID string, from, to time.Time) (string, error) {
	sales, err := ListAllSales(ctx, s.Store.Branch(branchID).Sales, models.SaleFilter{From: &from, To: &to}, salesPageSize)
	if err != nil {
		return "", err
	}

	data, err := SalesCSV(sales)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("exports/%s/sales-%s-%s.csv", branchID,
		timeutil.Format(from, timeutil.DateLayout), timeutil.Format(to, timeutil.DateLayout))

	_, err = s.Uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	log.WithFields(log.Fields{
		"branch": branchID,
		"key":    key,
		"sales":  len(sales),
		"bytes":  len(data),
	}).Info("[Backup] Sales exported")
	return key, nil
}

// SalesCSV renders one row per sale, oldest first.
func SalesCSV(sales []*models.Sale) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(saleCSVHeader); err != nil {
		return nil, err
	}

	for i := len(sales) - 1; i >= 0; i-- {
		sale := sales[i]
		qty := 0
		for _, it := range sale.Items {
			qty += it.Quantity
		}
		record := []string{
			sale.InvoiceNumber,
			sale.Date.UTC().Format(time.RFC3339),
			sale.CustomerID,
			sale.CustomerName,
			string(sale.Status),
			string(sale.PaymentMethod),
			sale.Subtotal.StringFixed(2),
			sale.DiscountAmount.StringFixed(2),
			sale.TotalAmount.StringFixed(2),
			sale.AmountPaid.StringFixed(2),
			sale.Remaining().StringFixed(2),
			sale.TotalCost().StringFixed(2),
			sale.Profit().StringFixed(2),
			strconv.Itoa(qty),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}
