// Package blob archives scanned receipt images in S3-compatible storage.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/xid"
)

// Config holds construction parameters for the receipt bucket.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; MinIO or another S3-compatible server
	PathStyle bool
}

// ObjectAPI is the S3 surface the archive uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Receipt describes one archived image.
type Receipt struct {
	Key         string    `json:"key"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	StoredAt    time.Time `json:"storedAt"`
}

// ReceiptStore writes receipt images under receipts/<userID>/.
type ReceiptStore struct {
	client  ObjectAPI
	presign *s3.PresignClient
	bucket  string
	now     func() time.Time
}

// New creates a store from the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*ReceiptStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	s := NewWithClient(client, cfg.Bucket)
	s.presign = s3.NewPresignClient(client)
	return s, nil
}

// NewWithClient wraps an existing client. Presigned links are unavailable.
func NewWithClient(client ObjectAPI, bucket string) *ReceiptStore {
	return &ReceiptStore{client: client, bucket: bucket, now: time.Now}
}

// Put stores img for userID and returns its key.
func (s *ReceiptStore) Put(ctx context.Context, userID string, img []byte) (*Receipt, error) {
	if userID == "" {
		return nil, fmt.Errorf("blob: user id required")
	}
	ct := http.DetectContentType(img)
	now := s.now().UTC()
	key := fmt.Sprintf("receipts/%s/%s-%s%s", userID, now.Format("20060102"), xid.New().String(), extension(ct))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img),
		ContentType:   aws.String(ct),
		ContentLength: aws.Int64(int64(len(img))),
		Metadata:      map[string]string{"user-id": userID},
	})
	if err != nil {
		return nil, fmt.Errorf("storing receipt %s: %w", key, err)
	}
	return &Receipt{Key: key, ContentType: ct, Size: int64(len(img)), StoredAt: now}, nil
}

// URL returns a presigned GET link for key, valid for expiry.
func (s *ReceiptStore) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.presign == nil {
		return "", fmt.Errorf("blob: presigning not configured")
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = expiry })
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", key, err)
	}
	return req.URL, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".bin"
}
