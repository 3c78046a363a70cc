package report

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/clearlabel/transparency/internal/config"
)

const defaultPresignExpiry = 15 * time.Minute

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Archive uploads rendered reports to S3 and hands out presigned download links.
type Archive struct {
	client    objectPutter
	presigner getPresigner
	bucket    string
	prefix    string
	expiry    time.Duration
}

// NewArchive builds an Archive from config. It returns nil when no bucket is configured.
func NewArchive(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region := strings.TrimSpace(cfg.Region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("report archive: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &Archive{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		expiry:    expiry,
	}, nil
}

// Key returns the object key used for a product's report.
func (a *Archive) Key(productID string, doc *Document) string {
	return path.Join(strings.Trim(a.prefix, "/"), productID, doc.FileName)
}

// Publish uploads the document and returns a presigned GET URL for it.
func (a *Archive) Publish(ctx context.Context, productID string, doc *Document) (string, error) {
	if a == nil {
		return "", fmt.Errorf("report archive: not configured")
	}
	if doc == nil {
		return "", fmt.Errorf("report archive: document is nil")
	}
	key := a.Key(productID, doc)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(a.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(doc.Bytes),
		ContentType:        aws.String("application/pdf"),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", doc.FileName)),
	})
	if err != nil {
		return "", fmt.Errorf("report archive: upload %s: %w", key, err)
	}
	req, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(a.expiry))
	if err != nil {
		return "", fmt.Errorf("report archive: presign %s: %w", key, err)
	}
	return req.URL, nil
}
