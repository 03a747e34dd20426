package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/fabric_api/internal/config"
	"github.com/GTDGit/fabric_api/internal/utils"
)

// MaxImageSize bounds a single product image upload.
const MaxImageSize = 5 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadResult identifies a stored image.
type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// S3Storage stores product images in an S3 compatible bucket using SigV4
// signed PUT requests.
type S3Storage struct {
	bucket        string
	region        string
	endpoint      string
	publicBaseURL string
	credentials   aws.CredentialsProvider
	signer        *v4.Signer
	httpClient    *http.Client
	now           func() time.Time
}

// NewS3Storage loads AWS credentials (static keys from config when present,
// otherwise the default chain) and returns a storage client.
func NewS3Storage(ctx context.Context, cfg *config.S3Config) (*S3Storage, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.New("S3 bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &S3Storage{
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		credentials:   awsCfg.Credentials,
		signer:        v4.NewSigner(),
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		now:           time.Now,
	}, nil
}

// UploadProductImage validates and stores one product image.
func (s *S3Storage) UploadProductImage(ctx context.Context, filename, contentType string, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, utils.BadRequest("File is empty")
	}
	if len(data) > MaxImageSize {
		return nil, utils.BadRequest("File exceeds the 5MB limit")
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, utils.BadRequest("Only JPEG, PNG, WebP and GIF images are allowed")
	}
	if ext == ".jpg" && strings.ToLower(path.Ext(filename)) == ".jpeg" {
		ext = ".jpeg"
	}

	now := s.now().UTC()
	key := fmt.Sprintf("products/%s/%s%s", now.Format("2006/01"), uuid.NewString(), ext)
	if err := s.putObject(ctx, key, data, contentType); err != nil {
		return nil, err
	}
	return &UploadResult{URL: s.PublicURL(key), PublicID: key}, nil
}

func (s *S3Storage) putObject(ctx context.Context, key string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(key), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	sum := sha256.Sum256(data)
	payloadHash := hex.EncodeToString(sum[:])
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	creds, err := s.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("retrieve AWS credentials: %w", err)
	}
	if err := s.signer.SignHTTP(ctx, creds, req, payloadHash, "s3", s.region, s.now().UTC()); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload to S3")
		return utils.BadGateway("Image upload failed").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error().
			Str("key", key).
			Int("status", resp.StatusCode).
			Str("response", string(body)).
			Msg("S3 upload failed")
		return utils.BadGateway("Image upload failed").Wrap(fmt.Errorf("s3 status %d", resp.StatusCode))
	}

	log.Info().Str("key", key).Msg("Successfully uploaded to S3")
	return nil
}

// objectURL uses path-style addressing for custom endpoints (MinIO, R2) and
// virtual-hosted addressing for AWS.
func (s *S3Storage) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// PublicURL returns the URL clients should use to fetch the object.
func (s *S3Storage) PublicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return s.objectURL(key)
}
