package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const defaultPresignTTL = 15 * time.Minute

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
	PresignTTL time.Duration
}

// Object describes a chat or diagnostic media file about to be uploaded.
type Object struct {
	Key         string
	ContentType string
	Size        int64
}

// PresignedRequest is a signed URL plus the headers the client must send
// with it.
type PresignedRequest struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// MediaStore holds message attachments and diagnostic images. Clients move
// the bytes directly; the server only signs and checks.
type MediaStore interface {
	PresignPut(ctx context.Context, obj Object) (PresignedRequest, error)
	PresignGet(ctx context.Context, key string) (PresignedRequest, error)
	Exists(ctx context.Context, key string) (bool, error)
	// FileURL is the stable public URL for key, or "" when the bucket is
	// private and reads must be presigned.
	FileURL(key string) string
}

type Client struct {
	bucket     string
	publicBase string
	ttl        time.Duration
	s3         *s3.Client
	presign    *s3.PresignClient
	now        func() time.Time
}

func NewClient(ctx context.Context, cfg S3Config) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	// MinIO and LocalStack need path-style addressing.
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(strings.TrimRight(cfg.Endpoint, "/"))
			o.UsePathStyle = true
		}
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	return &Client{
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
		ttl:        ttl,
		s3:         s3Client,
		presign:    s3.NewPresignClient(s3Client),
		now:        time.Now,
	}, nil
}

func (c *Client) PresignPut(ctx context.Context, obj Object) (PresignedRequest, error) {
	if obj.Key == "" {
		return PresignedRequest{}, errors.New("object key is required")
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(obj.Key),
	}
	headers := map[string]string{}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
		headers["Content-Type"] = obj.ContentType
	}
	if obj.Size > 0 {
		input.ContentLength = aws.Int64(obj.Size)
		headers["Content-Length"] = strconv.FormatInt(obj.Size, 10)
	}

	signed, err := c.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(c.ttl))
	if err != nil {
		return PresignedRequest{}, err
	}
	return PresignedRequest{URL: signed.URL, Method: signed.Method, Headers: headers, ExpiresAt: c.now().Add(c.ttl)}, nil
}

func (c *Client) PresignGet(ctx context.Context, key string) (PresignedRequest, error) {
	if key == "" {
		return PresignedRequest{}, errors.New("object key is required")
	}
	signed, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.ttl))
	if err != nil {
		return PresignedRequest{}, err
	}
	return PresignedRequest{URL: signed.URL, Method: signed.Method, ExpiresAt: c.now().Add(c.ttl)}, nil
}

// Exists reports whether the client finished uploading key.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	return false, err
}

func (c *Client) FileURL(key string) string {
	if c.publicBase == "" || key == "" {
		return ""
	}
	return c.publicBase + "/" + key
}
