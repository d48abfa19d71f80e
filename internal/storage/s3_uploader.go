// Package storage uploads chat media straight to S3-compatible object
// storage, as an alternative to the backend's multipart upload endpoint.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"marketplace-chat/internal/domain"
	"marketplace-chat/internal/remote"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const maxMediaBytes = 25 << 20

type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
	// PublicBase, when set, turns object keys into absolute URLs.
	PublicBase string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	cfg S3Config
	s3  objectPutter
}

func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Uploader(cfg, client), nil
}

func newS3Uploader(cfg S3Config, putter objectPutter) *S3Uploader {
	cfg.PublicBase = strings.TrimRight(cfg.PublicBase, "/")
	return &S3Uploader{cfg: cfg, s3: putter}
}

// UploadMedia stores file under chat/{kind}/ and returns its public URL, or
// the bare object key when no public base is configured.
func (u *S3Uploader) UploadMedia(ctx context.Context, kind domain.MessageKind, file remote.File) (string, error) {
	const op = "upload media"
	if !kind.IsMedia() {
		return "", chat_errors.Validation(op, "media kind")
	}
	if file.Body == nil {
		return "", chat_errors.Validation(op, "file")
	}

	data, err := io.ReadAll(io.LimitReader(file.Body, maxMediaBytes+1))
	if err != nil {
		return "", chat_errors.Upload(op, err.Error())
	}
	if len(data) > maxMediaBytes {
		return "", chat_errors.Upload(op, "file too large")
	}

	key := ObjectKey(kind, file.Name)
	_, err = u.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(file)),
	})
	if err != nil {
		return "", chat_errors.Upload(op, err.Error())
	}

	if ref := u.FileURL(key); ref != "" {
		return ref, nil
	}
	return key, nil
}

func (u *S3Uploader) FileURL(key string) string {
	if u == nil || key == "" || u.cfg.PublicBase == "" {
		return ""
	}
	return u.cfg.PublicBase + "/" + key
}

// ObjectKey names a new object: chat/{kind}/{uuid}{ext}.
func ObjectKey(kind domain.MessageKind, filename string) string {
	return "chat/" + string(kind) + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
}

func contentType(file remote.File) string {
	if file.ContentType != "" {
		return file.ContentType
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(file.Name))); t != "" {
		return t
	}
	return "application/octet-stream"
}
