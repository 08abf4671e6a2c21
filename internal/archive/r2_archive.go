package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"

	cfg "github.com/fedibridge/skybridge/configs"
)

// R2Archive mirrors cross-posted media blobs to Cloudflare R2 so originals
// survive even if the source PDS garbage-collects them. Entirely optional:
// a deployment without R2 credentials gets a nil archive.
type R2Archive struct {
	config cfg.Config
}

// NewR2Archive returns nil when R2 is not configured; callers treat a nil
// archive as disabled.
func NewR2Archive(config cfg.Config) *R2Archive {
	r2 := config.R2
	if r2.AccountID == "" || r2.AccessKey == "" || r2.SecretKey == "" || r2.BucketName == "" {
		return nil
	}
	return &R2Archive{config: config}
}

func (a *R2Archive) client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(a.config.R2.AccessKey, a.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", a.config.R2.AccountID))
	}), nil
}

// Store uploads blob bytes under the given key. An empty key gets a random
// one; an empty content type is sniffed from the bytes.
func (a *R2Archive) Store(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		key = id
	}

	if contentType == "" {
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			contentType = kind.MIME.Value
		} else {
			contentType = "application/octet-stream"
		}
	}

	client, err := a.client(ctx)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
