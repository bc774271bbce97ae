package publish

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Publisher stores the image in a bucket and hands out a presigned GET URL
// that stays valid for expiry.
type S3Publisher struct {
	client    s3API
	presigner presignAPI
	bucket    string
	prefix    string
	expiry    time.Duration
}

func NewS3Publisher(ctx context.Context, bucket, region, prefix string, expiry time.Duration) (*S3Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Publisher{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		prefix:    prefix,
		expiry:    expiry,
	}, nil
}

func (p *S3Publisher) Publish(ctx context.Context, imagePath string, meta Metadata) (*HostedImage, error) {
	data, err := readImage(imagePath, MaxImageSize)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	key := path.Join(p.prefix, id+".jpg")
	input := &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	}
	if meta.Title != "" || meta.Description != "" {
		input.Metadata = map[string]string{}
		if meta.Title != "" {
			input.Metadata["title"] = meta.Title
		}
		if meta.Description != "" {
			input.Metadata["description"] = meta.Description
		}
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to upload image to S3: %w", err)
	}

	presigned, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign image URL: %w", err)
	}
	if presigned == nil || presigned.URL == "" {
		return nil, fmt.Errorf("%w: presigned url", ErrMissingField)
	}

	log.Info().
		Str("bucket", p.bucket).
		Str("key", key).
		Dur("expiry", p.expiry).
		Msg("Image uploaded to S3")

	return &HostedImage{
		Link:      presigned.URL,
		ID:        key,
		Size:      int64(len(data)),
		ExpiresAt: time.Now().Add(p.expiry),
	}, nil
}
