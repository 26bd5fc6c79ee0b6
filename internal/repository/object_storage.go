package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	appconfig "github.com/AmirMahdi-for/pipeline/internal/config"
	"github.com/AmirMahdi-for/pipeline/internal/domain"
)

// ObjectStorage is the capability set the processing pipeline needs
// from an S3-compatible store. Every failure is reported as a
// *domain.StorageError carrying the underlying cause.
type ObjectStorage interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type objectStorage struct {
	client *s3.Client
	cfg    *appconfig.S3Config
	log    *zap.Logger
}

func NewObjectStorage(cfg *appconfig.S3Config, log *zap.Logger) (ObjectStorage, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				Source:            aws.EndpointSourceCustom,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithEndpointResolverWithOptions(customResolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	store := &objectStorage{
		client: client,
		cfg:    cfg,
		log:    log,
	}

	if err := store.ensureBucketExists(context.Background()); err != nil {
		log.Warn("Failed to ensure bucket exists", zap.Error(err))
	}

	return store, nil
}

func (s *objectStorage) ensureBucketExists(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.BucketName),
	})
	if err == nil {
		return nil
	}

	s.log.Info("Creating bucket", zap.String("bucket", s.cfg.BucketName))

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.cfg.BucketName),
		CreateBucketConfiguration: &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.cfg.Region),
		},
	})
	return err
}

func (s *objectStorage) Download(ctx context.Context, key string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("Failed to download object",
			zap.String("key", key),
			zap.Error(err))
		return nil, &domain.StorageError{Op: "download", Key: key, Err: err}
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, &domain.StorageError{Op: "download", Key: key, Err: err}
	}

	s.log.Info("Object downloaded",
		zap.String("key", key),
		zap.Int("size", len(data)))

	return data, nil
}

func (s *objectStorage) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		s.log.Error("Failed to upload object",
			zap.String("key", key),
			zap.Error(err))
		return "", &domain.StorageError{Op: "upload", Key: key, Err: err}
	}

	location := fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.cfg.Endpoint, "/"), s.cfg.BucketName, key)

	s.log.Info("Object uploaded",
		zap.String("key", key),
		zap.Int("size", len(body)),
		zap.String("location", location))

	return location, nil
}
