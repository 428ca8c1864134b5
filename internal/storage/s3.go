package storage

import (
	"context"
	"errors"
	"io"
	"log"
	"os"

	"mycloud/config"
	"mycloud/internal/apperror"
	"mycloud/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store : блобы в S3-совместимом хранилище. Объект появляется целиком после PutObject,
// поэтому загрузка сначала пишется во временный файл с проверкой размера
type S3Store struct {
	client  *s3.Client
	bucket  string
	tempDir string
}

func NewS3Store(ctx context.Context, cfg *config.S3Config, tempDir string) (*S3Store, error) {
	var client *s3.Client

	if cfg.Client != nil {
		client = cfg.Client
	} else if cfg.Local {
		client = s3.New(s3.Options{
			Region: cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				"minioadmin",
				"minioadmin",
				"",
			),
			BaseEndpoint: aws.String(cfg.Endpoint),
			UsePathStyle: true,
		})

		if err := createBucketIfNotExists(ctx, client, cfg.Bucket); err != nil {
			return nil, util.LogError("[S3Store] ошибка создания бакета", err)
		}
	} else {
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, util.LogError("[S3Store] ошибка загрузки AWS config", err)
		}
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		tempDir: tempDir,
	}, nil
}

// createBucketIfNotExists создает бакет если он не существует
func createBucketIfNotExists(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})

	if err == nil {
		return nil // Бакет уже существует
	}

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})

	if err != nil {
		return util.LogError("[S3Store] ошибка создания бакета", err)
	}

	log.Printf("[S3Store] бакет %s успешно создан", bucket)
	return nil
}

// MkdirAll : в S3 каталогов нет
func (s *S3Store) MkdirAll(ctx context.Context, dir string) error {
	return nil
}

func (s *S3Store) WriteAtomic(ctx context.Context, relPath string, src io.Reader, limit int64) (int64, error) {
	key, err := CleanRelPath(relPath)
	if err != nil {
		return 0, err
	}

	spool, err := os.CreateTemp(s.tempDir, "upload-*.tmp")
	if err != nil {
		return 0, apperror.IO("не удалось создать временный файл", err)
	}
	defer func() {
		_ = spool.Close()
		if err := os.Remove(spool.Name()); err != nil && !os.IsNotExist(err) {
			log.Printf("[S3Store] не удалось удалить временный файл %s: %v", spool.Name(), err)
		}
	}()

	written, err := CopyLimited(ctx, spool, src, limit)
	if err != nil {
		return written, err
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return 0, apperror.IO("не удалось перечитать временный файл", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          spool,
		ContentLength: aws.Int64(written),
	})
	if err != nil {
		return 0, apperror.IO("не удалось загрузить объект в S3", err)
	}

	return written, nil
}

func (s *S3Store) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	key, err := CleanRelPath(relPath)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, apperror.NotFound("файл отсутствует в хранилище")
		}
		return nil, apperror.IO("не удалось получить объект из S3", err)
	}
	return out.Body, nil
}

func (s *S3Store) Stat(ctx context.Context, relPath string) (int64, error) {
	key, err := CleanRelPath(relPath)
	if err != nil {
		return 0, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, apperror.NotFound("файл отсутствует в хранилище")
		}
		return 0, apperror.IO("не удалось получить информацию об объекте", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Remove : DeleteObject для отсутствующего ключа в S3 не ошибка
func (s *S3Store) Remove(ctx context.Context, relPath string) error {
	key, err := CleanRelPath(relPath)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperror.IO("не удалось удалить объект из S3", err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
