package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/semmidev/ledgervault/internal/config"
	"github.com/semmidev/ledgervault/internal/domain"
)

// objectAPI is the slice of the S3 client this backend calls. Tests stub
// it; production wiring passes *s3.Client.
type objectAPI interface {
	s3manager.UploadAPIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// listPageSize caps a single List call; owners accumulate at most a
// handful of backups, so one page is plenty.
const listPageSize = 100

// S3Backend stores archives under key <ownerID>/<filename> in a fixed
// bucket of an S3-compatible object store. The bucket is provisioned
// lazily on first use.
type S3Backend struct {
	client   objectAPI
	uploader *s3manager.Uploader
	bucket   string
	maxSize  int64
	timeout  time.Duration
}

// NewS3 builds the backend from deployment config. Custom endpoints get
// path-style addressing so S3-compatible stores (MinIO, Ceph RGW) work
// without virtual-host DNS.
func NewS3(cfg *appconfig.StorageConfig, maxArchiveSize int64) (*S3Backend, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Backend{
		client:   client,
		uploader: s3manager.NewUploader(client),
		bucket:   cfg.Bucket,
		maxSize:  maxArchiveSize,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, nil
}

func (s *S3Backend) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ensureBucket verifies the bucket exists and creates it on a genuine
// not-found. Both check and create failures become ProvisioningError;
// everything else about the backup pipeline can retry, a missing bucket
// cannot.
func (s *S3Backend) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *s3types.NotFound
	if !errors.As(err, &notFound) {
		return &domain.ProvisioningError{Bucket: s.bucket, Err: err}
	}

	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	}); err != nil {
		return &domain.ProvisioningError{Bucket: s.bucket, Err: err}
	}

	// Non-public by policy: archives hold tenant ledgers.
	if _, err := s.client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(s.bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	}); err != nil {
		return &domain.ProvisioningError{Bucket: s.bucket, Err: err}
	}

	return nil
}

// Put uploads the staged archive under <ownerID>/<filename> and deletes
// the staging file on success. An object already present at that key is
// overwritten; names are timestamp-derived so collisions are tolerated.
func (s *S3Backend) Put(ctx context.Context, ownerID, archivePath string) (string, int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.ensureBucket(ctx); err != nil {
		return "", 0, err
	}

	name := filepath.Base(archivePath)
	if !strings.HasSuffix(name, domain.ArchiveExt) {
		return "", 0, fmt.Errorf("refusing to upload %q: only %s archives are allowed", name, domain.ArchiveExt)
	}

	// The size ceiling makes a full in-memory read acceptable.
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read staged archive: %w", err)
	}
	size := int64(len(data))
	if s.maxSize > 0 && size > s.maxSize {
		return "", 0, fmt.Errorf("archive size %d exceeds limit of %d bytes", size, s.maxSize)
	}

	key := objectKey(ownerID, name)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(domain.ArchiveContentType),
	}); err != nil {
		return "", 0, &domain.TransferError{Op: "upload", Key: key, Err: err}
	}

	os.Remove(archivePath)
	return name, size, nil
}

// List returns the owner's objects sorted by creation time descending.
// The provider orders keys lexicographically, so the sort happens here.
func (s *S3Backend) List(ctx context.Context, ownerID string) ([]domain.BackupRecord, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	prefix := ownerID + "/"
	resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(listPageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
	}

	records := make([]domain.BackupRecord, 0, len(resp.Contents))
	for _, obj := range resp.Contents {
		name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
		if name == "" {
			continue
		}
		records = append(records, domain.BackupRecord{
			ID:        name,
			Name:      name,
			Size:      aws.ToInt64(obj.Size),
			CreatedAt: aws.ToTime(obj.LastModified),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// Get downloads the object to a temp file. The returned cleanup removes
// the download and must run regardless of how the restore ends.
func (s *S3Backend) Get(ctx context.Context, ownerID, storedID string) (string, func(), error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	key := objectKey(ownerID, storedID)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", nil, fmt.Errorf("%w: %s", domain.ErrBackupNotFound, storedID)
		}
		return "", nil, &domain.TransferError{Op: "download", Key: key, Err: err}
	}
	defer resp.Body.Close()

	tempFile, err := os.CreateTemp("", "restore_*"+domain.ArchiveExt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp download: %w", err)
	}

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return "", nil, &domain.TransferError{Op: "download", Key: key, Err: err}
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempFile.Name())
		return "", nil, fmt.Errorf("failed to finalize download: %w", err)
	}

	path := tempFile.Name()
	return path, func() { os.Remove(path) }, nil
}

// Delete removes the object at <ownerID>/<storedID>.
func (s *S3Backend) Delete(ctx context.Context, ownerID, storedID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	key := objectKey(ownerID, storedID)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// objectKey joins the owner namespace and filename with a forward slash;
// filepath.Join would break keys on Windows.
func objectKey(ownerID, name string) string {
	return ownerID + "/" + name
}
