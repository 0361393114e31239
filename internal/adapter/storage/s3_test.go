package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/ledgervault/internal/domain"
)

type stubObjectAPI struct {
	headErr   error
	createErr error

	createCalls int
	blockCalls  int

	putInputs []*s3.PutObjectInput
	putErr    error

	listOutput *s3.ListObjectsV2Output
	listInput  *s3.ListObjectsV2Input
	listErr    error

	getBody []byte
	getErr  error

	deletedKeys []string
}

func (s *stubObjectAPI) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if s.headErr != nil {
		return nil, s.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (s *stubObjectAPI) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &s3.CreateBucketOutput{}, nil
}

func (s *stubObjectAPI) PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error) {
	s.blockCalls++
	return &s3.PutPublicAccessBlockOutput{}, nil
}

func (s *stubObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.putInputs = append(s.putInputs, params)
	if s.putErr != nil {
		return nil, s.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (s *stubObjectAPI) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	s.listInput = params
	if s.listErr != nil {
		return nil, s.listErr
	}
	if s.listOutput != nil {
		return s.listOutput, nil
	}
	return &s3.ListObjectsV2Output{}, nil
}

func (s *stubObjectAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(s.getBody)),
		ContentLength: aws.Int64(int64(len(s.getBody))),
	}, nil
}

func (s *stubObjectAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	s.deletedKeys = append(s.deletedKeys, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

// Multipart methods satisfy s3manager.UploadAPIClient; archives stay far
// below the multipart threshold so these never run.

func (s *stubObjectAPI) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload")}, nil
}

func (s *stubObjectAPI) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return &s3.UploadPartOutput{}, nil
}

func (s *stubObjectAPI) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (s *stubObjectAPI) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func newTestBackend(stub *stubObjectAPI, maxSize int64) *S3Backend {
	return &S3Backend{
		client:   stub,
		uploader: s3manager.NewUploader(stub),
		bucket:   "backups",
		maxSize:  maxSize,
	}
}

func TestS3Backend(t *testing.T) {
	Convey("Given an S3Backend", t, func() {
		ctx := context.Background()

		tempDir, err := os.MkdirTemp("", "s3_backend_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		Convey("ensureBucket", func() {
			Convey("When the bucket already exists", func() {
				stub := &stubObjectAPI{}
				backend := newTestBackend(stub, 0)

				err := backend.ensureBucket(ctx)

				Convey("It should not attempt creation", func() {
					So(err, ShouldBeNil)
					So(stub.createCalls, ShouldEqual, 0)
				})
			})

			Convey("When the bucket is missing", func() {
				stub := &stubObjectAPI{headErr: &s3types.NotFound{}}
				backend := newTestBackend(stub, 0)

				err := backend.ensureBucket(ctx)

				Convey("It should create it and block public access", func() {
					So(err, ShouldBeNil)
					So(stub.createCalls, ShouldEqual, 1)
					So(stub.blockCalls, ShouldEqual, 1)
				})

				Convey("And a second call once it exists is a no-op", func() {
					So(err, ShouldBeNil)
					stub.headErr = nil

					So(backend.ensureBucket(ctx), ShouldBeNil)
					So(stub.createCalls, ShouldEqual, 1)
				})
			})

			Convey("When the existence check fails for another reason", func() {
				stub := &stubObjectAPI{headErr: errors.New("access denied")}
				backend := newTestBackend(stub, 0)

				err := backend.ensureBucket(ctx)

				Convey("It should propagate a provisioning error without creating", func() {
					var provErr *domain.ProvisioningError
					So(errors.As(err, &provErr), ShouldBeTrue)
					So(stub.createCalls, ShouldEqual, 0)
				})
			})

			Convey("When creation fails after a genuine not-found", func() {
				stub := &stubObjectAPI{
					headErr:   &s3types.NotFound{},
					createErr: errors.New("quota exceeded"),
				}
				backend := newTestBackend(stub, 0)

				err := backend.ensureBucket(ctx)

				Convey("It should report a provisioning error", func() {
					var provErr *domain.ProvisioningError
					So(errors.As(err, &provErr), ShouldBeTrue)
				})
			})
		})

		Convey("Put method", func() {
			stageArchive := func(name string, content []byte) string {
				path := filepath.Join(tempDir, name)
				So(os.WriteFile(path, content, 0644), ShouldBeNil)
				return path
			}

			Convey("When uploading a staged archive", func() {
				stub := &stubObjectAPI{}
				backend := newTestBackend(stub, 1024)

				content := []byte("compressed ledger")
				archivePath := stageArchive("backup_2026-08-31T120000_GMT.gz", content)

				storedID, size, err := backend.Put(ctx, "owner-a", archivePath)

				Convey("It should upload under the owner's key prefix", func() {
					So(err, ShouldBeNil)
					So(storedID, ShouldEqual, "backup_2026-08-31T120000_GMT.gz")
					So(size, ShouldEqual, int64(len(content)))

					So(len(stub.putInputs), ShouldEqual, 1)
					So(aws.ToString(stub.putInputs[0].Key), ShouldEqual, "owner-a/backup_2026-08-31T120000_GMT.gz")
					So(aws.ToString(stub.putInputs[0].ContentType), ShouldEqual, domain.ArchiveContentType)
				})

				Convey("It should delete the staging copy", func() {
					So(err, ShouldBeNil)
					_, statErr := os.Stat(archivePath)
					So(os.IsNotExist(statErr), ShouldBeTrue)
				})
			})

			Convey("When the archive exceeds the size ceiling", func() {
				stub := &stubObjectAPI{}
				backend := newTestBackend(stub, 4)

				archivePath := stageArchive("big_GMT.gz", []byte("over the limit"))

				_, _, err := backend.Put(ctx, "owner-a", archivePath)

				Convey("It should refuse before uploading", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "exceeds limit")
					So(len(stub.putInputs), ShouldEqual, 0)
				})
			})

			Convey("When the staged file is not an archive", func() {
				stub := &stubObjectAPI{}
				backend := newTestBackend(stub, 1024)

				path := stageArchive("notes.txt", []byte("plain text"))

				_, _, err := backend.Put(ctx, "owner-a", path)

				Convey("It should be rejected by the content allow-list", func() {
					So(err, ShouldNotBeNil)
					So(len(stub.putInputs), ShouldEqual, 0)
				})
			})

			Convey("When the upload fails", func() {
				stub := &stubObjectAPI{putErr: errors.New("connection reset")}
				backend := newTestBackend(stub, 1024)

				archivePath := stageArchive("fail_GMT.gz", []byte("x"))

				_, _, err := backend.Put(ctx, "owner-a", archivePath)

				Convey("It should surface a transfer error and keep the staging copy", func() {
					var transferErr *domain.TransferError
					So(errors.As(err, &transferErr), ShouldBeTrue)

					_, statErr := os.Stat(archivePath)
					So(statErr, ShouldBeNil)
				})
			})
		})

		Convey("List method", func() {
			now := time.Now().UTC().Truncate(time.Second)
			stub := &stubObjectAPI{
				listOutput: &s3.ListObjectsV2Output{
					Contents: []s3types.Object{
						{
							Key:          aws.String("owner-a/backup_old_GMT.gz"),
							Size:         aws.Int64(10),
							LastModified: aws.Time(now.Add(-2 * time.Hour)),
						},
						{
							Key:          aws.String("owner-a/backup_new_GMT.gz"),
							Size:         aws.Int64(30),
							LastModified: aws.Time(now),
						},
						{
							Key:          aws.String("owner-a/backup_mid_GMT.gz"),
							LastModified: aws.Time(now.Add(-time.Hour)),
						},
					},
				},
			}
			backend := newTestBackend(stub, 0)

			records, err := backend.List(ctx, "owner-a")

			Convey("It should scope the request to the owner prefix with a page cap", func() {
				So(err, ShouldBeNil)
				So(aws.ToString(stub.listInput.Prefix), ShouldEqual, "owner-a/")
				So(aws.ToInt32(stub.listInput.MaxKeys), ShouldEqual, int32(listPageSize))
			})

			Convey("It should map and sort records newest first", func() {
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 3)
				So(records[0].ID, ShouldEqual, "backup_new_GMT.gz")
				So(records[1].ID, ShouldEqual, "backup_mid_GMT.gz")
				So(records[2].ID, ShouldEqual, "backup_old_GMT.gz")

				// Missing provider size metadata defaults to zero.
				So(records[1].Size, ShouldEqual, int64(0))
				So(records[0].Size, ShouldEqual, int64(30))
			})
		})

		Convey("Get method", func() {
			Convey("When the object exists", func() {
				stub := &stubObjectAPI{getBody: []byte("archive payload")}
				backend := newTestBackend(stub, 0)

				path, cleanup, err := backend.Get(ctx, "owner-a", "backup_GMT.gz")

				Convey("It should download to a temp file removed by cleanup", func() {
					So(err, ShouldBeNil)

					content, readErr := os.ReadFile(path)
					So(readErr, ShouldBeNil)
					So(content, ShouldResemble, []byte("archive payload"))

					cleanup()
					_, statErr := os.Stat(path)
					So(os.IsNotExist(statErr), ShouldBeTrue)
				})
			})

			Convey("When the object is missing", func() {
				stub := &stubObjectAPI{getErr: &s3types.NoSuchKey{}}
				backend := newTestBackend(stub, 0)

				_, _, err := backend.Get(ctx, "owner-a", "nonexistent.gz")

				Convey("It should fail with the not-found sentinel", func() {
					So(errors.Is(err, domain.ErrBackupNotFound), ShouldBeTrue)
				})
			})
		})

		Convey("Delete method", func() {
			stub := &stubObjectAPI{}
			backend := newTestBackend(stub, 0)

			err := backend.Delete(ctx, "owner-a", "backup_GMT.gz")

			Convey("It should delete the owner-scoped key", func() {
				So(err, ShouldBeNil)
				So(stub.deletedKeys, ShouldResemble, []string{"owner-a/backup_GMT.gz"})
			})
		})
	})
}
