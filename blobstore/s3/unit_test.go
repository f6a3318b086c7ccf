package s3

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointcount/blobstore"
	"github.com/hupe1980/pointcount/internal/hash"
)

func keyIs(key string) func(*s3.HeadObjectInput) bool {
	return func(in *s3.HeadObjectInput) bool { return aws.ToString(in.Key) == key }
}

func TestStore_OpenAndReadAt(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", WithPrefix("db"))
	ctx := context.Background()

	client.On("HeadObject", mock.Anything, mock.MatchedBy(keyIs("db/snap.bin"))).
		Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(10)}, nil)
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Range) == "bytes=2-5"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("2345")))}, nil)

	blob, err := store.Open(ctx, "snap.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(10), blob.Size())

	buf := make([]byte, 4)
	n, err := blob.ReadAt(ctx, buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "2345", string(buf))

	client.AssertExpectations(t)
}

func TestStore_ReadRangeClampsToSize(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket")
	ctx := context.Background()

	client.On("HeadObject", mock.Anything, mock.Anything).
		Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(10)}, nil)
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Range) == "bytes=8-9"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("89")))}, nil)

	blob, err := store.Open(ctx, "x")
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := blob.ReadAt(ctx, buf, 8)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = blob.ReadRange(ctx, 10, 1)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStore_OpenNotFound(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket")

	client.On("HeadObject", mock.Anything, mock.Anything).Return(nil, &types.NotFound{})

	_, err := store.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_PutSetsChecksum(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", WithPrefix("p/"))

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "p/a" && aws.ToString(in.ChecksumCRC32C) == hash.CRC32CBase64([]byte("hello"))
	})).Return(&s3.PutObjectOutput{}, nil)

	require.NoError(t, store.Put(context.Background(), "a", []byte("hello")))
	client.AssertExpectations(t)
}

func TestStore_CreateUploadsOnClose(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket")

	var got []byte
	client.On("PutObject", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			in := args.Get(1).(*s3.PutObjectInput)
			got, _ = io.ReadAll(in.Body)
		}).
		Return(&s3.PutObjectOutput{}, nil)

	w, err := store.Create(context.Background(), "snap")
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	assert.Equal(t, "payload", string(got))
	assert.ErrorIs(t, w.Close(), io.ErrClosedPipe)
}

func TestStore_ListStripsPrefix(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", WithPrefix("db/"))

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.Prefix) == "db/snap"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("db/snap-2")},
			{Key: aws.String("db/snap-1")},
		},
		IsTruncated: aws.Bool(false),
	}, nil)

	names, err := store.List(context.Background(), "snap")
	require.NoError(t, err)
	assert.Equal(t, []string{"snap-1", "snap-2"}, names)
}

func TestStore_DeleteIgnoresMissing(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket")

	client.On("DeleteObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})
	assert.NoError(t, store.Delete(context.Background(), "gone"))
}
