package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]string{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = string(raw)
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct {
	gotTTL time.Duration
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*presignedRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.gotTTL = opts.Expires
	return &presignedRequest{URL: "https://" + aws.ToString(in.Bucket) + ".s3.local/" + aws.ToString(in.Key)}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	presigner := &fakePresigner{}
	store := &S3Store{client: fake, presigner: presigner, bucket: "thinkr"}

	require.NoError(t, store.Put(ctx, "ada@example.com-notes.pdf", "application/pdf", strings.NewReader("%PDF"), 4))
	assert.Equal(t, "application/pdf", fake.types["ada@example.com-notes.pdf"])

	rc, err := store.Get(ctx, "ada@example.com-notes.pdf")
	require.NoError(t, err)
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF", string(raw))

	url, err := store.PresignGet(ctx, "ada@example.com-notes.pdf", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://thinkr.s3.local/ada@example.com-notes.pdf", url)
	assert.Equal(t, time.Hour, presigner.gotTTL)

	require.NoError(t, store.Delete(ctx, "ada@example.com-notes.pdf"))
	_, err = store.Get(ctx, "ada@example.com-notes.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StorePutWrapsError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	store := &S3Store{client: fake, presigner: &fakePresigner{}, bucket: "thinkr"}

	err := store.Put(context.Background(), "k", "", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
