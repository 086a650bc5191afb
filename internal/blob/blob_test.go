package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestReceiptStore_Put(t *testing.T) {
	fake := &fakeS3{}
	s := NewWithClient(fake, "receipts-bucket")
	s.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }

	r, err := s.Put(context.Background(), "user-1", pngHeader)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(r.Key, "receipts/user-1/20261015-"), r.Key)
	assert.True(t, strings.HasSuffix(r.Key, ".png"), r.Key)
	assert.Equal(t, "image/png", r.ContentType)
	assert.Equal(t, int64(len(pngHeader)), r.Size)

	assert.Equal(t, "receipts-bucket", aws.ToString(fake.in.Bucket))
	assert.Equal(t, r.Key, aws.ToString(fake.in.Key))
	assert.Equal(t, "user-1", fake.in.Metadata["user-id"])
	assert.Equal(t, pngHeader, fake.body)
}

func TestReceiptStore_PutErrors(t *testing.T) {
	s := NewWithClient(&fakeS3{err: errors.New("access denied")}, "b")

	_, err := s.Put(context.Background(), "", pngHeader)
	assert.Error(t, err)

	_, err = s.Put(context.Background(), "user-1", pngHeader)
	assert.ErrorContains(t, err, "access denied")
}

func TestReceiptStore_URLNeedsPresigner(t *testing.T) {
	s := NewWithClient(&fakeS3{}, "b")

	_, err := s.URL(context.Background(), "receipts/x.png", time.Minute)
	assert.Error(t, err)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".jpg", extension("image/jpeg"))
	assert.Equal(t, ".bin", extension("application/octet-stream"))
}
