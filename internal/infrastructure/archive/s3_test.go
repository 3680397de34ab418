package archive

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3iface.S3API
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	zr, err := gzip.NewReader(in.Body)
	if err != nil {
		return nil, err
	}
	f.body, err = io.ReadAll(zr)
	return &s3.PutObjectOutput{}, err
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "papers.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"doi":"a"}]`), 0o644))
	return path
}

func TestUploadCompressesSnapshot(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{}
	a := NewS3ArchiverWithClient(fake, "papers-bucket", "snapshots/")

	key, err := a.Upload(context.Background(), writeSnapshot(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "snapshots/papers-"))
	assert.True(t, strings.HasSuffix(key, ".json.gz"))
	assert.Equal(t, "papers-bucket", aws.StringValue(fake.input.Bucket))
	assert.Equal(t, key, aws.StringValue(fake.input.Key))
	assert.Equal(t, "gzip", aws.StringValue(fake.input.ContentEncoding))
	assert.Equal(t, `[{"doi":"a"}]`, string(fake.body))
}

func TestUploadWithoutPrefix(t *testing.T) {
	t.Parallel()

	a := NewS3ArchiverWithClient(&fakeS3{}, "b", "")
	key, err := a.Upload(context.Background(), writeSnapshot(t))
	require.NoError(t, err)
	assert.False(t, strings.Contains(key, "/"))
}

func TestUploadErrors(t *testing.T) {
	t.Parallel()

	a := NewS3ArchiverWithClient(&fakeS3{err: errors.New("access denied")}, "b", "p")
	_, err := a.Upload(context.Background(), writeSnapshot(t))
	assert.ErrorContains(t, err, "access denied")

	_, err = a.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
