package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestArchiveKeyLayout(t *testing.T) {
	p := &fakePutter{}
	a := newArchiver(p, "bucket", "/logs/")
	a.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

	key, err := a.Archive(context.Background(), "agent", "hello")
	require.NoError(t, err)
	assert.Equal(t, "logs/agent/2025/03/04/1741064767.log", key)
	assert.Equal(t, "bucket", aws.ToString(p.in.Bucket))
	assert.Equal(t, key, aws.ToString(p.in.Key))
	assert.Equal(t, "hello", p.body)
}

func TestArchiveError(t *testing.T) {
	a := newArchiver(&fakePutter{err: errors.New("denied")}, "bucket", "")
	_, err := a.Archive(context.Background(), "agent", "x")
	assert.ErrorContains(t, err, "denied")
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("http://minio:9000"))
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("e2.example.com"))
}
