package s3

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func testArchiver(client putObjectAPI, prefix string) *Archiver {
	return &Archiver{
		client: client,
		bucket: "quake-archive",
		prefix: prefix,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestArchiver_Upload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "earthquakes_1.csv")
	require.NoError(t, os.WriteFile(path, []byte("Title,Description\n"), 0o600))

	fake := &fakeS3{}
	key, err := testArchiver(fake, "archives/").Upload(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "archives/earthquakes_1.csv", key)
	assert.Equal(t, "quake-archive", fake.bucket)
	assert.Equal(t, key, fake.key)
	assert.Equal(t, "text/csv", fake.contentType)
	assert.Equal(t, []byte("Title,Description\n"), fake.body)
}

func TestArchiver_UploadMissingFile(t *testing.T) {
	_, err := testArchiver(&fakeS3{}, "").Upload(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open archive")
}

func TestArchiver_UploadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "earthquakes_2.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := testArchiver(&fakeS3{err: errors.New("access denied")}, "").Upload(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"archives/", "/data/earthquakes_1.csv", "archives/earthquakes_1.csv"},
		{"archives", "earthquakes_1.csv", "archives/earthquakes_1.csv"},
		{"/a/b/", "x/earthquakes_3.csv", "a/b/earthquakes_3.csv"},
		{"", "/data/earthquakes_1.csv", "earthquakes_1.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ObjectKey(tt.prefix, tt.path), tt.prefix+"|"+tt.path)
	}
}
