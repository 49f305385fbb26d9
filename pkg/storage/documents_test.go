package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	args := m.Called(ctx, bucket, key, body)
	return args.Error(0)
}

func (m *MockS3Client) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockS3Client) Delete(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *MockS3Client) GetPresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, expiration)
	return args.String(0), args.Error(1)
}

func TestGenerateKey(t *testing.T) {
	key := GenerateKey("user-1", KindQuotation, "My Quote (final).pdf")

	assert.True(t, strings.HasPrefix(key, "projects/user-1/quotation/"))
	assert.True(t, strings.HasSuffix(key, "-My_Quote__final_.pdf"))
}

func TestGenerateKeyStripsDirectories(t *testing.T) {
	key := GenerateKey("u", KindUpload, "../../etc/passwd")
	assert.True(t, strings.HasSuffix(key, "-passwd"))
	assert.NotContains(t, key, "..")
}

func TestDocumentStorePut(t *testing.T) {
	s3 := new(MockS3Client)
	store := NewDocumentStore(s3, "portal-docs", time.Hour)
	ctx := context.Background()

	s3.On("Upload", ctx, "portal-docs", mock.AnythingOfType("string"), mock.Anything).Return(nil)
	s3.On("GetPresignedURL", ctx, "portal-docs", mock.AnythingOfType("string"), time.Hour).Return("https://example.com/doc.pdf", nil)

	file, err := store.Put(ctx, "user-1", KindDocumentation, "doc.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/doc.pdf", file.URL)
	assert.Equal(t, "doc.pdf", file.OriginalName)
	assert.True(t, strings.HasPrefix(file.Key, "projects/user-1/documentation/"))
	s3.AssertExpectations(t)
}

func TestDocumentStorePutUploadFails(t *testing.T) {
	s3 := new(MockS3Client)
	store := NewDocumentStore(s3, "portal-docs", 0)
	ctx := context.Background()

	s3.On("Upload", ctx, "portal-docs", mock.AnythingOfType("string"), mock.Anything).Return(errors.New("denied"))

	_, err := store.Put(ctx, "user-1", KindUpload, "a.pdf", []byte("x"))
	assert.Error(t, err)
	s3.AssertNotCalled(t, "GetPresignedURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentStoreURL(t *testing.T) {
	s3 := new(MockS3Client)
	store := NewDocumentStore(s3, "portal-docs", 0)
	ctx := context.Background()

	s3.On("GetPresignedURL", ctx, "portal-docs", "projects/u/quotation/q.pdf", DefaultURLExpiry).
		Return("https://example.com/q.pdf?sig=1", nil)

	url, err := store.URL(ctx, "projects/u/quotation/q.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/q.pdf?sig=1", url)

	url, err = store.URL(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, url)
	s3.AssertNumberOfCalls(t, "GetPresignedURL", 1)
}

func TestDocumentStoreOpenAndRemove(t *testing.T) {
	s3 := new(MockS3Client)
	store := NewDocumentStore(s3, "portal-docs", time.Hour)
	ctx := context.Background()

	s3.On("Download", ctx, "portal-docs", "k").Return(io.NopCloser(strings.NewReader("brief")), nil)
	s3.On("Delete", ctx, "portal-docs", "k").Return(nil)

	rc, err := store.Open(ctx, "k")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "brief", string(body))

	require.NoError(t, store.Remove(ctx, "k"))
	s3.AssertExpectations(t)
}
