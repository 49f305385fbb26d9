package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document kinds stored under a project prefix
const (
	KindQuotation     = "quotation"
	KindDocumentation = "documentation"
	KindUpload        = "uploads"
)

// DefaultURLExpiry bounds links handed out on read
const DefaultURLExpiry = time.Hour

// HostedFile is what the hosted media endpoint hands back after an upload.
// Key is the durable reference; URL is short-lived.
type HostedFile struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	OriginalName string `json:"original_name"`
}

// DocumentStore hosts project documents in a single bucket
type DocumentStore struct {
	s3        S3Client
	bucket    string
	urlExpiry time.Duration
}

func NewDocumentStore(s3 S3Client, bucket string, urlExpiry time.Duration) *DocumentStore {
	if urlExpiry <= 0 {
		urlExpiry = DefaultURLExpiry
	}
	return &DocumentStore{
		s3:        s3,
		bucket:    bucket,
		urlExpiry: urlExpiry,
	}
}

// Put uploads content and returns a URL that can be shared with other services
func (s *DocumentStore) Put(ctx context.Context, owner, kind, fileName string, content []byte) (*HostedFile, error) {
	key := GenerateKey(owner, kind, fileName)
	if err := s.s3.Upload(ctx, s.bucket, key, bytes.NewReader(content)); err != nil {
		return nil, err
	}

	url, err := s.s3.GetPresignedURL(ctx, s.bucket, key, s.urlExpiry)
	if err != nil {
		return nil, err
	}

	return &HostedFile{
		Key:          key,
		URL:          url,
		OriginalName: fileName,
	}, nil
}

// URL presigns a fresh link for a stored key
func (s *DocumentStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return s.s3.GetPresignedURL(ctx, s.bucket, key, s.urlExpiry)
}

// Open streams a stored document. The caller closes the reader.
func (s *DocumentStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.s3.Download(ctx, s.bucket, key)
}

// Remove deletes a stored document
func (s *DocumentStore) Remove(ctx context.Context, key string) error {
	return s.s3.Delete(ctx, s.bucket, key)
}

// GenerateKey builds projects/<owner>/<kind>/<uuid>-<name>
func GenerateKey(owner, kind, fileName string) string {
	name := sanitizeFileName(fileName)
	return fmt.Sprintf("projects/%s/%s/%s-%s", owner, kind, uuid.NewString(), name)
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, name)
}
