package docs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cehpoint/project-portal/project-portal-backend/pkg/storage"
	"cehpoint/project-portal/project-portal-backend/pkg/textgen"
)

type MockFileHost struct {
	mock.Mock
}

func (m *MockFileHost) Put(ctx context.Context, owner, kind, fileName string, content []byte) (*storage.HostedFile, error) {
	args := m.Called(ctx, owner, kind, fileName, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.HostedFile), args.Error(1)
}

func (m *MockFileHost) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockFileHost) Remove(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, operation, prompt string) (string, error) {
	args := m.Called(ctx, operation, prompt)
	return args.String(0), args.Error(1)
}

func newTestService() (*Service, *MockFileHost, *MockGenerator) {
	host := new(MockFileHost)
	gen := new(MockGenerator)
	return NewService(host, NewExtractor(), gen, nil), host, gen
}

func TestGenerateFromTemplate(t *testing.T) {
	svc, _, _ := newTestService()

	html, err := svc.GenerateFromTemplate("Website <Redesign>", "A new storefront.", []string{"Web", "Mobile"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(html, "<h1>"))
	assert.Contains(t, html, "Website &lt;Redesign&gt; - Developer Documentation")
	assert.Contains(t, html, "<li>Web</li>")
	assert.Contains(t, html, "<li>Mobile</li>")
	assert.Contains(t, html, "2. Technical Implementation")
}

func TestGenerateFromTemplateMissingFields(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.GenerateFromTemplate("  ", "overview", nil)
	assert.ErrorIs(t, err, ErrMissingProjectFields)

	_, err = svc.GenerateFromTemplate("Name", "", nil)
	assert.ErrorIs(t, err, ErrMissingProjectFields)
}

func TestImprove(t *testing.T) {
	svc, host, gen := newTestService()
	ctx := context.Background()
	content := []byte("We need an online shop with a cart.")

	host.On("Put", ctx, "user-1", storage.KindUpload, "brief.txt", content).
		Return(&storage.HostedFile{Key: "projects/user-1/uploads/x-brief.txt", URL: "https://files/x"}, nil)
	gen.On("Generate", ctx, operationImprove, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "We need an online shop with a cart.")
	})).Return("Sure! Here is your document.\n\n## Overview\n\n| Page | Route |\n|---|---|\n| Cart | /cart |\n\n<script>alert(1)</script>", nil)

	out, err := svc.Improve(ctx, "user-1", "brief.txt", content)
	require.NoError(t, err)

	assert.Equal(t, "https://files/x", out.Source.URL)
	assert.NotContains(t, out.HTML, "Sure! Here is")
	assert.Contains(t, out.HTML, "<h2>Overview</h2>")
	assert.Contains(t, out.HTML, "<table>")
	assert.NotContains(t, out.HTML, "<script>alert")
	assert.Contains(t, out.HTML, "<title>brief - Improved Documentation</title>")
	host.AssertExpectations(t)
	gen.AssertExpectations(t)
}

func TestImproveGenerationFailure(t *testing.T) {
	svc, host, gen := newTestService()
	ctx := context.Background()
	content := []byte("plain brief")

	host.On("Put", ctx, "user-1", storage.KindUpload, "brief.txt", content).
		Return(&storage.HostedFile{Key: "k", URL: "u"}, nil)
	gen.On("Generate", ctx, operationImprove, mock.Anything).
		Return("", &textgen.APIError{Name: "RESOURCE_EXHAUSTED", StatusCode: 429, Message: "quota"})
	host.On("Remove", mock.Anything, "k").Return(nil)

	_, err := svc.Improve(ctx, "user-1", "brief.txt", content)
	assert.ErrorIs(t, err, ErrGenerationFailed)

	var apiErr *textgen.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 429, apiErr.StatusCode)
	host.AssertExpectations(t)
}

func TestImproveRemovesSourceAfterCancelledRequest(t *testing.T) {
	svc, host, gen := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	content := []byte("plain brief")

	host.On("Put", ctx, "user-1", storage.KindUpload, "brief.txt", content).
		Return(&storage.HostedFile{Key: "k", URL: "u"}, nil)
	gen.On("Generate", ctx, operationImprove, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)
	host.On("Remove", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), "k").Return(nil)

	_, err := svc.Improve(ctx, "user-1", "brief.txt", content)
	assert.ErrorIs(t, err, context.Canceled)
	host.AssertExpectations(t)
}

func TestImproveUploadFailure(t *testing.T) {
	svc, host, gen := newTestService()
	ctx := context.Background()

	host.On("Put", ctx, "user-1", storage.KindUpload, "brief.pdf", mock.Anything).Return(nil, errors.New("s3 down"))

	_, err := svc.Improve(ctx, "user-1", "brief.pdf", []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrGenerationFailed)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestImproveEmptyUpload(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Improve(context.Background(), "user-1", "brief.pdf", nil)
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

func TestStripPreamble(t *testing.T) {
	assert.Equal(t, "## A\ntext", StripPreamble("Here you go:\n\n## A\ntext\n"))
	assert.Equal(t, "no headings", StripPreamble("  no headings "))
	assert.Equal(t, "## B", StripPreamble("  ## B"))
}

func TestExtractorPlainText(t *testing.T) {
	text, err := NewExtractor().Extract([]byte("  hello world \n"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	_, err = NewExtractor().Extract([]byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, ErrUnreadableDocument)
}

func TestExtractorBrokenPDF(t *testing.T) {
	_, err := NewExtractor().Extract([]byte("%PDF-1.4\nthis is not a real pdf"))
	assert.ErrorIs(t, err, ErrUnreadableDocument)
}

func TestSuggestMissingFields(t *testing.T) {
	svc, _, gen := newTestService()

	_, err := svc.Suggest(context.Background(), "title", "", "Go")
	assert.ErrorIs(t, err, ErrMissingSuggestFields)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func setupRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestSuggestHandler(t *testing.T) {
	svc, _, gen := newTestService()
	gen.On("Generate", mock.Anything, operationSuggest, mock.MatchedBy(func(p string) bool {
		return strings.HasSuffix(strings.TrimSpace(p), "title: Sum\ndescription: add numbers\nLanguage: Go")
	})).Return("func Sum(a, b int) int { return a + b }", nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documentation-generation",
		strings.NewReader(`{"title":"Sum","description":"add numbers","language":"Go"}`))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "suggestedMessages")
	assert.Contains(t, w.Body.String(), "func Sum")
}

func TestSuggestHandlerPropagatesUpstreamStatus(t *testing.T) {
	svc, _, gen := newTestService()
	gen.On("Generate", mock.Anything, operationSuggest, mock.Anything).
		Return("", &textgen.APIError{Name: "PERMISSION_DENIED", StatusCode: 403, Message: "API key invalid"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documentation-generation",
		strings.NewReader(`{"title":"Sum","description":"add","language":"Go"}`))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "API key invalid")
}

func TestSuggestHandlerMissingFields(t *testing.T) {
	svc, _, _ := newTestService()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documentation-generation", strings.NewReader(`{"title":"Sum"}`))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing required fields")
}
