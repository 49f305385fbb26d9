package docs

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	texttemplate "text/template"
	"time"

	"go.uber.org/zap"

	"cehpoint/project-portal/project-portal-backend/pkg/storage"
	"cehpoint/project-portal/project-portal-backend/pkg/textgen"
)

var (
	ErrMissingProjectFields = errors.New("project name and overview are required")
	ErrMissingSuggestFields = errors.New("Missing required fields: title, description, or language")
	ErrGenerationFailed     = errors.New("documentation generation failed")
	ErrEmptyUpload          = errors.New("uploaded file is empty")
)

const (
	operationImprove = "improve_documentation"
	operationSuggest = "suggest_code"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed prompts/*.txt
var promptFS embed.FS

var (
	skeletonTemplate = template.Must(template.ParseFS(templateFS, "templates/documentation.html"))
	improvedTemplate = template.Must(template.ParseFS(templateFS, "templates/improved.html"))

	architectPrompt = texttemplate.Must(texttemplate.ParseFS(promptFS, "prompts/architect.txt"))
	codePrompt      = texttemplate.Must(texttemplate.ParseFS(promptFS, "prompts/code.txt"))
)

// FileHost stores documents by key
type FileHost interface {
	Put(ctx context.Context, owner, kind, fileName string, content []byte) (*storage.HostedFile, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

const discardTimeout = 10 * time.Second

// Discard removes hosted files that nothing references. It runs even when ctx
// is already cancelled and only logs failures.
func Discard(ctx context.Context, host FileHost, logger *zap.Logger, keys ...string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	for _, key := range keys {
		if err := host.Remove(ctx, key); err != nil {
			logger.Warn("Failed to remove orphaned document", zap.String("key", key), zap.Error(err))
		}
	}
}

// TextExtractor pulls readable text out of an uploaded document
type TextExtractor interface {
	Extract(content []byte) (string, error)
}

// Improved is the result of running an uploaded document through the model
type Improved struct {
	HTML   string              `json:"html"`
	Source *storage.HostedFile `json:"source"`
}

type Service struct {
	host      FileHost
	extractor TextExtractor
	generator textgen.Generator
	logger    *zap.Logger
}

func NewService(host FileHost, extractor TextExtractor, generator textgen.Generator, logger *zap.Logger) *Service {
	if extractor == nil {
		extractor = NewExtractor()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		host:      host,
		extractor: extractor,
		generator: generator,
		logger:    logger,
	}
}

// GenerateFromTemplate fills the fixed developer documentation skeleton
func (s *Service) GenerateFromTemplate(name, overview string, areas []string) (string, error) {
	name = strings.TrimSpace(name)
	overview = strings.TrimSpace(overview)
	if name == "" || overview == "" {
		return "", ErrMissingProjectFields
	}

	var buf bytes.Buffer
	err := skeletonTemplate.Execute(&buf, struct {
		Name     string
		Overview string
		Areas    []string
	}{name, overview, areas})
	if err != nil {
		return "", fmt.Errorf("render documentation: %w", err)
	}
	return buf.String(), nil
}

// Improve uploads the client's document, asks the model to restructure it and
// returns the answer as a complete HTML document.
func (s *Service) Improve(ctx context.Context, owner, fileName string, content []byte) (*Improved, error) {
	if len(content) == 0 {
		return nil, ErrEmptyUpload
	}

	hosted, err := s.host.Put(ctx, owner, storage.KindUpload, fileName, content)
	if err != nil {
		s.logger.Error("Failed to upload source document", zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("%w: upload: %v", ErrGenerationFailed, err)
	}

	improved, err := s.improve(ctx, owner, fileName, content, hosted)
	if err != nil {
		Discard(ctx, s.host, s.logger, hosted.Key)
		return nil, err
	}
	return improved, nil
}

func (s *Service) improve(ctx context.Context, owner, fileName string, content []byte, hosted *storage.HostedFile) (*Improved, error) {
	text, err := s.extractor.Extract(content)
	if err != nil {
		s.logger.Warn("Failed to extract document text", zap.String("key", hosted.Key), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	var prompt bytes.Buffer
	if err := architectPrompt.Execute(&prompt, struct{ Document string }{text}); err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	answer, err := s.generator.Generate(ctx, operationImprove, prompt.String())
	if err != nil {
		s.logger.Error("Documentation improvement failed", zap.String("key", hosted.Key), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	markdown := StripPreamble(answer)
	if markdown == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrGenerationFailed)
	}

	body, err := MarkdownToHTML(markdown)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	var doc bytes.Buffer
	err = improvedTemplate.Execute(&doc, struct {
		Title string
		Body  template.HTML
	}{documentTitle(fileName), template.HTML(body)})
	if err != nil {
		return nil, fmt.Errorf("render improved documentation: %w", err)
	}

	s.logger.Info("Documentation improved",
		zap.String("owner", owner),
		zap.String("key", hosted.Key),
		zap.Int("source_chars", len(text)),
	)
	return &Improved{HTML: doc.String(), Source: hosted}, nil
}

// Suggest asks the model for a code snippet matching a title and description
func (s *Service) Suggest(ctx context.Context, title, description, language string) (string, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	language = strings.TrimSpace(language)
	if title == "" || description == "" || language == "" {
		return "", ErrMissingSuggestFields
	}

	var prompt bytes.Buffer
	err := codePrompt.Execute(&prompt, struct {
		Title       string
		Description string
		Language    string
	}{title, description, language})
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	answer, err := s.generator.Generate(ctx, operationSuggest, prompt.String())
	if err != nil {
		s.logger.Warn("Code suggestion failed", zap.String("language", language), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return answer, nil
}

// StripPreamble drops any chatter the model emits before its first level-2 heading
func StripPreamble(answer string) string {
	lines := strings.Split(answer, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "##") {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	return strings.TrimSpace(answer)
}

func documentTitle(fileName string) string {
	name := strings.TrimSpace(fileName)
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return "Improved Documentation"
	}
	return name + " - Improved Documentation"
}
