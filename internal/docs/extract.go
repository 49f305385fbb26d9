package docs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	pdfreader "github.com/ledongthuc/pdf"
)

var ErrUnreadableDocument = errors.New("document text could not be extracted")

var pdfMagic = []byte("%PDF-")

// Extractor reads PDFs through ledongthuc/pdf and passes plain text files through
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(content []byte) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(content, " \t\r\n"), pdfMagic) {
		if !utf8.Valid(content) {
			return "", ErrUnreadableDocument
		}
		return strings.TrimSpace(string(content)), nil
	}

	text, err := extractPDF(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrUnreadableDocument
	}
	return text, nil
}

// the reader panics on some malformed cross-reference tables
func extractPDF(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdfreader.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
