package docs

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// raw HTML in model answers is dropped by the renderer
var renderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownToHTML converts model output (GFM tables, task lists) into an HTML fragment
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
