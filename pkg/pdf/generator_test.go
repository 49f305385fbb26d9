package pdf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `<!DOCTYPE html>
<html>
<head><title>Sample</title><style>body { color: red; }</style></head>
<body>
  <h1>🔷 Portal - Developer Documentation</h1>
  <h2>Project Overview</h2>
  <p>An <strong>internal</strong> portal.</p>
  <ul><li>Web</li><li>✅ Mobile</li></ul>
  <table>
    <tr><th>Description</th><th>Total</th></tr>
    <tr><td>Senior Developer</td><td>₹ 75,000</td></tr>
  </table>
  <hr>
</body>
</html>`

func TestParse(t *testing.T) {
	doc, err := Parse(sampleDoc)
	require.NoError(t, err)

	assert.Equal(t, "Sample", doc.Title)
	require.Len(t, doc.Blocks, 8)

	assert.Equal(t, BlockHeading, doc.Blocks[0].Kind)
	assert.Equal(t, 1, doc.Blocks[0].Level)
	assert.Equal(t, "Portal - Developer Documentation", doc.Blocks[0].Text())

	assert.Equal(t, BlockHeading, doc.Blocks[1].Kind)
	assert.Equal(t, 2, doc.Blocks[1].Level)

	para := doc.Blocks[2]
	assert.Equal(t, BlockParagraph, para.Kind)
	assert.Equal(t, []Run{{Text: "An "}, {Text: "internal", Bold: true}, {Text: " portal."}}, para.Runs)

	assert.Equal(t, BlockListItem, doc.Blocks[3].Kind)
	assert.Equal(t, "Web", doc.Blocks[3].Text())
	assert.Equal(t, "Mobile", doc.Blocks[4].Text())

	assert.Equal(t, BlockTableRow, doc.Blocks[5].Kind)
	assert.True(t, doc.Blocks[5].Header)
	assert.Equal(t, []string{"Senior Developer", "Rs. 75,000"}, doc.Blocks[6].Cells)

	assert.Equal(t, BlockRule, doc.Blocks[7].Kind)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("<html><head><style>p{}</style></head><body>  </body></html>")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestExtractTextSkipsStyle(t *testing.T) {
	text := ExtractText(sampleDoc)

	assert.NotContains(t, text, "color: red")
	assert.Contains(t, text, "Project Overview")
	assert.Contains(t, text, "Senior Developer")
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, " Done", SanitizeText("✅Done"))
	assert.Equal(t, "1 Step", SanitizeText("1️⃣ Step"))
	assert.Equal(t, "Rs. 100", SanitizeText("₹ 100"))
	assert.Equal(t, "plain", SanitizeText("plain"))
}

func TestRenderProducesPDF(t *testing.T) {
	g := NewGenerator(DefaultOptions())

	out, err := g.Render(sampleDoc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderFallsBackToPlainText(t *testing.T) {
	g := NewGenerator(DefaultOptions())

	out, err := g.Render("just some text with no markup " + strings.Repeat("word ", 500))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderEmptyInput(t *testing.T) {
	g := NewGenerator(DefaultOptions())

	out, err := g.Render("")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
