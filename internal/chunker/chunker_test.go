package chunker

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/fiscalia/docindex/internal/models"
)

func makeText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "w" + strconv.Itoa(i)
	}
	return strings.Join(words, " ")
}

func testDoc() *models.Document {
	return &models.Document{
		ID:       uuid.New(),
		Filename: "circular-2024.pdf",
		DocType:  models.DocTypeCircular,
		Year:     2024,
		Domain:   "TVA",
		Tags:     datatypes.JSON([]byte(`["vat","2024"]`)),
	}
}

func TestSplitWindowArithmetic(t *testing.T) {
	c := New(800, 100)
	doc := testDoc()

	chunks := c.Split(makeText(3000), doc)

	// Window starts at 0, 700, 1400, 2100, 2800.
	require.Len(t, chunks, 5)
	last := chunks[4]
	assert.Equal(t, 4, last.ChunkIndex)
	assert.Len(t, strings.Fields(last.Text), 200)

	// Dense zero-based indices.
	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
	}
}

func TestSplitCoversEveryToken(t *testing.T) {
	c := New(800, 100)
	doc := testDoc()
	n := 1730

	chunks := c.Split(makeText(n), doc)

	seen := make(map[string]bool, n)
	for _, ch := range chunks {
		for _, w := range strings.Fields(ch.Text) {
			seen[w] = true
		}
	}
	assert.Len(t, seen, n, "every token appears in at least one chunk")
}

func TestSplitShortText(t *testing.T) {
	c := New(800, 100)
	doc := testDoc()

	chunks := c.Split("only three words", doc)

	require.Len(t, chunks, 1)
	assert.Equal(t, "only three words", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func TestSplitEmptyText(t *testing.T) {
	c := New(800, 100)
	doc := testDoc()

	assert.Empty(t, c.Split("", doc))
	assert.Empty(t, c.Split("   \n\t  ", doc))
}

func TestSplitCarriesMetadata(t *testing.T) {
	c := New(10, 2)
	doc := testDoc()

	chunks := c.Split(makeText(25), doc)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		assert.Equal(t, doc.ID, ch.DocumentID)
		assert.Equal(t, doc.Filename, ch.Filename)
		assert.Equal(t, doc.DocType, ch.DocType)
		assert.Equal(t, doc.Year, ch.Year)
		assert.Equal(t, doc.Domain, ch.Domain)
		assert.Equal(t, []string{"vat", "2024"}, ch.Tags)
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(0, -1)
	assert.Equal(t, 800, c.size)
	assert.Equal(t, 100, c.overlap)
}
