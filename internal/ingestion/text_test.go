package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEmbedding_StripsDecorativeCharacters(t *testing.T) {
	n := DefaultNormalizer()

	result := n.ForEmbedding("Senior Go Engineer!  @Lusaka\n\n#1 (remote), full-time: yes; ok.")

	assert.Equal(t, "Senior Go Engineer Lusaka 1 (remote), full-time: yes; ok.", result)
}

func TestForEmbedding_KeepsNonASCIILetters(t *testing.T) {
	n := DefaultNormalizer()

	assert.Equal(t, "Café Ndola", n.ForEmbedding("Café\t\tNdola"))
}

func TestForEmbedding_Truncates(t *testing.T) {
	n := NewNormalizer(100, 0)

	result := n.ForEmbedding(strings.Repeat("a", 250))

	assert.Equal(t, 100, utf8.RuneCountInString(result))
	assert.Equal(t, DefaultMaxDisplayLength, n.MaxDisplayLength)
}

func TestForDisplay_KeepsPunctuation(t *testing.T) {
	n := DefaultNormalizer()

	result := n.ForDisplay("  Apply now!\r\n Salary: K10,000 / month\x00 ")

	assert.Equal(t, "Apply now! Salary: K10,000 / month", result)
}

func TestForDisplay_Truncates(t *testing.T) {
	n := NewNormalizer(0, 120)

	result := n.ForDisplay(strings.Repeat("ž", 300))

	assert.Equal(t, 120, utf8.RuneCountInString(result))
	assert.True(t, utf8.ValidString(result))
}

func TestNormalizer_EmptyInput(t *testing.T) {
	n := DefaultNormalizer()

	assert.Equal(t, "", n.ForEmbedding(""))
	assert.Equal(t, "", n.ForDisplay(""))
	assert.Equal(t, "", n.ForEmbedding("!!! @@@"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "žš", Truncate("žšč", 2))
}

func TestCollapseWhitespace_Deterministic(t *testing.T) {
	input := "Test content   with   spaces\n\n\nMultiple   blank   lines"

	first := CollapseWhitespace(input)
	second := CollapseWhitespace(first)

	assert.Equal(t, first, second)
	assert.Equal(t, "Test content with spaces Multiple blank lines", first)
}

func TestDecodeCVText_UTF8(t *testing.T) {
	assert.Equal(t, "Go developer", DecodeCVText([]byte("  Go developer\n")))
}

func TestDecodeCVText_Latin1Fallback(t *testing.T) {
	data := []byte{'C', 'a', 'f', 0xe9}

	assert.Equal(t, "Café", DecodeCVText(data))
}

func TestReadCVFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte("Backend engineer, Go and Postgres\n"), 0644))

	text, err := ReadCVFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Backend engineer, Go and Postgres", text)
}

func TestReadCVFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadCVFile(filepath.Join(dir, "missing.txt"))
	assert.ErrorContains(t, err, "file not found")

	pdf := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0644))
	_, err = ReadCVFile(pdf)
	assert.ErrorContains(t, err, "unsupported CV file type")

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("   \n"), 0644))
	_, err = ReadCVFile(empty)
	assert.ErrorContains(t, err, "is empty")
}
