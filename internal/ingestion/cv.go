package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxCVFileSize bounds uploaded CV files.
const MaxCVFileSize = 5 << 20

// DecodeCVText decodes plain-text CV bytes. Invalid UTF-8 is read as
// Latin-1.
func DecodeCVText(data []byte) string {
	if utf8.Valid(data) {
		return strings.TrimSpace(string(data))
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return strings.TrimSpace(string(runes))
}

// ReadCVFile reads a .txt CV from disk. PDF extraction happens outside
// this program; pass its text output instead.
func ReadCVFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".txt" && ext != ".text" && ext != "" {
		return "", fmt.Errorf("unsupported CV file type %q: only plain text is accepted", ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %w", err)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > MaxCVFileSize {
		return "", fmt.Errorf("CV file too large: %d bytes (max %d)", info.Size(), MaxCVFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	text := DecodeCVText(data)
	if text == "" {
		return "", fmt.Errorf("CV file %s is empty", path)
	}
	return text, nil
}
