package fileops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

// Default chunking parameters for ingestion.
const (
	DefaultMaxLength = 4000
	DefaultOverlap   = 200
)

// Memory receives ingested chunks.
type Memory interface {
	Add(ctx context.Context, text string) (string, error)
}

// ReadText reads a file and decodes it to UTF-8. Content that is valid
// UTF-8 as a whole is returned as is. Otherwise the encoding is taken from a
// byte order mark, falling back to Windows-1252.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	// DetermineEncoding only sniffs the first 1024 bytes.
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\uFEFF"), nil
	}
	enc, name, _ := charset.DetermineEncoding(data, "text/plain")
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s as %s: %w", path, name, err)
	}
	log.Debug().Str("file", path).Str("encoding", name).Msg("read file")
	return strings.TrimPrefix(string(decoded), "\uFEFF"), nil
}

// Split cuts content into chunks of at most maxLength runes. Consecutive
// chunks share exactly overlap runes.
func Split(content string, maxLength, overlap int) ([]string, error) {
	if maxLength <= 0 {
		return nil, errors.New("max length must be positive")
	}
	if overlap < 0 || overlap >= maxLength {
		return nil, fmt.Errorf("overlap must be in [0, %d)", maxLength)
	}

	runes := []rune(content)
	var chunks []string
	for start := 0; start < len(runes); start += maxLength - overlap {
		end := min(start+maxLength, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// Ingest reads a file, splits it and stores every chunk in mem. It returns
// the number of chunks stored.
func Ingest(ctx context.Context, path, name string, mem Memory, maxLength, overlap int) (int, error) {
	logger := log.With().Str("file", name).Logger()

	content, err := ReadText(path)
	if err != nil {
		return 0, err
	}
	logger.Info().Int("length", len([]rune(content))).Msg("ingesting file")

	chunks, err := Split(content, maxLength, overlap)
	if err != nil {
		return 0, err
	}
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		text := fmt.Sprintf("Filename: %s\nContent part#%d/%d: %s", name, i+1, len(chunks), chunk)
		if _, err := mem.Add(ctx, text); err != nil {
			return i, fmt.Errorf("store chunk %d: %w", i+1, err)
		}
		logger.Debug().Int("chunk", i+1).Int("total", len(chunks)).Msg("ingested chunk")
	}
	logger.Info().Int("chunks", len(chunks)).Msg("done ingesting")
	return len(chunks), nil
}
