// Package extraction provides text extraction from local files and a
// heuristic entity counter for the quality gate.
package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/veralis-labs/kbindex/internal/core/domain"
	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
)

// Ensure PlaintextExtractor implements the interface.
var _ driven.TextExtractor = (*PlaintextExtractor)(nil)

// yearPattern matches a plausible publication year in a filename,
// e.g. "guidelines-2023.txt".
var yearPattern = regexp.MustCompile(`(19|20)\d{2}`)

// PlaintextExtractor reads UTF-8 text files. Metadata is derived from
// the path: the filename, the parent directory as category, and a year
// embedded in the filename when one is present.
type PlaintextExtractor struct{}

// NewPlaintextExtractor creates a plaintext extractor.
func NewPlaintextExtractor() *PlaintextExtractor {
	return &PlaintextExtractor{}
}

// Extract reads the file at path and returns its text content and
// extraction metadata.
func (e *PlaintextExtractor) Extract(ctx context.Context, path string) (string, domain.DocumentMetadata, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.DocumentMetadata{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", domain.DocumentMetadata{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", domain.DocumentMetadata{}, fmt.Errorf("%w: %s is not valid UTF-8 text", domain.ErrInvalidInput, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	meta := domain.DocumentMetadata{
		SourceURI: "file://" + abs,
		Filename:  filepath.Base(path),
		Category:  filepath.Base(filepath.Dir(abs)),
		Year:      yearFromFilename(filepath.Base(path)),
	}
	if meta.Year == 0 {
		if info, statErr := os.Stat(path); statErr == nil {
			meta.Year = info.ModTime().Year()
		} else {
			meta.Year = time.Now().Year()
		}
	}

	return string(data), meta, nil
}

// yearFromFilename returns the first plausible year found in name, or 0.
func yearFromFilename(name string) int {
	match := yearPattern.FindString(name)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return year
}

// Ensure HeuristicEntityExtractor implements the interface.
var _ driven.EntityExtractor = (*HeuristicEntityExtractor)(nil)

// HeuristicEntityExtractor counts distinct capitalised terms and
// numeric values as entities. It is a cheap stand-in for a proper NER
// pass and deliberately errs on the generous side: the quality gate
// only needs a coarse low-signal filter.
type HeuristicEntityExtractor struct{}

// NewHeuristicEntityExtractor creates a heuristic entity extractor.
func NewHeuristicEntityExtractor() *HeuristicEntityExtractor {
	return &HeuristicEntityExtractor{}
}

// CountEntities returns the number of distinct entities found in text.
func (e *HeuristicEntityExtractor) CountEntities(ctx context.Context, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '%'
	})

	for i, word := range words {
		word = strings.Trim(word, ".%")
		if word == "" {
			continue
		}

		if isNumeric(word) {
			seen["#"+word] = struct{}{}
			continue
		}

		// A capitalised word mid-sentence is likely a proper noun.
		// Sentence-initial words are skipped to avoid counting plain
		// prose openers.
		first, _ := utf8.DecodeRuneInString(word)
		if unicode.IsUpper(first) && i > 0 && !endsSentence(words[i-1]) {
			seen[strings.ToLower(word)] = struct{}{}
		}
	}

	return len(seen), nil
}

// isNumeric reports whether the word parses as a number.
func isNumeric(word string) bool {
	_, err := strconv.ParseFloat(word, 64)
	return err == nil
}

// endsSentence reports whether the previous word ended a sentence.
func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".")
}
