// Package translation substitutes English terms for the German classification
// labels used by oekobau.dat datasets.
package translation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Dictionary is an immutable german_term -> english_term lookup.
// It is safe for concurrent use once built.
type Dictionary struct {
	terms map[string]string
}

// New builds a dictionary from raw german -> english pairs.
// Keys are normalized the same way lookups are.
func New(pairs map[string]string) *Dictionary {
	d := &Dictionary{terms: make(map[string]string, len(pairs))}
	for german, english := range pairs {
		d.add(german, english)
	}
	return d
}

func (d *Dictionary) add(german, english string) bool {
	key := Normalize(german)
	english = strings.TrimSpace(english)
	if key == "" || english == "" {
		return false
	}
	d.terms[key] = english
	return true
}

// Normalize folds a term to its lookup key: NFC, commas removed, lowercased, trimmed.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, ",", "")
	return strings.TrimSpace(strings.ToLower(text))
}

// Translate returns the English term for text and true, or text unchanged and
// false when the dictionary has no entry. Empty text is returned as is with true
// so that it is never reported as untranslated.
func (d *Dictionary) Translate(text string) (string, bool) {
	if text == "" {
		return text, true
	}
	if d == nil {
		return text, false
	}
	if english, ok := d.terms[Normalize(text)]; ok {
		return english, true
	}
	return text, false
}

// Len returns the number of terms.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.terms)
}

// Parse reads a two-column CSV (german_term,english_term) in the given encoding.
// Rows with fewer than two columns or an empty side are skipped.
func Parse(r io.Reader, encodingName string) (*Dictionary, error) {
	dec, err := decoderFor(encodingName)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(transform.NewReader(r, dec.NewDecoder()))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	d := &Dictionary{terms: make(map[string]string)}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read translations: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		d.add(row[0], row[1])
	}
	return d, nil
}

// Load reads the dictionary file at path. A missing file is not an error:
// ingestion proceeds untranslated and the gap is logged.
func Load(path, encodingName string, logger *zap.Logger) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Translation file not found, category labels stay untranslated",
				zap.String("path", path))
			return New(nil), nil
		}
		return nil, fmt.Errorf("failed to open translations: %w", err)
	}
	defer f.Close()

	d, err := Parse(f, encodingName)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded translations", zap.String("path", path), zap.Int("terms", d.Len()))
	return d, nil
}

// IsSupportedEncoding reports whether a dictionary file may be declared in
// the named encoding. An empty name means UTF-8.
func IsSupportedEncoding(name string) bool {
	_, err := decoderFor(name)
	return err == nil
}

func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	}
	return nil, fmt.Errorf("unsupported translations encoding %q", name)
}
