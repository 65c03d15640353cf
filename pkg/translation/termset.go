package translation

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// TermSet collects untranslated terms in first-seen order without duplicates.
// It is not safe for concurrent use; each parse owns one and the ingestion
// service merges them.
type TermSet struct {
	seen  map[string]struct{}
	terms []string
}

// NewTermSet returns an empty set.
func NewTermSet() *TermSet {
	return &TermSet{seen: make(map[string]struct{})}
}

// Add records term. Empty terms are ignored.
func (s *TermSet) Add(term string) {
	if term == "" {
		return
	}
	if _, ok := s.seen[term]; ok {
		return
	}
	s.seen[term] = struct{}{}
	s.terms = append(s.terms, term)
}

// Merge adds every term of other, keeping this set's order first.
func (s *TermSet) Merge(other *TermSet) {
	if other == nil {
		return
	}
	for _, term := range other.terms {
		s.Add(term)
	}
}

// Terms returns the terms in first-seen order.
func (s *TermSet) Terms() []string {
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}

// Len returns the number of distinct terms.
func (s *TermSet) Len() int {
	return len(s.terms)
}

// WriteFile writes one term per line, creating parent directories as needed.
func (s *TermSet) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, term := range s.terms {
		if _, err := fmt.Fprintln(w, term); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
