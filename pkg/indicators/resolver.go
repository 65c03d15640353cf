// Package indicators maps free-text flow and LCIA method descriptions to the
// canonical EN 15804 indicator keys and holds the indicator and lifecycle
// module reference vocabularies.
package indicators

import (
	"regexp"

	"github.com/ekaya-inc/epd-normalizer/pkg/models"
)

// Keys lists the canonical indicator keys in match order.
var Keys = []string{
	"PERE", "PERM", "PERT", "PENRE", "PENRM", "PENRT", "SM", "RSF", "NRSF", "FW",
	"HWD", "NHWD", "RWD", "CRU", "MFR", "MER", "EEE", "EET",
	"GWP-total", "GWP-biogenic", "GWP-fossil", "GWP-luluc", "ODP", "POCP",
	"AP", "EP-terrestrial", "EP-freshwater", "EP-marine", "WDP",
	"ADPE", "ADPF", "HTP-c", "HTP-nc", "PM", "IR", "ETP-fw", "SQP",
}

type candidate struct {
	key     string
	pattern *regexp.Regexp
}

// Resolver matches descriptions against the canonical keys as whole words,
// case-insensitively. Any Unicode letter or digit next to a key joins it to
// the surrounding word. It is immutable and safe for concurrent use.
type Resolver struct {
	candidates []candidate
}

// NewResolver compiles a resolver for keys, tried in the given order.
func NewResolver(keys []string) *Resolver {
	r := &Resolver{candidates: make([]candidate, 0, len(keys))}
	for _, key := range keys {
		r.candidates = append(r.candidates, candidate{
			key:     key,
			pattern: regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(key) + `(?:$|[^\p{L}\p{N}_])`),
		})
	}
	return r
}

// NewDefaultResolver returns a resolver over Keys.
func NewDefaultResolver() *Resolver {
	return NewResolver(Keys)
}

// Resolve returns the first key whose pattern matches any language variant.
// Languages are scanned in sorted order, keys in resolver order. Returns nil
// when nothing matches, which is common for plain material flows.
func (r *Resolver) Resolve(text models.MultiLang) *string {
	for _, lang := range text.Languages() {
		value := text[lang]
		for _, c := range r.candidates {
			if c.pattern.MatchString(value) {
				key := c.key
				return &key
			}
		}
	}
	return nil
}
