package indicators

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/epd-normalizer/pkg/models"
)

//go:embed vocabulary.yaml
var vocabularyYAML []byte

// Vocabulary is the static reference data for the indicators and modules tables.
type Vocabulary struct {
	Indicators []models.Indicator `yaml:"indicators"`
	Modules    []models.Module    `yaml:"modules"`
}

// LoadVocabulary decodes the embedded reference vocabulary.
func LoadVocabulary() (*Vocabulary, error) {
	return ParseVocabulary(vocabularyYAML)
}

// ParseVocabulary decodes a vocabulary document and checks that keys and codes are unique.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}

	seen := make(map[string]bool)
	for _, ind := range v.Indicators {
		if ind.Key == "" || ind.Name == "" {
			return nil, fmt.Errorf("indicator entry needs key and name: %+v", ind)
		}
		if seen[ind.Key] {
			return nil, fmt.Errorf("duplicate indicator key %q", ind.Key)
		}
		seen[ind.Key] = true
	}

	seen = make(map[string]bool)
	for _, mod := range v.Modules {
		if mod.Code == "" || mod.Name == "" {
			return nil, fmt.Errorf("module entry needs code and name: %+v", mod)
		}
		if seen[mod.Code] {
			return nil, fmt.Errorf("duplicate module code %q", mod.Code)
		}
		seen[mod.Code] = true
	}

	return &v, nil
}
