// Package wordlist loads the filler-word configuration. The file order
// of filler words is meaningful: it is the priority order in which
// auxiliary words are paired with keywords.
package wordlist

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/minknguyen/versegrep/internal/core/retrieval"
)

type fileFormat struct {
	FillerWords    []string `yaml:"filler_words"`
	ProtectedTerms []string `yaml:"protected_terms"`
	VeryCommon     []string `yaml:"very_common_words"`
}

// Load reads a word-list YAML file. An empty path returns the built-in
// defaults.
func Load(path string) (*retrieval.WordList, error) {
	if path == "" {
		return retrieval.DefaultWordList(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read word list %s: %w", path, err)
	}

	var cfg fileFormat
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse word list %s: %w", path, err)
	}
	if len(cfg.FillerWords) == 0 {
		return nil, fmt.Errorf("word list %s: filler_words is empty", path)
	}
	return retrieval.NewWordList(cfg.FillerWords, cfg.ProtectedTerms, cfg.VeryCommon), nil
}
