package normalize

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/layerbench/internal/models"
)

//go:embed vocab/*.yaml
var builtinFS embed.FS

// Entry maps one canonical metric to the source keys that report it.
//
// A plain entry lists aliases in Keys; any one of them (or the canonical
// name itself) carries the value. A composite entry lists SumOf parts
// instead, and its value is the sum of all parts within a trial.
type Entry struct {
	models.MetricDef `yaml:",inline"`

	Keys  []string `json:"keys,omitempty" yaml:"keys,omitempty"`
	SumOf []string `json:"sum_of,omitempty" yaml:"sum_of,omitempty"`
}

// Composite reports whether the entry is summed from several keys.
func (e Entry) Composite() bool {
	return len(e.SumOf) > 0
}

// SourceKeys returns every key that maps to the entry, canonical name first.
func (e Entry) SourceKeys() []string {
	keys := []string{e.Name}
	keys = append(keys, e.Keys...)
	return append(keys, e.SumOf...)
}

// Vocabulary is the mapping table for one protocol.
type Vocabulary struct {
	Protocol    string  `json:"protocol" yaml:"protocol"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Metrics     []Entry `json:"metrics" yaml:"metrics"`

	// Ignore lists keys the driver emits that are deliberately not
	// compared, such as cross-layer totals.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// ParseVocabulary decodes a YAML vocabulary.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if v.Protocol == "" {
		return Vocabulary{}, &VocabularyError{Reason: "protocol is required"}
	}
	return v, nil
}

// LoadVocabularyFile reads a YAML vocabulary from disk.
func LoadVocabularyFile(p string) (Vocabulary, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("failed to read vocabulary %s: %w", p, err)
	}
	v, err := ParseVocabulary(data)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("%s: %w", p, err)
	}
	return v, nil
}

// Builtin returns the embedded vocabularies, sorted by protocol.
func Builtin() ([]Vocabulary, error) {
	entries, err := builtinFS.ReadDir("vocab")
	if err != nil {
		return nil, fmt.Errorf("failed to list builtin vocabularies: %w", err)
	}

	vocabs := make([]Vocabulary, 0, len(entries))
	for _, e := range entries {
		data, err := builtinFS.ReadFile(path.Join("vocab", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read builtin vocabulary %s: %w", e.Name(), err)
		}
		v, err := ParseVocabulary(data)
		if err != nil {
			return nil, fmt.Errorf("builtin %s: %w", e.Name(), err)
		}
		vocabs = append(vocabs, v)
	}
	sort.Slice(vocabs, func(i, j int) bool { return vocabs[i].Protocol < vocabs[j].Protocol })
	return vocabs, nil
}
