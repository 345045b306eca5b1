package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule file validation errors.
var (
	ErrEmptyAlias     = errors.New("alias entries need a non-empty 'from'")
	ErrEmptyNoiseWord = errors.New("noise_tokens must not contain blank entries")
)

// Alias rewrites one spelling of a brand into its representative.
type Alias struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// BrandRules holds the lookup tables used by brand classification.
// SubstringAliases are applied in order to the whole lowercased brand,
// ExactAliases only when the brand equals the key.
type BrandRules struct {
	SubstringAliases []Alias           `yaml:"substring_aliases"`
	ExactAliases     map[string]string `yaml:"exact_aliases"`
	NoiseTokens      []string          `yaml:"noise_tokens"`
}

// DefaultBrandRules returns the tables the brand dataset was built with.
func DefaultBrandRules() BrandRules {
	return BrandRules{
		SubstringAliases: []Alias{
			{From: "louis vuitton", To: "lv"},
			{From: "x s m l", To: "no-brand"},
		},
		ExactAliases: map[string]string{
			"nb": "new balance",
		},
		// Collected by eyeballing seller input; sellers use these instead of leaving brand empty.
		NoiseTokens: []string{
			"no merk", "impor", "import", "lokal",
			"tidak ada merek", "tidak ada merk",
			"no brand", "lainnya", "branded",
		},
	}
}

// LoadRules reads brand rules from a YAML file. An empty path yields the
// defaults; sections absent from the file keep their default values.
func LoadRules(path string) (BrandRules, error) {
	rules := DefaultBrandRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return BrandRules{}, fmt.Errorf("rules: read %q: %w", path, err)
	}

	var fromFile BrandRules
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return BrandRules{}, fmt.Errorf("rules: parse %q: %w", path, err)
	}

	if fromFile.SubstringAliases != nil {
		rules.SubstringAliases = fromFile.SubstringAliases
	}
	if fromFile.ExactAliases != nil {
		rules.ExactAliases = fromFile.ExactAliases
	}
	if fromFile.NoiseTokens != nil {
		rules.NoiseTokens = fromFile.NoiseTokens
	}

	if err := rules.Validate(); err != nil {
		return BrandRules{}, fmt.Errorf("rules: %q: %w", path, err)
	}
	return rules, nil
}

// Validate rejects entries that would match every brand.
func (r BrandRules) Validate() error {
	for _, a := range r.SubstringAliases {
		if a.From == "" {
			return ErrEmptyAlias
		}
	}
	for from := range r.ExactAliases {
		if from == "" {
			return ErrEmptyAlias
		}
	}
	for _, tok := range r.NoiseTokens {
		if strings.TrimSpace(tok) == "" {
			return ErrEmptyNoiseWord
		}
	}
	return nil
}
