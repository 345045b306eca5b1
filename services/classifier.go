package services

import (
	"regexp"
	"strings"

	"brand-pipeline/config"
	"brand-pipeline/models"
)

// NoBrand is the canonical label for listings the seller marked as brandless.
const NoBrand = "no-brand"

var (
	ampersandRegexp = regexp.MustCompile(`\s+&\s+`)
	andRegexp       = regexp.MustCompile(`\s+and\s+`)
)

var defaultClassifier = NewClassifier(config.DefaultBrandRules())

// Classification is the outcome of classifying one brand value.
// Reason is set only when OK is false.
type Classification struct {
	Brand  string
	OK     bool
	Reason models.DropReason
}

// Classifier turns raw brand values into canonical brand labels.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	aliases []config.Alias
	exact   map[string]string
	noise   map[string]struct{}
}

// NewClassifier builds a Classifier from the given rule tables.
func NewClassifier(rules config.BrandRules) *Classifier {
	c := &Classifier{
		aliases: append([]config.Alias(nil), rules.SubstringAliases...),
		exact:   make(map[string]string, len(rules.ExactAliases)),
		noise:   make(map[string]struct{}, len(rules.NoiseTokens)),
	}
	for from, to := range rules.ExactAliases {
		c.exact[lower(from)] = to
	}
	for _, tok := range rules.NoiseTokens {
		c.noise[lower(strings.TrimSpace(tok))] = struct{}{}
	}
	return c
}

// NormalizeBrandSpelling applies the default spelling rules.
func NormalizeBrandSpelling(s string) string {
	return defaultClassifier.NormalizeSpelling(s)
}

// NormalizeSpelling lowercases a brand, unifies "&"/"and" joins and maps
// known aliases onto one spelling ("Charles and Keith" → "charles&keith").
func (c *Classifier) NormalizeSpelling(s string) string {
	s = lower(s)
	s = ampersandRegexp.ReplaceAllString(s, "&")
	s = andRegexp.ReplaceAllString(s, "&")
	for _, a := range c.aliases {
		s = strings.ReplaceAll(s, a.From, a.To)
	}
	if to, ok := c.exact[s]; ok {
		s = to
	}
	return s
}

// Classify runs clean → spelling → seller-noise lookup on a raw brand.
func (c *Classifier) Classify(v models.Value) Classification {
	switch v.Kind {
	case models.KindMissing:
		return Classification{Reason: models.DropMissingBrand}
	case models.KindMalformed:
		return Classification{Reason: models.DropBadBrand}
	}

	token := CleanBrandToken(v)
	if token == NoneToken {
		return Classification{Reason: models.DropInvalidBrand}
	}

	brand := c.NormalizeSpelling(token)
	if strings.TrimSpace(brand) == "" {
		return Classification{Reason: models.DropInvalidBrand}
	}

	if _, noisy := c.noise[lower(brand)]; noisy {
		brand = NoBrand
	}
	return Classification{Brand: brand, OK: true}
}
