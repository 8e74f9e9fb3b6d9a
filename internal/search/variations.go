package search

import (
	"strings"
	"time"
)

// Threshold multipliers of research variations, from the literal query down
// to speculative domain expansions.
const (
	WeightOriginal = 1.0
	WeightKeywords = 0.9
	WeightSynonym  = 0.8
	WeightAcronym  = 0.8
	WeightContext  = 0.75
	WeightTemporal = 0.7
	WeightDomain   = 0.6
)

// Variation is a rewritten query with the multiplier applied to the search
// threshold for it.
type Variation struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// Variations returns the enhanced search query set: the original query, its
// keywords, one synonym substitution, one contextual append and one temporal
// expansion, skipping rewrites that do not apply and duplicates.
func Variations(query string, now time.Time) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	out := []string{query}
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		for _, existing := range out {
			if strings.EqualFold(existing, v) {
				return
			}
		}
		out = append(out, v)
	}

	add(Keywords(query))
	if v, ok := firstRule(Rules, RuleSynonym, query, now); ok {
		add(v)
	}
	if v, ok := firstRule(Rules, RuleContext, query, now); ok {
		add(v)
	}
	if v, ok := firstRule(Rules, RuleTemporal, query, now); ok {
		add(v)
	}
	return out
}

// ResearchVariations returns the broader research query set. Every matching
// rule contributes a variation, and each detected domain adds its expansion
// to the keywords. Duplicates keep their first, highest weight.
func ResearchVariations(query string, now time.Time) []Variation {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var out []Variation
	add := func(v string, weight float64) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		for _, existing := range out {
			if strings.EqualFold(existing.Text, v) {
				return
			}
		}
		out = append(out, Variation{Text: v, Weight: weight})
	}

	add(query, WeightOriginal)
	keywords := Keywords(query)
	add(keywords, WeightKeywords)
	for _, v := range allRules(Rules, RuleSynonym, query, now) {
		add(v, WeightSynonym)
	}
	for _, v := range allRules(Rules, RuleAcronym, query, now) {
		add(v, WeightAcronym)
	}
	for _, v := range allRules(Rules, RuleContext, query, now) {
		add(v, WeightContext)
	}
	for _, v := range allRules(Rules, RuleTemporal, query, now) {
		add(v, WeightTemporal)
	}

	base := keywords
	if base == "" {
		base = query
	}
	for _, d := range Classify(query) {
		for _, p := range DomainPatterns {
			if p.Domain == d {
				add(base+" "+p.Expansion, WeightDomain)
			}
		}
	}
	return out
}
