// Package tagging applies keyword issue tags to artifacts with extracted
// body text. Each rule is a set of phrases; multi-word phrases count as
// strong evidence, single words must clear a per-tag hit threshold.
package tagging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/artifact"
	"github.com/laruecivic/civic-intel/internal/config"
)

// TagMarker is added to tags once an artifact has been through the
// tagger, so repeat runs skip it unless forced.
const TagMarker = "issue_tagged"

// Summary counts the outcome of one tagging run.
type Summary struct {
	Processed int
	Tagged    int
	Skipped   int
	Forced    int
}

// Tagger matches rule phrases against artifact body text.
type Tagger struct {
	rules          map[string][]string
	minHitsDefault int
	minHitsBroad   int
	broadTags      map[string]bool
	tagMinHits     map[string]int
	force          bool
	logger         *zap.Logger
}

// Options tunes one tagging run.
type Options struct {
	Force bool
}

// New builds a Tagger from config. Configured rules override the
// defaults per tag; an optional rules file replaces the rule set.
func New(cfg config.TaggingConfig, opts Options, logger *zap.Logger) (*Tagger, error) {
	rules := make(map[string][]string, len(DefaultRules))
	for tag, phrases := range DefaultRules {
		rules[tag] = append([]string(nil), phrases...)
	}

	if cfg.RulesFile != "" {
		fileRules, keep, err := loadRulesFile(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		for tag, phrases := range fileRules {
			rules[tag] = phrases
		}
		if len(keep) > 0 {
			for tag := range rules {
				if !keep[tag] {
					delete(rules, tag)
				}
			}
		}
	}

	for tag, phrases := range cfg.Rules {
		var cleaned []string
		for _, p := range phrases {
			if strings.TrimSpace(p) != "" {
				cleaned = append(cleaned, p)
			}
		}
		rules[tag] = cleaned
	}

	broad := make(map[string]bool, len(cfg.BroadTags))
	for _, tag := range cfg.BroadTags {
		broad[tag] = true
	}

	return &Tagger{
		rules:          rules,
		minHitsDefault: cfg.MinHitsDefault,
		minHitsBroad:   cfg.MinHitsBroad,
		broadTags:      broad,
		tagMinHits:     cfg.TagMinHits,
		force:          opts.Force,
		logger:         logger,
	}, nil
}

// Run tags every artifact under artifactsDir that has body text and has
// not been tagged before. With Force set, previously tagged artifacts
// are re-evaluated from scratch.
func (t *Tagger) Run(artifactsDir string) (Summary, error) {
	var summary Summary

	paths, err := filepath.Glob(filepath.Join(artifactsDir, "*.json"))
	if err != nil {
		return summary, fmt.Errorf("list artifacts: %w", err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		t.logger.Info("no artifacts to tag", zap.String("dir", artifactsDir))
		return summary, nil
	}

	for _, path := range paths {
		a, err := artifact.Load(path)
		if err != nil {
			t.logger.Warn("skipping unreadable artifact", zap.String("path", path), zap.Error(err))
			summary.Skipped++
			continue
		}

		if a.BodyText == nil || strings.TrimSpace(*a.BodyText) == "" {
			summary.Skipped++
			continue
		}

		already := a.HasTag(TagMarker)
		if already && !t.force {
			summary.Skipped++
			continue
		}
		if already {
			summary.Forced++
		}

		summary.Processed++
		issueTags, evidence := t.Apply(*a.BodyText)

		for _, tag := range issueTags {
			a.AddTag(tag)
		}
		a.AddTag(TagMarker)
		a.IssueTags = issueTags
		if len(issueTags) > 0 {
			a.TagEvidence = evidence
		} else {
			a.TagEvidence = nil
		}

		if err := artifact.Write(path, a); err != nil {
			return summary, err
		}
		if len(issueTags) > 0 {
			summary.Tagged++
		}
	}

	t.logger.Info("tagging run complete",
		zap.Int("processed", summary.Processed),
		zap.Int("tagged", summary.Tagged),
		zap.Int("skipped", summary.Skipped),
		zap.Int("forced", summary.Forced))
	return summary, nil
}

// Apply evaluates every rule against text and returns the matched issue
// tags sorted, with up to five evidence phrases per tag.
func (t *Tagger) Apply(text string) ([]string, map[string][]string) {
	normalized := strings.Join(strings.Fields(text), " ")

	var issueTags []string
	evidence := make(map[string][]string)

	for tag, phrases := range t.rules {
		if len(phrases) == 0 {
			continue
		}
		hits, matched, strong := countPhraseHits(normalized, phrases)
		if hits == 0 {
			continue
		}
		minHits := t.minHitsFor(tag)
		if strong {
			minHits = 1
		}
		if hits >= minHits {
			issueTags = append(issueTags, tag)
			sort.Strings(matched)
			if len(matched) > 5 {
				matched = matched[:5]
			}
			evidence[tag] = matched
		}
	}

	sort.Strings(issueTags)
	if len(issueTags) == 0 {
		return nil, nil
	}
	return issueTags, evidence
}

func (t *Tagger) minHitsFor(tag string) int {
	if n, ok := t.tagMinHits[tag]; ok {
		return n
	}
	if t.broadTags[tag] {
		return t.minHitsBroad
	}
	return t.minHitsDefault
}

func countPhraseHits(text string, phrases []string) (int, []string, bool) {
	hits := 0
	var matched []string
	strong := false
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		n := len(phrasePattern(phrase).FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		hits += n
		if !contains(matched, phrase) {
			matched = append(matched, phrase)
		}
		if isStrongPhrase(phrase) {
			strong = true
		}
	}
	return hits, matched, strong
}

// phrasePattern matches the phrase case-insensitively on word
// boundaries, letting any whitespace run stand in for a literal space.
func phrasePattern(phrase string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(phrase)
	escaped = strings.ReplaceAll(escaped, `\ `, `\s+`)
	return regexp.MustCompile(`(?i)\b` + escaped + `\b`)
}

func isStrongPhrase(phrase string) bool {
	return strings.Contains(phrase, " ") || strings.Contains(phrase, "-")
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// loadRulesFile reads a YAML rules file of the form:
//
//	tags:
//	  - zoning
//	rules:
//	  zoning:
//	    - zoning map
//
// rules replace matching default entries; a non-empty tags list limits
// the rule set to the named tags.
func loadRulesFile(path string) (map[string][]string, map[string]bool, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("rules file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	rules := make(map[string][]string)
	for tag, phrases := range v.GetStringMapStringSlice("rules") {
		rules[tag] = phrases
	}

	keep := make(map[string]bool)
	for _, tag := range v.GetStringSlice("tags") {
		keep[tag] = true
	}

	return rules, keep, nil
}
