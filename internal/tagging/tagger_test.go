package tagging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/artifact"
	"github.com/laruecivic/civic-intel/internal/config"
)

func newTagger(t *testing.T, cfg config.TaggingConfig, opts Options) *Tagger {
	t.Helper()
	if cfg.MinHitsDefault == 0 {
		cfg.MinHitsDefault = 1
	}
	if cfg.MinHitsBroad == 0 {
		cfg.MinHitsBroad = 2
	}
	if cfg.BroadTags == nil {
		cfg.BroadTags = []string{"tax", "budget", "policy"}
	}
	tagger, err := New(cfg, opts, zap.NewNop())
	require.NoError(t, err)
	return tagger
}

func TestApplyMatchesPhraseOnWordBoundary(t *testing.T) {
	t.Parallel()

	tagger := newTagger(t, config.TaggingConfig{}, Options{})

	tags, evidence := tagger.Apply("The court approved the rezoning request.")
	assert.Contains(t, tags, "rezoning")
	assert.Contains(t, evidence["rezoning"], "rezoning")

	tags, _ = tagger.Apply("The bidder was outbid.")
	assert.NotContains(t, tags, "bid", "substrings inside words must not match")
}

func TestApplyBroadTagNeedsMultipleHits(t *testing.T) {
	t.Parallel()

	tagger := newTagger(t, config.TaggingConfig{}, Options{})

	tags, _ := tagger.Apply("The tax discussion was tabled.")
	assert.NotContains(t, tags, "tax", "one bare hit on a broad tag is not enough")

	tags, _ = tagger.Apply("The tax levy and the tax calendar were both adopted.")
	assert.Contains(t, tags, "tax")
}

func TestApplyStrongPhraseOverridesThreshold(t *testing.T) {
	t.Parallel()

	tagger := newTagger(t, config.TaggingConfig{}, Options{})

	// "property tax" is multi-word, so a single occurrence is enough
	// even though tax is a broad tag.
	tags, evidence := tagger.Apply("A property tax adjustment passed.")
	assert.Contains(t, tags, "tax")
	assert.Contains(t, evidence["tax"], "property tax")
}

func TestApplyMatchesAcrossCollapsedWhitespace(t *testing.T) {
	t.Parallel()

	tagger := newTagger(t, config.TaggingConfig{}, Options{})

	tags, _ := tagger.Apply("The eminent\n   domain proceedings were stayed.")
	assert.Contains(t, tags, "eminent_domain")
}

func TestApplyReturnsSortedTags(t *testing.T) {
	t.Parallel()

	tagger := newTagger(t, config.TaggingConfig{}, Options{})

	tags, _ := tagger.Apply("The zoning amendment and the bond issuance and the annual budget all passed.")
	assert.IsNonDecreasing(t, tags)
	assert.Contains(t, tags, "zoning")
	assert.Contains(t, tags, "bond")
	assert.Contains(t, tags, "budget")
}

func TestApplyConfigRuleOverride(t *testing.T) {
	t.Parallel()

	tagger := newTagger(t, config.TaggingConfig{
		Rules: map[string][]string{
			"water_district": {"water district", "water rates"},
		},
	}, Options{})

	tags, evidence := tagger.Apply("The water district reported new water rates.")
	assert.Contains(t, tags, "water_district")
	assert.Len(t, evidence["water_district"], 2)
}

func TestApplyPerTagMinHits(t *testing.T) {
	t.Parallel()

	tagger := newTagger(t, config.TaggingConfig{
		TagMinHits: map[string]int{"ordinance": 3},
	}, Options{})

	tags, _ := tagger.Apply("The ordinance was read. The ordinance passed.")
	assert.NotContains(t, tags, "ordinance")

	tags, _ = tagger.Apply("The ordinance was read. The ordinance was amended. The ordinance passed.")
	assert.Contains(t, tags, "ordinance")
}

func writeTestArtifact(t *testing.T, dir string, a artifact.Artifact) string {
	t.Helper()
	path := artifact.Path(dir, a.ID)
	require.NoError(t, artifact.Write(path, a))
	return path
}

func TestRunTagsExtractedArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	body := "The fiscal court approved the rezoning request and a bond issuance."
	path := writeTestArtifact(t, dir, artifact.Artifact{
		BodyText: &body,
		ID:       "wayback:1111222233334444",
		Tags:     []string{"wayback"},
	})

	tagger := newTagger(t, config.TaggingConfig{}, Options{})
	summary, err := tagger.Run(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Tagged)

	a, err := artifact.Load(path)
	require.NoError(t, err)
	assert.True(t, a.HasTag(TagMarker))
	assert.Contains(t, a.IssueTags, "rezoning")
	assert.Contains(t, a.IssueTags, "bond")
	assert.Contains(t, a.Tags, "rezoning")
	assert.NotEmpty(t, a.TagEvidence["bond"])
}

func TestRunSkipsUntaggedAndAlreadyTagged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTestArtifact(t, dir, artifact.Artifact{ID: "wayback:nobody0000000000"})
	body := "rezoning"
	writeTestArtifact(t, dir, artifact.Artifact{
		BodyText: &body,
		ID:       "wayback:tagged0000000000",
		Tags:     []string{TagMarker},
	})

	tagger := newTagger(t, config.TaggingConfig{}, Options{})
	summary, err := tagger.Run(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 2, summary.Skipped)
}

func TestRunForceRetags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	body := "The rezoning passed."
	path := writeTestArtifact(t, dir, artifact.Artifact{
		BodyText: &body,
		ID:       "wayback:forced0000000000",
		Tags:     []string{TagMarker},
	})

	tagger := newTagger(t, config.TaggingConfig{}, Options{Force: true})
	summary, err := tagger.Run(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Forced)

	a, err := artifact.Load(path)
	require.NoError(t, err)
	assert.Contains(t, a.IssueTags, "rezoning")
}

func TestNewMissingRulesFile(t *testing.T) {
	t.Parallel()

	_, err := New(config.TaggingConfig{
		MinHitsDefault: 1,
		MinHitsBroad:   2,
		RulesFile:      filepath.Join(t.TempDir(), "missing.yaml"),
	}, Options{}, zap.NewNop())
	require.Error(t, err)
}

func TestNewRulesFileReplacesAndFilters(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tags:
  - zoning
  - sewer
rules:
  sewer:
    - sewer line
    - wastewater
`), 0o600))

	tagger, err := New(config.TaggingConfig{
		MinHitsDefault: 1,
		MinHitsBroad:   2,
		RulesFile:      path,
	}, Options{}, zap.NewNop())
	require.NoError(t, err)

	tags, _ := tagger.Apply("The wastewater plan and the zoning map were approved.")
	assert.Contains(t, tags, "sewer")
	assert.Contains(t, tags, "zoning")

	tags, _ = tagger.Apply("A bond issuance was approved.")
	assert.Empty(t, tags, "tags outside the rules file's tag list are dropped")
}
