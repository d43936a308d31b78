package artifact_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laruecivic/civic-intel/internal/artifact"
)

func TestCaptureIDDeterministic(t *testing.T) {
	t.Parallel()

	first := artifact.CaptureID("https://example.org/page", "20200101000000")
	second := artifact.CaptureID("https://example.org/page", "20200101000000")
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "wayback:"))
	assert.Len(t, strings.TrimPrefix(first, "wayback:"), 16)
}

func TestCaptureIDVariesWithInputs(t *testing.T) {
	t.Parallel()

	base := artifact.CaptureID("https://example.org/page", "20200101000000")
	assert.NotEqual(t, base, artifact.CaptureID("https://example.org/other", "20200101000000"))
	assert.NotEqual(t, base, artifact.CaptureID("https://example.org/page", "20210101000000"))
}

func TestChangeIDDistinctFromCaptureID(t *testing.T) {
	t.Parallel()

	captureID := artifact.CaptureID("https://example.org/page", "20200101000000")
	changeID := artifact.ChangeID("https://example.org/page", "20200101000000")
	assert.NotEqual(t, captureID, changeID)
	assert.True(t, strings.HasPrefix(changeID, "wayback-change:"))
}

func TestArchivedURL(t *testing.T) {
	t.Parallel()

	got := artifact.ArchivedURL("https://example.org/page", "20200101000000")
	assert.Equal(t, "https://web.archive.org/web/20200101000000/https://example.org/page", got)
}

func TestTimestampUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("EST", -5*3600)
	at := time.Date(2024, 3, 1, 19, 30, 0, 0, loc)
	assert.Equal(t, "2024-03-02T00:30:00Z", artifact.Timestamp(at))
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := artifact.Artifact{
		ContentType: "text/html",
		ID:          "wayback:0123456789abcdef",
		Source: artifact.SourceRef{
			Kind:        "wayback",
			RetrievedAt: "2024-03-02T00:30:00Z",
			Value:       "https://web.archive.org/web/20200101000000/https://example.org/page",
		},
		Tags:  []string{"wayback", "history"},
		Title: "Wayback snapshot: https://example.org/page @ 20200101000000",
	}

	path := artifact.Path(dir, a.ID)
	require.NoError(t, artifact.Write(path, a))

	loaded, err := artifact.Load(path)
	require.NoError(t, err)
	assert.Equal(t, a, loaded)
}

func TestWriteEmitsSortedKeysAndTrailingNewline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := artifact.Artifact{
		ContentType: "text/plain",
		ID:          "wayback:feedfacefeedface",
		Source:      artifact.SourceRef{Kind: "wayback", RetrievedAt: "2024-01-01T00:00:00Z", Value: "v"},
		Tags:        []string{"wayback"},
		Title:       "t",
	}
	path := filepath.Join(dir, "a.json")
	require.NoError(t, artifact.Write(path, a))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasSuffix(text, "\n"))
	assert.Less(t, strings.Index(text, `"body_text"`), strings.Index(text, `"content_type"`))
	assert.Less(t, strings.Index(text, `"content_type"`), strings.Index(text, `"id"`))
	assert.Less(t, strings.Index(text, `"id"`), strings.Index(text, `"source"`))
	assert.Less(t, strings.Index(text, `"source"`), strings.Index(text, `"tags"`))
	assert.Less(t, strings.Index(text, `"tags"`), strings.Index(text, `"title"`))

	// Writing the same artifact again produces identical bytes.
	require.NoError(t, artifact.Write(path, a))
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestAddTagKeepsInsertionOrderWithoutDuplicates(t *testing.T) {
	t.Parallel()

	a := artifact.Artifact{Tags: []string{"wayback"}}
	a.AddTag("history")
	a.AddTag("wayback")
	a.AddTag("history")
	assert.Equal(t, []string{"wayback", "history"}, a.Tags)
}
