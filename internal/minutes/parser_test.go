package minutes

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laruecivic/civic-intel/internal/artifact"
)

func writeFixtureArtifact(t *testing.T, dir string, a artifact.Artifact) string {
	t.Helper()
	path := artifact.Path(dir, a.ID)
	require.NoError(t, artifact.Write(path, a))
	return path
}

func newParser(t *testing.T) (*Parser, string) {
	t.Helper()
	meetingsDir := filepath.Join(t.TempDir(), "meetings")
	return New("fiscal-court", meetingsDir, zap.NewNop()), meetingsDir
}

func TestParseBuildsMeetingFromHTMLSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	artifactPath := writeFixtureArtifact(t, dir, artifact.Artifact{
		ID: "fiscal-court:abc123",
		Source: artifact.SourceRef{
			Kind:        "url",
			RetrievedAt: "2024-02-01T12:00:00Z",
			Value:       "https://www.laruecounty.org/minutes/2024-01-09.html",
		},
	})

	snapshotPath := filepath.Join(dir, "minutes.html")
	require.NoError(t, os.WriteFile(snapshotPath, []byte(`<html><body>
		<h1>Fiscal Court Regular Session</h1>
		<p>Meeting of 2024-01-09.</p>
		<p>Roll call vote on the road budget: all ayes.</p>
		<p>Adjourned.</p>
	</body></html>`), 0o600))

	parser, _ := newParser(t)
	meeting, err := parser.Parse(artifactPath, snapshotPath)
	require.NoError(t, err)

	assert.Equal(t, MeetingID("https://www.laruecounty.org/minutes/2024-01-09.html"), meeting.ID)
	assert.Equal(t, "fiscal-court", meeting.BodyID)
	assert.Equal(t, []string{"fiscal-court:abc123"}, meeting.ArtifactIDs)
	assert.Equal(t, "2024-01-09T00:00:00Z", meeting.StartedAt)

	require.Len(t, meeting.Motions, 1)
	assert.Contains(t, meeting.Motions[0].Text, "Roll call vote")
	assert.Nil(t, meeting.Motions[0].Result)
}

func TestMeetingIDStableAndNamespaced(t *testing.T) {
	t.Parallel()

	first := MeetingID("https://example.org/minutes.pdf")
	assert.Equal(t, first, MeetingID("https://example.org/minutes.pdf"))
	assert.True(t, strings.HasPrefix(first, "meeting:"))
	assert.NotEqual(t, first, MeetingID("https://example.org/other.pdf"))
}

func TestDetectMotionsFindsRollCallLines(t *testing.T) {
	t.Parallel()

	text := "Call to order.\nRoll call vote: passed 5-0.\nDiscussion.\nA roll-call was taken on the levy.\nAdjourn."
	motions := DetectMotions(text)
	require.Len(t, motions, 2)
	assert.Equal(t, "Roll call vote: passed 5-0.", motions[0].Text)
	assert.Equal(t, "A roll-call was taken on the levy.", motions[1].Text)
}

func TestInferStartedAtWrittenDate(t *testing.T) {
	t.Parallel()

	parser, _ := newParser(t)
	got := parser.inferStartedAt("The court met on January 9, 2024 at the courthouse.", "minutes.html", "")
	assert.Equal(t, "2024-01-09T00:00:00Z", got)
}

func TestInferStartedAtSkipsInvalidNumericDate(t *testing.T) {
	t.Parallel()

	parser, _ := newParser(t)
	got := parser.inferStartedAt("Ref 2024/99/99 then met 2024/06/11.", "minutes.html", "")
	assert.Equal(t, "2024-06-11T00:00:00Z", got)
}

func TestInferStartedAtFilenameFallback(t *testing.T) {
	t.Parallel()

	parser, _ := newParser(t)
	got := parser.inferStartedAt("No date in this text.", "/snapshots/agendas/minutes-2023-11-14.pdf", "")
	assert.Equal(t, "2023-11-14T00:00:00Z", got)
}

func TestInferStartedAtRetrievedAtFallback(t *testing.T) {
	t.Parallel()

	parser, _ := newParser(t)
	got := parser.inferStartedAt("No date.", "minutes.pdf", "2024-05-20T17:45:00Z")
	assert.Equal(t, "2024-05-20T00:00:00Z", got)
}

func TestInferStartedAtNowFallback(t *testing.T) {
	t.Parallel()

	parser, _ := newParser(t)
	parser.now = func() time.Time { return time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC) }
	got := parser.inferStartedAt("No date.", "minutes.pdf", "not-a-timestamp")
	assert.Equal(t, "2026-08-30T00:00:00Z", got)
}

func TestWriteEmitsSortedMeetingJSON(t *testing.T) {
	t.Parallel()

	parser, meetingsDir := newParser(t)
	meeting := Meeting{
		ArtifactIDs: []string{"fiscal-court:abc123"},
		BodyID:      "fiscal-court",
		ID:          MeetingID("https://example.org/minutes.pdf"),
		Motions:     []Motion{{Text: "Roll call vote: carried."}},
		StartedAt:   "2024-01-09T00:00:00Z",
	}

	path, err := parser.Write(meeting)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(meetingsDir, meeting.ID+".json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))

	var decoded Meeting
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, meeting, decoded)

	text := string(data)
	assert.Less(t, strings.Index(text, `"artifact_ids"`), strings.Index(text, `"body_id"`))
	assert.Less(t, strings.Index(text, `"body_id"`), strings.Index(text, `"id"`))
	assert.Less(t, strings.Index(text, `"motions"`), strings.Index(text, `"started_at"`))
}
