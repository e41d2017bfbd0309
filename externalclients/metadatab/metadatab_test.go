package metadatab

import (
	"testing"

	"sptnr-core/externalclients"
)

func TestTrackInReleaseExactTitleMatch(t *testing.T) {
	rel := &externalclients.Release{
		Tracklist: []externalclients.ReleaseTrack{
			{Title: "Some Other Song", DurationSec: 300},
			{Title: "Song Title", DurationSec: 180},
		},
	}
	if !trackInRelease(rel, "Song Title", 0) {
		t.Fatalf("expected exact normalized title match to confirm")
	}
}

func TestTrackInReleaseDurationWithinTolerance(t *testing.T) {
	rel := &externalclients.Release{
		Tracklist: []externalclients.ReleaseTrack{
			{Title: "A Totally Different Name", DurationSec: 182},
		},
	}
	if !trackInRelease(rel, "Song Title", 180) {
		t.Fatalf("expected duration within +-2s to confirm")
	}
}

func TestTrackInReleaseRejectsUnrelatedRelease(t *testing.T) {
	rel := &externalclients.Release{
		Tracklist: []externalclients.ReleaseTrack{
			{Title: "Unrelated Track", DurationSec: 210},
		},
	}
	if trackInRelease(rel, "Song Title", 180) {
		t.Fatalf("expected no match for unrelated tracklist")
	}
}
