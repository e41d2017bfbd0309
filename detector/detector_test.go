package detector

import (
	"math"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

func approxEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestPreprocessTrailingParenthesisExclusion(t *testing.T) {
	// spec.md §8 scenario 2: album of 12 tracks, last 3 titled
	// "... (Live)", "... (Live)", "... (Acoustic)".
	tracks := make([]PreprocessTrack, 12)
	for i := 0; i < 9; i++ {
		tracks[i] = PreprocessTrack{Title: "Track"}
	}
	tracks[9] = PreprocessTrack{Title: "Song (Live)"}
	tracks[10] = PreprocessTrack{Title: "Other Song (Live)"}
	tracks[11] = PreprocessTrack{Title: "Third Song (Acoustic)"}

	results := Preprocess(tracks)
	for i := 0; i < 9; i++ {
		if results[i].Excluded {
			t.Fatalf("track %d should not be excluded", i)
		}
	}
	for i := 9; i < 12; i++ {
		if !results[i].Excluded {
			t.Fatalf("track %d should be excluded by the trailing-parenthesis filter", i)
		}
	}
}

func TestPreprocessRequiresAtLeastTwoConsecutiveAndAlbumSizeThree(t *testing.T) {
	tracks := []PreprocessTrack{{Title: "A"}, {Title: "B (Live)"}}
	results := Preprocess(tracks)
	for i, r := range results {
		if r.Excluded {
			t.Fatalf("track %d should not be excluded: album too small", i)
		}
	}
}

func TestPreprocessAlternateTakeDetection(t *testing.T) {
	tracks := []PreprocessTrack{
		{Title: "Song"},
		{Title: "Other"},
		{Title: "Song (Demo)"},
	}
	results := Preprocess(tracks)
	if !results[2].AlternateTake || !results[2].Excluded {
		t.Fatalf("expected index 2 to be marked an alternate take of index 0")
	}
	if results[2].BaseTrackIdx != 0 {
		t.Fatalf("expected base track index 0, got %d", results[2].BaseTrackIdx)
	}
}

func TestIsSkipKeyword(t *testing.T) {
	cases := map[string]bool{
		"Song (Live)":        true,
		"Acoustic Version":   true,
		"Regular Song Title": false,
		"Remastered 2020":    true,
	}
	for title, want := range cases {
		if got := IsSkipKeyword(title); got != want {
			t.Errorf("IsSkipKeyword(%q) = %v, want %v", title, got, want)
		}
	}
}

func TestComputeAlbumStatsStandardAlbum(t *testing.T) {
	// spec.md §8 scenario 1: popularities [85,70,65,60,55,52,50,48,45,40];
	// mean=57, stddev~=12.5, top-50%-z mean~=+0.77.
	pops := []float64{85, 70, 65, 60, 55, 52, 50, 48, 45, 40}
	stats := ComputeAlbumStats(pops)
	if !approxEqual(stats.Mean, 57, 0.5) {
		t.Fatalf("expected mean ~57, got %v", stats.Mean)
	}
	if !approxEqual(stats.Stddev, 12.5, 1) {
		t.Fatalf("expected stddev ~12.5, got %v", stats.Stddev)
	}
	if !approxEqual(stats.MeanTop50Z, 0.77, 0.1) {
		t.Fatalf("expected mean_top50_z ~0.77, got %v", stats.MeanTop50Z)
	}

	z85 := zScore(85, stats.Mean, stats.Stddev)
	if !approxEqual(z85, 2.24, 0.1) {
		t.Fatalf("expected album_z(85) ~2.24, got %v", z85)
	}
}

func TestDetectStandoutTrackWithMetadataBConfirmsHigh(t *testing.T) {
	// spec.md §8 scenario 1: track pop=85 with Metadata-B single confirmation.
	ctx := Context{AlbumMean: 57, MeanTop50Z: 0.77, ArtistMean: 40, ArtistReliable: true, AlbumSize: 10}
	track := TrackInput{
		PopularityScore: 85,
		AlbumZ:          floatPtr(2.24),
		Signals:         Signals{MetadataBSingle: true},
	}
	result := Detect(track, ctx)
	if !result.IsSingle || result.Confidence != ConfidenceHigh {
		t.Fatalf("expected high confidence single, got %+v", result)
	}
}

func TestDetectExcludedTrackNeverPromoted(t *testing.T) {
	ctx := Context{AlbumMean: 30, MeanTop50Z: 0.5, AlbumSize: 12}
	track := TrackInput{
		PopularityScore: 90,
		Excluded:        true,
		Signals:         Signals{MetadataBSingle: true},
	}
	result := Detect(track, ctx)
	if result.IsSingle || result.Confidence != ConfidenceNone {
		t.Fatalf("excluded track must never be promoted, got %+v", result)
	}
}

func TestDetectUnderperformingAlbumContextTracked(t *testing.T) {
	// spec.md §8 scenario 3 statistics setup: artist_median=70, album_median=35.
	if !Underperforming(35, 70) {
		t.Fatalf("expected album median 35 vs artist median 70 to be underperforming")
	}
	if Underperforming(50, 70) {
		t.Fatalf("album median 50 vs artist median 70 should not be underperforming (0.6*70=42)")
	}
}

func TestDetectMetadataAVersionGuardRejectsMismatchedTokens(t *testing.T) {
	// spec.md §8 scenario 5: live title vs non-live release group; caller is
	// responsible for resolving MetadataASingle=false when version tokens
	// differ (see externalclients/metadataa.IsSingle), so Detect here must
	// simply not credit a source that was never set.
	ctx := Context{AlbumMean: 50, MeanTop50Z: 0.5, AlbumSize: 8}
	track := TrackInput{
		PopularityScore: 48,
		IsLive:          true,
		AlbumZ:          floatPtr(-0.1),
		Signals:         Signals{LiveConfirmed: true, MetadataASingle: false},
	}
	result := Detect(track, ctx)
	if result.IsSingle {
		t.Fatalf("expected no single classification without a confirmed source, got %+v", result)
	}
}

func TestDetectLiveTrackWithoutConfirmationIsNone(t *testing.T) {
	ctx := Context{AlbumMean: 50, MeanTop50Z: 0.5, AlbumSize: 8}
	track := TrackInput{PopularityScore: 90, IsLive: true}
	result := Detect(track, ctx)
	if result.IsSingle || result.Confidence != ConfidenceNone {
		t.Fatalf("unconfirmed live track must classify none, got %+v", result)
	}
}

func TestDetectArtistSanityFilterRejectsBelowMeanWithNoConfirmation(t *testing.T) {
	ctx := Context{AlbumMean: 50, MeanTop50Z: 0.5, ArtistMean: 60, ArtistReliable: true, AlbumSize: 8}
	track := TrackInput{PopularityScore: 55}
	result := Detect(track, ctx)
	if result.IsSingle || result.Confidence != ConfidenceNone {
		t.Fatalf("below-artist-mean track with no external confirmation must be none, got %+v", result)
	}
}

func TestDetectAlbumContextDowngradesLonePopularitySourceOnLargeAlbum(t *testing.T) {
	ctx := Context{AlbumMean: 50, MeanTop50Z: 0.2, AlbumSize: 8, ArtistMean: 10, ArtistReliable: true}
	track := TrackInput{
		PopularityScore: 52,
		AlbumZ:          floatPtr(0.3),
		Signals:         Signals{PopularityTitleMatch: true, PopularityAlbumType: "single"},
	}
	result := Detect(track, ctx)
	if result.IsSingle || result.Confidence != ConfidenceNone {
		t.Fatalf("lone popularity source on a >3-track album must downgrade to none, got %+v", result)
	}
}

func TestDetectVideoOnlyGatedByFeatureFlag(t *testing.T) {
	ctx := Context{AlbumMean: 50, MeanTop50Z: 0.5, AlbumSize: 8, ArtistMean: 10, ArtistReliable: true}
	track := TrackInput{
		PopularityScore: 55,
		AlbumZ:          floatPtr(0.6),
		Signals:         Signals{MetadataBVideo: true},
	}

	result := Detect(track, ctx)
	if result.IsSingle {
		t.Fatalf("lone video match must not be sufficient when video_only_medium is disabled, got %+v", result)
	}

	ctx.VideoOnlyMedium = true
	result = Detect(track, ctx)
	if !result.IsSingle || result.Confidence != ConfidenceMedium {
		t.Fatalf("lone video match should be sufficient when video_only_medium is enabled, got %+v", result)
	}
}
