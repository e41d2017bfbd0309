package detector

// Context carries the album/artist-level figures Detect needs alongside a
// single TrackInput: the statistics are computed once per album by the
// pipeline (via ComputeAlbumStats/ComputeArtistStats) and shared across all
// of that album's Detect calls.
type Context struct {
	AlbumMean     float64
	MeanTop50Z    float64
	ArtistMean    float64
	ArtistReliable bool
	Underperforming bool // album_median < 0.6 * artist_median
	AlbumSize     int
	// VideoOnlyMedium gates whether a lone Metadata-B official-video match,
	// with no other medium source, is sufficient on its own (config
	// features.video_only_medium; default false per spec.md's requirement
	// of a secondary source for a pure video-only match).
	VideoOnlyMedium bool
}

// Detect implements spec.md §4.4: preprocessing has already run (t.Excluded
// reflects the trailing-parenthesis filter / alternate-take detection), and
// the caller supplies the album/artist statistics via ctx. Detect itself is
// pure and side-effect free.
func Detect(t TrackInput, ctx Context) Result {
	if t.Excluded {
		return Result{IsSingle: false, Confidence: ConfidenceNone}
	}

	// Live-track handling: require explicit confirmation of a live version,
	// else immediately none.
	if t.IsLive && !t.Signals.LiveConfirmed {
		return Result{IsSingle: false, Confidence: ConfidenceNone}
	}

	// Artist sanity filter: below the artist mean with no external metadata
	// confirmation at all is an immediate none.
	if ctx.ArtistReliable && t.PopularityScore < ctx.ArtistMean && !hasAnyExternalConfirmation(t.Signals) {
		return Result{IsSingle: false, Confidence: ConfidenceNone}
	}

	var sources []string

	// High-confidence sources.
	popularityStandout := t.PopularityScore >= ctx.AlbumMean+6
	if popularityStandout {
		sources = append(sources, "popularity_standout")
	}
	if t.Signals.MetadataBSingle {
		sources = append(sources, "metadata_b_single")
	}
	if len(sources) > 0 {
		if t.IsLive {
			sources = append(sources, "live_confirmed")
		}
		return Result{IsSingle: true, Confidence: ConfidenceHigh, Sources: dedupe(sources)}
	}

	// Medium-confidence sources.
	var medium []string

	popularitySingle := t.Signals.PopularityTitleMatch &&
		(t.Signals.PopularityAlbumType == "single" || t.Signals.PopularityAlbumType == "ep")
	if popularitySingle {
		medium = append(medium, "popularity_single")
	}
	if t.Signals.MetadataASingle {
		medium = append(medium, "metadata_a_single")
	}
	if t.Signals.MetadataBSingle {
		medium = append(medium, "metadata_b_single")
	}
	if t.Signals.MetadataBVideo {
		// Pure video-only match requires a secondary confirmation unless
		// features.video_only_medium opts into treating video alone as
		// sufficient.
		if len(medium) > 0 || ctx.VideoOnlyMedium {
			medium = append(medium, "metadata_b_video")
		}
	}

	// "Z-threshold + metadata" additionally requires a non-popularity
	// metadata confirmation — it rides on an existing metadata source rather
	// than promoting popularity-only matches, so a lone popularity match
	// never gets counted as two sources for the album-context downgrade below.
	zThresholdMet := t.AlbumZ != nil && *t.AlbumZ >= ctx.MeanTop50Z-0.3
	if zThresholdMet && len(dedupe(medium)) > 0 && hasNonPopularitySource(medium) {
		medium = append(medium, "zscore_metadata")
	}

	medium = dedupe(medium)

	if len(medium) == 0 {
		return Result{IsSingle: false, Confidence: ConfidenceNone}
	}

	if t.IsLive {
		medium = append(medium, "live_confirmed")
	}

	// Album-context downgrade: exactly one source, album has > 3 tracks, and
	// that source is only the Popularity client.
	nonLiveSources := withoutLiveMarker(medium)
	if len(nonLiveSources) == 1 && nonLiveSources[0] == "popularity_single" && ctx.AlbumSize > 3 {
		return Result{IsSingle: false, Confidence: ConfidenceNone}
	}

	return Result{IsSingle: true, Confidence: ConfidenceMedium, Sources: medium}
}

func hasNonPopularitySource(sources []string) bool {
	for _, s := range sources {
		if s != "popularity_single" {
			return true
		}
	}
	return false
}

func hasAnyExternalConfirmation(s Signals) bool {
	return s.PopularityTitleMatch || s.MetadataASingle || s.MetadataBSingle || s.MetadataBVideo
}

func withoutLiveMarker(sources []string) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if s != "live_confirmed" {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(sources []string) []string {
	seen := make(map[string]bool, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
