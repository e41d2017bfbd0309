// Package pipeline is the scan orchestrator of spec.md §4.6/§5: artist ->
// album -> track, fanning out external calls under per-API concurrency
// caps, and writing results back to the store and the library in the
// ordering §5 requires for restart-safety.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"sptnr-core/catalog"
	"sptnr-core/detector"
	"sptnr-core/externalclients"
	"sptnr-core/library"
	"sptnr-core/rater"
	"sptnr-core/ratelimiter"
	"sptnr-core/shared/apperr"
	"sptnr-core/shared/metrics"
	"sptnr-core/store"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"
)

// Filters narrows the artist/album set a Run processes, per spec.md §4.6.
type Filters struct {
	Artist           string
	Album            string
	ResumeFromArtist string
	Force            bool
	// DryRun computes ratings and single status and persists them to the
	// Store as usual, but skips the Library.ApplyRating push, per the
	// CLI surface's --dry-run flag (spec.md §6).
	DryRun bool
}

// apiSemaphores holds the per-API bounded concurrency gates of spec.md §5's
// concurrency model (default caps 4/1/2/2), shared across the whole run.
type apiSemaphores struct {
	popularity *semaphore.Weighted
	scrobbles  *semaphore.Weighted
	metadataA  *semaphore.Weighted
	metadataB  *semaphore.Weighted
}

func newSemaphores(svc *Services) *apiSemaphores {
	c := svc.Config.Concurrency
	return &apiSemaphores{
		popularity: semaphore.NewWeighted(int64(max1(c.Popularity))),
		scrobbles:  semaphore.NewWeighted(int64(max1(c.Scrobbles))),
		metadataA:  semaphore.NewWeighted(int64(max1(c.MetadataA))),
		metadataB:  semaphore.NewWeighted(int64(max1(c.MetadataB))),
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Run walks every artist matching filters, per spec.md §4.6's top-level
// algorithm. It never returns an error for per-track/per-album failures —
// those are recorded to scan_history and logged — only for cancellation or
// a failure to even list artists from the Library.
func Run(ctx context.Context, svc *Services, filters Filters) error {
	artists, err := svc.Library.ListArtists(ctx)
	if err != nil {
		return fmt.Errorf("%w: listing artists: %v", apperr.ErrConnectivity, err)
	}
	sort.Slice(artists, func(i, j int) bool {
		return strings.ToLower(artists[i].Name) < strings.ToLower(artists[j].Name)
	})

	sems := newSemaphores(svc)
	resumed := filters.ResumeFromArtist == ""

	for _, a := range artists {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !resumed {
			if strings.EqualFold(a.Name, filters.ResumeFromArtist) {
				resumed = true
			} else {
				continue
			}
		}
		if filters.Artist != "" && !strings.EqualFold(a.Name, filters.Artist) {
			continue
		}
		runArtist(ctx, svc, sems, a, filters)
	}
	return nil
}

func runArtist(ctx context.Context, svc *Services, sems *apiSemaphores, artist library.LibraryArtist, filters Filters) {
	artistRow, err := svc.Store.UpsertArtist(artist.Name)
	if err != nil {
		svc.Logger.Info.Error("artist upsert failed", "artist", artist.Name, "error", err)
		return
	}

	if artistRow.ExternalIDs.Popularity == nil {
		if id := svc.Popularity.FindArtistID(ctx, artist.Name); id != "" {
			if err := svc.Store.UpdateArtistExternalID(artistRow.ID, "popularity", id); err != nil {
				svc.Logger.Info.Warn("failed to persist artist external id", "artist", artist.Name, "error", err)
			}
		}
	}

	albums, err := svc.Library.ListAlbums(ctx, artist.Name)
	if err != nil {
		svc.Logger.Info.Error("listing albums failed", "artist", artist.Name, "error", err)
		return
	}
	sort.Slice(albums, func(i, j int) bool {
		return strings.ToLower(albums[i].Title) < strings.ToLower(albums[j].Title)
	})

	for _, album := range albums {
		if ctx.Err() != nil {
			return
		}
		if filters.Album != "" && !strings.EqualFold(album.Title, filters.Album) {
			continue
		}
		runAlbum(ctx, svc, sems, artistRow, album, filters)
	}

	maybeEmitPlaylist(ctx, svc, artistRow)
}

func runAlbum(ctx context.Context, svc *Services, sems *apiSemaphores, artistRow *catalog.Artist, libAlbum library.LibraryAlbum, filters Filters) {
	logAttrs := []any{"artist", artistRow.Name, "album", libAlbum.Title}

	if !filters.Force {
		skipDays := svc.Config.Features.AlbumSkipDays
		scanned, err := svc.Store.WasAlbumScanned(artistRow.Name, libAlbum.Title, catalog.ScanPopularity, skipDays)
		if err != nil {
			svc.Logger.Info.Warn("scan-history lookup failed, proceeding with scan", append(logAttrs, "error", err)...)
		} else if scanned {
			metrics.ScansTotal.WithLabelValues("skipped").Inc()
			if err := svc.Store.RecordScan(artistRow.Name, libAlbum.Title, catalog.ScanPopularity, 0, catalog.ScanSkipped); err != nil {
				svc.Logger.Info.Warn("failed to record skip", append(logAttrs, "error", err)...)
			}
			return
		}
	}

	if err := importAlbum(ctx, svc, artistRow, libAlbum); err != nil {
		svc.Logger.Info.Error("library import failed", append(logAttrs, "error", err)...)
		metrics.ScansTotal.WithLabelValues("error").Inc()
		_ = svc.Store.RecordScan(artistRow.Name, libAlbum.Title, catalog.ScanPopularity, 0, catalog.ScanError)
		return
	}

	tracks, err := svc.Store.GetAlbumTracks(artistRow.Name, libAlbum.Title)
	if err != nil {
		svc.Logger.Info.Error("loading album tracks failed", append(logAttrs, "error", err)...)
		metrics.ScansTotal.WithLabelValues("error").Inc()
		_ = svc.Store.RecordScan(artistRow.Name, libAlbum.Title, catalog.ScanPopularity, 0, catalog.ScanError)
		return
	}
	if len(tracks) == 0 {
		return
	}

	popSignals := fetchPopularity(ctx, svc, sems, artistRow, libAlbum, tracks, filters.Force)

	if ctx.Err() != nil {
		_ = svc.Store.RecordScan(artistRow.Name, libAlbum.Title, catalog.ScanPopularity, len(tracks), catalog.ScanInterrupted)
		return
	}

	results := classify(ctx, svc, sems, artistRow, libAlbum, tracks, popSignals)

	if err := writeResults(ctx, svc, artistRow, libAlbum, tracks, results, filters.DryRun); err != nil {
		svc.Logger.Info.Error("writing scan results failed", append(logAttrs, "error", err)...)
		metrics.ScansTotal.WithLabelValues("error").Inc()
		_ = svc.Store.RecordScan(artistRow.Name, libAlbum.Title, catalog.ScanPopularity, len(tracks), catalog.ScanError)
		return
	}

	metrics.ScansTotal.WithLabelValues("completed").Inc()
	if err := svc.Store.RecordScan(artistRow.Name, libAlbum.Title, catalog.ScanPopularity, len(tracks), catalog.ScanCompleted); err != nil {
		svc.Logger.Info.Warn("failed to record completed scan", append(logAttrs, "error", err)...)
	}
}

// importAlbum is the "library_import" step spec.md §4.6 assumes already
// happened: it upserts the album and its tracks from the Library into the
// Store so the popularity pass below has rows to update.
func importAlbum(ctx context.Context, svc *Services, artistRow *catalog.Artist, libAlbum library.LibraryAlbum) error {
	album, err := svc.Store.UpsertAlbum(artistRow.ID, catalog.Album{
		Artist:      artistRow.Name,
		Title:       libAlbum.Title,
		ReleaseDate: libAlbum.ReleaseDate,
		Type:        catalog.AlbumType(libAlbum.Type),
		TrackCount:  libAlbum.TrackCount,
		DiscCount:   libAlbum.DiscCount,
		CoverArtURL: libAlbum.CoverArtURL,
		Genres:      libAlbum.Genres,
		IsLive:      containsLiveMarker(libAlbum.Title),
	})
	if err != nil {
		return fmt.Errorf("%w: upserting album: %v", apperr.ErrStore, err)
	}

	libTracks, err := svc.Library.ListTracks(ctx, artistRow.Name, libAlbum.Title)
	if err != nil {
		return fmt.Errorf("%w: listing tracks: %v", apperr.ErrConnectivity, err)
	}

	for _, lt := range libTracks {
		track := &catalog.Track{
			LibraryID:   lt.ID,
			Title:       lt.Title,
			Artist:      artistRow.Name,
			Album:       libAlbum.Title,
			DurationSec: lt.DurationSec,
			ISRC:        lt.ISRC,
			FilePath:    lt.FilePath,
		}
		if _, err := svc.Store.UpsertTrack(album.ID, track); err != nil {
			svc.Logger.Info.Warn("track upsert failed, skipping track", "track", lt.Title, "error", err)
		}
	}

	return svc.Store.TouchAlbumScanned(album.ID, time.Now())
}

func containsLiveMarker(s string) bool {
	return strings.Contains(strings.ToLower(s), "live")
}

// popularitySignal carries the Popularity-client evidence a track search
// turned up, for the detector's "popularity_single" medium-confidence source
// (spec.md §4.4): the candidate's reported album_type and whether its title
// matched the track being scored.
type popularitySignal struct {
	AlbumType  string
	TitleMatch bool
}

// fetchPopularity resolves popularity_score for each track under the
// Popularity/Scrobbles concurrency caps, per spec.md §4.6/§5. A track whose
// title carries a skip keyword, or whose cached score is fresh (<24h) and
// non-zero and force is false, keeps its cached score untouched. Returns the
// popularity-candidate signals gathered this pass, keyed by track id, for
// classify to fold into the detector's per-track Signals.
func fetchPopularity(ctx context.Context, svc *Services, sems *apiSemaphores, artistRow *catalog.Artist, libAlbum library.LibraryAlbum, tracks []*catalog.Track, force bool) map[int64]popularitySignal {
	p := pool.New().WithContext(ctx).WithMaxGoroutines(max1(svc.Config.Concurrency.Popularity) + max1(svc.Config.Concurrency.Scrobbles))

	var mu sync.Mutex
	var updates []store.PopularityUpdate
	signals := make(map[int64]popularitySignal)

	for _, t := range tracks {
		t := t
		if detector.IsSkipKeyword(t.Title) {
			continue
		}
		if !force && !t.LastPopularityLookup.IsZero() && t.PopularityScore > 0 && time.Since(t.LastPopularityLookup) < 24*time.Hour {
			continue
		}

		p.Go(func(ctx context.Context) error {
			score, ok, sig := fetchTrackPopularity(ctx, svc, sems, artistRow.Name, libAlbum.ReleaseDate, t)
			if !ok {
				return nil
			}
			mu.Lock()
			updates = append(updates, store.PopularityUpdate{
				TrackID:              t.ID,
				PopularityScore:      score,
				LastPopularityLookup: time.Now(),
			})
			signals[t.ID] = sig
			mu.Unlock()
			return nil
		})
	}
	_ = p.Wait()

	if len(updates) == 0 {
		return signals
	}
	if err := svc.Store.BatchUpdatePopularity(updates); err != nil {
		svc.Logger.Info.Error("batch popularity update failed", "artist", artistRow.Name, "album", libAlbum.Title, "error", err)
		return signals
	}
	for i := range tracks {
		for _, u := range updates {
			if tracks[i].ID == u.TrackID {
				tracks[i].PopularityScore = u.PopularityScore
				tracks[i].LastPopularityLookup = u.LastPopularityLookup
			}
		}
	}
	return signals
}

func fetchTrackPopularity(ctx context.Context, svc *Services, sems *apiSemaphores, artistName, releaseDate string, t *catalog.Track) (float64, bool, popularitySignal) {
	callCtx, cancel := context.WithTimeout(ctx, apiCallTimeout(svc))
	defer cancel()

	var popNorm *float64
	var playcount *int64
	var popSignal popularitySignal

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if !svc.Limiter.WaitIfNeeded(callCtx, ratelimiter.Popularity, apiCallTimeout(svc)) {
			metrics.RateLimiterSkipsTotal.WithLabelValues("popularity", "quota_exhausted").Inc()
			return
		}
		if err := sems.popularity.Acquire(callCtx, 1); err != nil {
			return
		}
		defer sems.popularity.Release(1)
		svc.Limiter.Record(ratelimiter.Popularity)
		results := svc.Popularity.SearchTrack(callCtx, t.Title, artistName, t.Album)
		candidates := excludeLiveRemixAlbums(results)
		if best := bestPopularityCandidate(candidates, t); best != nil {
			v := float64(best.Popularity)
			popNorm = &v
			popSignal = popularitySignal{
				AlbumType:  strings.ToLower(best.AlbumType),
				TitleMatch: catalog.NormalizeName(best.Title) == catalog.NormalizeName(t.Title),
			}
		}
	}()
	go func() {
		defer wg.Done()
		if !svc.Limiter.WaitIfNeeded(callCtx, ratelimiter.Scrobbles, apiCallTimeout(svc)) {
			metrics.RateLimiterSkipsTotal.WithLabelValues("scrobbles", "quota_exhausted").Inc()
			return
		}
		if err := sems.scrobbles.Acquire(callCtx, 1); err != nil {
			return
		}
		defer sems.scrobbles.Release(1)
		svc.Limiter.Record(ratelimiter.Scrobbles)
		info := svc.Scrobbles.TrackInfo(artistName, t.Title)
		if info.Playcount > 0 {
			v := int64(info.Playcount)
			playcount = &v
		}
	}()
	wg.Wait()

	if popNorm == nil && playcount == nil {
		return t.PopularityScore, false, popularitySignal{}
	}

	score := PopularityScore(ScoreInputs{
		PopularityNorm: popNorm,
		Playcount:      playcount,
		ReleaseDate:    parseReleaseDate(releaseDate),
		Now:            time.Now(),
		Decay:          ageDecay(svc),
	}, Weights{Spotify: svc.Config.Weights.Spotify, Scrobbles: svc.Config.Weights.Scrobbles, Age: svc.Config.Weights.Age})

	return score, true, popSignal
}

// excludeLiveRemixAlbums drops candidates whose album name marks them as a
// live recording or remix, per spec.md §4.4's medium-confidence
// "popularity_single" source (it must not fire off a live/remix release).
func excludeLiveRemixAlbums(candidates []externalclients.TrackCandidate) []externalclients.TrackCandidate {
	out := make([]externalclients.TrackCandidate, 0, len(candidates))
	for _, c := range candidates {
		low := strings.ToLower(c.AlbumName)
		if strings.Contains(low, "live") || strings.Contains(low, "remix") {
			continue
		}
		out = append(out, c)
	}
	return out
}

// parseReleaseDate accepts the three granularities spec.md §4.3 allows for
// an album's release_date (YYYY, YYYY-MM, YYYY-MM-DD). An empty or
// unparsable value yields the zero time, which PopularityScore treats as
// "no age signal" and renormalizes away.
func parseReleaseDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ageDecay selects the AgeDecay implementation from config.Weights,
// resolving SPEC_FULL.md §7's Open Question #1 (default exponential,
// half-life 5 years).
func ageDecay(svc *Services) AgeDecay {
	if strings.EqualFold(svc.Config.Weights.AgeDecay, "linear") {
		years := svc.Config.Weights.AgeHalfLifeYears * 2
		if years <= 0 {
			years = 10
		}
		return LinearDecay{MaxYears: years}
	}
	halfLife := svc.Config.Weights.AgeHalfLifeYears
	if halfLife <= 0 {
		halfLife = 5
	}
	return ExponentialDecay{HalfLifeYears: halfLife}
}

func apiCallTimeout(svc *Services) time.Duration {
	if svc.Config.APICallTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(svc.Config.APICallTimeoutSeconds) * time.Second
}

// bestPopularityCandidate picks the search result whose duration is closest
// to the track's own, falling back to the first result. Returns nil if
// candidates is empty.
func bestPopularityCandidate(candidates []externalclients.TrackCandidate, t *catalog.Track) *externalclients.TrackCandidate {
	if len(candidates) == 0 {
		return nil
	}
	trackMs := t.DurationSec * 1000
	best := candidates[0]
	bestDiff := absInt(best.DurationMs - trackMs)
	for _, c := range candidates[1:] {
		if diff := absInt(c.DurationMs - trackMs); diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return &best
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// classificationResult bundles a track's detector and rater outcomes.
type classificationResult struct {
	Detection detector.Result
	Stars     int
	Excluded  bool
	AltTake   bool
	BaseIdx   int
	AlbumZ    *float64
	ArtistZ   *float64
}

func classify(ctx context.Context, svc *Services, sems *apiSemaphores, artistRow *catalog.Artist, libAlbum library.LibraryAlbum, tracks []*catalog.Track, popSignals map[int64]popularitySignal) []classificationResult {
	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].PopularityScore > tracks[j].PopularityScore })

	pre := detector.Preprocess(preprocessInputs(tracks))

	var albumPops []float64
	for i, t := range tracks {
		if !pre[i].Excluded && t.PopularityScore > 0 {
			albumPops = append(albumPops, t.PopularityScore)
		}
	}
	albumStats := detector.ComputeAlbumStats(albumPops)
	albumMedian := detector.AlbumMedian(albumPops)

	artistTracks, err := svc.Store.GetArtistTracks(artistRow.Name)
	if err != nil {
		svc.Logger.Info.Warn("loading artist tracks for stats failed", "artist", artistRow.Name, "error", err)
	}
	var artistPops []float64
	for _, t := range artistTracks {
		if t.PopularityScore > 0 {
			artistPops = append(artistPops, t.PopularityScore)
		}
	}
	artistStats := detector.ComputeArtistStats(artistPops)
	if artistStats.Reliable {
		_ = svc.Store.UpdateArtistStats(artistRow.ID, store.ArtistStats{
			Mean: artistStats.Mean, Median: artistStats.Median, Stddev: artistStats.Stddev, TrackCount: len(artistPops),
		})
	}
	underperforming := artistStats.Reliable && detector.Underperforming(albumMedian, artistStats.Median)

	results := make([]classificationResult, len(tracks))

	metaPool := pool.New().WithContext(ctx).WithMaxGoroutines(max1(svc.Config.Concurrency.MetadataA) + max1(svc.Config.Concurrency.MetadataB))
	var mu sync.Mutex

	for i, t := range tracks {
		i, t := i, t
		var albumZ *float64
		if albumStats.Stddev > 0 || albumStats.Mean != 0 {
			z := 0.0
			if albumStats.Stddev != 0 {
				z = (t.PopularityScore - albumStats.Mean) / albumStats.Stddev
			}
			albumZ = &z
		}
		var artistZ *float64
		if artistStats.Reliable {
			z := 0.0
			if artistStats.Stddev != 0 {
				z = (t.PopularityScore - artistStats.Mean) / artistStats.Stddev
			}
			artistZ = &z
		}

		results[i].Excluded = pre[i].Excluded
		results[i].AltTake = pre[i].AlternateTake
		results[i].BaseIdx = pre[i].BaseTrackIdx
		results[i].AlbumZ = albumZ
		results[i].ArtistZ = artistZ

		if pre[i].Excluded || detector.IsSkipKeyword(t.Title) {
			results[i].Detection = detector.Result{Confidence: detector.ConfidenceNone}
			continue
		}

		isLive := containsLiveMarker(t.Title) || containsLiveMarker(libAlbum.Title)

		metaPool.Go(func(ctx context.Context) error {
			signals := resolveSignals(ctx, svc, sems, artistRow.Name, t, isLive, popSignals[t.ID])
			ctxDet := detector.Context{
				AlbumMean:       albumStats.Mean,
				MeanTop50Z:      albumStats.MeanTop50Z,
				ArtistMean:      artistStats.Mean,
				ArtistReliable:  artistStats.Reliable,
				Underperforming: underperforming,
				AlbumSize:       len(tracks),
				VideoOnlyMedium: svc.Config.Features.VideoOnlyMedium,
			}
			in := detector.TrackInput{
				Title:           t.Title,
				PopularityScore: t.PopularityScore,
				IsLive:          isLive,
				Excluded:        false,
				AlbumZ:          albumZ,
				Signals:         signals,
			}
			det := detector.Detect(in, ctxDet)

			mu.Lock()
			results[i].Detection = det
			mu.Unlock()
			return nil
		})
	}
	_ = metaPool.Wait()

	for i, t := range tracks {
		rIn := rater.TrackInput{
			PopularityScore: t.PopularityScore,
			Excluded:        results[i].Excluded,
			Detection:       results[i].Detection,
		}
		band := rater.BandRating(nonExcludedPopulations(tracks, pre), bandIndex(pre, i))
		results[i].Stars = rater.Rate(rIn, band, rater.AlbumContext{Underperforming: underperforming, ArtistZ: results[i].ArtistZ})
	}

	return results
}

func preprocessInputs(tracks []*catalog.Track) []detector.PreprocessTrack {
	out := make([]detector.PreprocessTrack, len(tracks))
	for i, t := range tracks {
		out[i] = detector.PreprocessTrack{Title: t.Title}
	}
	return out
}

// nonExcludedPopulations/bandIndex translate the full track slice (which
// still includes excluded tracks, for BaseTrackIdx bookkeeping) into the
// popularity-sorted, non-excluded population BandRating expects.
func nonExcludedPopulations(tracks []*catalog.Track, pre []detector.PreprocessResult) []float64 {
	var out []float64
	for i, t := range tracks {
		if !pre[i].Excluded {
			out = append(out, t.PopularityScore)
		}
	}
	if len(out) == 0 {
		return []float64{0}
	}
	return out
}

func bandIndex(pre []detector.PreprocessResult, target int) int {
	if pre[target].Excluded {
		return 0
	}
	idx := 0
	for i := 0; i < target; i++ {
		if !pre[i].Excluded {
			idx++
		}
	}
	return idx
}

func resolveSignals(ctx context.Context, svc *Services, sems *apiSemaphores, artistName string, t *catalog.Track, isLive bool, popSig popularitySignal) detector.Signals {
	callCtx, cancel := context.WithTimeout(ctx, apiCallTimeout(svc))
	defer cancel()

	signals := detector.Signals{
		PopularityAlbumType:  popSig.AlbumType,
		PopularityTitleMatch: popSig.TitleMatch,
	}
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := sems.metadataA.Acquire(callCtx, 1); err != nil {
			return
		}
		defer sems.metadataA.Release(1)
		signals.MetadataASingle = svc.MetadataA.IsSingle(callCtx, t.Title, artistName)
	}()

	go func() {
		defer wg.Done()
		if err := sems.metadataB.Acquire(callCtx, 1); err != nil {
			return
		}
		defer sems.metadataB.Release(1)
		signals.MetadataBSingle = svc.MetadataB.IsSingle(callCtx, t.Title, artistName, t.DurationSec, isLive, false)
		signals.MetadataBVideo = svc.MetadataB.HasOfficialVideo(callCtx, t.Title, artistName, isLive)
	}()

	wg.Wait()

	signals.LiveConfirmed = deriveLiveConfirmed(isLive, signals.MetadataASingle, signals.MetadataBSingle)
	return signals
}

// deriveLiveConfirmed implements spec.md §4.4's live-track handling: a track
// whose title or album marks it live is only confirmed genuinely live once
// one of the metadata clients has independently confirmed it as a single
// (i.e. identified and matched a real release for it) in this same pass.
func deriveLiveConfirmed(isLive, metadataASingle, metadataBSingle bool) bool {
	return isLive && (metadataASingle || metadataBSingle)
}

func writeResults(ctx context.Context, svc *Services, artistRow *catalog.Artist, libAlbum library.LibraryAlbum, tracks []*catalog.Track, results []classificationResult, dryRun bool) error {
	zUpdates := make([]store.PopularityUpdate, 0, len(tracks))
	for i, t := range tracks {
		zUpdates = append(zUpdates, store.PopularityUpdate{
			TrackID:              t.ID,
			PopularityScore:      t.PopularityScore,
			AlbumZ:               results[i].AlbumZ,
			ArtistZ:              results[i].ArtistZ,
			LastPopularityLookup: t.LastPopularityLookup,
		})
	}
	if err := svc.Store.BatchUpdatePopularity(zUpdates); err != nil {
		return fmt.Errorf("%w: writing album/artist z-scores: %v", apperr.ErrStore, err)
	}

	altUpdates := make([]store.AlternateTakeUpdate, 0, len(tracks))
	for i, t := range tracks {
		if !results[i].AltTake {
			continue
		}
		var baseID *int64
		if results[i].BaseIdx >= 0 && results[i].BaseIdx < len(tracks) {
			id := tracks[results[i].BaseIdx].ID
			baseID = &id
		}
		altUpdates = append(altUpdates, store.AlternateTakeUpdate{TrackID: t.ID, AlternateTake: true, BaseTrackID: baseID})
	}
	if len(altUpdates) > 0 {
		if err := svc.Store.BatchUpdateAlternateTakes(altUpdates); err != nil {
			return fmt.Errorf("%w: writing alternate-take links: %v", apperr.ErrStore, err)
		}
	}

	singleUpdates := make([]store.SinglesUpdate, 0, len(tracks))
	for i, t := range tracks {
		singleUpdates = append(singleUpdates, store.SinglesUpdate{
			TrackID:          t.ID,
			IsSingle:         results[i].Detection.IsSingle,
			SingleConfidence: results[i].Detection.Confidence,
			SingleSources:    results[i].Detection.Sources,
			Stars:            results[i].Stars,
		})
	}
	if err := svc.Store.BatchUpdateSingles(singleUpdates); err != nil {
		return fmt.Errorf("%w: batch update singles: %v", apperr.ErrStore, err)
	}

	if dryRun {
		slog.Info("dry run: skipping library rating push", "artist", artistRow.Name, "album", libAlbum.Title, "tracks", len(tracks))
		return nil
	}

	var pushErrs []error
	for i, t := range tracks {
		if err := svc.Library.ApplyRating(ctx, t.LibraryID, results[i].Stars); err != nil {
			pushErrs = append(pushErrs, err)
		}
	}
	if len(pushErrs) > 0 {
		slog.Warn("some rating pushes to the library failed", "artist", artistRow.Name, "album", libAlbum.Title, "count", len(pushErrs))
	}
	return nil
}

func maybeEmitPlaylist(ctx context.Context, svc *Services, artistRow *catalog.Artist) {
	// Hook for playlist.Generate, wired by cmd/sptnr's main so this package
	// stays free of a direct playlist import (pipeline -> playlist would be
	// a layering inversion since playlist reads the same store rows).
	if EmitPlaylist != nil {
		if err := EmitPlaylist(ctx, svc.Store, artistRow.Name); err != nil {
			svc.Logger.Info.Warn("playlist emission failed", "artist", artistRow.Name, "error", err)
		}
	}
}

// EmitPlaylist, when non-nil, is invoked after an artist finishes scanning.
// main wires this to playlist.Generate at startup, per spec.md §6.
var EmitPlaylist func(ctx context.Context, s *store.Store, artist string) error
