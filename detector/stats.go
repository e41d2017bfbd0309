package detector

import (
	"container/heap"
	"math"
	"sort"
)

// topKHeap is a bounded min-heap used to track the k largest z-scores seen
// so far without sorting the full slice, per spec.md §4.4's "via partial
// selection, not full sort" requirement for mean_top50_z.
type topKHeap []float64

func (h topKHeap) Len() int            { return len(h) }
func (h topKHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h topKHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *topKHeap) Push(x interface{}) { *h = append(*h, x.(float64)) }
func (h *topKHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// topKMean returns the mean of the k largest values in vs, visiting each
// value once and keeping only a size-k heap rather than sorting vs.
func topKMean(vs []float64, k int) float64 {
	if k <= 0 || len(vs) == 0 {
		return 0
	}
	if k > len(vs) {
		k = len(vs)
	}
	h := make(topKHeap, 0, k)
	heap.Init(&h)
	for _, v := range vs {
		if h.Len() < k {
			heap.Push(&h, v)
			continue
		}
		if v > h[0] {
			heap.Pop(&h)
			heap.Push(&h, v)
		}
	}
	sum := 0.0
	for _, v := range h {
		sum += v
	}
	return sum / float64(len(h))
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func stddev(vs []float64, m float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vs)))
}

func median(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func zScore(v, m, sd float64) float64 {
	if sd == 0 {
		return 0
	}
	return (v - m) / sd
}

// ComputeAlbumStats implements spec.md §4.4 statistics over non-excluded
// album tracks with popularity_score > 0: album_mean, album_stddev, and
// mean_top50_z computed via partial selection over the top ceil(n/2) z-scores.
func ComputeAlbumStats(popularities []float64) AlbumStats {
	if len(popularities) == 0 {
		return AlbumStats{}
	}
	m := mean(popularities)
	sd := stddev(popularities, m)

	zs := make([]float64, len(popularities))
	for i, p := range popularities {
		zs[i] = zScore(p, m, sd)
	}
	k := (len(zs) + 1) / 2 // ceil(n/2)

	return AlbumStats{
		Mean:       m,
		Stddev:     sd,
		MeanTop50Z: topKMean(zs, k),
	}
}

// ComputeArtistStats implements spec.md §4.4 artist-level statistics:
// artist_mean, artist_median, artist_stddev, reliable only when >= 10 tracks.
func ComputeArtistStats(popularities []float64) ArtistStats {
	if len(popularities) == 0 {
		return ArtistStats{}
	}
	m := mean(popularities)
	return ArtistStats{
		Mean:     m,
		Median:   median(popularities),
		Stddev:   stddev(popularities, m),
		Reliable: len(popularities) >= 10,
	}
}

// AlbumMedian computes the album popularity median for the underperforming-
// album check (album_median < 0.6 * artist_median), independent of the mean-
// based AlbumStats above since the spec names median, not mean, here.
func AlbumMedian(popularities []float64) float64 {
	return median(popularities)
}

// Underperforming reports spec.md §4.4's "album is underperforming if
// album_median < 0.6 * artist_median" rule.
func Underperforming(albumMedian, artistMedian float64) bool {
	return albumMedian < 0.6*artistMedian
}
