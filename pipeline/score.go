package pipeline

import (
	"math"
	"time"
)

// AgeDecay computes the age component A of the popularity-score formula from
// a release date. Pluggable per spec.md §9 Open Question #1: the original
// left the age-decay shape unspecified, so sptnr-core exposes it as an
// interface with linear and exponential implementations.
type AgeDecay interface {
	Decay(ageYears float64) float64
}

// LinearDecay returns 100 at age 0, reaching 0 at MaxYears.
type LinearDecay struct {
	MaxYears float64
}

func (d LinearDecay) Decay(ageYears float64) float64 {
	if d.MaxYears <= 0 {
		return 0
	}
	v := 100 * (1 - ageYears/d.MaxYears)
	return clamp(v, 0, 100)
}

// ExponentialDecay halves the score every HalfLifeYears; this is the
// default per SPEC_FULL.md's resolution of Open Question #1.
type ExponentialDecay struct {
	HalfLifeYears float64
}

func (d ExponentialDecay) Decay(ageYears float64) float64 {
	if d.HalfLifeYears <= 0 {
		return 100
	}
	return clamp(100*math.Pow(0.5, ageYears/d.HalfLifeYears), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Weights are the blend weights of the popularity-score formula, already
// renormalized to sum to 1 (config.Weights.renormalize).
type Weights struct {
	Spotify   float64
	Scrobbles float64
	Age       float64
}

// ScoreInputs is the raw per-track data the popularity-score formula needs.
// A nil PopularityNorm or Playcount means that client returned no data and
// its weight must be renormalized away per spec.md §4.6.
type ScoreInputs struct {
	PopularityNorm *float64 // 0..100, already popularity/100*100 i.e. the raw 0..100 value
	Playcount      *int64
	ReleaseDate    time.Time
	Now            time.Time
	Decay          AgeDecay
}

// PopularityScore implements spec.md §4.6's formula:
//
//	popularity_score = w_spotify*P_norm + w_scrobbles*L_log + w_age*A
//
// where L_log = clamp(12.5*log10(max(playcount,1)), 0, 100). If a client
// returned no data, its weight is dropped and the remaining weights
// renormalized so the result still lands in [0,100].
func PopularityScore(in ScoreInputs, w Weights) float64 {
	type component struct {
		weight float64
		value  float64
		active bool
	}

	age := ageYears(in.ReleaseDate, in.Now)
	components := []component{
		{weight: w.Spotify, active: in.PopularityNorm != nil},
		{weight: w.Scrobbles, active: in.Playcount != nil},
		{weight: w.Age, active: !in.ReleaseDate.IsZero()},
	}
	if components[0].active {
		components[0].value = *in.PopularityNorm
	}
	if components[1].active {
		components[1].value = clamp(12.5*math.Log10(math.Max(float64(*in.Playcount), 1)), 0, 100)
	}
	if components[2].active {
		decay := in.Decay
		if decay == nil {
			decay = ExponentialDecay{HalfLifeYears: 5}
		}
		components[2].value = decay.Decay(age)
	}

	var weightSum, scoreSum float64
	for _, c := range components {
		if !c.active {
			continue
		}
		weightSum += c.weight
		scoreSum += c.weight * c.value
	}
	if weightSum == 0 {
		return 0
	}
	return clamp(scoreSum/weightSum, 0, 100)
}

func ageYears(releaseDate, now time.Time) float64 {
	if releaseDate.IsZero() || now.IsZero() {
		return 0
	}
	days := now.Sub(releaseDate).Hours() / 24
	if days < 0 {
		return 0
	}
	return days / 365.25
}
