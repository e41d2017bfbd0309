package config

import "testing"

func TestWeightsRenormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Weights
		want Weights
	}{
		{
			name: "already sums to one",
			in:   Weights{Spotify: 0.3, Scrobbles: 0.5, Age: 0.2},
			want: Weights{Spotify: 0.3, Scrobbles: 0.5, Age: 0.2},
		},
		{
			name: "needs rescaling",
			in:   Weights{Spotify: 0.6, Scrobbles: 1.0, Age: 0.4},
			want: Weights{Spotify: 0.3, Scrobbles: 0.5, Age: 0.2},
		},
		{
			name: "all zero falls back to defaults",
			in:   Weights{},
			want: Weights{Spotify: 0.3, Scrobbles: 0.5, Age: 0.2},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := c.in
			w.renormalize()
			const tol = 1e-9
			if absf(w.Spotify-c.want.Spotify) > tol || absf(w.Scrobbles-c.want.Scrobbles) > tol || absf(w.Age-c.want.Age) > tol {
				t.Fatalf("renormalize() = %+v, want %+v", w, c.want)
			}
		})
	}
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
