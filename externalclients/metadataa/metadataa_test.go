package metadataa

import "testing"

func TestVersionTokens(t *testing.T) {
	cases := []struct {
		title string
		want  []string
	}{
		{"Song (Live in Wacken 2022)", []string{"live"}},
		{"Song (Acoustic)", []string{"acoustic"}},
		{"Song", nil},
		{"Song - Remastered 2011", []string{"remastered"}},
	}
	for _, c := range cases {
		got := VersionTokens(c.title)
		if len(got) != len(c.want) {
			t.Fatalf("VersionTokens(%q) = %v, want %v", c.title, got, c.want)
		}
		for _, w := range c.want {
			if !got[w] {
				t.Fatalf("VersionTokens(%q) missing token %q", c.title, w)
			}
		}
	}
}

func TestBaseTitle(t *testing.T) {
	cases := map[string]string{
		"Song (Live in Wacken 2022)": "song",
		"Song":                       "song",
		"Song - Remastered 2011":     "song",
	}
	for in, want := range cases {
		if got := BaseTitle(in); got != want {
			t.Fatalf("BaseTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMetadataAVersionGuardScenario(t *testing.T) {
	// spec.md §8 scenario 5: "Song (Live in Wacken 2022)" vs a release-group
	// "Song" with no Live secondary type — version tokens differ, reject.
	track := "Song (Live in Wacken 2022)"
	rg := releaseGroupResult{Title: "Song", PrimaryType: "Single"}

	wantTokens := VersionTokens(track)
	gotTokens := VersionTokens(rg.Title)
	if tokensEqual(wantTokens, gotTokens) {
		t.Fatalf("expected version tokens to differ ({live} vs {})")
	}
}
