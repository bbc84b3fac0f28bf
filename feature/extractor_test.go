package feature

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/swiperec/core"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func TestExtract_RatingNormalization(t *testing.T) {
	e := NewExtractor()
	v := e.Extract(&core.Movie{ID: "m1", VoteAverage: 8.0}, testNow)
	if got := v[core.DimRating]; got != 0.8 {
		t.Errorf("rating_normalized = %v, want exactly 0.8", got)
	}
}

func TestExtract_GenreStrength(t *testing.T) {
	tests := []struct {
		name     string
		genreIDs []int
		want     map[string]float64
	}{
		{
			name:     "three mapped genres share strength",
			genreIDs: []int{28, 878, 18},
			want: map[string]float64{
				core.DimGenreAction: 1.0 / 3,
				core.DimGenreSciFi:  1.0 / 3,
				core.DimGenreDrama:  1.0 / 3,
			},
		},
		{
			name:     "many-to-one mapping accumulates",
			genreIDs: []int{28, 53, 878}, // Action + Thriller both map to genre_action
			want: map[string]float64{
				core.DimGenreAction: 2.0 / 3,
				core.DimGenreSciFi:  1.0 / 3,
			},
		},
		{
			name:     "unmapped ids still count in the denominator",
			genreIDs: []int{28, 10770}, // 10770 is unmapped
			want: map[string]float64{
				core.DimGenreAction: 0.5,
			},
		},
		{
			name:     "no genres leaves all genre dims zero",
			genreIDs: nil,
			want:     map[string]float64{},
		},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Extract(&core.Movie{ID: "m", GenreIDs: tt.genreIDs}, testNow)
			for _, d := range core.GenreDimensions {
				want := tt.want[d]
				if math.Abs(v[d]-want) > 1e-9 {
					t.Errorf("%s = %v, want %v", d, v[d], want)
				}
			}
		})
	}
}

func TestExtract_PopularitySaturation(t *testing.T) {
	e := NewExtractor()
	if v := e.Extract(&core.Movie{Popularity: 500}, testNow); v[core.DimPopularity] != 0.5 {
		t.Errorf("popularity 500 -> %v, want 0.5", v[core.DimPopularity])
	}
	if v := e.Extract(&core.Movie{Popularity: 5000}, testNow); v[core.DimPopularity] != 1.0 {
		t.Errorf("popularity 5000 -> %v, want saturated 1.0", v[core.DimPopularity])
	}
}

func TestExtract_Recency(t *testing.T) {
	tests := []struct {
		name    string
		release string
		want    float64
		exact   bool
	}{
		{name: "released today", release: "2026-08-31", want: 1.0},
		{name: "five years old", release: "2021-08-31", want: 0.5},
		{name: "twenty years old scores zero", release: "2006-08-31", want: 0.0, exact: true},
		{name: "future date clamps to fresh", release: "2030-01-01", want: 1.0, exact: true},
		{name: "unparsable date scores zero", release: "not-a-date", want: 0.0, exact: true},
		{name: "empty date scores zero", release: "", want: 0.0, exact: true},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := e.Extract(&core.Movie{ReleaseDate: tt.release}, testNow)
			got := v[core.DimRecency]
			if tt.exact {
				if got != tt.want {
					t.Errorf("recency_score = %v, want %v", got, tt.want)
				}
				return
			}
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("recency_score = %v, want about %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("recency_score = %v, out of [0,1]", got)
			}
		})
	}
}

func TestExtract_Pure(t *testing.T) {
	e := NewExtractor()
	m := &core.Movie{
		ID:          "m1",
		GenreIDs:    []int{28, 878},
		Popularity:  820,
		ReleaseDate: "2024-06-01",
		VoteAverage: 7.8,
	}
	a := e.Extract(m, testNow)
	b := e.Extract(m, testNow)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Extract is not deterministic: %v vs %v", a, b)
	}
}

func TestExtract_AllDimensionsPresent(t *testing.T) {
	e := NewExtractor()
	v := e.Extract(&core.Movie{ID: "m"}, testNow)
	if len(v) != len(core.Dimensions) {
		t.Fatalf("vector has %d dims, want %d", len(v), len(core.Dimensions))
	}
	for _, d := range core.Dimensions {
		if _, ok := v[d]; !ok {
			t.Errorf("missing dimension %s", d)
		}
	}
}

func TestCategoryDimension(t *testing.T) {
	if got := CategoryDimension("scifi"); got != core.DimGenreSciFi {
		t.Errorf("scifi -> %q", got)
	}
	if got := CategoryDimension("sci-fi"); got != core.DimGenreSciFi {
		t.Errorf("sci-fi -> %q", got)
	}
	if got := CategoryDimension("unknown"); got != "" {
		t.Errorf("unknown category -> %q, want empty", got)
	}
}
