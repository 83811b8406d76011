package rounds

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAssets = R2Assets{BaseURL: "https://img.example"}

func TestGenerate_SameSeedSameRounds(t *testing.T) {
	catalog := DefaultCatalog()

	for _, seed := range []int64{0, 1, 1000, 1_700_000_000_000, -42} {
		a, err := Generate(seed, Easy, catalog, testAssets)
		require.NoError(t, err)
		b, err := Generate(seed, Easy, DefaultCatalog(), testAssets)
		require.NoError(t, err)

		if diff := cmp.Diff(a, b); diff != "" {
			t.Fatalf("seed %d: rounds differ (-first +second):\n%s", seed, diff)
		}
	}
}

func TestGenerate_Shape(t *testing.T) {
	rounds, err := Generate(1000, Easy, DefaultCatalog(), testAssets)
	require.NoError(t, err)
	require.Len(t, rounds, RoundsPerGame)

	seen := map[string]bool{}
	for _, r := range rounds {
		assert.False(t, seen[r.Country], "country %s picked twice", r.Country)
		seen[r.Country] = true

		c, ok := DefaultCatalog().Lookup(r.Country)
		require.True(t, ok)
		assert.Equal(t, Easy, c.Tier)
		assert.Len(t, r.ImageIDs, min(ImagesPerRound, c.TotalImages))
		assert.Len(t, r.Images, len(r.ImageIDs))
	}
}

func TestGenerate_DifferentSeedsDiffer(t *testing.T) {
	a, err := Generate(1, Medium, DefaultCatalog(), nil)
	require.NoError(t, err)
	b, err := Generate(2, Medium, DefaultCatalog(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGenerate_SmallPoolFails(t *testing.T) {
	catalog := NewCatalog(
		Country{Name: "A", Tier: Hard, Folder: "a", TotalImages: 3},
		Country{Name: "B", Tier: Hard, Folder: "b", TotalImages: 3},
	)
	_, err := Generate(7, Hard, catalog, testAssets)
	if !errors.Is(err, ErrNotEnoughCountries) {
		t.Fatalf("want ErrNotEnoughCountries, got %v", err)
	}
}

func TestGenerate_FewImagesKeepsAll(t *testing.T) {
	var countries []Country
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		countries = append(countries, Country{Name: n, Tier: Easy, Folder: n, TotalImages: 12})
	}
	rounds, err := Generate(99, Easy, NewCatalog(countries...), testAssets)
	require.NoError(t, err)
	for _, r := range rounds {
		assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, r.ImageIDs)
	}
}

func TestR2Assets_URLLayout(t *testing.T) {
	c := Country{Name: "NewZealand", Folder: "new_zealand"}
	got := testAssets.AssetURLs(c, []int{7, 120})
	assert.Equal(t, []string{
		"https://img.example/new_zealand/new_zealand_007.webp",
		"https://img.example/new_zealand/new_zealand_120.webp",
	}, got)
}

func TestShuffle_IsPermutation(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out := Shuffle(in, 12345)
	assert.ElementsMatch(t, in, out)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, in, "input must not be mutated")
}

func TestMulberry32_Range(t *testing.T) {
	rng := NewMulberry32(1000)
	for range 10_000 {
		v := rng.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("value out of range: %v", v)
		}
	}
}

func TestCountryAccepts(t *testing.T) {
	cases := []struct {
		name    string
		country string
		answer  string
		want    bool
	}{
		{name: "exact", country: "France", answer: "France", want: true},
		{name: "alternate name", country: "France", answer: "francia", want: true},
		{name: "padding and case", country: "Spain", answer: "  ESPAÑA ", want: true},
		{name: "diacritics in answer", country: "Greece", answer: "Grèce", want: true},
		{name: "diacritics in accepted list", country: "Norway", answer: "norvege", want: true},
		{name: "wrong country", country: "France", answer: "spain", want: false},
		{name: "empty", country: "France", answer: "   ", want: false},
	}

	catalog := DefaultCatalog()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, ok := catalog.Lookup(tc.country)
			require.True(t, ok)
			assert.Equal(t, tc.want, c.Accepts(tc.answer))
		})
	}
}

func TestImageIndex(t *testing.T) {
	assert.Equal(t, 0, ImageIndex(0, 100))
	assert.Equal(t, 12, ImageIndex(1*time.Second, 100))
	assert.Equal(t, 5, ImageIndex(8400*time.Millisecond, 100))
	assert.Equal(t, 0, ImageIndex(time.Second, 0))
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("")
	require.NoError(t, err)
	assert.Equal(t, Easy, tier)

	tier, err = ParseTier(" HARD ")
	require.NoError(t, err)
	assert.Equal(t, Hard, tier)

	_, err = ParseTier("nightmare")
	assert.Error(t, err)
}
