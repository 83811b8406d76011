package rounds

import (
	"errors"
	"fmt"
	"time"
)

const (
	RoundsPerGame    = 5
	ImagesPerRound   = 100
	ImageFrameLength = 80 * time.Millisecond
)

var ErrNotEnoughCountries = errors.New("not enough countries for difficulty")

type Round struct {
	Country  string
	ImageIDs []int
	Images   []string
}

// AssetResolver maps image ids of a country to display URLs.
type AssetResolver interface {
	AssetURLs(c Country, ids []int) []string
}

// R2Assets serves images from a public bucket laid out as {folder}/{folder}_{id}.webp.
type R2Assets struct {
	BaseURL string
}

func (a R2Assets) AssetURLs(c Country, ids []int) []string {
	urls := make([]string, len(ids))
	for i, id := range ids {
		urls[i] = fmt.Sprintf("%s/%s/%s_%03d.webp", a.BaseURL, c.Folder, c.Folder, id)
	}
	return urls
}

// Generate builds the ordered rounds of a match. Any two callers with the
// same seed, tier and catalog get identical output.
func Generate(seed int64, tier Tier, catalog *Catalog, assets AssetResolver) ([]Round, error) {
	pool := catalog.ByTier(tier)
	if len(pool) < RoundsPerGame {
		return nil, fmt.Errorf("%w: %s has %d, need %d", ErrNotEnoughCountries, tier, len(pool), RoundsPerGame)
	}

	order := Shuffle(pool, seed)[:RoundsPerGame]

	out := make([]Round, 0, RoundsPerGame)
	for i, c := range order {
		ids := make([]int, c.TotalImages)
		for j := range ids {
			ids[j] = j + 1
		}
		ids = Shuffle(ids, seed+int64(i))
		ids = ids[:min(ImagesPerRound, len(ids))]

		r := Round{Country: c.Name, ImageIDs: ids}
		if assets != nil {
			r.Images = assets.AssetURLs(c, ids)
		}
		out = append(out, r)
	}
	return out, nil
}

// ImageIndex is the frame shown after elapsed time, looping over n images.
func ImageIndex(elapsed time.Duration, n int) int {
	if n <= 0 || elapsed < 0 {
		return 0
	}
	return int(elapsed/ImageFrameLength) % n
}
