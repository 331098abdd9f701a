package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Image is one of an album's fixed positional artwork slots.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
}

// Album is the normalized, internal form of one iTunes feed album.
//
// The ID comes from the iTunes RSS feed (or from the caller on direct
// creates) and is never generated locally. Albums carry at most three
// image slots; the feed parser discards anything past the third. IsTop
// means "present in the most recently merged feed snapshot" and is
// owned by the merge engine: direct record mutation leaves it alone
// unless the caller sets it explicitly.
type Album struct {
	ID          int
	Name        string
	Artist      string
	ArtistURL   *string // absent in some feed entries
	ReleaseDate time.Time
	TrackCount  int
	Rights      string
	IsTop       bool
	CategoryID  int
	Link        string
	Price       decimal.Decimal // USD, 2 decimal places
	Images      [3]*Image

	// CategoryTerm is filled on reads via the category join; it is not
	// a stored column of the albums table.
	CategoryTerm string
}

// AlbumJSON is the public serialized shape of an Album.
type AlbumJSON struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	Artist             string  `json:"artist"`
	ArtistURL          *string `json:"artist_url"`
	ReleaseDate        string  `json:"release_date"`
	TrackCount         int     `json:"track_count"`
	Rights             string  `json:"rights"`
	IsITunesTop        bool    `json:"is_itunes_top"`
	ITunesCategoryID   int     `json:"itunes_category_id"`
	ITunesCategoryTerm string  `json:"itunes_category_term"`
	ITunesLink         string  `json:"itunes_link"`
	ITunesPriceDollars string  `json:"itunes_price_dollars"`
	Image1URL          *string `json:"image_1_url"`
	Image1Height       *int    `json:"image_1_height"`
	Image2URL          *string `json:"image_2_url"`
	Image2Height       *int    `json:"image_2_height"`
	Image3URL          *string `json:"image_3_url"`
	Image3Height       *int    `json:"image_3_height"`
}

// Public returns the serialized form sent to API clients.
func (a Album) Public() AlbumJSON {
	out := AlbumJSON{
		ID:                 a.ID,
		Name:               a.Name,
		Artist:             a.Artist,
		ArtistURL:          a.ArtistURL,
		ReleaseDate:        a.ReleaseDate.Format("2006-01-02"),
		TrackCount:         a.TrackCount,
		Rights:             a.Rights,
		IsITunesTop:        a.IsTop,
		ITunesCategoryID:   a.CategoryID,
		ITunesCategoryTerm: a.CategoryTerm,
		ITunesLink:         a.Link,
		ITunesPriceDollars: a.Price.StringFixed(2),
	}

	slots := []struct {
		url    **string
		height **int
	}{
		{&out.Image1URL, &out.Image1Height},
		{&out.Image2URL, &out.Image2Height},
		{&out.Image3URL, &out.Image3Height},
	}
	for i, slot := range slots {
		if img := a.Images[i]; img != nil {
			u := img.URL
			h := img.Height
			*slot.url = &u
			*slot.height = &h
		}
	}
	return out
}
