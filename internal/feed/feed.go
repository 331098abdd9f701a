package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"topalbums/pkg/models"
	"topalbums/pkg/utils"
)

// ErrEmptyFeed means the feed parsed to zero albums. An empty top
// list is always treated as an upstream anomaly: merging it would
// wipe the catalog's top flags on a transient bad response.
var ErrEmptyFeed = errors.New("cannot merge empty top-albums list into database")

// StructureError is a parsing failure inside one feed entry. It keeps
// the raw entry so the operator can diagnose what the upstream schema
// turned into. One bad entry aborts the whole ingestion attempt; a
// structural break means the schema probably changed, and a partial
// merge would leave a corrupted snapshot.
type StructureError struct {
	Entry json.RawMessage
	Err   error
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("iTunes feed structure change? clue: %v", e.Err)
}

func (e *StructureError) Unwrap() error { return e.Err }

// Feed downloads and parses the iTunes top-albums document. Download
// is a zero-argument collaborator returning the raw document text, so
// tests can swap in a canned response; its errors propagate unchanged.
type Feed struct {
	Download func() (string, error)
}

// New returns a Feed. A nil download installs the live iTunes
// downloader (URL overridable via TOPALBUMS_FEED_URL).
func New(download func() (string, error)) *Feed {
	if download == nil {
		download = defaultDownloader(utils.LoadFeedConfig().URL)
	}
	return &Feed{Download: download}
}

func defaultDownloader(url string) func() (string, error) {
	client := &http.Client{Timeout: 12 * time.Second}
	return func() (string, error) {
		resp, err := client.Get(url)
		if err != nil {
			return "", fmt.Errorf("itunes: request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("itunes: read body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("itunes: status %d: %s", resp.StatusCode, string(body))
		}
		return string(body), nil
	}
}

// TopAlbums downloads and parses the feed without touching the
// database. Categories come back deduplicated, ascending by id.
func (f *Feed) TopAlbums() ([]models.Album, []models.Category, error) {
	doc, err := f.Download()
	if err != nil {
		return nil, nil, err
	}
	albums, categories, err := Parse([]byte(doc))
	if err != nil {
		return nil, nil, err
	}
	return albums, DedupeCategories(categories), nil
}

// labelBlock is the `{"label": ..., "attributes": {...}}` shape every
// entry field uses. Label is a pointer so a missing key is
// distinguishable from an empty string.
type labelBlock struct {
	Label      *string           `json:"label"`
	Attributes map[string]string `json:"attributes"`
}

type feedEntry struct {
	Category    *labelBlock  `json:"category"`
	ID          *labelBlock  `json:"id"`
	Name        *labelBlock  `json:"im:name"`
	Artist      *labelBlock  `json:"im:artist"`
	ReleaseDate *labelBlock  `json:"im:releaseDate"`
	ItemCount   *labelBlock  `json:"im:itemCount"`
	Rights      *labelBlock  `json:"rights"`
	Link        *labelBlock  `json:"link"`
	Price       *labelBlock  `json:"im:price"`
	Images      []labelBlock `json:"im:image"`
}

type feedDocument struct {
	Feed struct {
		Entry []json.RawMessage `json:"entry"`
	} `json:"feed"`
}

// Parse translates one raw feed document into (Album, Category) pairs
// in document order. Any missing key or unparsable value in any entry
// fails the whole parse with a *StructureError carrying that entry.
// Parsed albums are always IsTop: they come from the top feed.
func Parse(doc []byte) ([]models.Album, []models.Category, error) {
	var d feedDocument
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, nil, fmt.Errorf("decode feed document: %w", err)
	}

	albums := make([]models.Album, 0, len(d.Feed.Entry))
	categories := make([]models.Category, 0, len(d.Feed.Entry))
	for _, raw := range d.Feed.Entry {
		album, category, err := parseEntry(raw)
		if err != nil {
			return nil, nil, &StructureError{Entry: raw, Err: err}
		}
		albums = append(albums, album)
		categories = append(categories, category)
	}
	return albums, categories, nil
}

func parseEntry(raw json.RawMessage) (models.Album, models.Category, error) {
	var e feedEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return models.Album{}, models.Category{}, err
	}

	catID, err := attrInt(e.Category, "category", "im:id")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}
	catLabel, err := attr(e.Category, "category", "label")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}
	catTerm, err := attr(e.Category, "category", "term")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}
	catScheme, err := attr(e.Category, "category", "scheme")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}
	category := models.Category{ID: catID, Label: catLabel, Term: catTerm, Scheme: catScheme}

	id, err := attrInt(e.ID, "id", "im:id")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}
	name, err := label(e.Name, "im:name")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}
	artist, err := label(e.Artist, "im:artist")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}

	// Artist URL is only present when the artist block carries an
	// attributes map; its absence is valid, not an error.
	var artistURL *string
	if e.Artist.Attributes != nil {
		href, err := attr(e.Artist, "im:artist", "href")
		if err != nil {
			return models.Album{}, models.Category{}, err
		}
		artistURL = &href
	}

	releaseRaw, err := label(e.ReleaseDate, "im:releaseDate")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}
	releaseDate, err := parseDate(releaseRaw)
	if err != nil {
		return models.Album{}, models.Category{}, err
	}

	trackCount, err := labelInt(e.ItemCount, "im:itemCount")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}
	rights, err := label(e.Rights, "rights")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}
	link, err := attr(e.Link, "link", "href")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}

	amount, err := attr(e.Price, "im:price", "amount")
	if err != nil {
		return models.Album{}, models.Category{}, err
	}
	price, err := decimal.NewFromString(amount)
	if err != nil {
		return models.Album{}, models.Category{}, fmt.Errorf("im:price amount %q: %w", amount, err)
	}

	album := models.Album{
		ID:           id,
		Name:         name,
		Artist:       artist,
		ArtistURL:    artistURL,
		ReleaseDate:  releaseDate,
		TrackCount:   trackCount,
		Rights:       rights,
		IsTop:        true,
		CategoryID:   category.ID,
		CategoryTerm: category.Term,
		Link:         link,
		Price:        price,
	}

	// Only the first three image slots survive; iTunes album feeds
	// have a fixed three-image shape and extras are ignored.
	for i := 0; i < len(e.Images) && i < 3; i++ {
		img := e.Images[i]
		url, err := label(&img, "im:image")
		if err != nil {
			return models.Album{}, models.Category{}, err
		}
		height, err := attrInt(&img, "im:image", "height")
		if err != nil {
			return models.Album{}, models.Category{}, err
		}
		album.Images[i] = &models.Image{URL: url, Height: height}
	}

	return album, category, nil
}

func label(b *labelBlock, key string) (string, error) {
	if b == nil || b.Label == nil {
		return "", fmt.Errorf("missing %q label", key)
	}
	return *b.Label, nil
}

func labelInt(b *labelBlock, key string) (int, error) {
	s, err := label(b, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s label %q: %w", key, s, err)
	}
	return n, nil
}

func attr(b *labelBlock, key, name string) (string, error) {
	if b == nil || b.Attributes == nil {
		return "", fmt.Errorf("missing %q attributes", key)
	}
	v, ok := b.Attributes[name]
	if !ok {
		return "", fmt.Errorf("missing %q attribute %q", key, name)
	}
	return v, nil
}

func attrInt(b *labelBlock, key, name string) (int, error) {
	s, err := attr(b, key, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s attribute %s %q: %w", key, name, s, err)
	}
	return n, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"January 2, 2006",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable release date %q", s)
}

// DedupeCategories collapses the per-entry category list to one
// Category per id, ascending by id so downstream processing is
// reproducible. Copies of the same id within one fetch are
// field-identical, so which one survives does not matter.
func DedupeCategories(categories []models.Category) []models.Category {
	sorted := make([]models.Category, len(categories))
	copy(sorted, categories)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	out := make([]models.Category, 0, len(sorted))
	lastID := 0
	for _, c := range sorted {
		if c.ID != lastID {
			out = append(out, c)
		}
		lastID = c.ID
	}
	return out
}
