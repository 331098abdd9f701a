package feed

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"topalbums/pkg/models"
)

func sampleDoc(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/top-albums-sample.json")
	if err != nil {
		t.Fatalf("read sample feed: %v", err)
	}
	return b
}

// mutateEntry returns the sample document with fn applied to the
// first entry, re-encoded.
func mutateEntry(t *testing.T, fn func(entry map[string]any)) []byte {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal(sampleDoc(t), &doc); err != nil {
		t.Fatalf("decode sample feed: %v", err)
	}
	entries := doc["feed"].(map[string]any)["entry"].([]any)
	fn(entries[0].(map[string]any))
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("re-encode sample feed: %v", err)
	}
	return out
}

func TestParseHappyPath(t *testing.T) {
	albums, categories, err := Parse(sampleDoc(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(albums) != 3 {
		t.Fatalf("expected 3 albums, got %d", len(albums))
	}
	if len(categories) != 3 {
		t.Fatalf("expected one category per entry, got %d", len(categories))
	}

	a := albums[0]
	if a.ID != 1000000001 {
		t.Errorf("id: got %d", a.ID)
	}
	if a.Name != "Midnight Static" || a.Artist != "The Night Owls" {
		t.Errorf("name/artist: got %q / %q", a.Name, a.Artist)
	}
	if a.ArtistURL == nil || *a.ArtistURL != "https://music.apple.com/us/artist/the-night-owls/2000000001?uo=2" {
		t.Errorf("artist url: got %v", a.ArtistURL)
	}
	if got := a.ReleaseDate.Format("2006-01-02"); got != "2024-03-15" {
		t.Errorf("release date: got %s", got)
	}
	if a.TrackCount != 12 {
		t.Errorf("track count: got %d", a.TrackCount)
	}
	if a.Price.StringFixed(2) != "11.99" {
		t.Errorf("price: got %s", a.Price.StringFixed(2))
	}
	if !a.IsTop {
		t.Error("parsed album should be top")
	}
	if a.CategoryID != 21 || a.CategoryTerm != "Rock" {
		t.Errorf("category: got %d / %q", a.CategoryID, a.CategoryTerm)
	}
	for i := 0; i < 3; i++ {
		if a.Images[i] == nil {
			t.Fatalf("image slot %d empty", i)
		}
	}
	if a.Images[2].Height != 170 {
		t.Errorf("image 3 height: got %d", a.Images[2].Height)
	}

	// entries keep document order
	if albums[1].ID != 1000000002 || albums[2].ID != 1000000003 {
		t.Errorf("entry order not preserved: %d, %d", albums[1].ID, albums[2].ID)
	}
}

func TestParseArtistURLOptional(t *testing.T) {
	albums, _, err := Parse(sampleDoc(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// second entry is Various Artists with no attributes block
	if albums[1].ArtistURL != nil {
		t.Errorf("expected nil artist url, got %q", *albums[1].ArtistURL)
	}
}

func TestParseKeepsOnlyThreeImages(t *testing.T) {
	albums, _, err := Parse(sampleDoc(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// second entry carries four images in the document
	a := albums[1]
	if a.Images[0] == nil || a.Images[1] == nil || a.Images[2] == nil {
		t.Fatal("expected three image slots filled")
	}
	if a.Images[2].Height != 170 {
		t.Errorf("slot 3 should hold the third image, got height %d", a.Images[2].Height)
	}
}

func TestParseMissingKeyFailsWholeParse(t *testing.T) {
	doc := mutateEntry(t, func(entry map[string]any) {
		delete(entry, "im:name")
	})

	_, _, err := Parse(doc)
	var serr *StructureError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StructureError, got %v", err)
	}
	if len(serr.Entry) == 0 {
		t.Error("StructureError should carry the raw entry")
	}
}

func TestParseBadPriceFails(t *testing.T) {
	doc := mutateEntry(t, func(entry map[string]any) {
		entry["im:price"].(map[string]any)["attributes"].(map[string]any)["amount"] = "free!"
	})

	_, _, err := Parse(doc)
	var serr *StructureError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StructureError, got %v", err)
	}
}

func TestParseBadDateFails(t *testing.T) {
	doc := mutateEntry(t, func(entry map[string]any) {
		entry["im:releaseDate"].(map[string]any)["label"] = "sometime soon"
	})

	if _, _, err := Parse(doc); err == nil {
		t.Fatal("expected error for unparsable date")
	}
}

func TestTopAlbumsDedupesCategories(t *testing.T) {
	doc := string(sampleDoc(t))
	f := New(func() (string, error) { return doc, nil })

	albums, categories, err := f.TopAlbums()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(albums) != 3 {
		t.Fatalf("expected 3 albums, got %d", len(albums))
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 distinct categories, got %d", len(categories))
	}
	// ascending id for reproducible downstream processing
	if categories[0].ID != 6 || categories[1].ID != 21 {
		t.Errorf("categories not ascending: %d, %d", categories[0].ID, categories[1].ID)
	}
}

func TestDownloaderErrorsPropagate(t *testing.T) {
	boom := errors.New("connection refused")
	f := New(func() (string, error) { return "", boom })

	_, _, err := f.TopAlbums()
	if !errors.Is(err, boom) {
		t.Fatalf("downloader error should propagate unchanged, got %v", err)
	}
}

func TestDedupeCategories(t *testing.T) {
	in := []models.Category{
		{ID: 21, Term: "Rock"},
		{ID: 6, Term: "Country"},
		{ID: 21, Term: "Rock"},
		{ID: 21, Term: "Rock"},
		{ID: 6, Term: "Country"},
	}

	out := DedupeCategories(in)
	if len(out) != 2 {
		t.Fatalf("expected 2, got %d", len(out))
	}
	if out[0].ID != 6 || out[1].ID != 21 {
		t.Errorf("expected ascending ids, got %d, %d", out[0].ID, out[1].ID)
	}
}
