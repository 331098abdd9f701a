package albums

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"topalbums/pkg/database"
	"topalbums/pkg/models"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// a fresh pool connection would get its own empty :memory: db
	db.SetMaxOpenConns(1)
	if err := database.MigrateFrom(db, "../../docs/schema.sql"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedCategory(t *testing.T, db *sql.DB, id int, term string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO itunes_categories (id, label, term, scheme)
		VALUES (?, ?, ?, ?)
	`, id, term, term, fmt.Sprintf("https://music.example.com/genre/%d", id))
	if err != nil {
		t.Fatalf("seed category %d: %v", id, err)
	}
}

type seedSpec struct {
	id     int
	catID  int
	name   string
	artist string
	price  string
	isTop  bool
}

func seedAlbum(t *testing.T, r *Repo, s seedSpec) {
	t.Helper()
	err := r.Create(context.Background(), models.Album{
		ID:          s.id,
		Name:        s.name,
		Artist:      s.artist,
		ReleaseDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TrackCount:  10,
		Rights:      "all rights reserved",
		IsTop:       s.isTop,
		CategoryID:  s.catID,
		Link:        fmt.Sprintf("https://music.example.com/album/%d", s.id),
		Price:       decimal.RequireFromString(s.price),
	})
	if err != nil {
		t.Fatalf("seed album %d: %v", s.id, err)
	}
}

func topPlan(params url.Values, sort string) QueryPlan {
	plan := Translate(params, sort)
	plan.Filters = append([]Predicate{topOnly()}, plan.Filters...)
	return plan
}

func TestListSortTieBreak(t *testing.T) {
	db := testDB(t)
	r := NewRepo(db)
	seedCategory(t, db, 1, "AAA")
	seedCategory(t, db, 2, "ZZZ")
	seedAlbum(t, r, seedSpec{id: 1, catID: 1, name: "A cheap", artist: "x", price: "10.00", isTop: true})
	seedAlbum(t, r, seedSpec{id: 2, catID: 1, name: "A dear", artist: "x", price: "20.00", isTop: true})
	seedAlbum(t, r, seedSpec{id: 3, catID: 2, name: "B bargain", artist: "x", price: "5.00", isTop: true})

	got, err := r.List(context.Background(), topPlan(url.Values{}, "category,-price"), 0, -1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 albums, got %d", len(got))
	}
	wantOrder := []int{2, 1, 3} // (AAA, 20), (AAA, 10), (ZZZ, 5)
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d: got id %d, want %d", i, got[i].ID, want)
		}
	}
}

func TestListFilterAndExclude(t *testing.T) {
	db := testDB(t)
	r := NewRepo(db)
	seedCategory(t, db, 1, "Foo")
	seedCategory(t, db, 2, "Bar")
	seedAlbum(t, r, seedSpec{id: 1, catID: 1, name: "Foo Songs", artist: "Foo Fighters", price: "9.99", isTop: true})
	seedAlbum(t, r, seedSpec{id: 2, catID: 2, name: "Bar Songs", artist: "Barry", price: "9.99", isTop: true})

	ctx := context.Background()

	foo, err := r.List(ctx, topPlan(url.Values{"category": {"Foo"}}, ""), 0, -1)
	if err != nil {
		t.Fatalf("filter list: %v", err)
	}
	if len(foo) != 1 || foo[0].Artist != "Foo Fighters" {
		t.Errorf("category=Foo: got %+v", foo)
	}

	notFoo, err := r.List(ctx, topPlan(url.Values{"category__not": {"Foo"}}, ""), 0, -1)
	if err != nil {
		t.Fatalf("exclude list: %v", err)
	}
	if len(notFoo) != 1 || notFoo[0].Name != "Bar Songs" {
		t.Errorf("category__not=Foo: got %+v", notFoo)
	}
}

func TestListPriceOperator(t *testing.T) {
	db := testDB(t)
	r := NewRepo(db)
	seedCategory(t, db, 1, "Rock")
	seedAlbum(t, r, seedSpec{id: 1, catID: 1, name: "Cheap", artist: "x", price: "9.99", isTop: true})
	seedAlbum(t, r, seedSpec{id: 2, catID: 1, name: "Dear", artist: "x", price: "19.99", isTop: true})

	got, err := r.List(context.Background(), topPlan(url.Values{"price__lt": {"12.00"}}, ""), 0, -1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Cheap" {
		t.Errorf("price__lt=12.00: got %+v", got)
	}
	if got[0].Price.StringFixed(2) != "9.99" {
		t.Errorf("price round trip: got %s", got[0].Price.StringFixed(2))
	}
}

func TestListHidesNonTopByDefaultPlan(t *testing.T) {
	db := testDB(t)
	r := NewRepo(db)
	seedCategory(t, db, 1, "Rock")
	seedAlbum(t, r, seedSpec{id: 1, catID: 1, name: "Top", artist: "x", price: "9.99", isTop: true})
	seedAlbum(t, r, seedSpec{id: 2, catID: 1, name: "Former", artist: "x", price: "9.99", isTop: false})

	got, err := r.List(context.Background(), topPlan(url.Values{}, ""), 0, -1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Top" {
		t.Errorf("got %+v", got)
	}
}

func TestUnsupportedOperatorIsCallerError(t *testing.T) {
	db := testDB(t)
	r := NewRepo(db)

	_, err := r.List(context.Background(), topPlan(url.Values{"name__regex": {".*"}}, ""), 0, -1)
	if !errors.Is(err, ErrBadQuery) {
		t.Fatalf("expected ErrBadQuery, got %v", err)
	}
}

func TestCountAndWindow(t *testing.T) {
	db := testDB(t)
	r := NewRepo(db)
	seedCategory(t, db, 1, "Rock")
	for i := 1; i <= 25; i++ {
		seedAlbum(t, r, seedSpec{id: i, catID: 1, name: fmt.Sprintf("Album %02d", i), artist: "x", price: "9.99", isTop: true})
	}

	ctx := context.Background()
	plan := topPlan(url.Values{}, "")

	total, err := r.Count(ctx, plan)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 25 {
		t.Fatalf("expected 25, got %d", total)
	}

	w := PlanPage(total, 3, 10)
	page, err := r.List(ctx, plan, w.Offset, w.Limit)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 5 {
		t.Errorf("page 3 of 25 by 10: got %d rows", len(page))
	}
}

func TestCreateDuplicateID(t *testing.T) {
	db := testDB(t)
	r := NewRepo(db)
	seedCategory(t, db, 1, "Rock")
	seedAlbum(t, r, seedSpec{id: 1, catID: 1, name: "First", artist: "x", price: "9.99", isTop: false})

	err := r.Create(context.Background(), models.Album{
		ID: 1, Name: "Again", Artist: "x", CategoryID: 1,
		ReleaseDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Price:       decimal.RequireFromString("9.99"),
	})
	if !errors.Is(err, ErrAlbumExists) {
		t.Fatalf("expected ErrAlbumExists, got %v", err)
	}
}

func TestCreateUnknownCategory(t *testing.T) {
	db := testDB(t)
	r := NewRepo(db)

	err := r.Create(context.Background(), models.Album{
		ID: 1, Name: "Orphan", Artist: "x", CategoryID: 42,
		ReleaseDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Price:       decimal.RequireFromString("9.99"),
	})
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	db := testDB(t)
	r := NewRepo(db)
	seedCategory(t, db, 1, "Rock")
	seedAlbum(t, r, seedSpec{id: 1, catID: 1, name: "Old Name", artist: "x", price: "9.99", isTop: true})

	ctx := context.Background()

	updated, err := r.Update(ctx, 1, []FieldUpdate{{"name", "New Name"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("got %q", updated.Name)
	}
	if !updated.IsTop {
		t.Error("update must not touch is_itunes_top")
	}

	if _, err := r.Update(ctx, 404, []FieldUpdate{{"name", "x"}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := r.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.Delete(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByIDMissing(t *testing.T) {
	db := testDB(t)
	r := NewRepo(db)

	a, err := r.GetByID(context.Background(), 12345)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil, got %+v", a)
	}
}
