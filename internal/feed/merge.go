package feed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"topalbums/pkg/models"
)

// Merge reconciles one parsed feed snapshot against the database:
// upsert every category, upsert every album, then demote is_itunes_top
// for every persisted album absent from this snapshot. Albums that
// fell out of the feed are demoted, never deleted. Everything runs in
// one transaction so a concurrent reader never sees two conflicting
// top sets. Returns the number of albums now marked top.
func Merge(ctx context.Context, db *sql.DB, albums []models.Album, categories []models.Category) (int, error) {
	if len(albums) == 0 {
		return 0, ErrEmptyFeed
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	catStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO itunes_categories (id, label, term, scheme)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  label = excluded.label,
		  term = excluded.term,
		  scheme = excluded.scheme
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare category upsert: %w", err)
	}
	defer catStmt.Close()

	for _, c := range categories {
		if _, err := catStmt.ExecContext(ctx, c.ID, c.Label, c.Term, c.Scheme); err != nil {
			return 0, fmt.Errorf("exec category upsert for %d: %w", c.ID, err)
		}
	}

	albumStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO albums (
		  id, name, artist, artist_url, release_date, track_count, rights,
		  is_itunes_top, itunes_category_id, itunes_link, itunes_price_cents,
		  image_1_url, image_1_height, image_2_url, image_2_height, image_3_url, image_3_height
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  name = excluded.name,
		  artist = excluded.artist,
		  artist_url = excluded.artist_url,
		  release_date = excluded.release_date,
		  track_count = excluded.track_count,
		  rights = excluded.rights,
		  is_itunes_top = excluded.is_itunes_top,
		  itunes_category_id = excluded.itunes_category_id,
		  itunes_link = excluded.itunes_link,
		  itunes_price_cents = excluded.itunes_price_cents,
		  image_1_url = excluded.image_1_url,
		  image_1_height = excluded.image_1_height,
		  image_2_url = excluded.image_2_url,
		  image_2_height = excluded.image_2_height,
		  image_3_url = excluded.image_3_url,
		  image_3_height = excluded.image_3_height
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare album upsert: %w", err)
	}
	defer albumStmt.Close()

	topIDs := make([]int, 0, len(albums))
	for _, a := range albums {
		args := []any{
			a.ID, a.Name, a.Artist, a.ArtistURL,
			a.ReleaseDate.Format("2006-01-02"), a.TrackCount, a.Rights,
			a.IsTop, a.CategoryID, a.Link, priceCents(a),
		}
		for i := 0; i < 3; i++ {
			if img := a.Images[i]; img != nil {
				args = append(args, img.URL, img.Height)
			} else {
				args = append(args, nil, nil)
			}
		}

		if _, err := albumStmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("exec album upsert for %d: %w", a.ID, err)
		}
		topIDs = append(topIDs, a.ID)
	}

	if err := demoteOthers(ctx, tx, topIDs); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(topIDs), nil
}

// demoteOthers flips is_itunes_top off for every album not in the
// current snapshot ("dethroning").
func demoteOthers(ctx context.Context, tx *sql.Tx, topIDs []int) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(topIDs)), ",")
	args := make([]any, len(topIDs))
	for i, id := range topIDs {
		args[i] = id
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE albums
		SET is_itunes_top = 0
		WHERE is_itunes_top = 1 AND id NOT IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("demote non-top albums: %w", err)
	}
	return nil
}

func priceCents(a models.Album) int64 {
	return a.Price.Shift(2).IntPart()
}

// MergeTopAlbums is the full ingestion run: download, parse,
// deduplicate categories, merge.
func (f *Feed) MergeTopAlbums(ctx context.Context, db *sql.DB) (int, error) {
	albums, categories, err := f.TopAlbums()
	if err != nil {
		return 0, err
	}
	return Merge(ctx, db, albums, categories)
}
