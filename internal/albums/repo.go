package albums

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"topalbums/pkg/models"
)

// Repo is the storage adapter: it executes QueryPlans and CRUD
// against sqlite. It is the only place that knows the operator
// vocabulary and per-field value coercions.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const albumColumns = `
	a.id, a.name, a.artist, a.artist_url, a.release_date, a.track_count, a.rights,
	a.is_itunes_top, a.itunes_category_id, a.itunes_link, a.itunes_price_cents,
	a.image_1_url, a.image_1_height, a.image_2_url, a.image_2_height,
	a.image_3_url, a.image_3_height, c.term
`

const albumFrom = `
	FROM albums a
	JOIN itunes_categories c ON c.id = a.itunes_category_id
`

func (r *Repo) Count(ctx context.Context, plan QueryPlan) (int, error) {
	sqlStr, args, err := buildAlbumSQL(plan, true, 0, -1)
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

// List executes the plan. limit < 0 means no window (full result set).
func (r *Repo) List(ctx context.Context, plan QueryPlan, offset, limit int) ([]models.Album, error) {
	sqlStr, args, err := buildAlbumSQL(plan, false, offset, limit)
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Album, 0)
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) GetByID(ctx context.Context, id int) (*models.Album, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT"+albumColumns+albumFrom+"WHERE a.id = ?", id)
	a, err := scanAlbum(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}
	return &a, nil
}

func (r *Repo) CategoryExists(ctx context.Context, id int) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM itunes_categories WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("category exists: %w", err)
	}
	return n > 0, nil
}

// Create inserts a new album with a caller-supplied id. The category
// reference must already exist; a duplicate id is a constraint error.
func (r *Repo) Create(ctx context.Context, a models.Album) error {
	ok, err := r.CategoryExists(ctx, a.CategoryID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCategoryNotFound
	}

	args := []any{
		a.ID, a.Name, a.Artist, a.ArtistURL,
		a.ReleaseDate.Format("2006-01-02"), a.TrackCount, a.Rights,
		a.IsTop, a.CategoryID, a.Link, a.Price.Shift(2).IntPart(),
	}
	for i := 0; i < 3; i++ {
		if img := a.Images[i]; img != nil {
			args = append(args, img.URL, img.Height)
		} else {
			args = append(args, nil, nil)
		}
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO albums (
		  id, name, artist, artist_url, release_date, track_count, rights,
		  is_itunes_top, itunes_category_id, itunes_link, itunes_price_cents,
		  image_1_url, image_1_height, image_2_url, image_2_height, image_3_url, image_3_height
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
			return ErrAlbumExists
		}
		return fmt.Errorf("insert album: %w", err)
	}
	return nil
}

// FieldUpdate is one column assignment of a partial update. Callers
// build the list from a whitelist of public fields, in a fixed order.
type FieldUpdate struct {
	Column string
	Value  any
}

func (r *Repo) Update(ctx context.Context, id int, updates []FieldUpdate) (*models.Album, error) {
	if len(updates) == 0 {
		a, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, ErrNotFound
		}
		return a, nil
	}

	sets := make([]string, 0, len(updates))
	args := make([]any, 0, len(updates)+1)
	for _, u := range updates {
		if u.Column == "itunes_category_id" {
			catID, _ := u.Value.(int)
			ok, err := r.CategoryExists(ctx, catID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrCategoryNotFound
			}
		}
		sets = append(sets, u.Column+" = ?")
		args = append(args, u.Value)
	}
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, `UPDATE albums SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update album: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update album rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *Repo) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete album rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// buildAlbumSQL renders a QueryPlan as either COUNT(*) or SELECT list.
func buildAlbumSQL(plan QueryPlan, countOnly bool, offset, limit int) (string, []any, error) {
	sqlStr := "SELECT" + albumColumns + albumFrom
	if countOnly {
		sqlStr = "SELECT COUNT(*)" + albumFrom
	}

	var where []string
	var args []any

	for _, p := range plan.Filters {
		clause, arg, err := predicateSQL(p)
		if err != nil {
			return "", nil, err
		}
		where = append(where, clause)
		args = append(args, arg)
	}
	for _, p := range plan.Excludes {
		clause, arg, err := predicateSQL(p)
		if err != nil {
			return "", nil, err
		}
		where = append(where, "NOT ("+clause+")")
		args = append(args, arg)
	}

	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		var order []string
		for _, k := range plan.Sort {
			dir := " ASC"
			if k.Desc {
				dir = " DESC"
			}
			order = append(order, k.Field+dir)
		}
		// stable fallback so paginated walks never shuffle
		order = append(order, "a.id ASC")
		sqlStr += " ORDER BY " + strings.Join(order, ", ")

		if limit >= 0 {
			if offset < 0 {
				offset = 0
			}
			sqlStr += " LIMIT ? OFFSET ?"
			args = append(args, limit, offset)
		}
	}

	return sqlStr, args, nil
}

// predicateSQL renders one predicate. This is where the opaque
// operator names from the translator meet the backend's comparison
// vocabulary; anything outside it is a caller error.
func predicateSQL(p Predicate) (string, any, error) {
	switch p.Op {
	case "eq":
		arg, err := bindValue(p.Field, p.Value)
		return p.Field + " = ?", arg, err
	case "lt", "lte", "gt", "gte":
		ops := map[string]string{"lt": "<", "lte": "<=", "gt": ">", "gte": ">="}
		arg, err := bindValue(p.Field, p.Value)
		return p.Field + " " + ops[p.Op] + " ?", arg, err
	case "contains":
		return p.Field + " LIKE ?", "%" + p.Value + "%", nil
	case "startswith":
		return p.Field + " LIKE ?", p.Value + "%", nil
	default:
		return "", nil, fmt.Errorf("%w: unsupported operator %q", ErrBadQuery, p.Op)
	}
}

// bindValue coerces a client-supplied string for fields not stored as
// text: prices become integer cents, booleans become 0/1.
func bindValue(field, value string) (any, error) {
	switch field {
	case "a.itunes_price_cents":
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("%w: bad price value %q", ErrBadQuery, value)
		}
		return d.Shift(2).IntPart(), nil
	case "a.is_itunes_top":
		switch strings.ToLower(value) {
		case "true", "1":
			return 1, nil
		case "false", "0":
			return 0, nil
		}
		return nil, fmt.Errorf("%w: bad boolean value %q", ErrBadQuery, value)
	default:
		return value, nil
	}
}

func scanAlbum(row interface{ Scan(...any) error }) (models.Album, error) {
	var (
		a          models.Album
		artistURL  sql.NullString
		release    string
		isTop      int
		priceCents int64
		imgURL     [3]sql.NullString
		imgHeight  [3]sql.NullInt64
	)

	if err := row.Scan(
		&a.ID, &a.Name, &a.Artist, &artistURL, &release, &a.TrackCount, &a.Rights,
		&isTop, &a.CategoryID, &a.Link, &priceCents,
		&imgURL[0], &imgHeight[0], &imgURL[1], &imgHeight[1], &imgURL[2], &imgHeight[2],
		&a.CategoryTerm,
	); err != nil {
		return models.Album{}, err
	}

	if artistURL.Valid {
		u := artistURL.String
		a.ArtistURL = &u
	}
	date, err := parseISODate(release)
	if err != nil {
		return models.Album{}, err
	}
	a.ReleaseDate = date
	a.IsTop = isTop != 0
	a.Price = decimal.New(priceCents, -2)

	for i := 0; i < 3; i++ {
		if imgURL[i].Valid {
			a.Images[i] = &models.Image{URL: imgURL[i].String, Height: int(imgHeight[i].Int64)}
		}
	}
	return a, nil
}

func parseISODate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad release_date %q: %w", s, err)
	}
	return t, nil
}
