package albums

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"topalbums/internal/events"
	"topalbums/internal/feed"
	"topalbums/pkg/models"
)

type Handler struct {
	Repo *Repo
	Feed *feed.Feed
	Hub  *events.Hub
}

func NewHandler(repo *Repo, f *feed.Feed, hub *events.Hub) *Handler {
	return &Handler{Repo: repo, Feed: f, Hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	rg.GET("", h.list)                          // GET /top-albums
	rg.POST("", requireAuth, h.create)          // POST /top-albums
	rg.POST("/ingest", requireAuth, h.ingest)   // POST /top-albums/ingest
	rg.PATCH("/:id", requireAuth, h.update)     // PATCH /top-albums/:id
	rg.DELETE("/:id", requireAuth, h.remove)    // DELETE /top-albums/:id
}

// list serves the catalog: current top albums, optionally filtered,
// sorted and paginated via query params.
//
// page is 1-based and requires page_size; page_size alone defaults
// page to 1. Without page_size the full result set comes back and the
// reported page_size is the actual count.
func (h *Handler) list(c *gin.Context) {
	pageStr := c.Query("page")
	pageSizeStr := c.Query("page_size")

	if pageStr != "" && pageSizeStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrMissingPageSize.Error()})
		return
	}

	plan := Translate(c.Request.URL.Query(), c.Query("sort"))
	plan.Filters = append([]Predicate{topOnly()}, plan.Filters...)

	ctx := c.Request.Context()

	if pageSizeStr == "" {
		items, err := h.Repo.List(ctx, plan, 0, -1)
		if err != nil {
			respondQueryError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"contents":   publicAlbums(items),
			"pagination": gin.H{"page_size": len(items)},
		})
		return
	}

	pageSize, err := strconv.Atoi(pageSizeStr)
	if err != nil || pageSize < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be a positive integer"})
		return
	}
	page := 1
	if pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
	}

	total, err := h.Repo.Count(ctx, plan)
	if err != nil {
		respondQueryError(c, err)
		return
	}

	window := PlanPage(total, page, pageSize)
	items, err := h.Repo.List(ctx, plan, window.Offset, window.Limit)
	if err != nil {
		respondQueryError(c, err)
		return
	}

	pagination := gin.H{"page_size": pageSize}
	if window.HasPrevious {
		pagination["previous_page"] = pageURL(c, page-1, pageSize)
	}
	if window.HasNext {
		pagination["next_page"] = pageURL(c, page+1, pageSize)
	}

	c.JSON(http.StatusOK, gin.H{
		"contents":   publicAlbums(items),
		"pagination": pagination,
	})
}

// albumBody is the mutation payload; every field is a pointer so a
// PATCH can tell "absent" from "zero". POST validates the required
// subset itself.
type albumBody struct {
	ID                 *int    `json:"id"`
	Name               *string `json:"name"`
	Artist             *string `json:"artist"`
	ArtistURL          *string `json:"artist_url"`
	ReleaseDate        *string `json:"release_date"`
	TrackCount         *int    `json:"track_count"`
	Rights             *string `json:"rights"`
	IsITunesTop        *bool   `json:"is_itunes_top"`
	ITunesCategoryID   *int    `json:"itunes_category_id"`
	ITunesLink         *string `json:"itunes_link"`
	ITunesPriceDollars *string `json:"itunes_price_dollars"`
	Image1URL          *string `json:"image_1_url"`
	Image1Height       *int    `json:"image_1_height"`
	Image2URL          *string `json:"image_2_url"`
	Image2Height       *int    `json:"image_2_height"`
	Image3URL          *string `json:"image_3_url"`
	Image3Height       *int    `json:"image_3_height"`
}

func (h *Handler) create(c *gin.Context) {
	var req albumBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if req.ID == nil || req.Name == nil || req.Artist == nil || req.ITunesCategoryID == nil ||
		req.ReleaseDate == nil || req.ITunesPriceDollars == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "id, name, artist, itunes_category_id, release_date and itunes_price_dollars are required",
		})
		return
	}

	releaseDate, err := time.Parse("2006-01-02", *req.ReleaseDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "release_date must be an ISO date (yyyy-mm-dd)"})
		return
	}
	price, err := decimal.NewFromString(*req.ITunesPriceDollars)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "itunes_price_dollars must be a decimal string"})
		return
	}

	album := models.Album{
		ID:          *req.ID,
		Name:        *req.Name,
		Artist:      *req.Artist,
		ArtistURL:   req.ArtistURL,
		ReleaseDate: releaseDate,
		Rights:      strOrEmpty(req.Rights),
		// Top status belongs to the merge engine; a direct create is
		// only top when the caller says so explicitly.
		IsTop:      req.IsITunesTop != nil && *req.IsITunesTop,
		CategoryID: *req.ITunesCategoryID,
		Link:       strOrEmpty(req.ITunesLink),
		Price:      price,
	}
	if req.TrackCount != nil {
		album.TrackCount = *req.TrackCount
	}
	imageSlots := []struct {
		url    *string
		height *int
	}{
		{req.Image1URL, req.Image1Height},
		{req.Image2URL, req.Image2Height},
		{req.Image3URL, req.Image3Height},
	}
	for i, slot := range imageSlots {
		if slot.url != nil {
			img := models.Image{URL: *slot.url}
			if slot.height != nil {
				img.Height = *slot.height
			}
			album.Images[i] = &img
		}
	}

	if err := h.Repo.Create(c.Request.Context(), album); err != nil {
		switch {
		case errors.Is(err, ErrCategoryNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrAlbumExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		}
		return
	}

	saved, err := h.Repo.GetByID(c.Request.Context(), album.ID)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	h.Hub.Broadcast(events.AlbumEvent(events.TypeAlbumCreated, saved.ID))
	c.JSON(http.StatusAccepted, saved.Public())
}

func (h *Handler) update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}

	var req albumBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates, err := patchUpdates(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.Repo.Update(c.Request.Context(), id, updates)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ErrCategoryNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}

	h.Hub.Broadcast(events.AlbumEvent(events.TypeAlbumUpdated, updated.ID))
	c.JSON(http.StatusOK, updated.Public())
}

// patchUpdates whitelists the patchable columns, in a fixed order.
// Absent fields stay untouched, is_itunes_top included: a partial
// update never silently resurrects top status.
func patchUpdates(req albumBody) ([]FieldUpdate, error) {
	var updates []FieldUpdate

	if req.Name != nil {
		updates = append(updates, FieldUpdate{"name", *req.Name})
	}
	if req.Artist != nil {
		updates = append(updates, FieldUpdate{"artist", *req.Artist})
	}
	if req.ArtistURL != nil {
		updates = append(updates, FieldUpdate{"artist_url", *req.ArtistURL})
	}
	if req.ReleaseDate != nil {
		d, err := time.Parse("2006-01-02", *req.ReleaseDate)
		if err != nil {
			return nil, errors.New("release_date must be an ISO date (yyyy-mm-dd)")
		}
		updates = append(updates, FieldUpdate{"release_date", d.Format("2006-01-02")})
	}
	if req.TrackCount != nil {
		updates = append(updates, FieldUpdate{"track_count", *req.TrackCount})
	}
	if req.Rights != nil {
		updates = append(updates, FieldUpdate{"rights", *req.Rights})
	}
	if req.IsITunesTop != nil {
		top := 0
		if *req.IsITunesTop {
			top = 1
		}
		updates = append(updates, FieldUpdate{"is_itunes_top", top})
	}
	if req.ITunesCategoryID != nil {
		updates = append(updates, FieldUpdate{"itunes_category_id", *req.ITunesCategoryID})
	}
	if req.ITunesLink != nil {
		updates = append(updates, FieldUpdate{"itunes_link", *req.ITunesLink})
	}
	if req.ITunesPriceDollars != nil {
		price, err := decimal.NewFromString(*req.ITunesPriceDollars)
		if err != nil {
			return nil, errors.New("itunes_price_dollars must be a decimal string")
		}
		updates = append(updates, FieldUpdate{"itunes_price_cents", price.Shift(2).IntPart()})
	}

	imageCols := []struct {
		urlCol, heightCol string
		url               *string
		height            *int
	}{
		{"image_1_url", "image_1_height", req.Image1URL, req.Image1Height},
		{"image_2_url", "image_2_height", req.Image2URL, req.Image2Height},
		{"image_3_url", "image_3_height", req.Image3URL, req.Image3Height},
	}
	for _, ic := range imageCols {
		if ic.url != nil {
			updates = append(updates, FieldUpdate{ic.urlCol, *ic.url})
		}
		if ic.height != nil {
			updates = append(updates, FieldUpdate{ic.heightCol, *ic.height})
		}
	}

	return updates, nil
}

func (h *Handler) remove(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}

	if err := h.Repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	h.Hub.Broadcast(events.AlbumEvent(events.TypeAlbumDeleted, id))
	c.Status(http.StatusNoContent)
}

// ingest runs one on-demand feed merge. Ingestion is all-or-nothing:
// any feed error aborts with no partial write, and the raw offending
// entry lands in the log for operator diagnosis.
func (h *Handler) ingest(c *gin.Context) {
	count, err := h.Feed.MergeTopAlbums(c.Request.Context(), h.Repo.DB)
	if err != nil {
		var serr *feed.StructureError
		if errors.As(err, &serr) {
			log.Printf("[ingest] %v\nraw entry: %s", serr, serr.Entry)
			c.JSON(http.StatusBadGateway, gin.H{"error": serr.Error()})
			return
		}
		if errors.Is(err, feed.ErrEmptyFeed) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[ingest] merge failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "ingestion failed"})
		return
	}

	h.Hub.Broadcast(events.FeedMerged(count))
	c.JSON(http.StatusOK, gin.H{"merged": count})
}

func respondQueryError(c *gin.Context, err error) {
	if errors.Is(err, ErrBadQuery) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
}

func publicAlbums(items []models.Album) []models.AlbumJSON {
	out := make([]models.AlbumJSON, 0, len(items))
	for _, a := range items {
		out = append(out, a.Public())
	}
	return out
}

// pageURL rebuilds an absolute pagination link the way clients are
// expected to follow it.
func pageURL(c *gin.Context, page, pageSize int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s?page=%d&page_size=%d", scheme, c.Request.Host, c.Request.URL.Path, page, pageSize)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
