package main

import (
	"context"
	"errors"
	"log"
	"time"

	"topalbums/internal/feed"
	"topalbums/pkg/database"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	// Ensure schema exists
	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	count, err := feed.New(nil).MergeTopAlbums(ctx, db)
	if err != nil {
		var serr *feed.StructureError
		if errors.As(err, &serr) {
			log.Printf("FEED EXCEPTION: %v", serr)
			log.Fatalf("here's a dump of the JSON entry:\n%s", serr.Entry)
		}
		if errors.Is(err, feed.ErrEmptyFeed) {
			log.Fatalf("FEED EXCEPTION: %v", err)
		}
		log.Fatalf("ingest failed: %v", err)
	}

	log.Printf("downloaded and merged %d top albums", count)
}
