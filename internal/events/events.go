package events

import "time"

const (
	TypeAlbumCreated = "album.created"
	TypeAlbumUpdated = "album.updated"
	TypeAlbumDeleted = "album.deleted"
	TypeFeedMerged   = "feed.merged"
)

// Event is one catalog change pushed to websocket subscribers.
type Event struct {
	Type        string    `json:"type"`
	AlbumID     int       `json:"album_id,omitempty"`
	MergedCount int       `json:"merged_count,omitempty"`
	At          time.Time `json:"at"`
}

func AlbumEvent(typ string, albumID int) Event {
	return Event{Type: typ, AlbumID: albumID, At: time.Now().UTC()}
}

func FeedMerged(count int) Event {
	return Event{Type: TypeFeedMerged, MergedCount: count, At: time.Now().UTC()}
}
