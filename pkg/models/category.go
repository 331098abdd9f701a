package models

// Category is one node of the iTunes music taxonomy, keyed by the
// iTunes-assigned id. The feed is authoritative for every field, so
// categories are overwritten wholesale on each merge and never
// deleted (the feed gives no signal that the taxonomy shrank).
type Category struct {
	ID     int    `json:"id"`
	Label  string `json:"label"`
	Term   string `json:"term"`
	Scheme string `json:"scheme"`
}
