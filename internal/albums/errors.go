package albums

import "errors"

var (
	// ErrMissingPageSize is the caller error for page without page_size.
	ErrMissingPageSize = errors.New("page_size required when page is specified")

	// ErrBadQuery marks filter expressions the storage adapter cannot
	// execute (unknown operator, uncoercible value). Caller error, not
	// a system fault.
	ErrBadQuery = errors.New("bad filter expression")

	// ErrCategoryNotFound means a create/update referenced an iTunes
	// category id that is not in the database.
	ErrCategoryNotFound = errors.New("itunes category not found")

	// ErrAlbumExists means a create collided with an existing album id.
	ErrAlbumExists = errors.New("album id already exists")

	// ErrNotFound means the requested album id is not in the database.
	ErrNotFound = errors.New("album not found")
)
