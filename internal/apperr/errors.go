package apperr

import "errors"

var (
	// ErrVenueNotFound means the requested venue id has no registry entry.
	ErrVenueNotFound = errors.New("venue configuration not found")
	// ErrFeedUnavailable covers network, status and file failures while
	// retrieving a venue's feed.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrUnsupportedURL is returned for feed sources that are not http(s).
	ErrUnsupportedURL = errors.New("unsupported calendar URL")
)
