package models

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

const (
	// DefaultPageSize is the catalog page size when none is requested
	DefaultPageSize = 12

	// MaxPageSize caps the requested page size
	MaxPageSize = 50

	// DefaultMaxRentalDays bounds the length of a single rental
	DefaultMaxRentalDays = 365

	// MaxMessageLength is counted in runes after trimming
	MaxMessageLength = 2000

	// RateLimitMessages is the per-sender quota within one window
	RateLimitMessages = 30

	// RateLimitWindow is the quota window in seconds
	RateLimitWindow = 60

	// MinRating and MaxRating bound a review rating
	MinRating = 1
	MaxRating = 5
)
