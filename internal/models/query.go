package models

import (
	"errors"
	"fmt"
)

// MaxLimit caps the number of results a single query may ask for.
const MaxLimit = 100

// ErrInvalidQuery marks a query whose parameters are out of range.
var ErrInvalidQuery = errors.New("invalid query")

// SearchQuery is a search request. Zero Limit and nil MinScore mean "use the configured value".
type SearchQuery struct {
	Query    string   `json:"query"`
	Limit    int      `json:"limit,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
}

// Validate checks limit and score bounds and clamps Limit to MaxLimit.
func (q *SearchQuery) Validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidQuery)
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.MinScore != nil && (*q.MinScore < 0 || *q.MinScore > 1) {
		return fmt.Errorf("%w: min_score must be between 0 and 1", ErrInvalidQuery)
	}
	return nil
}
