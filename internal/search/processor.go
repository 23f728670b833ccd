package search

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/notevec/internal/models"
)

// ProcessQuery trims the query text and validates it. Queries shorter than minLength
// characters return ErrQueryTooShort.
func ProcessQuery(query *models.SearchQuery, minLength int) error {
	query.Query = strings.TrimSpace(query.Query)
	if n := utf8.RuneCountInString(query.Query); n < minLength || n == 0 {
		return fmt.Errorf("%w: need at least %d characters", ErrQueryTooShort, minLength)
	}
	return query.Validate()
}
