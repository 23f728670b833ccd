package search

import (
	"strings"

	"github.com/hyperjump/notevec/pkg/utils"
)

// Highlight returns a one-line snippet of content: whitespace runs collapse to a
// single space and the text is cut to maxLen characters with "..." appended.
func Highlight(content string, maxLen int) string {
	return utils.Truncate(strings.Join(strings.Fields(content), " "), maxLen)
}
