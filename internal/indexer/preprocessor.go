package indexer

import "strings"

// Preprocess normalizes document text before chunking: strips a UTF-8 BOM and
// converts CRLF and lone CR line endings to LF so line spans match editors.
func Preprocess(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	if !strings.Contains(text, "\r") {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
