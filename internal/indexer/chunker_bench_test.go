package indexer

import (
	"strings"
	"testing"

	"github.com/hyperjump/notevec/internal/config"
)

func BenchmarkChunker_character(b *testing.B) {
	text := strings.Repeat("Notes about goroutines and channels.\n", 500)
	c := NewChunker(500, 50, config.StrategyCharacter)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Chunk(text)
	}
}

func BenchmarkChunker_paragraph(b *testing.B) {
	text := strings.Repeat("A short paragraph about bread.\n\n", 500)
	c := NewChunker(500, 0, config.StrategyParagraph)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Chunk(text)
	}
}
