// Package indexer provides document chunking and indexing into the vector store.
package indexer

import (
	"strings"

	"github.com/hyperjump/notevec/internal/config"
)

// Chunk is a contiguous span of a document. Offsets are rune offsets into the
// document text; End is exclusive. Lines are 0-based.
type Chunk struct {
	Text      string
	Start     int
	End       int
	StartLine int
	EndLine   int
}

// Chunker splits text into chunks by character windows or by paragraphs.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	strategy     string
}

// NewChunker creates a chunker. chunkSize 0 disables chunking; chunkOverlap only
// applies to the character strategy.
func NewChunker(chunkSize, chunkOverlap int, strategy string) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		strategy:     strategy,
	}
}

// NewChunkerFromConfig creates a chunker from the chunking section of the config.
func NewChunkerFromConfig(cfg *config.ChunkingConfig) *Chunker {
	return NewChunker(cfg.Size(), cfg.ChunkOverlap, cfg.Strategy)
}

// Chunk splits text into ordered chunks.
func (c *Chunker) Chunk(text string) []Chunk {
	runes := []rune(text)
	if c.chunkSize <= 0 {
		return []Chunk{newLineCursor(runes).span(0, len(runes))}
	}
	if c.strategy == config.StrategyParagraph {
		return c.chunkParagraphs(runes)
	}
	return c.chunkCharacters(runes)
}

// step is the distance between consecutive character-window starts.
// A non-positive step would never terminate, so it falls back to the full size.
func (c *Chunker) step() int {
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = c.chunkSize
	}
	return step
}

func (c *Chunker) chunkCharacters(runes []rune) []Chunk {
	var chunks []Chunk
	lines := newLineCursor(runes)
	step := c.step()
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, lines.span(start, end))
	}
	return chunks
}

func (c *Chunker) chunkParagraphs(runes []rune) []Chunk {
	paragraphs := splitParagraphs(runes)
	if len(paragraphs) == 0 {
		return nil
	}
	var chunks []Chunk
	lines := newLineCursor(runes)
	cur := paragraphs[0]
	for _, p := range paragraphs[1:] {
		currentLen := cur.end - cur.start
		gap := p.start - cur.end
		if currentLen+gap+(p.end-p.start) <= c.chunkSize {
			cur.end = p.end
			continue
		}
		chunks = append(chunks, lines.span(cur.start, cur.end))
		cur = p
	}
	return append(chunks, lines.span(cur.start, cur.end))
}

// lineCursor tracks the line number of a rune offset. Offsets passed to span must
// not decrease, so each rune is scanned once across a document.
type lineCursor struct {
	runes []rune
	pos   int
	line  int
}

func newLineCursor(runes []rune) *lineCursor {
	return &lineCursor{runes: runes}
}

func (lc *lineCursor) lineAt(offset int) int {
	for ; lc.pos < offset; lc.pos++ {
		if lc.runes[lc.pos] == '\n' {
			lc.line++
		}
	}
	return lc.line
}

func (lc *lineCursor) span(start, end int) Chunk {
	text := string(lc.runes[start:end])
	startLine := lc.lineAt(start)
	return Chunk{
		Text:      text,
		Start:     start,
		End:       end,
		StartLine: startLine,
		EndLine:   startLine + strings.Count(text, "\n"),
	}
}

type paragraph struct {
	start, end int
}

// splitParagraphs returns maximal runs of non-blank lines. Each span starts at the
// first rune of its first line and ends after the last rune of its last line
// (the trailing newline is not included).
func splitParagraphs(runes []rune) []paragraph {
	var out []paragraph
	inPara := false
	var cur paragraph
	lineStart := 0
	for i := 0; i <= len(runes); i++ {
		if i < len(runes) && runes[i] != '\n' {
			continue
		}
		lineEnd := i
		if isBlank(runes[lineStart:lineEnd]) {
			if inPara {
				out = append(out, cur)
				inPara = false
			}
		} else {
			if !inPara {
				cur = paragraph{start: lineStart}
				inPara = true
			}
			cur.end = lineEnd
		}
		lineStart = i + 1
	}
	if inPara {
		out = append(out, cur)
	}
	return out
}

func isBlank(line []rune) bool {
	return strings.TrimSpace(string(line)) == ""
}
