package processor

import (
	"iter"
	"maps"
	"strings"

	"github.com/xhad/kbase/internal/models"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150
)

// Break points tried, in order, when a window has to be shortened.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune(" "),
}

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Processor splits documents into overlapping, character-bounded chunks.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}

	return Processor{
		config: config,
	}
}

func (p Processor) Config() ProcessorConfig {
	return p.config
}

// Process chunks every document, in order.
func (p Processor) Process(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		chunks = append(chunks, p.ChunkDocument(doc)...)
	}
	return chunks
}

// ChunkDocument splits a document and attaches citation metadata and ids.
// chunk_index is only recorded when the document produced more than one chunk.
func (p Processor) ChunkDocument(doc models.Document) []models.Chunk {
	texts := p.Split(doc.Content)
	chunks := make([]models.Chunk, 0, len(texts))
	for i, text := range texts {
		meta := make(map[string]any, len(doc.Meta)+2)
		maps.Copy(meta, doc.Meta)
		meta["source"] = doc.Source
		if len(texts) > 1 {
			meta["chunk_index"] = i
		}

		chunks = append(chunks, models.Chunk{
			ID:       ChunkID(doc.Source, i, text),
			Text:     text,
			Metadata: meta,
		})
	}
	return chunks
}

// Split returns the non-empty chunks of text.
func (p Processor) Split(text string) []string {
	var chunks []string
	for chunk := range p.Chunks(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Chunks lazily yields the trimmed chunks of text. Chunks that trim to
// nothing are skipped.
func (p Processor) Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(text)
		size := p.config.ChunkSize

		if len(runes) <= size {
			if trimmed := strings.TrimSpace(text); trimmed != "" {
				yield(trimmed)
			}
			return
		}

		start := 0
		for start < len(runes) {
			end := min(start+size, len(runes))
			if end < len(runes) {
				end = start + snap(runes[start:end], size)
			}

			if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
				if !yield(chunk) {
					return
				}
			}
			if end >= len(runes) {
				return
			}

			next := end - p.config.ChunkOverlap
			if next <= start {
				next = end
			}
			start = next
		}
	}
}

// snap returns the length of window once shortened to just past its last
// break point, or the full length when no break point lies past the middle.
func snap(window []rune, size int) int {
	for _, sep := range separators {
		if idx := lastIndex(window, sep); idx > size/2 {
			return idx + len(sep)
		}
	}
	return len(window)
}

func lastIndex(s, sep []rune) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			if s[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
