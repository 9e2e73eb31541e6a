package models

// Document is a unit of loaded content before chunking.
type Document struct {
	Content string
	Source  string
	Meta    map[string]any
}

// NewDocument builds a Document with an empty, non-nil Meta.
func NewDocument(content, source string, meta map[string]any) Document {
	if meta == nil {
		meta = map[string]any{}
	}
	return Document{
		Content: content,
		Source:  source,
		Meta:    meta,
	}
}

// Chunk is a piece of a Document prepared for embedding.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// IndexedChunk is a Chunk together with its embedding, as written to a collection.
type IndexedChunk struct {
	Chunk
	Embedding []float32
}

// RetrievedChunk is a search hit read back from a collection.
type RetrievedChunk struct {
	ID       string
	Content  string
	Source   string
	Metadata map[string]any
	Distance float64
}

// Citation identifies a chunk that grounded an answer.
type Citation struct {
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

// Answer is the result of a question over the knowledge base.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"sources"`
}
