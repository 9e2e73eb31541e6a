package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	idPrefixLen = 50
	idLen       = 24
)

// ChunkID derives the collection key of a chunk from its source, its position
// within the document and the first 50 characters of its text. Ids only need
// to be unique within one collection; two chunks sharing source, position and
// prefix collide.
func ChunkID(source string, chunkIndex int, text string) string {
	preview := []rune(text)
	if len(preview) > idPrefixLen {
		preview = preview[:idPrefixLen]
	}

	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d:%s", source, chunkIndex, string(preview)))
	return hex.EncodeToString(sum[:])[:idLen]
}
