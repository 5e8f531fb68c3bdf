package chunker

import (
	"strings"

	"github.com/dgallion1/docresearch/internal/layout"
)

// DefaultMaxLength is the default chunk budget in characters.
const DefaultMaxLength = 512

// Pack groups elements into chunks of consecutive elements in (page, sequence)
// order. A chunk is closed when adding the next element would push its
// accumulated content length past maxLength. An element longer than the
// budget becomes a chunk of its own; elements are never split.
//
// The input slice is sorted in place. A maxLength <= 0 uses DefaultMaxLength.
func Pack(elements []*layout.Element, maxLength int) []*layout.Chunk {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	layout.SortElements(elements)

	var chunks []*layout.Chunk
	var current []*layout.Element
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, newChunk(current, len(chunks)))
		current = nil
		currentLen = 0
	}

	for _, el := range elements {
		elLen := Length(el.Content)

		// Would adding this element exceed the budget?
		if currentLen+elLen > maxLength && len(current) > 0 {
			flush()
		}

		current = append(current, el)
		currentLen += elLen
	}
	flush()

	return chunks
}

func newChunk(elements []*layout.Element, id int) *layout.Chunk {
	parts := make([]string, len(elements))
	for i, el := range elements {
		parts[i] = el.Content
	}
	return &layout.Chunk{
		DocID:    elements[0].DocID,
		ChunkID:  id,
		PageID:   elements[0].PageID,
		Content:  strings.Join(parts, "\n"),
		Elements: elements,
	}
}
