package chunker

import (
	"fmt"
	"strings"

	"pdfqa/internal/domain"
)

// Chunk splits text on whitespace and returns overlapping windows of
// chunkSize words. Each window starts chunkSize-overlap words after the
// previous one; the last window is clipped to the remaining words.
func Chunk(text string, chunkSize, overlap int) ([]string, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}
	step := chunkSize - overlap
	chunks := make([]string, 0, (len(words)+step-1)/step)
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks, nil
}

func validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrInvalidConfiguration, chunkSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrInvalidConfiguration, overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("%w: overlap (%d) must be smaller than chunk_size (%d)", domain.ErrInvalidConfiguration, overlap, chunkSize)
	}
	return nil
}

// WordChunker binds a window size and overlap and implements domain.Chunker.
type WordChunker struct {
	chunkSize int
	overlap   int
}

// NewWordChunker validates the window parameters up front so a misconfigured
// chunker never reaches ingest.
func NewWordChunker(chunkSize, overlap int) (*WordChunker, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &WordChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

func (c *WordChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	texts, err := Chunk(document.Content, c.chunkSize, c.overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			DocumentID: document.ID,
			Index:      i,
			Text:       text,
		}
	}
	return chunks, nil
}

// Texts returns the chunk texts in order.
func Texts(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Text
	}
	return out
}
