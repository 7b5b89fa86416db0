package domain

import "context"

// Document represents the raw text extracted from a single source file.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a contiguous word window of a document used as the unit of retrieval.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
}

// Neighbor is a single nearest-neighbor hit: the stored vector position and
// its squared Euclidean distance to the query.
type Neighbor struct {
	Index    int
	Distance float64
}

// Embedder converts text into fixed-dimension numeric vectors.
// Output order matches input order.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Index answers k-nearest-neighbor queries over an immutable vector set.
type Index interface {
	Len() int
	Dimension() int
	Search(query []float32, k int) ([]Neighbor, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
