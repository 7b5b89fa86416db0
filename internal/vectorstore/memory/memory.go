package memory

import (
	"fmt"
	"sort"

	"pdfqa/internal/domain"
)

// Index is an exact brute-force nearest-neighbor index under squared
// Euclidean distance. It is immutable after Build and safe for concurrent
// readers.
type Index struct {
	dimension int
	vectors   [][]float32
}

var _ domain.Index = (*Index)(nil)

// Build copies vectors into a new index. The dimension is taken from the
// first vector and every other vector must match it.
func Build(vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: cannot build index from zero vectors", domain.ErrEmptyInput)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: vector 0 is empty", domain.ErrDimensionMismatch)
	}
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", domain.ErrDimensionMismatch, i, len(v), dim)
		}
		stored[i] = append([]float32(nil), v...)
	}
	return &Index{dimension: dim, vectors: stored}, nil
}

func (x *Index) Len() int { return len(x.vectors) }

func (x *Index) Dimension() int { return x.dimension }

// Search returns up to k neighbors of query, closest first. Equal distances
// are ordered by stored position.
func (x *Index) Search(query []float32, k int) ([]domain.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidConfiguration, k)
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(query), x.dimension)
	}
	hits := make([]domain.Neighbor, len(x.vectors))
	for i, v := range x.vectors {
		hits[i] = domain.Neighbor{Index: i, Distance: squaredL2(v, query)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k:k], nil
}

func squaredL2(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
