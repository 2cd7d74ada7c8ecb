package memory

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync/atomic"

	"saferag/internal/domain"
	"saferag/internal/similarity"
	"saferag/internal/snapshot"
)

// ErrDimensionMismatch is returned when a vector does not match the
// dimensionality of the loaded snapshot.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// index is an immutable view over one chunk snapshot.
type index struct {
	dimension int
	chunks    []domain.Chunk
}

// Storage is an in-memory vector store using brute-force cosine similarity.
// Readers see a single immutable snapshot; Load and Replace swap it atomically.
type Storage struct {
	current atomic.Pointer[index]
	logger  *log.Logger
}

func NewStorage(logger *log.Logger) *Storage {
	if logger == nil {
		logger = log.Default()
	}
	s := &Storage{logger: logger}
	s.current.Store(&index{})
	return s
}

// Load reads the chunk snapshot at path and swaps it in. A missing file
// leaves the store empty; a malformed one is an error and the previously
// loaded snapshot stays active.
func (s *Storage) Load(path string) error {
	chunks, found, err := snapshot.Read[domain.Chunk](path)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Printf("index file %s not found, retrieval disabled until the index is built", path)
	}
	if err := s.Replace(chunks); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if found {
		s.logger.Printf("loaded %d chunks from %s", len(chunks), path)
	}
	return nil
}

// Replace validates chunks and makes them the active snapshot.
func (s *Storage) Replace(chunks []domain.Chunk) error {
	dim, err := Validate(chunks)
	if err != nil {
		return err
	}
	s.current.Store(&index{dimension: dim, chunks: chunks})
	return nil
}

// Validate checks that every chunk has the same vector size and returns it,
// 0 for an empty set. Replace accepts exactly the sets Validate accepts.
func Validate(chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	dim := len(chunks[0].Embedding)
	for _, ch := range chunks[1:] {
		if len(ch.Embedding) != dim {
			return 0, fmt.Errorf("%w: chunk %s has %d dimensions, expected %d", ErrDimensionMismatch, ch.ID, len(ch.Embedding), dim)
		}
	}
	return dim, nil
}

// Len returns the number of chunks in the active snapshot.
func (s *Storage) Len() int { return len(s.current.Load().chunks) }

// Dimension returns the vector size of the active snapshot, 0 when empty.
func (s *Storage) Dimension() int { return s.current.Load().dimension }

// Search scores every chunk against vector and returns at most topK results
// by descending similarity. Equal scores keep snapshot order.
func (s *Storage) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	idx := s.current.Load()
	if len(idx.chunks) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(vector), idx.dimension)
	}
	scores := make([]float64, len(idx.chunks))
	for i := range idx.chunks {
		scores[i] = similarity.Cosine(vector, idx.chunks[i].Embedding)
	}
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for i := 0; i < topK; i++ {
		j := idxs[i]
		ch := idx.chunks[j]
		results = append(results, domain.SearchResult{ID: ch.ID, Text: ch.Text, Source: ch.Source, Score: scores[j]})
	}
	return results, nil
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}
