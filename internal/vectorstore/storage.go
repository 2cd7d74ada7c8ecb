package vectorstore

import "saferag/internal/domain"

// Searcher returns the chunks most similar to a query vector.
type Searcher interface {
	Search(vector []float64, topK int) ([]domain.SearchResult, error)
}
