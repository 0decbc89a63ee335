package service

import (
	"fmt"

	"batchflow/internal/domain/entity"
	"batchflow/internal/domain/valueobject"
)

// DefaultMaxItemsPerSubmission is the provider's hard per-submission limit.
const DefaultMaxItemsPerSubmission = 30

// Chunk is an ordered, non-overlapping slice of work items sized to fit one
// provider submission.
type Chunk struct {
	Index int
	Items []entity.WorkItem
}

// SplitPlan is a non-mutating preview of how a collection would split,
// for presenting to a caller before committing to submission.
type SplitPlan struct {
	TotalItems  int   `json:"total_items"`
	TotalChunks int   `json:"total_chunks"`
	ChunkSizes  []int `json:"chunk_sizes"`
}

// Split partitions items into chunks of at most maxSize, preserving order.
// Concatenating the returned chunks reproduces the input exactly. Items are
// validated and checked for correlation key collisions here, because a
// duplicate key inside one group would make provider results ambiguous.
func Split(items []entity.WorkItem, maxSize int) ([]Chunk, error) {
	if maxSize <= 0 {
		return nil, entity.NewDomainError(
			fmt.Sprintf("max chunk size must be positive, got %d", maxSize),
			"INVALID_MAX_SIZE",
		)
	}
	if len(items) == 0 {
		return []Chunk{}, nil
	}

	seen := make(map[valueobject.CorrelationKey]int, len(items))
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		key, err := item.CorrelationKey()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if prev, dup := seen[key]; dup {
			return nil, entity.NewDomainError(
				fmt.Sprintf("items %d and %d share correlation key %s", prev, i, key),
				"DUPLICATE_CORRELATION_KEY",
			)
		}
		seen[key] = i
	}

	chunks := make([]Chunk, 0, (len(items)+maxSize-1)/maxSize)
	for start := 0; start < len(items); start += maxSize {
		end := start + maxSize
		if end > len(items) {
			end = len(items)
		}
		chunk := make([]entity.WorkItem, end-start)
		copy(chunk, items[start:end])
		chunks = append(chunks, Chunk{Index: len(chunks), Items: chunk})
	}
	return chunks, nil
}

// Plan previews a split without building chunks.
func Plan(items []entity.WorkItem, maxSize int) (SplitPlan, error) {
	if maxSize <= 0 {
		return SplitPlan{}, entity.NewDomainError(
			fmt.Sprintf("max chunk size must be positive, got %d", maxSize),
			"INVALID_MAX_SIZE",
		)
	}

	plan := SplitPlan{TotalItems: len(items)}
	for start := 0; start < len(items); start += maxSize {
		size := maxSize
		if remaining := len(items) - start; remaining < size {
			size = remaining
		}
		plan.ChunkSizes = append(plan.ChunkSizes, size)
	}
	plan.TotalChunks = len(plan.ChunkSizes)
	return plan, nil
}
