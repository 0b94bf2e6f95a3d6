package domain

import "time"

// MemoryEntry is a stored piece of conversation or knowledge.
type MemoryEntry struct {
	ID        string            `json:"id" yaml:"id"`
	Content   string            `json:"content" yaml:"content"`
	Embedding []float32         `json:"embedding,omitempty" yaml:"-"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"updated_at"`
}

// SearchResult is a memory ranked by similarity to a query.
type SearchResult struct {
	Entry      MemoryEntry `json:"entry" yaml:"entry"`
	Similarity float32     `json:"similarity" yaml:"similarity"`
}
